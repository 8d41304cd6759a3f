package application

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/spentbook/internal/core/domain"
	"github.com/tdex-network/spentbook/internal/core/ports"
)

// SendResult is the outcome of a successful spend.
type SendResult struct {
	TxID string
	// Tokens are the completed tokens of all outputs, in output order.
	Tokens []domain.Token
	// Deposited are the outputs owned by this wallet, already deposited.
	Deposited []domain.WalletEntry
}

// WalletService holds the wallet's tokens and keys, and spends them through
// the quorum of spentbook nodes. Commands are serialized.
type WalletService interface {
	NewKey(ctx context.Context) (string, error)
	Keys(ctx context.Context) ([]domain.KeyPair, error)
	// Deposit verifies and stores the token. Depositing the same token twice
	// returns the existing entry.
	Deposit(
		ctx context.Context, token *domain.Token, note string,
	) (*domain.WalletEntry, error)
	// Unspent returns the unspent entries in receipt order.
	Unspent(ctx context.Context) ([]domain.WalletEntry, error)
	Spent(ctx context.Context) ([]domain.WalletEntry, error)
	Balance(ctx context.Context) (uint64, error)
	MarkSpent(ctx context.Context, fps []domain.Fingerprint, txid string) error
	// IssueGenesis deposits the genesis token and reissues it to a wallet key.
	IssueGenesis(ctx context.Context) (*SendResult, error)
	// Send spends the given entries, or selects them in receipt order if none
	// is given, sending any leftover back to a fresh wallet key.
	Send(
		ctx context.Context, outputs []OutputRequest, inputs []domain.Fingerprint,
	) (*SendResult, error)
	// Retry resubmits the identical pending transaction.
	Retry(ctx context.Context, txid string) (*SendResult, error)
	Pending(ctx context.Context) ([]domain.PendingSpend, error)
}

type walletService struct {
	repository    domain.WalletRepository
	crypto        ports.Crypto
	verifier      TokenVerifier
	builder       TransactionBuilder
	coordinator   QuorumCoordinator
	genesisAmount uint64

	lock *sync.Mutex
}

// NewWalletService ...
func NewWalletService(
	repository domain.WalletRepository,
	crypto ports.Crypto,
	verifier TokenVerifier,
	builder TransactionBuilder,
	coordinator QuorumCoordinator,
	genesisAmount uint64,
) WalletService {
	return &walletService{
		repository:    repository,
		crypto:        crypto,
		verifier:      verifier,
		builder:       builder,
		coordinator:   coordinator,
		genesisAmount: genesisAmount,
		lock:          &sync.Mutex{},
	}
}

func (w *walletService) NewKey(ctx context.Context) (string, error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	key, err := w.newKey(ctx)
	if err != nil {
		return "", err
	}
	return key.PublicKey, nil
}

func (w *walletService) Keys(ctx context.Context) ([]domain.KeyPair, error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.repository.GetAllKeys(ctx)
}

func (w *walletService) Deposit(
	ctx context.Context, token *domain.Token, note string,
) (*domain.WalletEntry, error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.deposit(ctx, token, note)
}

func (w *walletService) Unspent(ctx context.Context) ([]domain.WalletEntry, error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.entries(ctx, false)
}

func (w *walletService) Spent(ctx context.Context) ([]domain.WalletEntry, error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.entries(ctx, true)
}

func (w *walletService) Balance(ctx context.Context) (uint64, error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	unspent, err := w.entries(ctx, false)
	if err != nil {
		return 0, err
	}
	amounts := make([]uint64, 0, len(unspent))
	for _, e := range unspent {
		amounts = append(amounts, e.Amount)
	}
	return domain.SumAmounts(amounts...)
}

func (w *walletService) MarkSpent(
	ctx context.Context, fps []domain.Fingerprint, txid string,
) error {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.markSpent(ctx, fps, txid)
}

func (w *walletService) IssueGenesis(ctx context.Context) (*SendResult, error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	genesis := w.verifier.Genesis()
	entry, err := w.deposit(ctx, genesis, "genesis")
	if err != nil {
		return nil, err
	}
	if !entry.IsSpendable() {
		if entry.Spent {
			return nil, domain.ErrEntryAlreadySpent
		}
		return w.retry(ctx, entry.LockedBy)
	}

	key, err := w.newKey(ctx)
	if err != nil {
		return nil, err
	}
	ownerKey, _ := hex.DecodeString(key.PublicKey)
	return w.send(
		ctx,
		[]OutputRequest{{Amount: entry.Amount, OwnerKey: ownerKey}},
		[]domain.Fingerprint{entry.Fingerprint},
	)
}

func (w *walletService) Send(
	ctx context.Context, outputs []OutputRequest, inputs []domain.Fingerprint,
) (*SendResult, error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.send(ctx, outputs, inputs)
}

func (w *walletService) Retry(ctx context.Context, txid string) (*SendResult, error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.retry(ctx, txid)
}

func (w *walletService) Pending(ctx context.Context) ([]domain.PendingSpend, error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.repository.GetAllPendingSpends(ctx)
}

func (w *walletService) newKey(ctx context.Context) (*domain.KeyPair, error) {
	priv, pub, err := w.crypto.NewKey()
	if err != nil {
		return nil, err
	}
	key := domain.KeyPair{
		PublicKey:  hex.EncodeToString(pub),
		PrivateKey: priv,
		CreatedAt:  time.Now().Unix(),
	}
	if err := w.repository.AddKey(ctx, key); err != nil {
		return nil, err
	}
	return &key, nil
}

func (w *walletService) deposit(
	ctx context.Context, token *domain.Token, note string,
) (*domain.WalletEntry, error) {
	if err := w.verifier.VerifyToken(token); err != nil {
		return nil, err
	}

	fp := token.Fingerprint()
	if entry, err := w.repository.GetEntry(ctx, fp); err == nil {
		return entry, nil
	} else if !errors.Is(err, domain.ErrEntryNotFound) {
		return nil, err
	}

	secrets, err := w.openToken(ctx, token)
	if err != nil {
		return nil, err
	}

	entry := domain.WalletEntry{
		Fingerprint: fp,
		Token:       token.Serialize(),
		Amount:      secrets.Amount,
		Blinding:    secrets.Blinding,
		ReceivedAt:  time.Now().Unix(),
		Note:        note,
	}
	added, err := w.repository.AddEntry(ctx, entry)
	if err != nil {
		return nil, err
	}
	if !added {
		return w.repository.GetEntry(ctx, fp)
	}

	log.WithFields(log.Fields{
		"fingerprint": fp,
		"amount":      secrets.Amount,
	}).Debug("token deposited")
	return w.repository.GetEntry(ctx, fp)
}

// openToken returns the amount secrets of a token this wallet can spend.
func (w *walletService) openToken(
	ctx context.Context, token *domain.Token,
) (*domain.AmountSecrets, error) {
	var secrets *domain.AmountSecrets
	if token.Genesis {
		s, _ := domain.GenesisSecrets(w.genesisAmount)
		secrets = &s
	} else {
		ownerSecret, err := w.ownerSecret(ctx, token)
		if err != nil {
			return nil, err
		}
		secrets, err = w.crypto.Open(
			ownerSecret, token.Output.Ephemeral, token.Output.Ciphertext,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidToken, err)
		}
	}

	commitment, err := w.crypto.Commit(*secrets)
	if err != nil || !bytes.Equal(commitment, token.Output.Commitment) {
		return nil, fmt.Errorf(
			"%w: amount secrets do not open the commitment", domain.ErrInvalidToken,
		)
	}
	return secrets, nil
}

func (w *walletService) ownerSecret(
	ctx context.Context, token *domain.Token,
) ([]byte, error) {
	if token.IsBearer() {
		return token.BearerSecret, nil
	}
	key, err := w.repository.GetKey(ctx, hex.EncodeToString(token.Output.OwnerKey))
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return nil, domain.ErrNotOwnedByMe
		}
		return nil, err
	}
	return key.PrivateKey, nil
}

func (w *walletService) entries(
	ctx context.Context, spent bool,
) ([]domain.WalletEntry, error) {
	all, err := w.repository.GetAllEntries(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.WalletEntry, 0, len(all))
	for _, e := range all {
		if e.Spent == spent {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (w *walletService) markSpent(
	ctx context.Context, fps []domain.Fingerprint, txid string,
) error {
	now := time.Now().Unix()
	return w.repository.UpdateEntries(
		ctx, fps, func(e *domain.WalletEntry) (*domain.WalletEntry, error) {
			if err := e.Spend(txid, now); err != nil {
				return nil, err
			}
			return e, nil
		},
	)
}

func (w *walletService) send(
	ctx context.Context, outputs []OutputRequest, inputs []domain.Fingerprint,
) (*SendResult, error) {
	if len(outputs) <= 0 {
		return nil, domain.ErrNoOutputsRequested
	}
	amounts := make([]uint64, 0, len(outputs))
	for _, out := range outputs {
		if out.Amount == 0 {
			return nil, domain.ErrInvalidAmount
		}
		amounts = append(amounts, out.Amount)
	}
	requested, err := domain.SumAmounts(amounts...)
	if err != nil {
		return nil, err
	}

	selected, err := w.selectEntries(ctx, inputs, requested)
	if err != nil {
		return nil, err
	}

	spendable := make([]SpendableInput, 0, len(selected))
	var available uint64
	for _, e := range selected {
		token, err := e.GetToken()
		if err != nil {
			return nil, fmt.Errorf("%w: entry %s: %s", domain.ErrWalletUnavailable, e.Fingerprint, err)
		}
		ownerSecret, err := w.ownerSecret(ctx, token)
		if err != nil {
			return nil, err
		}
		spendable = append(spendable, SpendableInput{
			Token:       *token,
			Secrets:     e.Secrets(),
			OwnerSecret: ownerSecret,
		})
		available += e.Amount
	}

	if available > requested {
		change, err := w.newKey(ctx)
		if err != nil {
			return nil, err
		}
		changeKey, _ := hex.DecodeString(change.PublicKey)
		outputs = append(outputs, OutputRequest{
			Amount: available - requested, OwnerKey: changeKey,
		})
	}

	built, err := w.builder.Build(spendable, outputs)
	if err != nil {
		return nil, err
	}

	pending := domain.NewPendingSpend(
		uuid.New().String(), built.Request(), built.BearerSecrets, time.Now().Unix(),
	)
	if err := w.repository.AddPendingSpend(ctx, *pending); err != nil {
		return nil, err
	}
	if err := w.repository.UpdateEntries(
		ctx, pending.InputFingerprints,
		func(e *domain.WalletEntry) (*domain.WalletEntry, error) {
			if err := e.Lock(pending.TxID); err != nil {
				return nil, err
			}
			return e, nil
		},
	); err != nil {
		_ = w.repository.DeletePendingSpend(ctx, pending.TxID)
		return nil, err
	}

	return w.submit(ctx, pending)
}

// selectEntries returns the given entries, or the unspent ones in receipt
// order up to the requested amount.
func (w *walletService) selectEntries(
	ctx context.Context, fps []domain.Fingerprint, requested uint64,
) ([]domain.WalletEntry, error) {
	if len(fps) > 0 {
		selected := make([]domain.WalletEntry, 0, len(fps))
		var total uint64
		for _, fp := range domain.SortedFingerprints(fps) {
			e, err := w.repository.GetEntry(ctx, fp)
			if err != nil {
				return nil, err
			}
			if e.Spent {
				return nil, fmt.Errorf("%w: %s", domain.ErrEntryAlreadySpent, fp)
			}
			if e.LockedBy != "" {
				return nil, fmt.Errorf("%w: %s by %s", domain.ErrEntryLocked, fp, e.LockedBy)
			}
			selected = append(selected, *e)
			total += e.Amount
		}
		if total < requested {
			return nil, &domain.InsufficientFundsError{
				Available: total, Requested: requested,
			}
		}
		return selected, nil
	}

	unspent, err := w.entries(ctx, false)
	if err != nil {
		return nil, err
	}
	selected := make([]domain.WalletEntry, 0)
	var total uint64
	for _, e := range unspent {
		if !e.IsSpendable() {
			continue
		}
		if total >= requested {
			break
		}
		selected = append(selected, e)
		total += e.Amount
	}
	if total < requested {
		return nil, &domain.InsufficientFundsError{
			Available: total, Requested: requested,
		}
	}
	return selected, nil
}

func (w *walletService) retry(ctx context.Context, txid string) (*SendResult, error) {
	pending, err := w.repository.GetPendingSpend(ctx, txid)
	if err != nil {
		return nil, err
	}
	return w.submit(ctx, pending)
}

func (w *walletService) submit(
	ctx context.Context, pending *domain.PendingSpend,
) (*SendResult, error) {
	req, err := pending.Request()
	if err != nil {
		return nil, fmt.Errorf("%w: pending %s: %s", domain.ErrWalletUnavailable, pending.TxID, err)
	}
	logger := log.WithField("txid", pending.TxID)

	result, err := w.coordinator.Submit(ctx, *req, pending.Collected)
	if err != nil {
		var dsErr *domain.DoubleSpendError
		switch {
		case errors.As(err, &dsErr):
			logger.WithField("winner", dsErr.ConflictingTxID).Warn("spend rejected")
			if rerr := w.abort(ctx, pending, dsErr); rerr != nil {
				logger.WithError(rerr).Warn("failed to release pending submission")
			}
		case errors.Is(err, domain.ErrInvalidProof):
			logger.WithError(err).Warn("spend rejected")
			if rerr := w.abort(ctx, pending, nil); rerr != nil {
				logger.WithError(rerr).Warn("failed to release pending submission")
			}
		default:
			if result != nil {
				if uerr := w.repository.UpdatePendingSpend(
					ctx, pending.TxID,
					func(p *domain.PendingSpend) (*domain.PendingSpend, error) {
						p.Collected = result.Collected
						p.Attempts++
						p.UpdatedAt = time.Now().Unix()
						return p, nil
					},
				); uerr != nil {
					logger.WithError(uerr).Warn("failed to store collected attestations")
				}
			}
		}
		return nil, err
	}

	tokens := domain.AssembleTokens(req.Transaction, pending.BearerSecrets, result.Proof)
	if err := w.markSpent(ctx, pending.InputFingerprints, pending.TxID); err != nil {
		return nil, err
	}

	deposited := make([]domain.WalletEntry, 0)
	for i := range tokens {
		token := &tokens[i]
		if token.IsBearer() {
			continue
		}
		entry, err := w.deposit(ctx, token, "")
		if err != nil {
			if errors.Is(err, domain.ErrNotOwnedByMe) {
				continue
			}
			return nil, err
		}
		deposited = append(deposited, *entry)
	}

	if err := w.repository.DeletePendingSpend(ctx, pending.TxID); err != nil {
		return nil, err
	}

	logger.WithField("outputs", len(tokens)).Info("spend completed")
	return &SendResult{
		TxID:      pending.TxID,
		Tokens:    tokens,
		Deposited: deposited,
	}, nil
}

// abort releases the inputs of a pending submission that can't succeed. The
// input spent by the conflicting transaction, if any, is marked as such.
func (w *walletService) abort(
	ctx context.Context, pending *domain.PendingSpend, dsErr *domain.DoubleSpendError,
) error {
	now := time.Now().Unix()
	if err := w.repository.UpdateEntries(
		ctx, pending.InputFingerprints,
		func(e *domain.WalletEntry) (*domain.WalletEntry, error) {
			if dsErr != nil && e.Fingerprint == dsErr.Fingerprint {
				e.Unlock()
				if err := e.Spend(dsErr.ConflictingTxID, now); err != nil {
					return nil, err
				}
				return e, nil
			}
			if e.LockedBy == pending.TxID {
				e.Unlock()
			}
			return e, nil
		},
	); err != nil {
		return err
	}
	return w.repository.DeletePendingSpend(ctx, pending.TxID)
}
