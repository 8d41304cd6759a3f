package application

import (
	"bytes"
	"fmt"

	"github.com/tdex-network/spentbook/internal/core/domain"
	"github.com/tdex-network/spentbook/internal/core/ports"
)

// SpendableInput is a token the builder can consume along with the secrets
// needed to do so.
type SpendableInput struct {
	Token       domain.Token
	Secrets     domain.AmountSecrets
	OwnerSecret []byte
}

// OutputRequest is an output to create. Owned outputs are locked to
// OwnerKey. Bearer outputs get a fresh key whose secret travels with the
// token.
type OutputRequest struct {
	Amount   uint64
	OwnerKey []byte
	Bearer   bool
}

// BuiltTransaction is a candidate transaction ready to be submitted.
type BuiltTransaction struct {
	Transaction   *domain.CandidateTransaction
	InputTokens   []domain.Token
	OutputSecrets []domain.AmountSecrets
	BearerSecrets map[int][]byte
}

// Request returns the spend request to submit to spentbook nodes.
func (b *BuiltTransaction) Request() domain.SpendRequest {
	return domain.SpendRequest{
		Transaction: b.Transaction,
		InputTokens: b.InputTokens,
	}
}

// Tokens returns the completed tokens of all outputs.
func (b *BuiltTransaction) Tokens(proof domain.QuorumProof) []domain.Token {
	return domain.AssembleTokens(b.Transaction, b.BearerSecrets, proof)
}

// TransactionBuilder builds balanced candidate transactions.
type TransactionBuilder interface {
	Build(
		inputs []SpendableInput, outputs []OutputRequest,
	) (*BuiltTransaction, error)
}

type transactionBuilder struct {
	crypto ports.Crypto
}

// NewTransactionBuilder ...
func NewTransactionBuilder(crypto ports.Crypto) TransactionBuilder {
	return &transactionBuilder{crypto}
}

func (b *transactionBuilder) Build(
	inputs []SpendableInput, outputs []OutputRequest,
) (*BuiltTransaction, error) {
	if len(inputs) <= 0 {
		return nil, domain.ErrNoInputsSelected
	}
	if len(outputs) <= 0 {
		return nil, domain.ErrNoOutputsRequested
	}

	inAmounts := make([]uint64, 0, len(inputs))
	for _, in := range inputs {
		inAmounts = append(inAmounts, in.Secrets.Amount)
	}
	outAmounts := make([]uint64, 0, len(outputs))
	for _, out := range outputs {
		if out.Amount == 0 {
			return nil, domain.ErrInvalidAmount
		}
		outAmounts = append(outAmounts, out.Amount)
	}
	inTotal, err := domain.SumAmounts(inAmounts...)
	if err != nil {
		return nil, err
	}
	outTotal, err := domain.SumAmounts(outAmounts...)
	if err != nil {
		return nil, err
	}
	if inTotal < outTotal {
		return nil, &domain.InsufficientFundsError{
			Available: inTotal, Requested: outTotal,
		}
	}
	if inTotal > outTotal {
		return nil, fmt.Errorf(
			"%w: %d left over", domain.ErrUnbalancedTransaction, inTotal-outTotal,
		)
	}

	tx := &domain.CandidateTransaction{}
	inSecrets := make([]domain.AmountSecrets, 0, len(inputs))
	inTokens := make([]domain.Token, 0, len(inputs))
	seen := make(map[domain.Fingerprint]struct{})
	for i, in := range inputs {
		input, err := b.input(in)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		if _, ok := seen[input.Fingerprint]; ok {
			return nil, fmt.Errorf(
				"%w: input %s selected twice", domain.ErrInvalidProof, input.Fingerprint,
			)
		}
		seen[input.Fingerprint] = struct{}{}

		tx.Inputs = append(tx.Inputs, *input)
		inSecrets = append(inSecrets, in.Secrets)
		inTokens = append(inTokens, in.Token)
	}

	outSecrets := make([]domain.AmountSecrets, 0, len(outputs))
	bearerSecrets := make(map[int][]byte)
	for i, out := range outputs {
		output, secrets, bearerSecret, err := b.output(out)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		tx.Outputs = append(tx.Outputs, *output)
		outSecrets = append(outSecrets, *secrets)
		if bearerSecret != nil {
			bearerSecrets[i] = bearerSecret
		}
	}

	msg := tx.SigningHash()
	proof, err := b.crypto.Prove(inSecrets, outSecrets, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to prove balance: %w", err)
	}
	tx.BalanceProof = proof
	for i, in := range inputs {
		sig, err := b.crypto.Sign(in.OwnerSecret, msg)
		if err != nil {
			return nil, fmt.Errorf("failed to sign input %d: %w", i, err)
		}
		tx.OwnerSignatures = append(tx.OwnerSignatures, sig)
	}

	if err := b.crypto.Verify(
		tx.InputCommitments(), tx.OutputCommitments(), tx.BalanceProof, msg,
	); err != nil {
		return nil, err
	}

	return &BuiltTransaction{
		Transaction:   tx,
		InputTokens:   inTokens,
		OutputSecrets: outSecrets,
		BearerSecrets: bearerSecrets,
	}, nil
}

func (b *transactionBuilder) input(in SpendableInput) (*domain.Input, error) {
	out := in.Token.Output
	commitment, err := b.crypto.Commit(in.Secrets)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(commitment, out.Commitment) {
		return nil, fmt.Errorf(
			"%w: secrets do not open the token commitment", domain.ErrInvalidProof,
		)
	}
	ownerKey, err := b.crypto.PublicKey(in.OwnerSecret)
	if err != nil || !bytes.Equal(ownerKey, out.OwnerKey) {
		return nil, domain.ErrNotOwnedByMe
	}
	return &domain.Input{
		Fingerprint: out.Fingerprint(),
		Commitment:  out.Commitment,
		OwnerKey:    out.OwnerKey,
	}, nil
}

func (b *transactionBuilder) output(
	req OutputRequest,
) (*domain.Output, *domain.AmountSecrets, []byte, error) {
	ownerKey := req.OwnerKey
	var bearerSecret []byte
	if req.Bearer {
		if len(ownerKey) > 0 {
			return nil, nil, nil, fmt.Errorf(
				"%w: bearer outputs get a fresh key", domain.ErrInvalidRecipientKey,
			)
		}
		priv, pub, err := b.crypto.NewKey()
		if err != nil {
			return nil, nil, nil, err
		}
		ownerKey, bearerSecret = pub, priv
	} else if err := b.crypto.ValidatePublicKey(ownerKey); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %s", domain.ErrInvalidRecipientKey, err)
	}

	blinding, err := b.crypto.NewBlinding()
	if err != nil {
		return nil, nil, nil, err
	}
	secrets := &domain.AmountSecrets{Amount: req.Amount, Blinding: blinding}
	commitment, err := b.crypto.Commit(*secrets)
	if err != nil {
		return nil, nil, nil, err
	}
	ephemeral, ciphertext, err := b.crypto.Seal(ownerKey, *secrets)
	if err != nil {
		return nil, nil, nil, err
	}

	return &domain.Output{
		Commitment: commitment,
		OwnerKey:   ownerKey,
		Bearer:     req.Bearer,
		Ephemeral:  ephemeral,
		Ciphertext: ciphertext,
	}, secrets, bearerSecret, nil
}
