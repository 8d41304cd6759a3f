package domain

import "context"

// KeyPair is a wallet key. The public key is hex encoded and used as
// recipient of owned tokens.
type KeyPair struct {
	PublicKey  string
	PrivateKey []byte
	CreatedAt  int64
}

// WalletEntry is a token held by the wallet together with its opened amount.
type WalletEntry struct {
	Fingerprint Fingerprint
	Token       []byte
	Amount      uint64
	Blinding    []byte
	ReceivedAt  int64
	Note        string
	Spent       bool
	SpentAt     int64
	SpentBy     string
	// LockedBy is the id of the pending transaction consuming the entry.
	LockedBy string
	// Sequence is assigned by the repository and gives receipt order.
	Sequence uint64
}

// GetToken deserializes the held token.
func (e WalletEntry) GetToken() (*Token, error) {
	return DeserializeToken(e.Token)
}

// Secrets returns the opening of the entry's amount.
func (e WalletEntry) Secrets() AmountSecrets {
	return AmountSecrets{Amount: e.Amount, Blinding: e.Blinding}
}

// IsSpendable returns whether the entry can be selected as input of a new
// transaction.
func (e WalletEntry) IsSpendable() bool {
	return !e.Spent && e.LockedBy == ""
}

// Spend marks the entry as consumed by the given transaction.
func (e *WalletEntry) Spend(txid string, at int64) error {
	if e.Spent {
		if e.SpentBy == txid {
			return nil
		}
		return ErrEntryAlreadySpent
	}
	e.Spent = true
	e.SpentAt = at
	e.SpentBy = txid
	e.LockedBy = ""
	return nil
}

// Lock reserves the entry for the given pending transaction.
func (e *WalletEntry) Lock(txid string) error {
	if e.Spent {
		return ErrEntryAlreadySpent
	}
	if e.LockedBy != "" && e.LockedBy != txid {
		return ErrEntryLocked
	}
	e.LockedBy = txid
	return nil
}

// Unlock ...
func (e *WalletEntry) Unlock() {
	e.LockedBy = ""
}

// PendingSpend is a submitted transaction that did not reach quorum yet. Its
// inputs stay locked until the identical transaction is finalized.
type PendingSpend struct {
	ID                string
	TxID              string
	Transaction       []byte
	InputTokens       [][]byte
	InputFingerprints []Fingerprint
	BearerSecrets     map[int][]byte
	// Collected holds the attestations already received, by node id.
	Collected map[string][]Attestation
	Attempts  int
	CreatedAt int64
	UpdatedAt int64
}

// NewPendingSpend ...
func NewPendingSpend(
	id string, req SpendRequest, bearerSecrets map[int][]byte, now int64,
) *PendingSpend {
	tokens := make([][]byte, 0, len(req.InputTokens))
	for i := range req.InputTokens {
		tokens = append(tokens, req.InputTokens[i].Serialize())
	}
	return &PendingSpend{
		ID:                id,
		TxID:              req.TxID(),
		Transaction:       req.Transaction.Serialize(),
		InputTokens:       tokens,
		InputFingerprints: req.Transaction.InputFingerprints(),
		BearerSecrets:     bearerSecrets,
		Collected:         make(map[string][]Attestation),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Request rebuilds the identical spend request that was first submitted.
func (p PendingSpend) Request() (*SpendRequest, error) {
	tx, err := DeserializeTransaction(p.Transaction)
	if err != nil {
		return nil, err
	}
	tokens := make([]Token, 0, len(p.InputTokens))
	for _, buf := range p.InputTokens {
		t, err := DeserializeToken(buf)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *t)
	}
	return &SpendRequest{Transaction: tx, InputTokens: tokens}, nil
}

// WalletRepository is the abstraction for the persisted wallet file.
type WalletRepository interface {
	AddKey(ctx context.Context, key KeyPair) error
	GetKey(ctx context.Context, publicKey string) (*KeyPair, error)
	GetAllKeys(ctx context.Context) ([]KeyPair, error)

	// AddEntry stores the entry assigning it the next sequence number. It
	// returns false if an entry with the same fingerprint already exists.
	AddEntry(ctx context.Context, entry WalletEntry) (bool, error)
	GetEntry(ctx context.Context, fp Fingerprint) (*WalletEntry, error)
	// GetAllEntries returns all entries in receipt order.
	GetAllEntries(ctx context.Context) ([]WalletEntry, error)
	// UpdateEntries applies updateFn to all given entries atomically.
	UpdateEntries(
		ctx context.Context, fps []Fingerprint,
		updateFn func(entry *WalletEntry) (*WalletEntry, error),
	) error

	AddPendingSpend(ctx context.Context, pending PendingSpend) error
	GetPendingSpend(ctx context.Context, txid string) (*PendingSpend, error)
	GetAllPendingSpends(ctx context.Context) ([]PendingSpend, error)
	UpdatePendingSpend(
		ctx context.Context, txid string,
		updateFn func(pending *PendingSpend) (*PendingSpend, error),
	) error
	DeletePendingSpend(ctx context.Context, txid string) error

	Close()
}
