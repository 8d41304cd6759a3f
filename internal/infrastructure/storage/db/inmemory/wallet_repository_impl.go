package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/tdex-network/spentbook/internal/core/domain"
)

// WalletRepositoryImpl is a volatile wallet, used by tests and by wallets
// that don't need to survive a restart.
type WalletRepositoryImpl struct {
	keys     map[string]domain.KeyPair
	entries  map[domain.Fingerprint]domain.WalletEntry
	pending  map[string]domain.PendingSpend
	sequence uint64
	lock     *sync.RWMutex
}

// NewWalletRepositoryImpl returns a new empty WalletRepositoryImpl
func NewWalletRepositoryImpl() domain.WalletRepository {
	return &WalletRepositoryImpl{
		keys:    map[string]domain.KeyPair{},
		entries: map[domain.Fingerprint]domain.WalletEntry{},
		pending: map[string]domain.PendingSpend{},
		lock:    &sync.RWMutex{},
	}
}

func (r *WalletRepositoryImpl) AddKey(_ context.Context, key domain.KeyPair) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.keys[key.PublicKey] = key
	return nil
}

func (r *WalletRepositoryImpl) GetKey(
	_ context.Context, publicKey string,
) (*domain.KeyPair, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	key, ok := r.keys[publicKey]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return &key, nil
}

func (r *WalletRepositoryImpl) GetAllKeys(_ context.Context) ([]domain.KeyPair, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	keys := make([]domain.KeyPair, 0, len(r.keys))
	for _, k := range r.keys {
		keys = append(keys, k)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i].CreatedAt == keys[j].CreatedAt {
			return keys[i].PublicKey < keys[j].PublicKey
		}
		return keys[i].CreatedAt < keys[j].CreatedAt
	})
	return keys, nil
}

func (r *WalletRepositoryImpl) AddEntry(
	_ context.Context, entry domain.WalletEntry,
) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.entries[entry.Fingerprint]; ok {
		return false, nil
	}
	r.sequence++
	entry.Sequence = r.sequence
	r.entries[entry.Fingerprint] = entry
	return true, nil
}

func (r *WalletRepositoryImpl) GetEntry(
	_ context.Context, fp domain.Fingerprint,
) (*domain.WalletEntry, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	entry, ok := r.entries[fp]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	return &entry, nil
}

func (r *WalletRepositoryImpl) GetAllEntries(
	_ context.Context,
) ([]domain.WalletEntry, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	entries := make([]domain.WalletEntry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Sequence < entries[j].Sequence
	})
	return entries, nil
}

func (r *WalletRepositoryImpl) UpdateEntries(
	_ context.Context, fps []domain.Fingerprint,
	updateFn func(entry *domain.WalletEntry) (*domain.WalletEntry, error),
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	updated := make([]domain.WalletEntry, 0, len(fps))
	for _, fp := range fps {
		entry, ok := r.entries[fp]
		if !ok {
			return domain.ErrEntryNotFound
		}
		e, err := updateFn(&entry)
		if err != nil {
			return err
		}
		updated = append(updated, *e)
	}
	for _, e := range updated {
		r.entries[e.Fingerprint] = e
	}
	return nil
}

func (r *WalletRepositoryImpl) AddPendingSpend(
	_ context.Context, pending domain.PendingSpend,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.pending[pending.TxID] = pending
	return nil
}

func (r *WalletRepositoryImpl) GetPendingSpend(
	_ context.Context, txid string,
) (*domain.PendingSpend, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	p, ok := r.pending[txid]
	if !ok {
		return nil, domain.ErrPendingSpendNotFound
	}
	return &p, nil
}

func (r *WalletRepositoryImpl) GetAllPendingSpends(
	_ context.Context,
) ([]domain.PendingSpend, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	pending := make([]domain.PendingSpend, 0, len(r.pending))
	for _, p := range r.pending {
		pending = append(pending, p)
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt < pending[j].CreatedAt
	})
	return pending, nil
}

func (r *WalletRepositoryImpl) UpdatePendingSpend(
	_ context.Context, txid string,
	updateFn func(pending *domain.PendingSpend) (*domain.PendingSpend, error),
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	p, ok := r.pending[txid]
	if !ok {
		return domain.ErrPendingSpendNotFound
	}
	updated, err := updateFn(&p)
	if err != nil {
		return err
	}
	r.pending[txid] = *updated
	return nil
}

func (r *WalletRepositoryImpl) DeletePendingSpend(_ context.Context, txid string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	delete(r.pending, txid)
	return nil
}

func (r *WalletRepositoryImpl) Close() {}
