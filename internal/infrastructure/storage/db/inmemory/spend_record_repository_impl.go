package inmemory

import (
	"context"
	"sync"

	"github.com/google/btree"
	"github.com/tdex-network/spentbook/internal/core/domain"
)

type spendRecordItem domain.SpendRecord

func (i spendRecordItem) Less(than btree.Item) bool {
	return i.Fingerprint < than.(spendRecordItem).Fingerprint
}

// SpendRecordRepositoryImpl keeps the spend records in a btree ordered by
// fingerprint.
type SpendRecordRepositoryImpl struct {
	records *btree.BTree
	lock    *sync.RWMutex
}

// NewSpendRecordRepositoryImpl returns a new empty SpendRecordRepositoryImpl
func NewSpendRecordRepositoryImpl() domain.SpendRecordRepository {
	return &SpendRecordRepositoryImpl{
		records: btree.New(32),
		lock:    &sync.RWMutex{},
	}
}

func (r *SpendRecordRepositoryImpl) GetSpendRecords(
	_ context.Context, fps []domain.Fingerprint,
) (map[domain.Fingerprint]domain.SpendRecord, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	found := make(map[domain.Fingerprint]domain.SpendRecord)
	for _, fp := range fps {
		item := r.records.Get(spendRecordItem{Fingerprint: fp})
		if item == nil {
			continue
		}
		found[fp] = domain.SpendRecord(item.(spendRecordItem))
	}
	return found, nil
}

func (r *SpendRecordRepositoryImpl) AddSpendRecords(
	_ context.Context, records []domain.SpendRecord,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	for _, rec := range records {
		if r.records.Has(spendRecordItem{Fingerprint: rec.Fingerprint}) {
			return domain.ErrSpendRecordExists
		}
	}
	for _, rec := range records {
		r.records.ReplaceOrInsert(spendRecordItem(rec))
	}
	return nil
}

func (r *SpendRecordRepositoryImpl) GetAllSpendRecords(
	_ context.Context,
) ([]domain.SpendRecord, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	records := make([]domain.SpendRecord, 0, r.records.Len())
	r.records.Ascend(func(item btree.Item) bool {
		records = append(records, domain.SpendRecord(item.(spendRecordItem)))
		return true
	})
	return records, nil
}

func (r *SpendRecordRepositoryImpl) Close() {}
