package dbbadger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v3"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/spentbook/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

// spendRecord is the stored copy of domain.SpendRecord, to keep the on-disk
// format independent of the domain types.
type spendRecord struct {
	Fingerprint string
	TxID        string
	NodeID      string
	Timestamp   int64
	Signature   []byte
}

func newSpendRecord(r domain.SpendRecord) spendRecord {
	return spendRecord{
		Fingerprint: string(r.Fingerprint),
		TxID:        r.TxID,
		NodeID:      r.NodeID,
		Timestamp:   r.Timestamp,
		Signature:   r.Signature,
	}
}

func (r spendRecord) toDomain() domain.SpendRecord {
	return domain.SpendRecord{
		Fingerprint: domain.Fingerprint(r.Fingerprint),
		TxID:        r.TxID,
		NodeID:      r.NodeID,
		Timestamp:   r.Timestamp,
		Signature:   r.Signature,
	}
}

// spendRecordRepositoryImpl guards only its closed state with lock. Writes
// run concurrently in their own badger transaction, serialization per
// fingerprint is up to the caller.
type spendRecordRepositoryImpl struct {
	db     *DbManager
	lock   *sync.RWMutex
	closed bool
}

// NewSpendRecordRepositoryImpl returns a SpendRecordRepository backed by the
// given badger store.
func NewSpendRecordRepositoryImpl(db *DbManager) domain.SpendRecordRepository {
	return &spendRecordRepositoryImpl{db: db, lock: &sync.RWMutex{}}
}

func (r *spendRecordRepositoryImpl) GetSpendRecords(
	_ context.Context, fps []domain.Fingerprint,
) (map[domain.Fingerprint]domain.SpendRecord, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.closed {
		return nil, ErrStoreClosed
	}

	found := make(map[domain.Fingerprint]domain.SpendRecord)
	for _, fp := range fps {
		var rec spendRecord
		if err := r.db.Store.Get(string(fp), &rec); err != nil {
			if err == badgerhold.ErrNotFound {
				continue
			}
			return nil, err
		}
		found[fp] = rec.toDomain()
	}
	return found, nil
}

func (r *spendRecordRepositoryImpl) AddSpendRecords(
	_ context.Context, records []domain.SpendRecord,
) error {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.closed {
		return ErrStoreClosed
	}

	tx := r.db.Store.Badger().NewTransaction(true)
	defer tx.Discard()

	for _, rec := range records {
		key := string(rec.Fingerprint)

		var existing spendRecord
		err := r.db.Store.TxGet(tx, key, &existing)
		if err == nil {
			return fmt.Errorf("%w: %s", domain.ErrSpendRecordExists, key)
		}
		if err != badgerhold.ErrNotFound {
			return err
		}

		if err := r.db.Store.TxInsert(tx, key, newSpendRecord(rec)); err != nil {
			if err == badgerhold.ErrKeyExists {
				return fmt.Errorf("%w: %s", domain.ErrSpendRecordExists, key)
			}
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		// A concurrent transaction wrote one of the keys read above.
		if err == badger.ErrConflict {
			return fmt.Errorf("%w: concurrent write", domain.ErrSpendRecordExists)
		}
		return err
	}
	return nil
}

func (r *spendRecordRepositoryImpl) GetAllSpendRecords(
	_ context.Context,
) ([]domain.SpendRecord, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.closed {
		return nil, ErrStoreClosed
	}

	var stored []spendRecord
	if err := r.db.Store.Find(&stored, nil); err != nil {
		return nil, err
	}

	records := make([]domain.SpendRecord, 0, len(stored))
	for _, rec := range stored {
		records = append(records, rec.toDomain())
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Fingerprint < records[j].Fingerprint
	})
	return records, nil
}

func (r *spendRecordRepositoryImpl) Close() {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	if err := r.db.Close(); err != nil {
		log.WithError(err).Warn("failed to close ledger db")
	}
}
