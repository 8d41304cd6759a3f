package boltwallet

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/tdex-network/spentbook/internal/core/domain"
	"go.etcd.io/bbolt"
)

var (
	bucketKeys     = []byte("keys")
	bucketEntries  = []byte("entries")
	bucketSequence = []byte("entries_sequence")
	bucketPending  = []byte("pending")
)

// openTimeout bounds the wait for the file lock held by another process.
const openTimeout = time.Second

type walletRepositoryImpl struct {
	db *bbolt.DB
}

// NewWalletRepositoryImpl opens or creates the wallet file at dbPath. The
// parent directory is created if it does not exist.
func NewWalletRepositoryImpl(dbPath string) (domain.WalletRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("create wallet directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		if errors.Is(err, bbolt.ErrTimeout) {
			return nil, fmt.Errorf(
				"%w: wallet file locked by another process", domain.ErrWalletUnavailable,
			)
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrWalletUnavailable, err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{
			bucketKeys, bucketEntries, bucketSequence, bucketPending,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %s", domain.ErrWalletUnavailable, err)
	}

	return &walletRepositoryImpl{db}, nil
}

func (r *walletRepositoryImpl) AddKey(_ context.Context, key domain.KeyPair) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		return putGob(tx.Bucket(bucketKeys), []byte(key.PublicKey), key)
	})
}

func (r *walletRepositoryImpl) GetKey(
	_ context.Context, publicKey string,
) (*domain.KeyPair, error) {
	var key domain.KeyPair
	if err := r.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketKeys).Get([]byte(publicKey))
		if data == nil {
			return domain.ErrKeyNotFound
		}
		return decodeGob(data, &key)
	}); err != nil {
		return nil, err
	}
	return &key, nil
}

func (r *walletRepositoryImpl) GetAllKeys(_ context.Context) ([]domain.KeyPair, error) {
	keys := make([]domain.KeyPair, 0)
	if err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketKeys).ForEach(func(_, v []byte) error {
			var key domain.KeyPair
			if err := decodeGob(v, &key); err != nil {
				return err
			}
			keys = append(keys, key)
			return nil
		})
	}); err != nil {
		return nil, err
	}

	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i].CreatedAt == keys[j].CreatedAt {
			return keys[i].PublicKey < keys[j].PublicKey
		}
		return keys[i].CreatedAt < keys[j].CreatedAt
	})
	return keys, nil
}

func (r *walletRepositoryImpl) AddEntry(
	_ context.Context, entry domain.WalletEntry,
) (bool, error) {
	added := false
	err := r.db.Update(func(tx *bbolt.Tx) error {
		entries := tx.Bucket(bucketEntries)
		key := []byte(entry.Fingerprint)
		if entries.Get(key) != nil {
			return nil
		}

		seq, err := entries.NextSequence()
		if err != nil {
			return err
		}
		entry.Sequence = seq
		if err := putGob(entries, key, entry); err != nil {
			return err
		}
		if err := tx.Bucket(bucketSequence).Put(sequenceKey(seq), key); err != nil {
			return err
		}
		added = true
		return nil
	})
	return added, err
}

func (r *walletRepositoryImpl) GetEntry(
	_ context.Context, fp domain.Fingerprint,
) (*domain.WalletEntry, error) {
	var entry domain.WalletEntry
	if err := r.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketEntries).Get([]byte(fp))
		if data == nil {
			return domain.ErrEntryNotFound
		}
		return decodeGob(data, &entry)
	}); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *walletRepositoryImpl) GetAllEntries(
	_ context.Context,
) ([]domain.WalletEntry, error) {
	all := make([]domain.WalletEntry, 0)
	if err := r.db.View(func(tx *bbolt.Tx) error {
		entries := tx.Bucket(bucketEntries)
		c := tx.Bucket(bucketSequence).Cursor()
		for _, fp := c.First(); fp != nil; _, fp = c.Next() {
			data := entries.Get(fp)
			if data == nil {
				return fmt.Errorf("%w: missing entry %s", domain.ErrWalletUnavailable, fp)
			}
			var entry domain.WalletEntry
			if err := decodeGob(data, &entry); err != nil {
				return err
			}
			all = append(all, entry)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return all, nil
}

func (r *walletRepositoryImpl) UpdateEntries(
	_ context.Context, fps []domain.Fingerprint,
	updateFn func(entry *domain.WalletEntry) (*domain.WalletEntry, error),
) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		entries := tx.Bucket(bucketEntries)
		for _, fp := range fps {
			data := entries.Get([]byte(fp))
			if data == nil {
				return domain.ErrEntryNotFound
			}
			var entry domain.WalletEntry
			if err := decodeGob(data, &entry); err != nil {
				return err
			}
			updated, err := updateFn(&entry)
			if err != nil {
				return err
			}
			if err := putGob(entries, []byte(fp), *updated); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *walletRepositoryImpl) AddPendingSpend(
	_ context.Context, pending domain.PendingSpend,
) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		return putGob(tx.Bucket(bucketPending), []byte(pending.TxID), pending)
	})
}

func (r *walletRepositoryImpl) GetPendingSpend(
	_ context.Context, txid string,
) (*domain.PendingSpend, error) {
	var pending domain.PendingSpend
	if err := r.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketPending).Get([]byte(txid))
		if data == nil {
			return domain.ErrPendingSpendNotFound
		}
		return decodeGob(data, &pending)
	}); err != nil {
		return nil, err
	}
	return &pending, nil
}

func (r *walletRepositoryImpl) GetAllPendingSpends(
	_ context.Context,
) ([]domain.PendingSpend, error) {
	all := make([]domain.PendingSpend, 0)
	if err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPending).ForEach(func(_, v []byte) error {
			var pending domain.PendingSpend
			if err := decodeGob(v, &pending); err != nil {
				return err
			}
			all = append(all, pending)
			return nil
		})
	}); err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt < all[j].CreatedAt
	})
	return all, nil
}

func (r *walletRepositoryImpl) UpdatePendingSpend(
	_ context.Context, txid string,
	updateFn func(pending *domain.PendingSpend) (*domain.PendingSpend, error),
) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketPending)
		data := bucket.Get([]byte(txid))
		if data == nil {
			return domain.ErrPendingSpendNotFound
		}
		var pending domain.PendingSpend
		if err := decodeGob(data, &pending); err != nil {
			return err
		}
		updated, err := updateFn(&pending)
		if err != nil {
			return err
		}
		return putGob(bucket, []byte(txid), *updated)
	})
}

func (r *walletRepositoryImpl) DeletePendingSpend(_ context.Context, txid string) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPending).Delete([]byte(txid))
	})
}

func (r *walletRepositoryImpl) Close() {
	_ = r.db.Close()
}

func sequenceKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

func putGob(bucket *bbolt.Bucket, key []byte, v interface{}) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return bucket.Put(key, buf.Bytes())
}

func decodeGob(data []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrWalletUnavailable, err)
	}
	return nil
}
