package dbbadger

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"
)

const ledgerDir = "ledger"

const gcInterval = 30 * time.Minute

// DbManager holds the badgerhold store of the spend ledger.
type DbManager struct {
	Store *badgerhold.Store

	lock   *sync.Mutex
	done   chan struct{}
	gcDone chan struct{}
	closed bool
}

// NewDbManager opens (or creates if not exists) the badger store on disk. It
// expects a base data dir and an optional logger. An empty data dir makes
// the store in-memory.
func NewDbManager(baseDbDir string, logger badger.Logger) (*DbManager, error) {
	var dir string
	if len(baseDbDir) > 0 {
		dir = filepath.Join(baseDbDir, ledgerDir)
	}

	store, err := createDb(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening ledger db: %w", err)
	}

	db := &DbManager{
		Store:  store,
		lock:   &sync.Mutex{},
		done:   make(chan struct{}),
		gcDone: make(chan struct{}),
	}
	if len(dir) > 0 {
		go db.runValueLogGC(time.NewTicker(gcInterval))
	} else {
		close(db.gcDone)
	}
	return db, nil
}

// Close stops the value log GC and closes the store. It is safe to call it
// more than once.
func (db *DbManager) Close() error {
	db.lock.Lock()
	defer db.lock.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true

	close(db.done)
	<-db.gcDone
	return db.Store.Close()
}

func (db *DbManager) runValueLogGC(ticker *time.Ticker) {
	defer close(db.gcDone)
	defer ticker.Stop()

	for {
		select {
		case <-db.done:
			return
		case <-ticker.C:
			if err := db.Store.Badger().RunValueLogGC(0.5); err != nil &&
				err != badger.ErrNoRewrite {
				log.Error(err)
			}
		}
	}
}

func createDb(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger
	// Attestations are handed out only once the record is on disk.
	opts.SyncWrites = true

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	return badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
}
