package application

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/spentbook/internal/core/domain"
	"github.com/tdex-network/spentbook/internal/core/ports"
)

// SpendLedger is the record of the inputs spent as attested by this node.
type SpendLedger interface {
	// Load reads and verifies every persisted record. Until it succeeds the
	// ledger refuses to record.
	Load(ctx context.Context) (int, error)
	// Record records fp as spent by txid.
	Record(
		ctx context.Context, fp domain.Fingerprint, txid string,
	) (*domain.Attestation, error)
	// RecordAll records all fingerprints as spent by txid, or none of them if
	// any was already spent by another transaction. Attestations are returned
	// in input order.
	RecordAll(
		ctx context.Context, fps []domain.Fingerprint, txid string,
	) ([]domain.Attestation, error)
	NodeID() string
}

type spendLedger struct {
	repository domain.SpendRecordRepository
	signer     ports.Signer
	nodeKey    []byte
	nodeID     string
	locks      *keyedMutex

	lock   *sync.RWMutex
	loaded bool
	failed error
}

// NewSpendLedger returns a ledger that signs attestations with the given node
// private key.
func NewSpendLedger(
	repository domain.SpendRecordRepository, signer ports.Signer, nodeKey []byte,
) (SpendLedger, error) {
	pubkey, err := signer.PublicKey(nodeKey)
	if err != nil {
		return nil, fmt.Errorf("invalid node key: %w", err)
	}
	return &spendLedger{
		repository: repository,
		signer:     signer,
		nodeKey:    nodeKey,
		nodeID:     hex.EncodeToString(pubkey),
		locks:      newKeyedMutex(),
		lock:       &sync.RWMutex{},
	}, nil
}

func (l *spendLedger) NodeID() string {
	return l.nodeID
}

func (l *spendLedger) Load(ctx context.Context) (int, error) {
	records, err := l.repository.GetAllSpendRecords(ctx)
	if err != nil {
		return 0, l.fail(err)
	}

	pubkey, _ := hex.DecodeString(l.nodeID)
	for _, r := range records {
		if err := r.Fingerprint.Validate(); err != nil {
			return 0, l.fail(fmt.Errorf("record %s: %w", r.Fingerprint, err))
		}
		if r.NodeID != l.nodeID {
			return 0, l.fail(fmt.Errorf(
				"record %s was attested by another node %s", r.Fingerprint, r.NodeID,
			))
		}
		if err := l.signer.VerifySignature(
			pubkey, r.SigningMessage(), r.Signature,
		); err != nil {
			return 0, l.fail(fmt.Errorf("record %s: %w", r.Fingerprint, err))
		}
	}

	l.lock.Lock()
	l.loaded = true
	l.lock.Unlock()
	return len(records), nil
}

func (l *spendLedger) Record(
	ctx context.Context, fp domain.Fingerprint, txid string,
) (*domain.Attestation, error) {
	atts, err := l.RecordAll(ctx, []domain.Fingerprint{fp}, txid)
	if err != nil {
		return nil, err
	}
	return &atts[0], nil
}

func (l *spendLedger) RecordAll(
	ctx context.Context, fps []domain.Fingerprint, txid string,
) ([]domain.Attestation, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	if len(fps) <= 0 {
		return nil, domain.ErrNoInputsSelected
	}
	if len(txid) <= 0 {
		return nil, fmt.Errorf("missing transaction id")
	}
	for _, fp := range fps {
		if err := fp.Validate(); err != nil {
			return nil, err
		}
	}

	unlock := l.locks.Lock(fps)
	defer unlock()

	existing, err := l.repository.GetSpendRecords(ctx, fps)
	if err != nil {
		return nil, l.fail(err)
	}
	for _, fp := range fps {
		if r, ok := existing[fp]; ok && r.TxID != txid {
			return nil, &domain.DoubleSpendError{
				Fingerprint: fp, ConflictingTxID: r.TxID,
			}
		}
	}

	records := make(map[domain.Fingerprint]domain.Attestation, len(fps))
	newRecords := make([]domain.SpendRecord, 0, len(fps))
	for _, fp := range fps {
		if _, ok := records[fp]; ok {
			continue
		}
		if r, ok := existing[fp]; ok {
			records[fp] = r
			continue
		}
		att, err := l.attest(fp, txid)
		if err != nil {
			return nil, err
		}
		records[fp] = *att
		newRecords = append(newRecords, *att)
	}

	if len(newRecords) > 0 {
		if err := l.repository.AddSpendRecords(ctx, newRecords); err != nil {
			return nil, l.fail(err)
		}
		log.WithFields(log.Fields{
			"txid":   txid,
			"inputs": len(newRecords),
		}).Debug("spend recorded")
	}

	atts := make([]domain.Attestation, 0, len(fps))
	for _, fp := range fps {
		atts = append(atts, records[fp])
	}
	return atts, nil
}

func (l *spendLedger) attest(
	fp domain.Fingerprint, txid string,
) (*domain.Attestation, error) {
	att := &domain.Attestation{
		Fingerprint: fp,
		TxID:        txid,
		NodeID:      l.nodeID,
		Timestamp:   time.Now().UnixNano(),
	}
	sig, err := l.signer.Sign(l.nodeKey, att.SigningMessage())
	if err != nil {
		return nil, fmt.Errorf("failed to sign attestation: %w", err)
	}
	att.Signature = sig
	return att, nil
}

func (l *spendLedger) ready() error {
	l.lock.RLock()
	defer l.lock.RUnlock()

	if l.failed != nil {
		return l.failed
	}
	if !l.loaded {
		return domain.ErrNodeNotReady
	}
	return nil
}

// fail makes the ledger refuse any further write.
func (l *spendLedger) fail(err error) error {
	if !errors.Is(err, domain.ErrLedgerUnavailable) {
		err = fmt.Errorf("%w: %s", domain.ErrLedgerUnavailable, err)
	}

	l.lock.Lock()
	defer l.lock.Unlock()
	if l.failed == nil {
		l.failed = err
	}
	return err
}
