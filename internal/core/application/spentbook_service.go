package application

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/spentbook/internal/core/domain"
)

type NodeStatus int

const (
	NodeStarting NodeStatus = iota
	NodeListening
	NodeFailed
)

func (s NodeStatus) String() string {
	switch s {
	case NodeListening:
		return "listening"
	case NodeFailed:
		return "failed"
	default:
		return "starting"
	}
}

// SpendObserver is notified of the outcome of every spend request.
type SpendObserver interface {
	OnAttested(inputs int)
	OnRejected(reason string)
	OnRecordsLoaded(count int)
	OnLedgerFailure()
}

// SpentbookService is a spentbook node. It answers spend requests on its own,
// without ever talking to sibling nodes.
type SpentbookService interface {
	// Start loads the ledger. The node refuses to attest until it succeeds.
	Start(ctx context.Context) error
	Status() NodeStatus
	Info(ctx context.Context) (*domain.NodeInfo, error)
	// HandleSpendRequest returns either the node's attestation of every input
	// or a rejection. Errors are returned only when the node can't serve the
	// request at all.
	HandleSpendRequest(
		ctx context.Context, req domain.SpendRequest,
	) (*domain.SpendReply, error)
	// Failures emits once if the node stops attesting because of a storage
	// failure.
	Failures() <-chan error
}

type spentbookService struct {
	ledger   SpendLedger
	verifier TokenVerifier
	observer SpendObserver

	lock     *sync.RWMutex
	status   NodeStatus
	failures chan error
}

// NewSpentbookService ...
func NewSpentbookService(
	ledger SpendLedger, verifier TokenVerifier, observer SpendObserver,
) SpentbookService {
	if observer == nil {
		observer = noopObserver{}
	}
	return &spentbookService{
		ledger:   ledger,
		verifier: verifier,
		observer: observer,
		lock:     &sync.RWMutex{},
		status:   NodeStarting,
		failures: make(chan error, 1),
	}
}

func (s *spentbookService) Start(ctx context.Context) error {
	count, err := s.ledger.Load(ctx)
	if err != nil {
		s.fail(err)
		return err
	}

	s.lock.Lock()
	s.status = NodeListening
	s.lock.Unlock()

	s.observer.OnRecordsLoaded(count)
	log.WithFields(log.Fields{
		"node":    s.ledger.NodeID(),
		"records": count,
	}).Info("spend ledger loaded")
	return nil
}

func (s *spentbookService) Status() NodeStatus {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.status
}

func (s *spentbookService) Info(_ context.Context) (*domain.NodeInfo, error) {
	return &domain.NodeInfo{
		NodeID:     s.ledger.NodeID(),
		Status:     s.Status().String(),
		Membership: s.verifier.Membership(),
	}, nil
}

func (s *spentbookService) Failures() <-chan error {
	return s.failures
}

func (s *spentbookService) HandleSpendRequest(
	ctx context.Context, req domain.SpendRequest,
) (*domain.SpendReply, error) {
	switch s.Status() {
	case NodeStarting:
		return nil, domain.ErrNodeNotReady
	case NodeFailed:
		return nil, domain.ErrLedgerUnavailable
	}

	if err := s.verifier.VerifySpendRequest(req); err != nil {
		return s.reject(err)
	}

	txid := req.TxID()
	atts, err := s.ledger.RecordAll(ctx, req.Transaction.InputFingerprints(), txid)
	if err != nil {
		if errors.Is(err, domain.ErrLedgerUnavailable) {
			s.fail(err)
			return nil, err
		}
		return s.reject(err)
	}

	s.observer.OnAttested(len(atts))
	return &domain.SpendReply{Attestations: atts}, nil
}

func (s *spentbookService) reject(err error) (*domain.SpendReply, error) {
	rejection, ok := domain.NewRejection(err)
	if !ok {
		return nil, err
	}
	s.observer.OnRejected(rejection.Reason.String())
	log.WithField("reason", rejection.Reason).Debug(err)
	return &domain.SpendReply{Rejection: rejection}, nil
}

func (s *spentbookService) fail(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.status == NodeFailed {
		return
	}
	s.status = NodeFailed
	s.observer.OnLedgerFailure()
	log.WithError(err).Error("spend ledger unavailable, stopped attesting")

	select {
	case s.failures <- err:
	default:
	}
}

type noopObserver struct{}

func (noopObserver) OnAttested(int)      {}
func (noopObserver) OnRejected(string)   {}
func (noopObserver) OnRecordsLoaded(int) {}
func (noopObserver) OnLedgerFailure()    {}
