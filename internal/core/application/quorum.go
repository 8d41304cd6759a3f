package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/spentbook/internal/core/domain"
	"github.com/tdex-network/spentbook/internal/core/ports"
	"golang.org/x/sync/errgroup"
)

const DefaultPeerTimeout = 10 * time.Second

// PartialAttestations are the attestations collected so far for a
// transaction, by node id.
type PartialAttestations map[string][]domain.Attestation

// QuorumResult is the outcome of a submission. Proof is set only when every
// input reached quorum.
type QuorumResult struct {
	TxID      string
	Proof     domain.QuorumProof
	Collected PartialAttestations
}

// QuorumCoordinator submits spend requests to the spentbook nodes and
// collects their attestations.
type QuorumCoordinator interface {
	// Submit sends req to every node that did not already attest it according
	// to prior. A *domain.QuorumUnreachableError is returned along with the
	// result, whose collected attestations can be passed as prior to retry
	// the identical request.
	Submit(
		ctx context.Context, req domain.SpendRequest, prior PartialAttestations,
	) (*QuorumResult, error)
}

type quorumCoordinator struct {
	membership domain.Membership
	clients    ports.SpentbookClientFactory
	verifier   TokenVerifier
	timeout    time.Duration
}

// NewQuorumCoordinator ...
func NewQuorumCoordinator(
	clients ports.SpentbookClientFactory, verifier TokenVerifier,
	timeout time.Duration,
) QuorumCoordinator {
	if timeout <= 0 {
		timeout = DefaultPeerTimeout
	}
	return &quorumCoordinator{
		membership: verifier.Membership(),
		clients:    clients,
		verifier:   verifier,
		timeout:    timeout,
	}
}

type peerOutcome struct {
	peer         domain.Peer
	attestations []domain.Attestation
	rejection    *domain.Rejection
	err          error
}

func (q *quorumCoordinator) Submit(
	ctx context.Context, req domain.SpendRequest, prior PartialAttestations,
) (*QuorumResult, error) {
	if req.Transaction == nil {
		return nil, fmt.Errorf("%w: missing transaction", domain.ErrInvalidProof)
	}
	txid := req.TxID()
	fps := req.Transaction.InputFingerprints()
	result := &QuorumResult{
		TxID:      txid,
		Collected: make(PartialAttestations),
	}

	for nodeID, atts := range prior {
		peer, ok := q.membership.Peer(nodeID)
		if !ok {
			continue
		}
		if err := q.checkAttestations(peer, txid, fps, atts); err != nil {
			log.WithError(err).WithField("peer", nodeID).
				Warn("discarding previously collected attestations")
			continue
		}
		result.Collected[nodeID] = atts
	}

	peers := make([]domain.Peer, 0, len(q.membership.Peers))
	for _, p := range q.membership.SortedPeers() {
		if _, ok := result.Collected[p.ID]; !ok {
			peers = append(peers, p)
		}
	}

	// The first reachable peer in id order is contacted alone. Wallets racing
	// on the same input all hit it first, so only one of them can go on.
	outcomes := make([]peerOutcome, 0, len(peers))
	for len(peers) > 0 {
		outcome := q.contact(ctx, peers[0], req, txid, fps)
		outcomes = append(outcomes, outcome)
		peers = peers[1:]
		if outcome.err == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	if !isRejected(outcomes) && len(peers) > 0 && ctx.Err() == nil {
		parallel := make([]peerOutcome, len(peers))
		g, gctx := errgroup.WithContext(ctx)
		for i := range peers {
			i := i
			g.Go(func() error {
				parallel[i] = q.contact(gctx, peers[i], req, txid, fps)
				if parallel[i].rejection != nil {
					return parallel[i].rejection.Err()
				}
				return nil
			})
		}
		_ = g.Wait()
		outcomes = append(outcomes, parallel...)
	}

	for _, o := range outcomes {
		if o.rejection != nil && o.rejection.Reason == domain.RejectionDoubleSpend {
			return result, o.rejection.Err()
		}
	}
	for _, o := range outcomes {
		if o.rejection != nil {
			return result, fmt.Errorf("peer %s: %w", o.peer.ID, o.rejection.Err())
		}
	}
	for _, o := range outcomes {
		if o.err == nil && len(o.attestations) > 0 {
			result.Collected[o.peer.ID] = o.attestations
		}
	}

	proof := make(domain.QuorumProof)
	for _, atts := range result.Collected {
		for _, att := range atts {
			proof.Add(att)
		}
	}
	reached := make(map[domain.Fingerprint]int, len(fps))
	complete := true
	for _, fp := range fps {
		reached[fp] = proof.Count(fp)
		if reached[fp] < q.membership.QuorumSize {
			complete = false
		}
	}
	if !complete {
		if err := ctx.Err(); err != nil {
			log.WithError(err).WithField("txid", txid).Debug("submission interrupted")
		}
		return result, &domain.QuorumUnreachableError{
			QuorumSize: q.membership.QuorumSize,
			Reached:    reached,
		}
	}

	result.Proof = proof
	return result, nil
}

func (q *quorumCoordinator) contact(
	ctx context.Context, peer domain.Peer, req domain.SpendRequest,
	txid string, fps []domain.Fingerprint,
) peerOutcome {
	outcome := peerOutcome{peer: peer}
	logger := log.WithFields(log.Fields{"peer": peer.ID, "txid": txid})

	client, err := q.clients.Client(peer)
	if err != nil {
		outcome.err = err
		logger.WithError(err).Warn("peer unreachable")
		return outcome
	}

	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	reply, err := client.Spend(ctx, req)
	if err != nil {
		outcome.err = err
		logger.WithError(err).Warn("peer did not answer")
		return outcome
	}
	if reply.Rejection != nil {
		outcome.rejection = reply.Rejection
		logger.WithField("reason", reply.Rejection.Reason).Info("spend rejected")
		return outcome
	}
	if err := q.checkAttestations(peer, txid, fps, reply.Attestations); err != nil {
		outcome.err = err
		logger.WithError(err).Warn("inconsistent attestations")
		return outcome
	}

	outcome.attestations = reply.Attestations
	logger.Debug("spend attested")
	return outcome
}

// checkAttestations makes sure the node attested exactly the inputs of the
// transaction, in order.
func (q *quorumCoordinator) checkAttestations(
	peer domain.Peer, txid string, fps []domain.Fingerprint,
	atts []domain.Attestation,
) error {
	if len(atts) != len(fps) {
		return fmt.Errorf("expected %d attestations, got %d", len(fps), len(atts))
	}
	for i, att := range atts {
		expected := domain.Attestation{Fingerprint: fps[i], TxID: txid, NodeID: peer.ID}
		if !att.SameContent(expected) {
			return errors.New("attestation does not match request")
		}
		if err := q.verifier.VerifyAttestation(att); err != nil {
			return err
		}
	}
	return nil
}

func isRejected(outcomes []peerOutcome) bool {
	for _, o := range outcomes {
		if o.rejection != nil {
			return true
		}
	}
	return false
}
