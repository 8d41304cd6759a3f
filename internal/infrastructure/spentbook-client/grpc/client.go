package spentbookclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	spentbookv1 "github.com/tdex-network/spentbook/api-spec/spentbook/v1"
	"github.com/tdex-network/spentbook/internal/core/domain"
	"github.com/tdex-network/spentbook/internal/core/ports"
	"github.com/tdex-network/spentbook/pkg/circuitbreaker"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// RequestIDKey is the metadata key carrying the id of every call.
const RequestIDKey = "x-request-id"

type factory struct {
	lock    *sync.Mutex
	conns   map[string]*grpc.ClientConn
	clients map[string]*client
	opts    []grpc.DialOption
}

// NewFactory returns a SpentbookClientFactory that keeps one connection and
// one circuit breaker per peer. Extra dial options are appended to the
// default insecure transport credentials.
func NewFactory(opts ...grpc.DialOption) ports.SpentbookClientFactory {
	return &factory{
		lock:    &sync.Mutex{},
		conns:   make(map[string]*grpc.ClientConn),
		clients: make(map[string]*client),
		opts: append(
			[]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
			opts...,
		),
	}
}

func (f *factory) Client(peer domain.Peer) (ports.SpentbookClient, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if c, ok := f.clients[peer.ID]; ok {
		return c, nil
	}

	conn, err := grpc.Dial(peer.Address, f.opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", peer, err)
	}
	c := &client{
		peer:   peer,
		client: spentbookv1.NewSpentbookClient(conn),
		cb:     circuitbreaker.NewCircuitBreaker(peer.ID),
	}
	f.conns[peer.ID] = conn
	f.clients[peer.ID] = c
	return c, nil
}

func (f *factory) Close() {
	f.lock.Lock()
	defer f.lock.Unlock()

	for id, conn := range f.conns {
		conn.Close()
		delete(f.conns, id)
		delete(f.clients, id)
	}
}

type client struct {
	peer   domain.Peer
	client spentbookv1.SpentbookClient
	cb     *gobreaker.CircuitBreaker
}

func (c *client) Spend(
	ctx context.Context, req domain.SpendRequest,
) (*domain.SpendReply, error) {
	in := &spentbookv1.SpendRequest{
		Transaction: req.Transaction.Serialize(),
		InputTokens: make([][]byte, 0, len(req.InputTokens)),
	}
	for i := range req.InputTokens {
		in.InputTokens = append(in.InputTokens, req.InputTokens[i].Serialize())
	}

	res, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.Spend(withRequestID(ctx), in)
	})
	if err != nil {
		return nil, fmt.Errorf("peer %s: %w", c.peer.ID, err)
	}
	return parseSpendReply(res.(*spentbookv1.SpendReply))
}

func (c *client) Info(ctx context.Context) (*domain.NodeInfo, error) {
	res, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.Info(withRequestID(ctx), &spentbookv1.InfoRequest{})
	})
	if err != nil {
		return nil, fmt.Errorf("peer %s: %w", c.peer.ID, err)
	}

	reply := res.(*spentbookv1.InfoReply)
	membership := domain.Membership{QuorumSize: reply.QuorumSize}
	for _, str := range reply.Peers {
		p, err := domain.ParsePeer(str)
		if err != nil {
			return nil, err
		}
		membership.Peers = append(membership.Peers, p)
	}
	return &domain.NodeInfo{
		NodeID:     reply.NodeID,
		Status:     reply.Status,
		Membership: membership,
	}, nil
}

func withRequestID(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, RequestIDKey, uuid.New().String())
}

func parseSpendReply(reply *spentbookv1.SpendReply) (*domain.SpendReply, error) {
	if r := reply.Rejection; r != nil {
		reason, err := domain.ParseRejectionReason(r.Reason)
		if err != nil {
			return nil, err
		}
		return &domain.SpendReply{Rejection: &domain.Rejection{
			Reason:          reason,
			Fingerprint:     domain.Fingerprint(r.Fingerprint),
			ConflictingTxID: r.ConflictingTxID,
			Message:         r.Message,
		}}, nil
	}

	atts := make([]domain.Attestation, 0, len(reply.Attestations))
	for _, a := range reply.Attestations {
		atts = append(atts, domain.Attestation{
			Fingerprint: domain.Fingerprint(a.Fingerprint),
			TxID:        a.TxID,
			NodeID:      a.NodeID,
			Timestamp:   a.Timestamp,
			Signature:   a.Signature,
		})
	}
	return &domain.SpendReply{Attestations: atts}, nil
}
