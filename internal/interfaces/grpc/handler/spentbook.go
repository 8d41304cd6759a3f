package grpchandler

import (
	"context"
	"errors"

	spentbookv1 "github.com/tdex-network/spentbook/api-spec/spentbook/v1"
	"github.com/tdex-network/spentbook/internal/core/application"
	"github.com/tdex-network/spentbook/internal/core/domain"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type spentbookHandler struct {
	spentbookSvc application.SpentbookService
}

// NewSpentbookHandler is a constructor function returning a SpentbookServer.
func NewSpentbookHandler(
	spentbookSvc application.SpentbookService,
) spentbookv1.SpentbookServer {
	return &spentbookHandler{spentbookSvc}
}

func (h *spentbookHandler) Spend(
	ctx context.Context, req *spentbookv1.SpendRequest,
) (*spentbookv1.SpendReply, error) {
	spendReq, err := parseSpendRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	reply, err := h.spentbookSvc.HandleSpendRequest(ctx, *spendReq)
	if err != nil {
		return nil, toStatus(err)
	}
	return newSpendReply(reply), nil
}

func (h *spentbookHandler) Info(
	ctx context.Context, _ *spentbookv1.InfoRequest,
) (*spentbookv1.InfoReply, error) {
	info, err := h.spentbookSvc.Info(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	peers := make([]string, 0, len(info.Membership.Peers))
	for _, p := range info.Membership.SortedPeers() {
		peers = append(peers, p.String())
	}
	return &spentbookv1.InfoReply{
		NodeID:     info.NodeID,
		Status:     info.Status,
		Peers:      peers,
		QuorumSize: info.Membership.QuorumSize,
	}, nil
}

func parseSpendRequest(req *spentbookv1.SpendRequest) (*domain.SpendRequest, error) {
	if req == nil || len(req.Transaction) <= 0 {
		return nil, errors.New("missing transaction")
	}
	tx, err := domain.DeserializeTransaction(req.Transaction)
	if err != nil {
		return nil, err
	}

	tokens := make([]domain.Token, 0, len(req.InputTokens))
	for _, buf := range req.InputTokens {
		token, err := domain.DeserializeToken(buf)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *token)
	}
	return &domain.SpendRequest{Transaction: tx, InputTokens: tokens}, nil
}

func newSpendReply(reply *domain.SpendReply) *spentbookv1.SpendReply {
	if r := reply.Rejection; r != nil {
		return &spentbookv1.SpendReply{Rejection: &spentbookv1.Rejection{
			Reason:          r.Reason.String(),
			Fingerprint:     string(r.Fingerprint),
			ConflictingTxID: r.ConflictingTxID,
			Message:         r.Message,
		}}
	}

	atts := make([]spentbookv1.Attestation, 0, len(reply.Attestations))
	for _, a := range reply.Attestations {
		atts = append(atts, spentbookv1.Attestation{
			Fingerprint: string(a.Fingerprint),
			TxID:        a.TxID,
			NodeID:      a.NodeID,
			Timestamp:   a.Timestamp,
			Signature:   a.Signature,
		})
	}
	return &spentbookv1.SpendReply{Attestations: atts}
}

func toStatus(err error) error {
	if errors.Is(err, domain.ErrNodeNotReady) ||
		errors.Is(err, domain.ErrLedgerUnavailable) {
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
