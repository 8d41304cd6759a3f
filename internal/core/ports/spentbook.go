package ports

import (
	"context"

	"github.com/tdex-network/spentbook/internal/core/domain"
)

// SpentbookClient talks to a single spentbook node.
type SpentbookClient interface {
	// Spend submits the request and returns either the node's attestations or
	// its rejection. Errors are reserved to transport and availability
	// failures.
	Spend(
		ctx context.Context, req domain.SpendRequest,
	) (*domain.SpendReply, error)
	Info(ctx context.Context) (*domain.NodeInfo, error)
}

// SpentbookClientFactory returns the client for the given peer.
type SpentbookClientFactory interface {
	Client(peer domain.Peer) (SpentbookClient, error)
	Close()
}
