package application_test

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/tdex-network/spentbook/internal/core/domain"
	"github.com/tdex-network/spentbook/internal/core/ports"
)

// **** Spentbook client ****

type mockSpentbookClient struct {
	mock.Mock
}

func (m *mockSpentbookClient) Spend(
	ctx context.Context, req domain.SpendRequest,
) (*domain.SpendReply, error) {
	args := m.Called(ctx, req)

	var res *domain.SpendReply
	if a := args.Get(0); a != nil {
		res = a.(*domain.SpendReply)
	}
	return res, args.Error(1)
}

func (m *mockSpentbookClient) Info(ctx context.Context) (*domain.NodeInfo, error) {
	args := m.Called(ctx)

	var res *domain.NodeInfo
	if a := args.Get(0); a != nil {
		res = a.(*domain.NodeInfo)
	}
	return res, args.Error(1)
}

type mockClientFactory struct {
	clients map[string]*mockSpentbookClient
}

func (f *mockClientFactory) Client(peer domain.Peer) (ports.SpentbookClient, error) {
	return f.clients[peer.ID], nil
}

func (f *mockClientFactory) Close() {}
