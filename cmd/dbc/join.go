package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tdex-network/spentbook/internal/core/domain"
	spentbookclient "github.com/tdex-network/spentbook/internal/infrastructure/spentbook-client/grpc"
	"github.com/urfave/cli/v2"
)

var join = cli.Command{
	Name:      "join",
	Usage:     "fetch the membership from a spentbook node and store it in the local state",
	ArgsUsage: "<host:port>",
	Action:    joinAction,
}

func joinAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return &invalidUsageError{ctx, "join"}
	}
	address := ctx.Args().First()

	clients := spentbookclient.NewFactory()
	defer clients.Close()

	client, err := clients.Client(domain.Peer{ID: address, Address: address})
	if err != nil {
		return err
	}
	info, err := client.Info(context.Background())
	if err != nil {
		return err
	}
	if err := info.Membership.Validate(); err != nil {
		return fmt.Errorf("node %s returned an invalid membership: %w", address, err)
	}

	peers := make([]string, 0, len(info.Membership.Peers))
	for _, p := range info.Membership.Peers {
		peers = append(peers, p.String())
	}
	if err := setState(map[string]string{
		"peers":  strings.Join(peers, ","),
		"quorum": strconv.Itoa(info.Membership.QuorumSize),
	}); err != nil {
		return err
	}

	fmt.Printf(
		"joined %d nodes with quorum %d through %s (%s)\n",
		len(peers), info.Membership.QuorumSize, address, info.Status,
	)
	return nil
}
