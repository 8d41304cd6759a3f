package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/urfave/cli/v2"
)

var pending = cli.Command{
	Name:   "pending",
	Usage:  "list the transactions that did not reach quorum yet",
	Action: pendingAction,
}

var retry = cli.Command{
	Name:      "retry",
	Usage:     "resubmit a pending transaction to the nodes that did not attest it",
	ArgsUsage: "<txid>",
	Action:    retryAction,
}

func pendingAction(ctx *cli.Context) error {
	wallet, cleanup, err := walletFromState()
	if err != nil {
		return err
	}
	defer cleanup()

	list, err := wallet.Pending(context.Background())
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(list))
	for _, p := range list {
		nodes := make([]string, 0, len(p.Collected))
		for id := range p.Collected {
			nodes = append(nodes, shorten(id))
		}
		sort.Strings(nodes)
		rows = append(rows, []string{
			p.TxID,
			fmt.Sprintf("%d", len(p.InputFingerprints)),
			fmt.Sprintf("%v", nodes),
			fmt.Sprintf("%d", p.Attempts),
			time.Unix(p.UpdatedAt, 0).Format(time.RFC3339),
		})
	}
	return printTable(
		[]string{"TxID", "Inputs", "Attested by", "Attempts", "Updated at"}, rows,
	)
}

func retryAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return &invalidUsageError{ctx, "retry"}
	}

	wallet, cleanup, err := walletFromState()
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := wallet.Retry(context.Background(), ctx.Args().First())
	if err != nil {
		return withRetryHint(err)
	}

	printSendResult(result)
	return nil
}
