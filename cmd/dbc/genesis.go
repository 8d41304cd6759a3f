package main

import (
	"context"

	"github.com/urfave/cli/v2"
)

var genesis = cli.Command{
	Name:   "genesis",
	Usage:  "spend the genesis token to a key of this wallet",
	Action: genesisAction,
}

func genesisAction(ctx *cli.Context) error {
	wallet, cleanup, err := walletFromState()
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := wallet.IssueGenesis(context.Background())
	if err != nil {
		return withRetryHint(err)
	}

	printSendResult(result)
	return nil
}
