package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/tdex-network/spentbook/internal/core/domain"
	"github.com/urfave/cli/v2"
)

var deposit = cli.Command{
	Name:      "deposit",
	Usage:     "verify a token and add it to the wallet",
	ArgsUsage: "<token>",
	Action:    depositAction,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "file",
			Usage: "read the token from the given file instead",
		},
		&cli.StringFlag{
			Name:  "note",
			Usage: "note to attach to the wallet entry",
		},
	},
}

func depositAction(ctx *cli.Context) error {
	text, err := readTokenText(ctx, "deposit")
	if err != nil {
		return err
	}
	token, err := domain.DecodeTokenText(text)
	if err != nil {
		return err
	}

	wallet, cleanup, err := walletFromState()
	if err != nil {
		return err
	}
	defer cleanup()

	entry, err := wallet.Deposit(context.Background(), token, ctx.String("note"))
	if err != nil {
		return err
	}

	fmt.Printf("deposited %s (%s)\n", formatAmount(entry.Amount), entry.Fingerprint)
	return nil
}

func readTokenText(ctx *cli.Context, command string) (string, error) {
	if path := ctx.String("file"); path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(buf)), nil
	}
	if ctx.NArg() != 1 {
		return "", &invalidUsageError{ctx, command}
	}
	return strings.TrimSpace(ctx.Args().First()), nil
}
