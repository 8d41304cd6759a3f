package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

var balance = cli.Command{
	Name:   "balance",
	Usage:  "print the sum of the unspent tokens",
	Action: balanceAction,
}

var unspent = cli.Command{
	Name:   "unspent",
	Usage:  "list the tokens of the wallet",
	Action: unspentAction,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "spent",
			Usage: "list the spent tokens instead",
		},
	},
}

func balanceAction(ctx *cli.Context) error {
	wallet, cleanup, err := walletFromState()
	if err != nil {
		return err
	}
	defer cleanup()

	amount, err := wallet.Balance(context.Background())
	if err != nil {
		return err
	}

	fmt.Println(formatAmount(amount))
	return nil
}

func unspentAction(ctx *cli.Context) error {
	wallet, cleanup, err := walletFromState()
	if err != nil {
		return err
	}
	defer cleanup()

	list := wallet.Unspent
	if ctx.Bool("spent") {
		list = wallet.Spent
	}
	entries, err := list(context.Background())
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		status := "unspent"
		switch {
		case e.Spent:
			status = "spent by " + shorten(e.SpentBy)
		case e.LockedBy != "":
			status = "locked by " + shorten(e.LockedBy)
		}
		rows = append(rows, []string{
			e.Fingerprint.String(),
			formatAmount(e.Amount),
			time.Unix(e.ReceivedAt, 0).Format(time.RFC3339),
			status,
			e.Note,
		})
	}
	return printTable(
		[]string{"Fingerprint", "Amount", "Received at", "Status", "Note"}, rows,
	)
}
