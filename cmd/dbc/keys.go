package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

var newkey = cli.Command{
	Name:   "newkey",
	Usage:  "derive a new key to receive owned tokens",
	Action: newKeyAction,
}

var keys = cli.Command{
	Name:   "keys",
	Usage:  "list the public keys of the wallet",
	Action: keysAction,
}

func newKeyAction(ctx *cli.Context) error {
	wallet, cleanup, err := walletFromState()
	if err != nil {
		return err
	}
	defer cleanup()

	key, err := wallet.NewKey(context.Background())
	if err != nil {
		return err
	}

	fmt.Println(key)
	return nil
}

func keysAction(ctx *cli.Context) error {
	wallet, cleanup, err := walletFromState()
	if err != nil {
		return err
	}
	defer cleanup()

	list, err := wallet.Keys(context.Background())
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(list))
	for _, k := range list {
		rows = append(rows, []string{
			k.PublicKey, time.Unix(k.CreatedAt, 0).Format(time.RFC3339),
		})
	}
	return printTable([]string{"Public key", "Created at"}, rows)
}
