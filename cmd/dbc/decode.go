package main

import (
	"encoding/hex"
	"fmt"

	"github.com/tdex-network/spentbook/internal/core/domain"
	"github.com/urfave/cli/v2"
)

var decode = cli.Command{
	Name:      "decode",
	Usage:     "print the content of a token without depositing it",
	ArgsUsage: "<token>",
	Action:    decodeAction,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "file",
			Usage: "read the token from the given file instead",
		},
	},
}

func decodeAction(ctx *cli.Context) error {
	text, err := readTokenText(ctx, "decode")
	if err != nil {
		return err
	}
	token, err := domain.DecodeTokenText(text)
	if err != nil {
		return err
	}

	fmt.Printf("version: %d\n", token.Version)
	fmt.Printf("fingerprint: %s\n", token.Fingerprint())
	fmt.Printf("owner: %s\n", hex.EncodeToString(token.Output.OwnerKey))
	fmt.Printf("bearer: %t\n", token.IsBearer())
	fmt.Printf("genesis: %t\n", token.Genesis)
	if token.Transaction == nil {
		return nil
	}

	fmt.Printf("transaction: %s\n", token.TxID())
	rows := make([][]string, 0)
	for _, in := range token.Transaction.Inputs {
		for _, att := range token.QuorumProof[in.Fingerprint] {
			rows = append(rows, []string{
				in.Fingerprint.String(), shorten(att.NodeID), att.TxID,
			})
		}
	}
	return printTable([]string{"Input", "Node", "Attested tx"}, rows)
}
