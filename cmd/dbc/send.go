package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/tdex-network/spentbook/internal/core/application"
	"github.com/tdex-network/spentbook/internal/core/domain"
	"github.com/urfave/cli/v2"
)

var send = cli.Command{
	Name:   "send",
	Usage:  "spend wallet tokens to owned or bearer outputs",
	Action: sendAction,
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "to",
			Usage: "owned output in the form <pubkey>:<amount>, repeatable",
		},
		&cli.StringSliceFlag{
			Name:  "bearer",
			Usage: "amount of a bearer output, repeatable",
		},
		&cli.StringSliceFlag{
			Name:  "input",
			Usage: "fingerprint of the token to spend, repeatable; selected in receipt order if omitted",
		},
	},
}

func sendAction(ctx *cli.Context) error {
	outputs, err := parseOutputs(ctx.StringSlice("to"), ctx.StringSlice("bearer"))
	if err != nil {
		return err
	}
	if len(outputs) <= 0 {
		return &invalidUsageError{ctx, "send"}
	}
	inputs := make([]domain.Fingerprint, 0)
	for _, str := range ctx.StringSlice("input") {
		fp := domain.Fingerprint(strings.ToLower(str))
		if err := fp.Validate(); err != nil {
			return fmt.Errorf("%w: %s", err, str)
		}
		inputs = append(inputs, fp)
	}

	wallet, cleanup, err := walletFromState()
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := wallet.Send(context.Background(), outputs, inputs)
	if err != nil {
		return withRetryHint(err)
	}

	printSendResult(result)
	return nil
}

func parseOutputs(owned, bearer []string) ([]application.OutputRequest, error) {
	outputs := make([]application.OutputRequest, 0, len(owned)+len(bearer))
	for _, str := range owned {
		parts := strings.Split(str, ":")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid output %q, must be <pubkey>:<amount>", str)
		}
		ownerKey, err := hex.DecodeString(parts[0])
		if err != nil || len(ownerKey) != 33 {
			return nil, fmt.Errorf("invalid owner key %q", parts[0])
		}
		amount, err := parseAmount(parts[1])
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, application.OutputRequest{
			Amount: amount, OwnerKey: ownerKey,
		})
	}
	for _, str := range bearer {
		amount, err := parseAmount(str)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, application.OutputRequest{
			Amount: amount, Bearer: true,
		})
	}
	return outputs, nil
}

// printSendResult prints the outputs that left the wallet as token text, the
// ones kept by the wallet are already deposited.
func printSendResult(result *application.SendResult) {
	kept := make(map[domain.Fingerprint]domain.WalletEntry)
	for _, e := range result.Deposited {
		kept[e.Fingerprint] = e
	}

	fmt.Printf("transaction %s finalized\n", result.TxID)
	for i, token := range result.Tokens {
		fp := token.Fingerprint()
		if e, ok := kept[fp]; ok {
			fmt.Printf("output %d: kept %s (%s)\n", i, formatAmount(e.Amount), fp)
			continue
		}
		kind := "owned by " + hex.EncodeToString(token.Output.OwnerKey)
		if token.IsBearer() {
			kind = "bearer"
		}
		fmt.Printf("output %d: %s\n%s\n", i, kind, token.EncodeText())
	}
}

func withRetryHint(err error) error {
	if errors.Is(err, domain.ErrQuorumUnreachable) {
		return fmt.Errorf(
			"%w\nthe transaction is pending, list it with `pending` and resubmit it with `retry <txid>`",
			err,
		)
	}
	return err
}
