package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/tdex-network/spentbook/internal/core/application"
	"github.com/tdex-network/spentbook/internal/core/domain"
	"github.com/urfave/cli/v2"
)

const defaultGenesisAmount = 2100000000000000

var (
	peersFlag = cli.StringSliceFlag{
		Name:  "peer",
		Usage: "spentbook node in the form <pubkey>@<host:port>, repeatable",
	}

	quorumFlag = cli.IntFlag{
		Name:  "quorum",
		Usage: "number of attestations required for a spend",
		Value: 3,
	}

	timeoutFlag = cli.DurationFlag{
		Name:  "timeout",
		Usage: "per node request timeout",
		Value: application.DefaultPeerTimeout,
	}

	genesisAmountFlag = cli.Uint64Flag{
		Name:  "genesis-amount",
		Usage: "amount of the genesis token, in base units",
		Value: defaultGenesisAmount,
	}

	walletFlag = cli.StringFlag{
		Name:  "wallet",
		Usage: "path of the wallet file",
		Value: filepath.Join(dbcDataDir, "wallet.db"),
	}
)

var config = cli.Command{
	Name:   "config",
	Usage:  "Print local configuration of the dbc CLI",
	Action: configAction,
	Subcommands: []*cli.Command{
		{
			Name:   "set",
			Usage:  "set a <key> <value> in the local state",
			Action: configSetAction,
		},
		{
			Name:   "init",
			Usage:  "initialize the local state with flags",
			Action: configInitAction,
			Flags: []cli.Flag{
				&peersFlag,
				&quorumFlag,
				&timeoutFlag,
				&genesisAmountFlag,
				&walletFlag,
			},
		},
	},
}

func configAction(ctx *cli.Context) error {
	state, err := getState()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(state))
	for key := range state {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Println(key + ": " + state[key])
	}

	return nil
}

func configInitAction(c *cli.Context) error {
	peers := c.StringSlice("peer")
	if len(peers) > 0 {
		if _, err := domain.NewMembership(peers, c.Int("quorum")); err != nil {
			return err
		}
	}

	return setState(map[string]string{
		"peers":          strings.Join(peers, ","),
		"quorum":         strconv.Itoa(c.Int("quorum")),
		"timeout":        c.Duration("timeout").String(),
		"genesis_amount": strconv.FormatUint(c.Uint64("genesis-amount"), 10),
		"wallet":         c.String("wallet"),
	})
}

func configSetAction(c *cli.Context) error {
	if c.NArg() < 2 {
		return errors.New("key and value are missing")
	}

	key := c.Args().Get(0)
	value := c.Args().Get(1)

	if err := setState(map[string]string{key: value}); err != nil {
		return err
	}

	fmt.Printf("%s %s has been set\n", key, value)

	return nil
}
