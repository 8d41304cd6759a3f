package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/tdex-network/spentbook/internal/core/application"
	"github.com/tdex-network/spentbook/internal/core/domain"
	"github.com/tdex-network/spentbook/internal/infrastructure/crypto/pedersen"
	spentbookclient "github.com/tdex-network/spentbook/internal/infrastructure/spentbook-client/grpc"
	boltwallet "github.com/tdex-network/spentbook/internal/infrastructure/storage/wallet/bolt"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"

	dbcDataDir = btcutil.AppDataDir("dbc-wallet", false)
	statePath  = filepath.Join(dbcDataDir, "state.json")
)

func main() {
	app := cli.NewApp()

	app.Version = version
	app.Name = "dbc"
	app.Usage = "Command line wallet for digital bearer certificates"
	app.Commands = append(
		app.Commands,
		&config,
		&join,
		&newkey,
		&keys,
		&genesis,
		&deposit,
		&balance,
		&unspent,
		&send,
		&pending,
		&retry,
		&decode,
	)

	err := app.Run(os.Args)
	if err != nil {
		fatal(err)
	}
}

func getState() (map[string]string, error) {
	data := map[string]string{}

	file, err := os.ReadFile(statePath)
	if err != nil {
		return nil, errors.New("get config state error: try 'config init'")
	}
	if err := json.Unmarshal(file, &data); err != nil {
		return nil, fmt.Errorf("invalid state file %s: %w", statePath, err)
	}

	return data, nil
}

func setState(data map[string]string) error {
	if _, err := os.Stat(dbcDataDir); os.IsNotExist(err) {
		if err := os.MkdirAll(dbcDataDir, os.ModeDir|0755); err != nil {
			return err
		}
	}

	currentData := map[string]string{}
	if _, err := os.Stat(statePath); err == nil {
		if currentData, err = getState(); err != nil {
			return err
		}
	}

	jsonString, err := json.Marshal(merge(currentData, data))
	if err != nil {
		return err
	}
	if err := os.WriteFile(statePath, jsonString, 0600); err != nil {
		return fmt.Errorf("writing to file: %w", err)
	}

	return nil
}

func merge(maps ...map[string]string) map[string]string {
	merge := make(map[string]string, 0)
	for _, m := range maps {
		for k, v := range m {
			merge[k] = v
		}
	}
	return merge
}

// walletFromState wires the wallet service described by the local state.
// The returned cleanup closes the wallet file and the peer connections.
func walletFromState() (application.WalletService, func(), error) {
	state, err := getState()
	if err != nil {
		return nil, nil, err
	}

	peers := strings.Fields(strings.ReplaceAll(state["peers"], ",", " "))
	if len(peers) <= 0 {
		return nil, nil, errors.New("set peers with `config set peers` or `join`")
	}
	quorum, err := strconv.Atoi(state["quorum"])
	if err != nil {
		return nil, nil, fmt.Errorf("invalid quorum %q: %w", state["quorum"], err)
	}
	membership, err := domain.NewMembership(peers, quorum)
	if err != nil {
		return nil, nil, err
	}
	genesisAmount, err := strconv.ParseUint(state["genesis_amount"], 10, 64)
	if err != nil {
		return nil, nil, fmt.Errorf(
			"invalid genesis amount %q: %w", state["genesis_amount"], err,
		)
	}
	timeout, err := time.ParseDuration(state["timeout"])
	if err != nil {
		return nil, nil, fmt.Errorf("invalid timeout %q: %w", state["timeout"], err)
	}

	repo, err := boltwallet.NewWalletRepositoryImpl(state["wallet"])
	if err != nil {
		return nil, nil, err
	}

	crypto := pedersen.NewService()
	verifier, err := application.NewTokenVerifier(crypto, *membership, genesisAmount)
	if err != nil {
		repo.Close()
		return nil, nil, err
	}
	clients := spentbookclient.NewFactory()
	coordinator := application.NewQuorumCoordinator(clients, verifier, timeout)

	svc := application.NewWalletService(
		repo, crypto, verifier,
		application.NewTransactionBuilder(crypto), coordinator,
		genesisAmount,
	)
	cleanup := func() {
		clients.Close()
		repo.Close()
	}
	return svc, cleanup, nil
}

type invalidUsageError struct {
	ctx     *cli.Context
	command string
}

func (e *invalidUsageError) Error() string {
	return fmt.Sprintf("invalid usage of command %s", e.command)
}

func fatal(err error) {
	var e *invalidUsageError
	if errors.As(err, &e) {
		_ = cli.ShowCommandHelp(e.ctx, e.command)
	} else {
		_, _ = fmt.Fprintf(os.Stderr, "[dbc] %v\n", err)
	}
	os.Exit(1)
}
