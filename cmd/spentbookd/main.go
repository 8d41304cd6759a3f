package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tdex-network/spentbook/internal/config"
	"github.com/tdex-network/spentbook/internal/core/application"
	"github.com/tdex-network/spentbook/internal/core/domain"
	"github.com/tdex-network/spentbook/internal/infrastructure/crypto/pedersen"
	dbbadger "github.com/tdex-network/spentbook/internal/infrastructure/storage/db/badger"
	"github.com/tdex-network/spentbook/internal/infrastructure/storage/db/inmemory"
	grpcinterface "github.com/tdex-network/spentbook/internal/interfaces/grpc"
	"github.com/tdex-network/spentbook/pkg/stats"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	app = &cobra.Command{
		Use:               "spentbookd",
		Short:             "spentbook node",
		Long:              "spentbookd records the spent inputs of DBC transactions and attests them to wallets",
		Version:           formatVersion(),
		PersistentPreRunE: initConfig,
		RunE:              action,
		SilenceUsage:      true,
	}

	identity = &cobra.Command{
		Use:   "identity",
		Short: "print the public key of the node, creating it if missing",
		RunE:  identityAction,
	}

	// Flags override the env config.
	flagKeys = map[string]string{
		"datadir": config.DatadirKey,
		"port":    config.ListeningPortKey,
		"peers":   config.PeersKey,
		"quorum":  config.QuorumSizeKey,
		"db":      config.DBTypeKey,
	}
)

func init() {
	app.PersistentFlags().String("datadir", "", "data directory of the node")
	app.Flags().Int("port", 0, "listening port of the spentbook interface")
	app.Flags().StringSlice("peers", nil, "spentbook nodes in the form <pubkey>@<host:port>")
	app.Flags().Int("quorum", 0, "number of attestations required for a spend")
	app.Flags().String("db", "", "database type, badger or inmemory")
	app.AddCommand(identity)
}

func main() {
	if err := app.Execute(); err != nil {
		log.Fatal(err)
	}
}

func initConfig(cmd *cobra.Command, _ []string) error {
	for flag, key := range flagKeys {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		value := f.Value.String()
		if f.Value.Type() == "stringSlice" {
			peers, err := cmd.Flags().GetStringSlice(flag)
			if err != nil {
				return err
			}
			value = strings.Join(peers, " ")
		}
		if err := os.Setenv("SPENTBOOK_"+key, value); err != nil {
			return err
		}
	}
	return config.InitConfig()
}

func action(_ *cobra.Command, _ []string) error {
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	membership, err := config.GetMembership()
	if err != nil {
		return fmt.Errorf("invalid membership: %w", err)
	}

	crypto := pedersen.NewService()
	nodeKey, nodeID, err := loadOrCreateNodeKey(crypto, config.GetNodeKeyPath())
	if err != nil {
		return err
	}
	if !membership.IsMember(nodeID) {
		return fmt.Errorf("node %s is not part of the configured peers", nodeID)
	}

	repo, err := newSpendRecordRepository()
	if err != nil {
		return err
	}
	defer repo.Close()

	ledger, err := application.NewSpendLedger(repo, crypto, nodeKey)
	if err != nil {
		return err
	}
	verifier, err := application.NewTokenVerifier(
		crypto, *membership, config.GetUint64(config.GenesisAmountKey),
	)
	if err != nil {
		return err
	}
	collector, err := stats.NewSpentbookCollector(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	spentbookSvc := application.NewSpentbookService(ledger, verifier, collector)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := spentbookSvc.Start(ctx); err != nil {
		return fmt.Errorf("loading ledger: %w", err)
	}

	svc, err := grpcinterface.NewService(grpcinterface.ServiceOpts{
		Port:                 config.GetInt(config.ListeningPortKey),
		MetricsPort:          config.GetInt(config.MetricsPortKey),
		MaxRequestsPerSecond: config.GetInt(config.MaxRequestsPerSecondKey),
		SpentbookSvc:         spentbookSvc,
	})
	if err != nil {
		return err
	}
	if err := svc.Start(); err != nil {
		return err
	}
	defer svc.Stop()

	if interval := config.GetInt(config.StatsIntervalKey); interval > 0 {
		stats.EnableMemoryStatistics(
			ctx, time.Duration(interval)*time.Second,
			filepath.Join(config.GetDatadir(), config.ProfilerLocation, "metrics"),
		)
	}

	log.WithFields(log.Fields{
		"node_id": nodeID,
		"quorum":  membership.QuorumSize,
		"peers":   len(membership.Peers),
	}).Info("spentbook node started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case <-sigChan:
		log.Info("shutting down")
		return nil
	case err := <-spentbookSvc.Failures():
		log.WithError(err).Error("ledger failed, shutting down")
		return err
	}
}

func identityAction(_ *cobra.Command, _ []string) error {
	_, nodeID, err := loadOrCreateNodeKey(pedersen.NewService(), config.GetNodeKeyPath())
	if err != nil {
		return err
	}
	fmt.Println(nodeID)
	return nil
}

func newSpendRecordRepository() (domain.SpendRecordRepository, error) {
	if config.GetString(config.DBTypeKey) == config.DbTypeInMemory {
		log.Warn("using in-memory ledger, spend records are lost on restart")
		return inmemory.NewSpendRecordRepositoryImpl(), nil
	}

	db, err := dbbadger.NewDbManager(
		config.GetDbDir(), log.WithField("component", "badger"),
	)
	if err != nil {
		return nil, err
	}
	return dbbadger.NewSpendRecordRepositoryImpl(db), nil
}

func formatVersion() string {
	return fmt.Sprintf(
		"Version: %s\nCommit: %s\nDate: %s",
		version, commit, date,
	)
}

// keyGenerator is the subset of the crypto primitive needed to manage the
// node identity.
type keyGenerator interface {
	NewKey() ([]byte, []byte, error)
	PublicKey(priv []byte) ([]byte, error)
}

func loadOrCreateNodeKey(crypto keyGenerator, path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, "", err
		}
		priv, pub, err := crypto.NewKey()
		if err != nil {
			return nil, "", err
		}
		if err := os.WriteFile(path, []byte(hex.EncodeToString(priv)), 0600); err != nil {
			return nil, "", fmt.Errorf("writing node key: %w", err)
		}
		log.Infof("created node key in %s", path)
		return priv, hex.EncodeToString(pub), nil
	}

	priv, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, "", fmt.Errorf("invalid node key in %s: %w", path, err)
	}
	pub, err := crypto.PublicKey(priv)
	if err != nil {
		return nil, "", fmt.Errorf("invalid node key in %s: %w", path, err)
	}
	return priv, hex.EncodeToString(pub), nil
}
