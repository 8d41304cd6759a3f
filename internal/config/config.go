package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/spf13/viper"
	"github.com/tdex-network/spentbook/internal/core/domain"
)

const (
	// ListeningPortKey is the port where the gRPC Spentbook interface will listen on
	ListeningPortKey = "LISTENING_PORT"
	// MetricsPortKey is the port where prometheus metrics are served, 0 disables them
	MetricsPortKey = "METRICS_PORT"
	// DatadirKey is the local data directory to store the internal state of daemon
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// PeersKey is the list of spentbook nodes, this one included, in the form <pubkey>@<host:port>
	PeersKey = "PEERS"
	// QuorumSizeKey is the number of distinct attestations a spend needs
	QuorumSizeKey = "QUORUM_SIZE"
	// GenesisAmountKey is the amount issued by the genesis token, in base units
	GenesisAmountKey = "GENESIS_AMOUNT"
	// DBTypeKey is used to switch database type between those supported
	DBTypeKey = "DB_TYPE"
	// MaxRequestsPerSecondKey caps the calls served by the gRPC interface, 0 disables the limit
	MaxRequestsPerSecondKey = "MAX_REQUESTS_PER_SECOND"
	// StatsIntervalKey defines interval in seconds for logging memory statistics, 0 disables them
	StatsIntervalKey = "STATS_INTERVAL"

	DbLocation       = "db"
	ProfilerLocation = "stats"
	NodeKeyFile      = "node.key"

	DbTypeBadger   = "badger"
	DbTypeInMemory = "inmemory"

	DefaultGenesisAmount = uint64(2100000000000000)
)

var (
	vip            *viper.Viper
	defaultDatadir = btcutil.AppDataDir("spentbookd", false)
)

func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("SPENTBOOK")
	vip.AutomaticEnv()

	vip.SetDefault(ListeningPortKey, 9001)
	vip.SetDefault(MetricsPortKey, 9101)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(QuorumSizeKey, 3)
	vip.SetDefault(GenesisAmountKey, DefaultGenesisAmount)
	vip.SetDefault(DBTypeKey, DbTypeBadger)
	vip.SetDefault(MaxRequestsPerSecondKey, 100)
	vip.SetDefault(StatsIntervalKey, 0)

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetUint64(key string) uint64 {
	return vip.GetUint64(key)
}

func GetStringSlice(key string) []string {
	return vip.GetStringSlice(key)
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

// GetDbDir returns where the ledger is stored, empty for the in-memory db.
func GetDbDir() string {
	if GetString(DBTypeKey) == DbTypeInMemory {
		return ""
	}
	return filepath.Join(GetDatadir(), DbLocation)
}

func GetNodeKeyPath() string {
	return filepath.Join(GetDatadir(), NodeKeyFile)
}

// GetMembership parses the configured peers and quorum size.
func GetMembership() (*domain.Membership, error) {
	return domain.NewMembership(GetStringSlice(PeersKey), GetInt(QuorumSizeKey))
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	port := GetInt(ListeningPortKey)
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%s must be a valid port", ListeningPortKey)
	}
	metricsPort := GetInt(MetricsPortKey)
	if metricsPort < 0 || metricsPort > 65535 {
		return fmt.Errorf("%s must be a valid port or 0", MetricsPortKey)
	}

	dbType := GetString(DBTypeKey)
	if dbType != DbTypeBadger && dbType != DbTypeInMemory {
		return fmt.Errorf(
			"%s must be either %s or %s", DBTypeKey, DbTypeBadger, DbTypeInMemory,
		)
	}

	if GetUint64(GenesisAmountKey) == 0 {
		return fmt.Errorf("%s must be greater than zero", GenesisAmountKey)
	}
	if GetInt(MaxRequestsPerSecondKey) < 0 {
		return fmt.Errorf("%s must not be negative", MaxRequestsPerSecondKey)
	}

	if len(GetStringSlice(PeersKey)) > 0 {
		if _, err := GetMembership(); err != nil {
			return err
		}
	}

	return nil
}

func initDatadir() error {
	datadir := GetDatadir()
	if err := makeDirectoryIfNotExists(datadir); err != nil {
		return err
	}
	if GetString(DBTypeKey) == DbTypeBadger {
		if err := makeDirectoryIfNotExists(filepath.Join(datadir, DbLocation)); err != nil {
			return err
		}
	}
	if GetInt(StatsIntervalKey) > 0 {
		if err := makeDirectoryIfNotExists(filepath.Join(datadir, ProfilerLocation)); err != nil {
			return err
		}
	}
	return nil
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
