// Package config loads escrowctl and standalone deployments from a TOML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/store"
	"github.com/xraph/escrow/store/leveldb"
	"github.com/xraph/escrow/store/memory"
	"github.com/xraph/escrow/store/sqlite"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverLevelDB  = "leveldb"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// ErrGroveDriver is returned by StoreConfig.Open for drivers that need a
// grove database handle rather than a path.
var ErrGroveDriver = errors.New("config: driver requires a grove database")

type Config struct {
	Custodian string        `toml:"Custodian"`
	Admin     string        `toml:"Admin"`
	LogLevel  string        `toml:"LogLevel"`
	Store     StoreConfig   `toml:"Store"`
	Metrics   MetricsConfig `toml:"Metrics"`
}

type StoreConfig struct {
	Driver string `toml:"Driver"`
	Path   string `toml:"Path,omitempty"`
	DSN    string `toml:"DSN,omitempty"`
}

type MetricsConfig struct {
	Namespace string `toml:"Namespace"`
}

// Default returns the configuration written when no file exists.
func Default(dataDir string) *Config {
	return &Config{
		LogLevel: "info",
		Store: StoreConfig{
			Driver: DriverLevelDB,
			Path:   filepath.Join(dataDir, "escrow-data"),
		},
		Metrics: MetricsConfig{Namespace: "escrow"},
	}
}

// Load loads the configuration from the given path, writing a default file
// first when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if strings.TrimSpace(cfg.Store.Driver) == "" {
		cfg.Store.Driver = DriverMemory
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "escrow"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks addresses, the driver name and the log level.
func (c *Config) Validate() error {
	for field, v := range map[string]string{"Custodian": c.Custodian, "Admin": c.Admin} {
		if v != "" && !common.IsHexAddress(v) {
			return fmt.Errorf("config: %s %q is not a hex address", field, v)
		}
	}
	switch c.Store.Driver {
	case DriverMemory, DriverLevelDB, DriverSQLite, DriverPostgres, DriverMongo:
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// CustodianAddress returns the configured custodian, or the zero address.
func (c *Config) CustodianAddress() common.Address {
	return common.HexToAddress(c.Custodian)
}

// AdminAddress returns the configured admin, or the zero address.
func (c *Config) AdminAddress() common.Address {
	return common.HexToAddress(c.Admin)
}

// Logger builds a text logger at the configured level.
func (c *Config) Logger() *slog.Logger {
	level, _ := parseLevel(c.LogLevel) //nolint:errcheck // validated on load
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Open opens a path-based store. postgres and mongo return ErrGroveDriver.
func (s StoreConfig) Open() (store.Store, error) {
	switch s.Driver {
	case "", DriverMemory:
		return memory.New(), nil
	case DriverLevelDB, DriverSQLite:
		if s.Path == "" {
			return nil, fmt.Errorf("config: %s driver requires a path", s.Driver)
		}
		if s.Driver == DriverLevelDB {
			db, err := leveldb.Open(s.Path)
			if err != nil {
				return nil, err
			}
			return db, nil
		}
		db, err := sqlite.Open(s.Path)
		if err != nil {
			return nil, err
		}
		return db, nil
	case DriverPostgres, DriverMongo:
		return nil, fmt.Errorf("%w: %s", ErrGroveDriver, s.Driver)
	default:
		return nil, fmt.Errorf("config: unknown store driver %q", s.Driver)
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: log level %q: %w", s, err)
	}
	return level, nil
}

func createDefault(path string) (*Config, error) {
	cfg := Default(filepath.Dir(path))
	if err := Save(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as TOML, creating parent directories.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
