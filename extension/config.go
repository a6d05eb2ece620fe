package extension

import (
	"time"

	"github.com/xraph/escrow/config"
)

// Store drivers understood by the extension.
const (
	DriverMemory   = config.DriverMemory
	DriverLevelDB  = config.DriverLevelDB
	DriverSQLite   = config.DriverSQLite
	DriverPostgres = config.DriverPostgres
	DriverMongo    = config.DriverMongo
)

// Config holds the Escrow extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.escrow" or "escrow" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Custodian is the hex address that holds escrowed currency.
	Custodian string `json:"custodian" mapstructure:"custodian" yaml:"custodian"`

	// Driver selects the store backend: memory, leveldb, sqlite, postgres or
	// mongo (default: memory). postgres and mongo need a grove.DB supplied
	// through WithGroveDB.
	Driver string `json:"driver" mapstructure:"driver" yaml:"driver"`

	// Path is the on-disk location for the leveldb and sqlite drivers.
	Path string `json:"path" mapstructure:"path" yaml:"path"`

	// PluginTimeout bounds each plugin hook invocation (default: 5s).
	PluginTimeout time.Duration `json:"plugin_timeout" mapstructure:"plugin_timeout" yaml:"plugin_timeout"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Driver:        DriverMemory,
		PluginTimeout: 5 * time.Second,
	}
}
