package extension

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/plugin"
	"github.com/xraph/escrow/store"
)

// Option configures the Escrow Forge extension.
type Option func(*Extension)

// WithStore sets the store for the escrow engine. It takes precedence over
// the configured driver.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEscrowOption passes an escrow.Option through to the underlying engine.
func WithEscrowOption(opt escrow.Option) Option {
	return func(e *Extension) {
		e.escrowOpts = append(e.escrowOpts, opt)
	}
}

// WithPlugin registers an escrow plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.escrowOpts = append(e.escrowOpts, escrow.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithCustodian sets the custodian address as a hex string.
func WithCustodian(hex string) Option {
	return func(e *Extension) { e.config.Custodian = hex }
}

// WithDriver selects the store backend and, for leveldb and sqlite, its path.
func WithDriver(driver, path string) Option {
	return func(e *Extension) {
		e.config.Driver = driver
		e.config.Path = path
	}
}

// WithPluginTimeout bounds each plugin hook invocation.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.PluginTimeout = d }
}

// WithGroveDB supplies the grove database used by the postgres and mongo
// drivers.
func WithGroveDB(db *grove.DB) Option {
	return func(e *Extension) { e.grove = db }
}
