// Package extension provides the Forge extension adapter for Escrow.
//
// It implements the forge.Extension interface to integrate Escrow
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.escrow" or "escrow" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/config"
	"github.com/xraph/escrow/store"
	"github.com/xraph/escrow/store/mongo"
	"github.com/xraph/escrow/store/postgres"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "escrow"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Campaign voucher escrow treasury"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Escrow as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *escrow.Escrow
	store      store.Store
	grove      *grove.DB
	escrowOpts []escrow.Option
}

// New creates a new Escrow Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Escrow instance.
// This is nil until Register is called.
func (e *Extension) Engine() *escrow.Escrow { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// opens the configured store, builds the engine, and registers it in the
// DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		s, err := openStore(e.config, e.grove)
		if err != nil {
			return err
		}
		e.store = s
	}

	opts, err := e.buildEscrowOpts()
	if err != nil {
		return err
	}
	e.engine = escrow.New(e.store, opts...)

	return vessel.Provide(fapp.Container(), func() (*escrow.Escrow, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("escrow: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("escrow: store not initialized")
	}
	return e.store.Ping(ctx)
}

// openStore builds the backend named by cfg.Driver. Path-based drivers go
// through config.StoreConfig; postgres and mongo wrap the grove database.
func openStore(cfg Config, db *grove.DB) (store.Store, error) {
	switch cfg.Driver {
	case DriverPostgres, DriverMongo:
		if db == nil {
			return nil, fmt.Errorf("escrow: %s driver requires a grove database (use WithGroveDB)", cfg.Driver)
		}
		if cfg.Driver == DriverPostgres {
			return postgres.New(db), nil
		}
		return mongo.New(db), nil
	default:
		return config.StoreConfig{Driver: cfg.Driver, Path: cfg.Path}.Open()
	}
}

// buildEscrowOpts constructs escrow.Option values from the resolved config.
func (e *Extension) buildEscrowOpts() ([]escrow.Option, error) {
	opts := make([]escrow.Option, 0, len(e.escrowOpts)+2)

	if e.config.Custodian != "" {
		if !common.IsHexAddress(e.config.Custodian) {
			return nil, fmt.Errorf("escrow: invalid custodian address %q", e.config.Custodian)
		}
		opts = append(opts, escrow.WithCustodian(common.HexToAddress(e.config.Custodian)))
	}
	if e.config.PluginTimeout > 0 {
		opts = append(opts, escrow.WithPluginTimeout(e.config.PluginTimeout))
	}

	// Pass-through options apply last so they win over config.
	opts = append(opts, e.escrowOpts...)

	return opts, nil
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("escrow: configuration is required but not found in config files; " +
				"ensure 'extensions.escrow' or 'escrow' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("escrow: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("driver", e.config.Driver),
		forge.F("path", e.config.Path),
		forge.F("custodian", e.config.Custodian),
		forge.F("plugin_timeout", e.config.PluginTimeout),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.escrow", "escrow"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("escrow: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("escrow: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Driver == "" {
		cfg.Driver = defaults.Driver
	}
	if cfg.PluginTimeout == 0 {
		cfg.PluginTimeout = defaults.PluginTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if yamlConfig.Custodian == "" {
		yamlConfig.Custodian = programmaticConfig.Custodian
	}
	if yamlConfig.Driver == "" {
		yamlConfig.Driver = programmaticConfig.Driver
		if yamlConfig.Path == "" {
			yamlConfig.Path = programmaticConfig.Path
		}
	}
	if yamlConfig.PluginTimeout == 0 {
		yamlConfig.PluginTimeout = programmaticConfig.PluginTimeout
	}
	return mergeWithDefaults(yamlConfig)
}
