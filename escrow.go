package escrow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/asset"
	"github.com/xraph/escrow/plugin"
	"github.com/xraph/escrow/store"
	"github.com/xraph/escrow/voucher"
)

// Escrow is the campaign voucher escrow engine. It owns the treasury
// ledger and the payment registry, and consults the access controller on
// every privileged transition.
type Escrow struct {
	store      store.Store
	plugins    *plugin.Registry
	logger     *slog.Logger
	access     *access.Controller
	currencies *asset.Registry
	clock      func() time.Time

	custodian   common.Address
	lockTimeout time.Duration

	vouchersMu sync.RWMutex
	vouchers   map[common.Address]voucher.Ledger
	fallback   voucher.Ledger

	// mu serializes mutating operations and excludes reads while a
	// transaction's effects are running.
	mu sync.RWMutex
}

// DefaultLockTimeout is how long an operation waits for the engine lock.
const DefaultLockTimeout = 30 * time.Second

// New creates a new Escrow instance.
func New(s store.Store, opts ...Option) *Escrow {
	e := &Escrow{
		store:       s,
		plugins:     plugin.NewRegistry(),
		logger:      slog.Default(),
		access:      access.NewController(),
		currencies:  asset.NewRegistry(),
		clock:       time.Now,
		vouchers:    make(map[common.Address]voucher.Ledger),
		lockTimeout: DefaultLockTimeout,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Escrow instance.
type Option func(*Escrow)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Escrow) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Escrow) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPluginTimeout bounds each plugin hook invocation.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Escrow) {
		e.plugins.WithTimeout(d)
	}
}

// WithAccess shares an existing access controller with the engine. Start
// replaces its state with the persisted roles.
func WithAccess(c *access.Controller) Option {
	return func(e *Escrow) {
		if c != nil {
			e.access = c
		}
	}
}

// WithCustodian sets the account that holds all escrowed currency.
func WithCustodian(addr common.Address) Option {
	return func(e *Escrow) {
		e.custodian = addr
	}
}

// WithCurrency registers a currency asset under its address.
func WithCurrency(addr common.Address, c asset.Currency) Option {
	return func(e *Escrow) {
		e.currencies.Register(addr, c)
	}
}

// WithCurrencies replaces the currency registry.
func WithCurrencies(r *asset.Registry) Option {
	return func(e *Escrow) {
		if r != nil {
			e.currencies = r
		}
	}
}

// WithVoucherLedger binds the voucher ledger of one campaign. A zero
// campaign address sets the ledger used for campaigns without their own.
func WithVoucherLedger(campaign common.Address, l voucher.Ledger) Option {
	return func(e *Escrow) {
		e.SetVoucherLedger(campaign, l)
	}
}

// WithLockTimeout bounds how long an operation waits for the engine lock
// before failing with ErrEngineBusy. Non-positive values keep the default.
func WithLockTimeout(d time.Duration) Option {
	return func(e *Escrow) {
		if d > 0 {
			e.lockTimeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(e *Escrow) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// SetVoucherLedger binds l to campaign after construction. See
// WithVoucherLedger.
func (e *Escrow) SetVoucherLedger(campaign common.Address, l voucher.Ledger) {
	e.vouchersMu.Lock()
	defer e.vouchersMu.Unlock()
	if campaign == (common.Address{}) {
		e.fallback = l
		return
	}
	if l == nil {
		delete(e.vouchers, campaign)
		return
	}
	e.vouchers[campaign] = l
}

// Start migrates the store, loads the persisted roles and initializes
// plugins.
func (e *Escrow) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return fmt.Errorf("escrow: migrate: %w", err)
	}
	if err := e.access.Load(ctx, e.store); err != nil {
		return err
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("escrow started",
		"custodian", e.custodian.Hex(),
		"currencies", len(e.currencies.Addresses()),
		"plugins", e.plugins.Count(),
		"initialised", e.access.Initialised(),
	)

	return nil
}

// Stop shuts down the engine and closes the store. Shutdown hooks run
// before in-flight operations are drained, so they may still read from the
// engine.
func (e *Escrow) Stop() error {
	e.plugins.EmitShutdown(context.Background())

	e.mu.Lock()
	defer e.mu.Unlock()

	e.logger.Info("escrow stopped")

	return e.store.Close()
}

// Store returns the underlying store.
func (e *Escrow) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Escrow) Plugins() *plugin.Registry { return e.plugins }

// Access returns the access controller.
func (e *Escrow) Access() *access.Controller { return e.access }

// Currencies returns the currency registry.
func (e *Escrow) Currencies() *asset.Registry { return e.currencies }

// Custodian returns the custody account.
func (e *Escrow) Custodian() common.Address { return e.custodian }

// Logger returns the engine logger.
func (e *Escrow) Logger() *slog.Logger { return e.logger }

func (e *Escrow) requireCustodian() (common.Address, error) {
	if e.custodian == (common.Address{}) {
		return common.Address{}, ErrNoCustodian
	}
	return e.custodian, nil
}

func (e *Escrow) voucherLedger(campaign common.Address) (voucher.Ledger, error) {
	e.vouchersMu.RLock()
	defer e.vouchersMu.RUnlock()
	if l, ok := e.vouchers[campaign]; ok {
		return l, nil
	}
	if e.fallback != nil {
		return e.fallback, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownVoucherLedger, campaign.Hex())
}

func requireAddress(field string, addr common.Address) error {
	if addr == (common.Address{}) {
		return ValidationError{Field: field, Message: "must not be the zero address"}
	}
	return nil
}
