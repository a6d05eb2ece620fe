// Command escrowctl administers an escrow treasury stored in a local leveldb
// or sqlite database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/config"
)

const defaultConfig = "./escrow.toml"

type app struct {
	configPath string
	as         string

	cfg    *config.Config
	engine *escrow.Escrow
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "escrowctl",
		Short:         "Administer a campaign voucher escrow treasury",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", defaultConfig, "path to the escrow config file")
	root.PersistentFlags().StringVar(&a.as, "as", "", "caller address (defaults to the configured Admin)")

	root.AddCommand(
		a.initCommand(),
		a.grantCommand(),
		a.revokeCommand(),
		a.integrationCommand(),
		a.rolesCommand(),
		a.balanceCommand(),
		a.entriesCommand(),
		a.paymentsCommand(),
		a.movementsCommand(),
		newDemoCommand(),
	)
	return root
}

// open loads the config and starts an engine over the configured store.
// Callers must defer close.
func (a *app) open(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	s, err := cfg.Store.Open()
	if err != nil {
		return err
	}

	opts := []escrow.Option{escrow.WithLogger(cfg.Logger())}
	if cfg.Custodian != "" {
		opts = append(opts, escrow.WithCustodian(cfg.CustodianAddress()))
	}

	engine := escrow.New(s, opts...)
	if err := engine.Start(ctx); err != nil {
		_ = s.Close()
		return err
	}
	a.cfg = cfg
	a.engine = engine
	return nil
}

func (a *app) close() {
	if a.engine != nil {
		_ = a.engine.Stop()
	}
}

// caller returns the acting account: --as, or the configured Admin.
func (a *app) caller() (escrow.Caller, error) {
	addr := a.as
	if addr == "" {
		addr = a.cfg.Admin
	}
	if !common.IsHexAddress(addr) {
		return escrow.Caller{}, fmt.Errorf("caller %q is not a hex address (set --as or Admin)", addr)
	}
	return escrow.Account(common.HexToAddress(addr)), nil
}

// withEngine wraps a RunE body with open/close.
func (a *app) withEngine(fn func(ctx context.Context, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := a.open(ctx); err != nil {
			return err
		}
		defer a.close()
		return fn(ctx, cmd, args)
	}
}

func parseAddress(name, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s %q is not a hex address", name, s)
	}
	return common.HexToAddress(s), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
