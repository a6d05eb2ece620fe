package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/xraph/escrow/store/memory"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "escrow.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, DriverLevelDB, cfg.Store.Driver)
	require.Equal(t, filepath.Join(dir, "nested", "escrow-data"), cfg.Store.Path)

	_, err = os.Stat(path)
	require.NoError(t, err)

	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "escrow.toml")
	body := `
Custodian = "0x00000000000000000000000000000000000000cc"
Admin = "0x00000000000000000000000000000000000000aa"
LogLevel = "debug"

[Store]
Driver = "sqlite"
Path = "/var/lib/escrow.db"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, DriverSQLite, cfg.Store.Driver)
	require.Equal(t, "escrow", cfg.Metrics.Namespace)
	require.Equal(t, common.HexToAddress("0xcc"), cfg.CustodianAddress())
	require.Equal(t, common.HexToAddress("0xaa"), cfg.AdminAddress())
	require.NotNil(t, cfg.Logger())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"bad custodian", Config{Custodian: "nope", Store: StoreConfig{Driver: DriverMemory}}},
		{"bad admin", Config{Admin: "0x12", Store: StoreConfig{Driver: DriverMemory}}},
		{"bad driver", Config{Store: StoreConfig{Driver: "redis"}}},
		{"bad level", Config{LogLevel: "loud", Store: StoreConfig{Driver: DriverMemory}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.cfg.Validate())
		})
	}
}

func TestStoreOpen(t *testing.T) {
	s, err := StoreConfig{}.Open()
	require.NoError(t, err)
	require.IsType(t, &memory.Store{}, s)

	s, err = StoreConfig{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "escrow.db")}.Open()
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = StoreConfig{Driver: DriverLevelDB}.Open()
	require.Error(t, err)

	_, err = StoreConfig{Driver: DriverMongo}.Open()
	require.True(t, errors.Is(err, ErrGroveDriver))
}
