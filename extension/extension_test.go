package extension

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xraph/escrow/store/leveldb"
	"github.com/xraph/escrow/store/memory"
)

func TestMergeConfigurations(t *testing.T) {
	programmatic := Config{
		DisableMigrate: true,
		Custodian:      "0x00000000000000000000000000000000000000cc",
		Driver:         DriverSQLite,
		Path:           "/tmp/escrow.db",
	}

	merged := mergeConfigurations(Config{Driver: DriverLevelDB, Path: "/data/escrow"}, programmatic)
	require.True(t, merged.DisableMigrate)
	require.Equal(t, programmatic.Custodian, merged.Custodian)
	require.Equal(t, DriverLevelDB, merged.Driver)
	require.Equal(t, "/data/escrow", merged.Path)
	require.Equal(t, 5*time.Second, merged.PluginTimeout)

	merged = mergeConfigurations(Config{PluginTimeout: time.Second}, programmatic)
	require.Equal(t, DriverSQLite, merged.Driver)
	require.Equal(t, "/tmp/escrow.db", merged.Path)
	require.Equal(t, time.Second, merged.PluginTimeout)
}

func TestOpenStore(t *testing.T) {
	s, err := openStore(Config{}, nil)
	require.NoError(t, err)
	require.IsType(t, &memory.Store{}, s)

	s, err = openStore(Config{Driver: DriverLevelDB, Path: filepath.Join(t.TempDir(), "ldb")}, nil)
	require.NoError(t, err)
	require.IsType(t, &leveldb.Store{}, s)
	require.NoError(t, s.Close())

	_, err = openStore(Config{Driver: DriverLevelDB}, nil)
	require.Error(t, err)

	_, err = openStore(Config{Driver: DriverPostgres}, nil)
	require.ErrorContains(t, err, "WithGroveDB")

	_, err = openStore(Config{Driver: "cassandra"}, nil)
	require.ErrorContains(t, err, "unknown store driver")
}

func TestBuildEscrowOpts(t *testing.T) {
	e := New(WithCustodian("not-an-address"))
	_, err := e.buildEscrowOpts()
	require.Error(t, err)

	e = New(WithCustodian("0x00000000000000000000000000000000000000cc"), WithPluginTimeout(time.Second))
	opts, err := e.buildEscrowOpts()
	require.NoError(t, err)
	require.Len(t, opts, 2)
}
