package factory_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldstone/inventory-engine/factory"
	"github.com/fieldstone/inventory-engine/ledger"
	"github.com/fieldstone/inventory-engine/ledger/store"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := factory.Parse([]byte(`{}`))
	require.NoError(t, err)

	assert.Empty(t, cfg.LedgerOptions())
	assert.Equal(t, ledger.DefaultCatalog().List(), cfg.BuildCatalog().List())
}

func TestParse_FullDocument(t *testing.T) {
	cfg, err := factory.Parse([]byte(`{
		"catalog": ["Cement OPC-53", "GI Strip"],
		"elevated_roles": ["director"],
		"resolution_policy": "exact_team"
	}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"Cement OPC-53", "GI Strip"}, cfg.BuildCatalog().List())
	assert.Len(t, cfg.LedgerOptions(), 2)
}

func TestParse_UnknownPolicyRejected(t *testing.T) {
	_, err := factory.Parse([]byte(`{"resolution_policy": "nearest_site"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nearest_site")
}

func TestParse_EmptyCatalogEntryRejected(t *testing.T) {
	_, err := factory.Parse([]byte(`{"catalog": ["Cement OPC-53", ""]}`))
	require.Error(t, err)
}

func TestParse_MalformedJSON(t *testing.T) {
	_, err := factory.Parse([]byte(`{"catalog": [`))
	require.Error(t, err)
}

func TestLoadFile_EmptyPathYieldsDefaults(t *testing.T) {
	cfg, err := factory.LoadFile("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Catalog)
	assert.Empty(t, cfg.ElevatedRoles)
}

func TestLoadFile_MissingFileErrors(t *testing.T) {
	_, err := factory.LoadFile(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestLoadFile_ReadsDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portal.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"elevated_roles": ["director"]}`), 0o644))

	cfg, err := factory.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"director"}, cfg.ElevatedRoles)
}

func TestLedgerOptions_ElevatedRolesApplied(t *testing.T) {
	// GIVEN a config that grants only directors elevated access
	cfg, err := factory.Parse([]byte(`{"elevated_roles": ["director"]}`))
	require.NoError(t, err)

	mem := store.NewMemory()
	led, err := ledger.Open(context.Background(), mem, cfg.LedgerOptions()...)
	require.NoError(t, err)

	// THEN admin loses its default elevation
	assert.True(t, led.IsElevated(ledger.RoleDirector))
	assert.False(t, led.IsElevated(ledger.RoleAdmin))
}
