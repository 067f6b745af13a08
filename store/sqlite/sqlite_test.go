package sqlite_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldstone/inventory-engine/ledger"
	"github.com/fieldstone/inventory-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestReplaceAndLoadTeams_RoundTripWithOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	teams := []ledger.Team{
		{ID: "t1", Name: "Civil-A", Role: ledger.RoleCivil, Allocations: []ledger.MaterialAllocation{
			{ID: "a1", Name: "Cement OPC-53", UnitsAllocated: dec("100.5"), UnitsUsed: dec("30.25")},
		}},
		{ID: "t2", Name: "Electrical-A", Role: ledger.RoleElectrical},
	}
	require.NoError(t, st.ReplaceTeams(ctx, teams))

	got, err := st.LoadTeams(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t1", got[0].ID)
	assert.Equal(t, "t2", got[1].ID)
	require.Len(t, got[0].Allocations, 1)
	assert.True(t, got[0].Allocations[0].UnitsAllocated.Equal(dec("100.5")))
	assert.True(t, got[0].Allocations[0].UnitsUsed.Equal(dec("30.25")))
	assert.Empty(t, got[1].Allocations)
}

func TestReplaceTeams_OverwritesWholeCollection(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.ReplaceTeams(ctx, []ledger.Team{{ID: "t1", Name: "Civil-A", Role: ledger.RoleCivil}}))
	require.NoError(t, st.ReplaceTeams(ctx, []ledger.Team{{ID: "t9", Name: "Mech-A", Role: ledger.RoleMechanical}}))

	got, err := st.LoadTeams(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t9", got[0].ID)
}

func TestReplaceAndLoadSites_ManagerNullable(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	sites := []ledger.Site{
		{ID: "s1", Name: "Riverside Substation", ManagerTeamID: "t1"},
		{ID: "s2", Name: "Hillview Depot"},
	}
	require.NoError(t, st.ReplaceSites(ctx, sites))

	got, err := st.LoadSites(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t1", got[0].ManagerTeamID)
	assert.Empty(t, got[1].ManagerTeamID)
}

func TestAppendUsage_RoundTripAndAppendOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, time.March, 10, 9, 0, 0, 123456789, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, st.AppendUsage(ctx, ledger.UsageLogEntry{
			ID:           fmt.Sprintf("ul-%d", i),
			TeamID:       "t1",
			TeamName:     "Civil-A",
			SiteID:       "s1",
			SiteName:     "Riverside Substation",
			MaterialName: "Cement OPC-53",
			QuantityUsed: dec("7.5"),
			Timestamp:    base.Add(time.Duration(i) * time.Minute),
			Notes:        "pour",
		}))
	}

	got, err := st.LoadUsageLog(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "ul-0", got[0].ID)
	assert.Equal(t, "ul-2", got[2].ID)
	assert.True(t, got[0].QuantityUsed.Equal(dec("7.5")))
	assert.True(t, got[0].Timestamp.Equal(base), "sub-second precision survives")
	assert.Equal(t, "pour", got[0].Notes)
}

func TestAppendUsage_DuplicateIdempotencyKey_Rejected(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	entry := ledger.UsageLogEntry{
		ID: "ul-1", TeamID: "t1", TeamName: "Civil-A",
		SiteID: "s1", SiteName: "Riverside",
		MaterialName: "GI Strip", QuantityUsed: dec("5"),
		Timestamp: time.Now(), IdempotencyKey: "k1",
	}
	require.NoError(t, st.AppendUsage(ctx, entry))

	entry.ID = "ul-2"
	err := st.AppendUsage(ctx, entry)
	assert.ErrorIs(t, err, ledger.ErrDuplicateIdempotencyKey)
}

func TestAppendUsage_EmptyIdempotencyKeysDontCollide(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, st.AppendUsage(ctx, ledger.UsageLogEntry{
			ID: fmt.Sprintf("ul-%d", i), TeamID: "t1", TeamName: "Civil-A",
			SiteID: "s1", SiteName: "Riverside",
			MaterialName: "GI Strip", QuantityUsed: dec("1"),
			Timestamp: time.Now(),
		}), "NULL keys are exempt from the unique index")
	}
}

func TestSaveTeam_UpsertKeepsPosition(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveTeam(ctx, ledger.Team{ID: "t1", Name: "Civil-A", Role: ledger.RoleCivil}))
	require.NoError(t, st.SaveTeam(ctx, ledger.Team{ID: "t2", Name: "Civil-B", Role: ledger.RoleCivil}))
	require.NoError(t, st.SaveTeam(ctx, ledger.Team{ID: "t1", Name: "Civil-A (renamed)", Role: ledger.RoleCivil}))

	got, err := st.LoadTeams(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Civil-A (renamed)", got[0].Name, "update keeps original position")
	assert.Equal(t, "t2", got[1].ID)
}

func TestDeleteTeamAndSite(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveTeam(ctx, ledger.Team{ID: "t1", Name: "Civil-A", Role: ledger.RoleCivil}))
	require.NoError(t, st.SaveSite(ctx, ledger.Site{ID: "s1", Name: "Riverside"}))

	require.NoError(t, st.DeleteTeam(ctx, "t1"))
	require.NoError(t, st.DeleteSite(ctx, "s1"))

	teams, err := st.LoadTeams(ctx)
	require.NoError(t, err)
	assert.Empty(t, teams)
	sites, err := st.LoadSites(ctx)
	require.NoError(t, err)
	assert.Empty(t, sites)
}

func TestLedgerOverSQLite_EndToEnd(t *testing.T) {
	// The ledger's write path against the real store: opening balance,
	// usage, then a fresh session sees the persisted state.

	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveTeam(ctx, ledger.Team{ID: "t1", Name: "Civil-A", Role: ledger.RoleCivil}))
	require.NoError(t, st.SaveSite(ctx, ledger.Site{ID: "s1", Name: "Riverside Substation"}))

	led, err := ledger.Open(ctx, st)
	require.NoError(t, err)

	require.NoError(t, led.SetOpeningBalance(ctx, "t1", []ledger.OpeningBalance{
		{Name: "Cement OPC-53", Amount: dec("100")},
	}))
	_, err = led.LogUsage(ctx, ledger.UsageRequest{
		SiteID: "s1", ActingTeamID: "t1",
		MaterialName: "Cement OPC-53", Quantity: dec("40"),
		IdempotencyKey: "evt-1",
	})
	require.NoError(t, err)

	// New session over the same database.
	led2, err := ledger.Open(ctx, st)
	require.NoError(t, err)

	team, ok := led2.Team("t1")
	require.True(t, ok)
	require.Len(t, team.Allocations, 1)
	assert.True(t, team.Allocations[0].UnitsUsed.Equal(dec("40")))
	assert.Len(t, led2.UsageLog(), 1)

	// The persisted idempotency key still guards replays.
	_, err = led2.LogUsage(ctx, ledger.UsageRequest{
		SiteID: "s1", ActingTeamID: "t1",
		MaterialName: "Cement OPC-53", Quantity: dec("40"),
		IdempotencyKey: "evt-1",
	})
	assert.ErrorIs(t, err, ledger.ErrDuplicateIdempotencyKey)
}
