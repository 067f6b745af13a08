/*
views_test.go - Reporting aggregation tests

Covers the flat dashboard view's role restriction, the summary view's empty
groups, the detailed view's team and synthetic site groups, and filter
composition across all three.
*/
package ledger_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldstone/inventory-engine/ledger"
)

// reportLedger builds a populated ledger: Civil-A holds cement (30 of 100
// consumed at Riverside), Electrical-A holds cable, Hillview Depot has
// pre-staged site materials, and Riverside is managed by Electrical-A.
func reportLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	led, _ := newTestLedger(t)
	ctx := context.Background()

	setOpening(t, led, "team-civil-a", ledger.OpeningBalance{Name: "Cement OPC-53", Amount: d(100)})
	setOpening(t, led, "team-elec-a", ledger.OpeningBalance{Name: "Cable-95mm", Amount: d(60)})

	_, err := led.LogUsage(ctx, ledger.UsageRequest{
		SiteID: "site-x", ActingTeamID: "team-civil-a",
		MaterialName: "Cement OPC-53", Quantity: d(30), Notes: "footing pour",
	})
	require.NoError(t, err)

	require.NoError(t, led.AddAllocation(ctx, ledger.RoleAdmin,
		ledger.SiteOwner("site-y"), "Shuttering Plate", d(80), decimal.Zero))
	return led
}

// =============================================================================
// FLAT DASHBOARD VIEW
// =============================================================================

func TestFlatView_NonElevatedViewer_SeesOwnRoleOnly(t *testing.T) {
	led := reportLedger(t)

	rows := led.BuildFlatView(ledger.RoleCivil, ledger.Filter{})
	require.Len(t, rows, 1)
	assert.Equal(t, "Civil-A", rows[0].TeamName)
	assert.Equal(t, "Cement OPC-53", rows[0].MaterialName)
	assert.True(t, rows[0].Remaining.Equal(d(70)))
}

func TestFlatView_ElevatedViewer_SeesAllRows(t *testing.T) {
	led := reportLedger(t)

	rows := led.BuildFlatView(ledger.RoleAdmin, ledger.Filter{})
	require.Len(t, rows, 2)
	assert.Equal(t, "Civil-A", rows[0].TeamName)
	assert.Equal(t, "Electrical-A", rows[1].TeamName)
}

func TestFlatView_AnnotatesManagedSite(t *testing.T) {
	led := reportLedger(t)

	rows := led.BuildFlatView(ledger.RoleElectrical, ledger.Filter{})
	require.Len(t, rows, 1)
	assert.Equal(t, "Riverside Substation", rows[0].ManagedSiteName,
		"Electrical-A manages Riverside")
}

func TestFlatView_FiltersCompose(t *testing.T) {
	led := reportLedger(t)

	// Query + team filter AND together.
	rows := led.BuildFlatView(ledger.RoleAdmin, ledger.Filter{Query: "cement", TeamID: "team-elec-a"})
	assert.Empty(t, rows, "electrical team holds no cement")

	rows = led.BuildFlatView(ledger.RoleAdmin, ledger.Filter{Query: "cement", TeamID: "team-civil-a"})
	assert.Len(t, rows, 1)

	// Case-insensitive substring over team name, role, material name.
	rows = led.BuildFlatView(ledger.RoleAdmin, ledger.Filter{Query: "ELECTRIC"})
	assert.Len(t, rows, 1)
}

// =============================================================================
// SUMMARY VIEW
// =============================================================================

func TestSummaryView_IncludesEmptyTeams(t *testing.T) {
	led := reportLedger(t)

	groups := led.BuildSummaryView(ledger.Filter{})
	require.Len(t, groups, 3, "every team appears, allocations or not")

	byName := map[string]ledger.TeamSummary{}
	for _, g := range groups {
		byName[g.TeamName] = g
	}
	assert.Empty(t, byName["Civil-B"].Materials, "empty group for stockless team")

	civil := byName["Civil-A"]
	require.Len(t, civil.Materials, 1)
	assert.True(t, civil.Materials[0].Opening.Equal(d(100)))
	assert.True(t, civil.Materials[0].Used.Equal(d(30)))
	assert.True(t, civil.Materials[0].Remaining.Equal(d(70)))
}

func TestSummaryView_QueryNarrowsToMatchingMaterials(t *testing.T) {
	led := reportLedger(t)

	groups := led.BuildSummaryView(ledger.Filter{Query: "cable"})
	require.Len(t, groups, 1, "only the cable-holding team survives a material query")
	assert.Equal(t, "Electrical-A", groups[0].TeamName)
	require.Len(t, groups[0].Materials, 1)
	assert.Equal(t, "Cable-95mm", groups[0].Materials[0].Name)
}

// =============================================================================
// DETAILED VIEW
// =============================================================================

func TestDetailedView_TeamGroups_EnumerateMatchingEntries(t *testing.T) {
	led := reportLedger(t)

	groups := led.BuildDetailedView(ledger.Filter{TeamID: "team-civil-a"})
	require.Len(t, groups, 1)

	g := groups[0]
	assert.Equal(t, ledger.OwnerTeam, g.Owner.Kind)
	assert.Equal(t, "Civil-A", g.Label)
	require.Len(t, g.Entries, 1)
	assert.Equal(t, "footing pour", g.Entries[0].Notes)
	assert.True(t, g.TotalLogged.Equal(d(30)))
	assert.True(t, g.Used.Equal(d(30)))
}

func TestDetailedView_SiteGroups_LabeledByManagerOrDefault(t *testing.T) {
	led := reportLedger(t)
	ctx := context.Background()

	// Give managed Riverside some pre-staged stock too.
	require.NoError(t, led.AddAllocation(ctx, ledger.RoleAdmin,
		ledger.SiteOwner("site-x"), "Earthing Rod", d(12), decimal.Zero))

	groups := led.BuildDetailedView(ledger.Filter{})

	var hillview, riverside *ledger.DetailGroup
	for i := range groups {
		if groups[i].Owner.Kind != ledger.OwnerSite {
			continue
		}
		switch groups[i].SiteName {
		case "Hillview Depot":
			hillview = &groups[i]
		case "Riverside Substation":
			riverside = &groups[i]
		}
	}
	require.NotNil(t, hillview)
	require.NotNil(t, riverside)

	assert.Equal(t, ledger.SiteMaterialsLabel, hillview.Label, "unmanaged site gets the default label")
	assert.Equal(t, "Electrical-A", riverside.Label, "managed site is labeled with its manager")
}

func TestDetailedView_TotalLogged_DivergesAfterDirectEdit(t *testing.T) {
	// The counter and the log re-sum are independent truths: a direct edit
	// moves the counter while TotalLogged keeps reporting the audit trail.

	led := reportLedger(t)
	ctx := context.Background()

	require.NoError(t, led.EditAllocationUsed(ctx, ledger.RoleAdmin,
		ledger.TeamOwner("team-civil-a"), "Cement OPC-53", d(5)))

	groups := led.BuildDetailedView(ledger.Filter{TeamID: "team-civil-a"})
	require.Len(t, groups, 1)
	assert.True(t, groups[0].Used.Equal(d(5)), "counter is authoritative")
	assert.True(t, groups[0].TotalLogged.Equal(d(30)), "log re-sum untouched by the edit")
}

func TestDetailedView_SiteFilter_NarrowsTeamGroupsToConsumers(t *testing.T) {
	led := reportLedger(t)

	groups := led.BuildDetailedView(ledger.Filter{SiteID: "site-x"})

	// Civil-A consumed at Riverside; Electrical-A did not.
	var labels []string
	for _, g := range groups {
		labels = append(labels, g.Label)
	}
	assert.Contains(t, labels, "Civil-A")
	assert.NotContains(t, labels, "Electrical-A")
}

func TestDetailedView_EntriesKeepInsertionOrder(t *testing.T) {
	led := reportLedger(t)
	ctx := context.Background()

	for _, notes := range []string{"second", "third"} {
		_, err := led.LogUsage(ctx, ledger.UsageRequest{
			SiteID: "site-x", ActingTeamID: "team-civil-a",
			MaterialName: "Cement OPC-53", Quantity: d(1), Notes: notes,
		})
		require.NoError(t, err)
	}

	groups := led.BuildDetailedView(ledger.Filter{TeamID: "team-civil-a"})
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Entries, 3)
	assert.Equal(t, "footing pour", groups[0].Entries[0].Notes)
	assert.Equal(t, "second", groups[0].Entries[1].Notes)
	assert.Equal(t, "third", groups[0].Entries[2].Notes)
}
