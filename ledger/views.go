/*
views.go - Read-only reporting aggregations

PURPOSE:
  Three views over the working set, all pure and side-effect free:

  Flat     - one row per (team, material) for the dashboard, annotated with
             the team's managed site, restricted to the viewer's own role
             unless the viewer is elevated
  Summary  - grouped by team, (opening, used, remaining) per material;
             teams with no allocations still appear as empty groups
  Detailed - grouped by (team, material), plus synthetic groups for every
             site holding pre-staged materials, each group enumerating its
             matching usage-log entries in insertion order

TWO TRUTHS:
  Detailed groups carry both the allocation's used counter and TotalLogged,
  the re-sum of matching log entries. After a direct operator edit these can
  legitimately differ; the view reports both and reconciles nothing.

FILTERS:
  Free-text query (case-insensitive substring over team name, role, material
  name), team filter, site filter. Filters compose with AND.
*/
package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Filter narrows any of the three views. Zero value means no filtering.
type Filter struct {
	Query  string
	TeamID string
	SiteID string
}

func (f Filter) queryMatches(parts ...string) bool {
	if f.Query == "" {
		return true
	}
	q := strings.ToLower(f.Query)
	for _, p := range parts {
		if strings.Contains(strings.ToLower(p), q) {
			return true
		}
	}
	return false
}

// =============================================================================
// FLAT DASHBOARD VIEW
// =============================================================================

// FlatRow is one dashboard row: one team allocation with its balance triple
// and the team's managed site, if any.
type FlatRow struct {
	TeamID          string          `json:"teamId"`
	TeamName        string          `json:"teamName"`
	Role            Role            `json:"role"`
	MaterialName    string          `json:"materialName"`
	UnitsAllocated  decimal.Decimal `json:"unitsAllocated"`
	UnitsUsed       decimal.Decimal `json:"unitsUsed"`
	Remaining       decimal.Decimal `json:"remaining"`
	Overdrawn       bool            `json:"overdrawn"`
	ManagedSiteID   string          `json:"managedSiteId,omitempty"`
	ManagedSiteName string          `json:"managedSiteName,omitempty"`
}

// BuildFlatView returns one row per (team, material) across all teams the
// viewer may see. Non-elevated viewers see only teams of their own role.
func (l *Ledger) BuildFlatView(viewer Role, f Filter) []FlatRow {
	rows := []FlatRow{}
	elevated := l.IsElevated(viewer)

	for _, t := range l.teams {
		if !elevated && t.Role != viewer {
			continue
		}
		if f.TeamID != "" && t.ID != f.TeamID {
			continue
		}
		managed := l.managedSite(t.ID)
		if f.SiteID != "" && (managed == nil || managed.ID != f.SiteID) {
			continue
		}
		for _, a := range t.Allocations {
			if !f.queryMatches(t.Name, string(t.Role), a.Name) {
				continue
			}
			row := FlatRow{
				TeamID:         t.ID,
				TeamName:       t.Name,
				Role:           t.Role,
				MaterialName:   a.Name,
				UnitsAllocated: a.UnitsAllocated,
				UnitsUsed:      a.UnitsUsed,
				Remaining:      a.Remaining(),
				Overdrawn:      a.Overdrawn(),
			}
			if managed != nil {
				row.ManagedSiteID = managed.ID
				row.ManagedSiteName = managed.Name
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// =============================================================================
// SUMMARY VIEW
// =============================================================================

// MaterialLine is one material's balance triple inside a summary group.
type MaterialLine struct {
	Name      string          `json:"name"`
	Opening   decimal.Decimal `json:"opening"`
	Used      decimal.Decimal `json:"used"`
	Remaining decimal.Decimal `json:"remaining"`
	Overdrawn bool            `json:"overdrawn"`
}

// TeamSummary is one team's group in the summary view. Materials is empty,
// not nil-dropped, for teams holding nothing.
type TeamSummary struct {
	TeamID    string         `json:"teamId"`
	TeamName  string         `json:"teamName"`
	Role      Role           `json:"role"`
	Materials []MaterialLine `json:"materials"`
}

// BuildSummaryView groups allocations by team. A query that matches the team
// itself keeps the whole group; a query that matches only some materials
// narrows the group to those materials.
func (l *Ledger) BuildSummaryView(f Filter) []TeamSummary {
	groups := []TeamSummary{}

	for _, t := range l.teams {
		if f.TeamID != "" && t.ID != f.TeamID {
			continue
		}
		if f.SiteID != "" {
			managed := l.managedSite(t.ID)
			if managed == nil || managed.ID != f.SiteID {
				continue
			}
		}

		teamMatch := f.Query == "" || f.queryMatches(t.Name, string(t.Role))
		g := TeamSummary{TeamID: t.ID, TeamName: t.Name, Role: t.Role, Materials: []MaterialLine{}}
		for _, a := range t.Allocations {
			if !teamMatch && !f.queryMatches(a.Name) {
				continue
			}
			g.Materials = append(g.Materials, MaterialLine{
				Name:      a.Name,
				Opening:   a.UnitsAllocated,
				Used:      a.UnitsUsed,
				Remaining: a.Remaining(),
				Overdrawn: a.Overdrawn(),
			})
		}
		if !teamMatch && len(g.Materials) == 0 {
			continue
		}
		groups = append(groups, g)
	}
	return groups
}

// =============================================================================
// DETAILED VIEW
// =============================================================================

// SiteMaterialsLabel names site-scoped groups whose site has no manager.
const SiteMaterialsLabel = "Site Materials"

// DetailGroup is one (owner, material) group with its matching usage-log
// entries. For team groups entries match on team name + material; for site
// groups on site name + material. TotalLogged re-sums the entries and may
// differ from Used after a direct counter edit.
type DetailGroup struct {
	Owner        OwnerRef        `json:"owner"`
	Label        string          `json:"label"`
	SiteName     string          `json:"siteName,omitempty"`
	MaterialName string          `json:"materialName"`
	Opening      decimal.Decimal `json:"opening"`
	Used         decimal.Decimal `json:"used"`
	Remaining    decimal.Decimal `json:"remaining"`
	TotalLogged  decimal.Decimal `json:"totalLogged"`
	Entries      []UsageLogEntry `json:"entries"`
}

// BuildDetailedView returns team groups in team order followed by synthetic
// site groups for every site holding pre-staged materials. Entry order
// within a group is usage-log insertion order.
func (l *Ledger) BuildDetailedView(f Filter) []DetailGroup {
	groups := []DetailGroup{}

	var siteName string
	if f.SiteID != "" {
		if s := l.findSite(f.SiteID); s != nil {
			siteName = s.Name
		}
	}

	for _, t := range l.teams {
		if f.TeamID != "" && t.ID != f.TeamID {
			continue
		}
		for _, a := range t.Allocations {
			if !f.queryMatches(t.Name, string(t.Role), a.Name) {
				continue
			}
			entries := l.matchEntries(func(e UsageLogEntry) bool {
				if e.TeamName != t.Name || e.MaterialName != a.Name {
					return false
				}
				return f.SiteID == "" || e.SiteName == siteName
			})
			// A site filter narrows team groups to those that actually
			// consumed at the site.
			if f.SiteID != "" && len(entries) == 0 {
				continue
			}
			groups = append(groups, DetailGroup{
				Owner:        TeamOwner(t.ID),
				Label:        t.Name,
				MaterialName: a.Name,
				Opening:      a.UnitsAllocated,
				Used:         a.UnitsUsed,
				Remaining:    a.Remaining(),
				TotalLogged:  sumQuantities(entries),
				Entries:      entries,
			})
		}
	}

	for _, s := range l.sites {
		if len(s.Allocations) == 0 {
			continue
		}
		if f.SiteID != "" && s.ID != f.SiteID {
			continue
		}
		if f.TeamID != "" && s.ManagerTeamID != f.TeamID {
			continue
		}
		label := SiteMaterialsLabel
		var managerRole Role
		if mgr := l.findTeam(s.ManagerTeamID); mgr != nil {
			label = mgr.Name
			managerRole = mgr.Role
		}
		for _, a := range s.Allocations {
			if !f.queryMatches(s.Name, label, string(managerRole), a.Name) {
				continue
			}
			entries := l.matchEntries(func(e UsageLogEntry) bool {
				return e.SiteName == s.Name && e.MaterialName == a.Name
			})
			groups = append(groups, DetailGroup{
				Owner:        SiteOwner(s.ID),
				Label:        label,
				SiteName:     s.Name,
				MaterialName: a.Name,
				Opening:      a.UnitsAllocated,
				Used:         a.UnitsUsed,
				Remaining:    a.Remaining(),
				TotalLogged:  sumQuantities(entries),
				Entries:      entries,
			})
		}
	}
	return groups
}

// =============================================================================
// HELPERS
// =============================================================================

// managedSite returns the first site managed by the team, in site order.
func (l *Ledger) managedSite(teamID string) *Site {
	for i := range l.sites {
		if l.sites[i].ManagerTeamID == teamID {
			return &l.sites[i]
		}
	}
	return nil
}

func (l *Ledger) matchEntries(keep func(UsageLogEntry) bool) []UsageLogEntry {
	entries := []UsageLogEntry{}
	for _, e := range l.usage {
		if keep(e) {
			entries = append(entries, e)
		}
	}
	return entries
}

func sumQuantities(entries []UsageLogEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.QuantityUsed)
	}
	return total
}
