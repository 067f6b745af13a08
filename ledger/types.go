/*
Package ledger provides the material inventory ledger for the back-office
portal: opening-balance assignment, usage logging, owner resolution, and the
reporting aggregations built on top of them.

PURPOSE:
  Track consumable materials assigned to field teams and pre-staged at job
  sites, record every consumption event against a site, and answer "who holds
  what, and how much is left" for the dashboard and reports.

KEY CONCEPTS IN THIS FILE (types.go):
  - MaterialAllocation: One lot of stock held by an owner (team or site)
  - Team / Site: The two owner shapes, each embedding an allocation list
  - UsageLogEntry: An immutable audit record of one consumption event
  - OwnerRef: Tagged reference to whichever kind of owner holds a lot

DESIGN PRINCIPLES:
  1. Precision: All quantities are decimal.Decimal, never float64
  2. Two truths: The allocation's used counter is authoritative and mutable;
     the usage log is a pure append-only audit trail. They are allowed to
     diverge after a direct operator edit and are never reconciled silently.
  3. Write-once log: UsageLogEntry is never mutated or deleted
  4. Explicit ownership: Owner kind is a tag, not two parallel record shapes

SEE ALSO:
  - catalog.go: Recognized material names
  - ledger.go: Mutating operations over the working set
  - views.go: Read-only reporting aggregations
*/
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ROLES
// =============================================================================

// Role is a team's trade discipline, also used as the actor's privilege tier.
type Role string

const (
	RoleCivil      Role = "civil"
	RoleElectrical Role = "electrical"
	RoleMechanical Role = "mechanical"
	RoleTransport  Role = "transport"
	RoleAdmin      Role = "admin"
	RoleDirector   Role = "director"
)

// DefaultElevatedRoles are the roles allowed to run direct allocation edits
// and to see every team's rows in the flat dashboard view.
func DefaultElevatedRoles() []Role {
	return []Role{RoleAdmin, RoleDirector}
}

// =============================================================================
// QUANTITIES
// =============================================================================

// ParseQuantity parses a decimal quantity from its string form.
// Returns a ValidationError for anything that is not a number.
func ParseQuantity(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, &ValidationError{
			Field:   "quantity",
			Message: fmt.Sprintf("%q is not a number", s),
		}
	}
	return d, nil
}

// =============================================================================
// MATERIAL ALLOCATION - One lot of stock held by an owner
// =============================================================================

// MaterialAllocation is one row of stock assigned to a team or a site.
//
// INVARIANTS:
//   - Name is unique within one owner's allocation list
//   - UnitsAllocated and UnitsUsed are non-negative at creation
//   - UnitsUsed only moves through usage application or a privileged
//     direct edit; it is never recomputed from the usage log
type MaterialAllocation struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	UnitsAllocated decimal.Decimal `json:"unitsAllocated"`
	UnitsUsed      decimal.Decimal `json:"unitsUsed"`
}

// Remaining is allocated minus used. Negative remaining is legal (overdraw
// confirmed by an operator) and is flagged, not rejected.
func (a MaterialAllocation) Remaining() decimal.Decimal {
	return a.UnitsAllocated.Sub(a.UnitsUsed)
}

// Overdrawn reports whether the lot has been consumed past its opening balance.
func (a MaterialAllocation) Overdrawn() bool {
	return a.Remaining().IsNegative()
}

func newAllocation(name string, allocated, used decimal.Decimal) MaterialAllocation {
	return MaterialAllocation{
		ID:             uuid.NewString(),
		Name:           name,
		UnitsAllocated: allocated,
		UnitsUsed:      used,
	}
}

// =============================================================================
// OWNERS - Teams and sites, each with an embedded allocation list
// =============================================================================

// Team is a field crew. The ledger consumes teams, it does not own their
// lifecycle; only the embedded allocation list is ledger-managed.
type Team struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Role        Role                 `json:"role"`
	Allocations []MaterialAllocation `json:"allocations"`
}

// Site is a job site. Its allocation list holds materials pre-staged at the
// site before any team claims them. ManagerTeamID is an ownership hint used
// only for report grouping, never for stock accounting.
type Site struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	ManagerTeamID string               `json:"managerTeamId,omitempty"`
	Allocations   []MaterialAllocation `json:"allocations"`
}

// OwnerKind tags which shape of owner an OwnerRef points at.
type OwnerKind string

const (
	OwnerTeam OwnerKind = "team"
	OwnerSite OwnerKind = "site"
)

// OwnerRef identifies one allocation owner.
type OwnerRef struct {
	Kind OwnerKind `json:"kind"`
	ID   string    `json:"id"`
}

func TeamOwner(id string) OwnerRef { return OwnerRef{Kind: OwnerTeam, ID: id} }
func SiteOwner(id string) OwnerRef { return OwnerRef{Kind: OwnerSite, ID: id} }

func (o OwnerRef) String() string { return string(o.Kind) + ":" + o.ID }

// =============================================================================
// USAGE LOG ENTRY - Immutable audit record of one consumption event
// =============================================================================

// UsageLogEntry records one consumption event. Write-once: never mutated or
// deleted by the ledger. Team and site names are denormalized snapshots taken
// at logging time, not live joins.
type UsageLogEntry struct {
	ID             string          `json:"id"`
	TeamID         string          `json:"teamId"`
	TeamName       string          `json:"teamName"`
	SiteID         string          `json:"siteId"`
	SiteName       string          `json:"siteName"`
	MaterialName   string          `json:"materialName"`
	QuantityUsed   decimal.Decimal `json:"quantityUsed"`
	Timestamp      time.Time       `json:"timestamp"`
	Notes          string          `json:"notes,omitempty"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
}

// newUsageLogID mints a time-based id with a random suffix so two entries
// created in the same instant cannot collide.
func newUsageLogID(now time.Time) string {
	return fmt.Sprintf("ul-%d-%s", now.UnixNano(), uuid.NewString()[:8])
}

// =============================================================================
// OPENING BALANCES
// =============================================================================

// OpeningBalance is one (material, amount) pair of an opening-balance batch.
type OpeningBalance struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}
