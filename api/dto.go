/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures of the portal API, decoupled from the ledger's internal
  model. Request structs carry validator tags; handlers run the validator
  before touching the ledger, and the ledger's own validation remains
  authoritative behind it.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/fieldstone/inventory-engine/ledger"
)

// =============================================================================
// OWNER TYPES
// =============================================================================

// TeamDTO represents a team in API responses.
type TeamDTO struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Role        string          `json:"role"`
	Allocations []AllocationDTO `json:"allocations"`
}

// SiteDTO represents a site in API responses.
type SiteDTO struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	ManagerTeamID string          `json:"managerTeamId,omitempty"`
	Allocations   []AllocationDTO `json:"allocations"`
}

// AllocationDTO is one stock lot with its derived remaining balance.
type AllocationDTO struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	UnitsAllocated decimal.Decimal `json:"unitsAllocated"`
	UnitsUsed      decimal.Decimal `json:"unitsUsed"`
	Remaining      decimal.Decimal `json:"remaining"`
	Overdrawn      bool            `json:"overdrawn"`
}

// SaveTeamRequest creates or updates a team record.
type SaveTeamRequest struct {
	ID   string `json:"id"`
	Name string `json:"name" validate:"required"`
	Role string `json:"role" validate:"required"`
}

// SaveSiteRequest creates or updates a site record.
type SaveSiteRequest struct {
	ID            string `json:"id"`
	Name          string `json:"name" validate:"required"`
	ManagerTeamID string `json:"managerTeamId"`
}

// =============================================================================
// LEDGER OPERATIONS
// =============================================================================

// OpeningBalanceRequest assigns a team's opening-balance batch.
type OpeningBalanceRequest struct {
	Items []OpeningBalanceItem `json:"items" validate:"required,min=1,dive"`
}

type OpeningBalanceItem struct {
	Name   string          `json:"name" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
}

// LogUsageRequest applies one consumption event. The acting team comes from
// the X-Actor-Team header, not the body.
type LogUsageRequest struct {
	SiteID               string          `json:"siteId" validate:"required"`
	MaterialName         string          `json:"materialName" validate:"required"`
	Quantity             decimal.Decimal `json:"quantity"`
	Notes                string          `json:"notes"`
	IdempotencyKey       string          `json:"idempotencyKey"`
	ConfirmNewAllocation bool            `json:"confirmNewAllocation"`
	ConfirmOverdraw      bool            `json:"confirmOverdraw"`
}

// UsageLogDTO is one audit entry in API responses.
type UsageLogDTO struct {
	ID           string          `json:"id"`
	TeamID       string          `json:"teamId"`
	TeamName     string          `json:"teamName"`
	SiteID       string          `json:"siteId"`
	SiteName     string          `json:"siteName"`
	MaterialName string          `json:"materialName"`
	QuantityUsed decimal.Decimal `json:"quantityUsed"`
	Timestamp    string          `json:"timestamp"`
	Notes        string          `json:"notes,omitempty"`
}

// PreflightDTO answers the owner-resolution pre-flight query: which
// allocation would absorb the event and whether it would overdraw.
type PreflightDTO struct {
	Owner         *OwnerMatchDTO `json:"owner"`
	WouldOverdraw bool           `json:"wouldOverdraw"`
}

type OwnerMatchDTO struct {
	TeamID     string        `json:"teamId"`
	TeamName   string        `json:"teamName"`
	Allocation AllocationDTO `json:"allocation"`
}

// =============================================================================
// PRIVILEGED ALLOCATION EDITS
// =============================================================================

// AddAllocationRequest adds a lot to an owner's list.
type AddAllocationRequest struct {
	OwnerType string          `json:"ownerType" validate:"required,oneof=team site"`
	OwnerID   string          `json:"ownerId" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Used      decimal.Decimal `json:"used"`
}

// EditAllocationUsedRequest sets a lot's used counter directly.
type EditAllocationUsedRequest struct {
	OwnerType string          `json:"ownerType" validate:"required,oneof=team site"`
	OwnerID   string          `json:"ownerId" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	Used      decimal.Decimal `json:"used"`
}

// =============================================================================
// COMMON
// =============================================================================

// ErrorResponse is the uniform error payload. PartialFailure marks responses
// where state may be inconsistent and manual reconciliation may be needed.
type ErrorResponse struct {
	Error          string `json:"error"`
	Details        string `json:"details,omitempty"`
	PartialFailure bool   `json:"partialFailure,omitempty"`
}

func toAllocationDTO(a ledger.MaterialAllocation) AllocationDTO {
	return AllocationDTO{
		ID:             a.ID,
		Name:           a.Name,
		UnitsAllocated: a.UnitsAllocated,
		UnitsUsed:      a.UnitsUsed,
		Remaining:      a.Remaining(),
		Overdrawn:      a.Overdrawn(),
	}
}

func toAllocationDTOs(in []ledger.MaterialAllocation) []AllocationDTO {
	out := make([]AllocationDTO, len(in))
	for i, a := range in {
		out[i] = toAllocationDTO(a)
	}
	return out
}

func toTeamDTO(t ledger.Team) TeamDTO {
	return TeamDTO{
		ID:          t.ID,
		Name:        t.Name,
		Role:        string(t.Role),
		Allocations: toAllocationDTOs(t.Allocations),
	}
}

func toSiteDTO(s ledger.Site) SiteDTO {
	return SiteDTO{
		ID:            s.ID,
		Name:          s.Name,
		ManagerTeamID: s.ManagerTeamID,
		Allocations:   toAllocationDTOs(s.Allocations),
	}
}
