/*
handlers.go - HTTP handlers for the back-office portal

PURPOSE:
  Exposes the inventory ledger and owner record-keeping over REST. Handlers
  parse and validate input, delegate to the ledger, and map ledger errors to
  HTTP statuses.

ACTOR IDENTITY:
  Authentication is an external collaborator. The trusted frontend forwards
  the signed-in operator's team and role as headers:
    X-Actor-Team  acting team id (usage logging)
    X-Actor-Role  role (report visibility, privileged edits)

ERROR MAPPING:
  Validation            400
  ConfirmationRequired  409 (operator prompt not yet confirmed)
  DuplicateIdempotency  409
  Authorization         403
  NotFound              404
  PartialFailure        502 with partialFailure:true - state may be
                        inconsistent, the operator must be warned
  StoreFailure / other  500

CONCURRENCY:
  The ledger is single-writer; the handler serializes every ledger call
  behind one mutex. Fine for a handful of concurrent operators.

SEE ALSO:
  - dto.go: Request/response shapes
  - server.go: Router and middleware
  - scenarios.go: Demo data loaders
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/fieldstone/inventory-engine/ledger"
)

// OwnerStore is the persistence surface the portal needs: the ledger's
// record store plus conventional team/site record-keeping.
type OwnerStore interface {
	ledger.RecordStore

	SaveTeam(ctx context.Context, t ledger.Team) error
	DeleteTeam(ctx context.Context, id string) error
	SaveSite(ctx context.Context, s ledger.Site) error
	DeleteSite(ctx context.Context, id string) error
}

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	mu       sync.Mutex
	store    OwnerStore
	led      *ledger.Ledger
	catalog  *ledger.Catalog
	validate *validator.Validate
	log      logrus.FieldLogger
}

// NewHandler wires the portal handlers around one ledger session.
func NewHandler(store OwnerStore, led *ledger.Ledger, catalog *ledger.Catalog) *Handler {
	return &Handler{
		store:    store,
		led:      led,
		catalog:  catalog,
		validate: validator.New(),
		log:      logrus.StandardLogger(),
	}
}

func actorRole(r *http.Request) ledger.Role {
	return ledger.Role(r.Header.Get("X-Actor-Role"))
}

func actorTeam(r *http.Request) string {
	return r.Header.Get("X-Actor-Team")
}

// =============================================================================
// CATALOG
// =============================================================================

// ListCatalog returns the recognized material names in catalog order.
func (h *Handler) ListCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.List())
}

// =============================================================================
// TEAM HANDLERS
// =============================================================================

func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	teams := h.led.Teams()
	h.mu.Unlock()

	dtos := make([]TeamDTO, len(teams))
	for i, t := range teams {
		dtos[i] = toTeamDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetTeam(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	team, ok := h.led.Team(chi.URLParam(r, "id"))
	h.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Team not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toTeamDTO(team))
}

// SaveTeam creates a team (POST, id minted) or updates one (PUT /{id}).
// The allocation list is ledger-managed and survives record updates.
func (h *Handler) SaveTeam(w http.ResponseWriter, r *http.Request) {
	var req SaveTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if id := chi.URLParam(r, "id"); id != "" {
		req.ID = id
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid team", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	status := http.StatusOK
	t := ledger.Team{ID: req.ID, Name: req.Name, Role: ledger.Role(req.Role)}
	if existing, ok := h.led.Team(req.ID); ok {
		t.Allocations = existing.Allocations
	} else {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		status = http.StatusCreated
	}

	if err := h.store.SaveTeam(r.Context(), t); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save team", err)
		return
	}
	if err := h.led.Refresh(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to refresh working set", err)
		return
	}
	writeJSON(w, status, toTeamDTO(t))
}

func (h *Handler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := chi.URLParam(r, "id")
	if _, ok := h.led.Team(id); !ok {
		writeError(w, http.StatusNotFound, "Team not found", nil)
		return
	}
	if err := h.store.DeleteTeam(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete team", err)
		return
	}
	if err := h.led.Refresh(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to refresh working set", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SITE HANDLERS
// =============================================================================

func (h *Handler) ListSites(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	sites := h.led.Sites()
	h.mu.Unlock()

	dtos := make([]SiteDTO, len(sites))
	for i, s := range sites {
		dtos[i] = toSiteDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetSite(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	site, ok := h.led.Site(chi.URLParam(r, "id"))
	h.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Site not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toSiteDTO(site))
}

func (h *Handler) SaveSite(w http.ResponseWriter, r *http.Request) {
	var req SaveSiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if id := chi.URLParam(r, "id"); id != "" {
		req.ID = id
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid site", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	status := http.StatusOK
	s := ledger.Site{ID: req.ID, Name: req.Name, ManagerTeamID: req.ManagerTeamID}
	if existing, ok := h.led.Site(req.ID); ok {
		s.Allocations = existing.Allocations
	} else {
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		status = http.StatusCreated
	}

	if err := h.store.SaveSite(r.Context(), s); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save site", err)
		return
	}
	if err := h.led.Refresh(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to refresh working set", err)
		return
	}
	writeJSON(w, status, toSiteDTO(s))
}

func (h *Handler) DeleteSite(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := chi.URLParam(r, "id")
	if _, ok := h.led.Site(id); !ok {
		writeError(w, http.StatusNotFound, "Site not found", nil)
		return
	}
	if err := h.store.DeleteSite(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete site", err)
		return
	}
	if err := h.led.Refresh(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to refresh working set", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// OPENING BALANCE
// =============================================================================

func (h *Handler) SetOpeningBalance(w http.ResponseWriter, r *http.Request) {
	var req OpeningBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid opening balance", err)
		return
	}

	batch := make([]ledger.OpeningBalance, len(req.Items))
	for i, item := range req.Items {
		batch[i] = ledger.OpeningBalance{Name: item.Name, Amount: item.Amount}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	teamID := chi.URLParam(r, "id")
	if err := h.led.SetOpeningBalance(r.Context(), teamID, batch); err != nil {
		writeLedgerError(w, err)
		return
	}
	team, _ := h.led.Team(teamID)
	writeJSON(w, http.StatusOK, toTeamDTO(team))
}

// =============================================================================
// USAGE
// =============================================================================

// PreflightUsage answers the confirmation-prompt queries before LogUsage:
// which allocation would absorb the event, and would it overdraw.
func (h *Handler) PreflightUsage(w http.ResponseWriter, r *http.Request) {
	material := r.URL.Query().Get("material")
	if material == "" {
		writeError(w, http.StatusBadRequest, "material query parameter is required", nil)
		return
	}

	qty := decimal.Zero
	if raw := r.URL.Query().Get("quantity"); raw != "" {
		parsed, err := ledger.ParseQuantity(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "quantity must be a number", err)
			return
		}
		qty = parsed
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	match, err := h.led.FindOwner(material, actorTeam(r))
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	resp := PreflightDTO{WouldOverdraw: h.led.WouldOverdraw(match, qty)}
	if match != nil {
		resp.Owner = &OwnerMatchDTO{
			TeamID:     match.TeamID,
			TeamName:   match.TeamName,
			Allocation: toAllocationDTO(match.Allocation),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) LogUsage(w http.ResponseWriter, r *http.Request) {
	var req LogUsageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid usage event", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	entry, err := h.led.LogUsage(r.Context(), ledger.UsageRequest{
		SiteID:               req.SiteID,
		ActingTeamID:         actorTeam(r),
		MaterialName:         req.MaterialName,
		Quantity:             req.Quantity,
		Notes:                req.Notes,
		IdempotencyKey:       req.IdempotencyKey,
		ConfirmNewAllocation: req.ConfirmNewAllocation,
		ConfirmOverdraw:      req.ConfirmOverdraw,
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUsageLogDTO(*entry))
}

func (h *Handler) ListUsage(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	entries := h.led.UsageLog()
	h.mu.Unlock()

	dtos := make([]UsageLogDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toUsageLogDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// REPORTS
// =============================================================================

func reportFilter(r *http.Request) ledger.Filter {
	q := r.URL.Query()
	return ledger.Filter{
		Query:  q.Get("q"),
		TeamID: q.Get("team"),
		SiteID: q.Get("site"),
	}
}

func (h *Handler) FlatReport(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	rows := h.led.BuildFlatView(actorRole(r), reportFilter(r))
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) SummaryReport(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	groups := h.led.BuildSummaryView(reportFilter(r))
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, groups)
}

func (h *Handler) DetailedReport(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	groups := h.led.BuildDetailedView(reportFilter(r))
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, groups)
}

// =============================================================================
// PRIVILEGED ALLOCATION EDITS
// =============================================================================

func ownerRef(ownerType, ownerID string) ledger.OwnerRef {
	return ledger.OwnerRef{Kind: ledger.OwnerKind(ownerType), ID: ownerID}
}

func (h *Handler) AddAllocation(w http.ResponseWriter, r *http.Request) {
	var req AddAllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid allocation", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	err := h.led.AddAllocation(r.Context(), actorRole(r),
		ownerRef(req.OwnerType, req.OwnerID), req.Name, req.Amount, req.Used)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) EditAllocationUsed(w http.ResponseWriter, r *http.Request) {
	var req EditAllocationUsedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid edit", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	err := h.led.EditAllocationUsed(r.Context(), actorRole(r),
		ownerRef(req.OwnerType, req.OwnerID), req.Name, req.Used)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RemoveAllocation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ownerType, ownerID, name := q.Get("ownerType"), q.Get("ownerId"), q.Get("name")
	if ownerType == "" || ownerID == "" || name == "" {
		writeError(w, http.StatusBadRequest, "ownerType, ownerId and name query parameters are required", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.led.RemoveAllocation(r.Context(), actorRole(r), ownerRef(ownerType, ownerID), name); err != nil {
		writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func toUsageLogDTO(e ledger.UsageLogEntry) UsageLogDTO {
	return UsageLogDTO{
		ID:           e.ID,
		TeamID:       e.TeamID,
		TeamName:     e.TeamName,
		SiteID:       e.SiteID,
		SiteName:     e.SiteName,
		MaterialName: e.MaterialName,
		QuantityUsed: e.QuantityUsed,
		Timestamp:    e.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		Notes:        e.Notes,
	}
}

func decodeAndValidate(h *Handler, r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeLedgerError maps the ledger's error taxonomy onto HTTP statuses.
func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, ledger.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, ledger.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, ledger.ErrDuplicateIdempotencyKey):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, ledger.ErrConfirmationRequired):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, ledger.ErrPartialFailure):
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:          err.Error(),
			PartialFailure: true,
		})
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
