/*
scenarios.go - Demo data loaders

PURPOSE:
  Seeds the portal with recognizable demo data so a fresh checkout has
  something to click through. Dev only: loading a scenario replaces the
  owner collections, but the usage log is append-only, so entries from
  earlier loads remain in the audit trail. Use a fresh database for a
  clean slate.
*/
package api

import (
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/fieldstone/inventory-engine/ledger"
)

// ScenarioDTO describes one loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects the scenario to load.
type LoadScenarioRequest struct {
	ID string `json:"id" validate:"required"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "fresh-fleet",
		Name:        "Fresh fleet",
		Description: "Three teams and two sites, no stock assigned yet",
	},
	{
		ID:          "mid-cycle",
		Name:        "Mid cycle",
		Description: "Opening balances assigned, several usage events logged, one overdraw",
	},
}

// ListScenarios returns the available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario resets the owner collections and seeds the selected scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeAndValidate(h, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.store.ReplaceTeams(ctx, demoTeams()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed teams", err)
		return
	}
	if err := h.store.ReplaceSites(ctx, demoSites()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed sites", err)
		return
	}
	if err := h.led.Refresh(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to refresh working set", err)
		return
	}

	if req.ID == "mid-cycle" {
		if err := h.seedMidCycle(r); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to seed mid-cycle data", err)
			return
		}
	} else if req.ID != "fresh-fleet" {
		writeError(w, http.StatusNotFound, "Unknown scenario", nil)
		return
	}

	h.log.WithFields(logrus.Fields{"op": "load_scenario", "scenario": req.ID}).
		Info("demo scenario loaded")
	w.WriteHeader(http.StatusNoContent)
}

func demoTeams() []ledger.Team {
	return []ledger.Team{
		{ID: "team-civil-a", Name: "Civil-A", Role: ledger.RoleCivil},
		{ID: "team-civil-b", Name: "Civil-B", Role: ledger.RoleCivil},
		{ID: "team-elec-a", Name: "Electrical-A", Role: ledger.RoleElectrical},
	}
}

func demoSites() []ledger.Site {
	return []ledger.Site{
		{ID: "site-riverside", Name: "Riverside Substation", ManagerTeamID: "team-elec-a"},
		{ID: "site-hillview", Name: "Hillview Depot"},
	}
}

// seedMidCycle assigns opening balances and replays a few usage events
// through the ledger so the demo exercises the real write path.
func (h *Handler) seedMidCycle(r *http.Request) error {
	ctx := r.Context()
	qty := func(s string) decimal.Decimal { d, _ := decimal.NewFromString(s); return d }

	if err := h.led.SetOpeningBalance(ctx, "team-civil-a", []ledger.OpeningBalance{
		{Name: "Cement OPC-53", Amount: qty("200")},
		{Name: "TMT Bar 12mm", Amount: qty("500")},
	}); err != nil {
		return err
	}
	if err := h.led.SetOpeningBalance(ctx, "team-elec-a", []ledger.OpeningBalance{
		{Name: "Cable-95mm", Amount: qty("120")},
		{Name: "GI Strip", Amount: qty("40")},
	}); err != nil {
		return err
	}

	events := []ledger.UsageRequest{
		{SiteID: "site-riverside", ActingTeamID: "team-elec-a", MaterialName: "Cable-95mm", Quantity: qty("35"), Notes: "feeder run"},
		{SiteID: "site-riverside", ActingTeamID: "team-elec-a", MaterialName: "GI Strip", Quantity: qty("42"), Notes: "earthing grid", ConfirmOverdraw: true},
		{SiteID: "site-hillview", ActingTeamID: "team-civil-a", MaterialName: "Cement OPC-53", Quantity: qty("60"), Notes: "footing pour"},
	}
	for _, ev := range events {
		if _, err := h.led.LogUsage(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}
