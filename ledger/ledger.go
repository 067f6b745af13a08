/*
ledger.go - Mutating operations over the inventory working set

PURPOSE:
  The Ledger is the single writer for the session. It loads all three
  collections into memory at Open, applies every mutation to that working
  set, and writes through to the record store after each successful
  mutation. Reads (views.go) are served from the working set.

OPERATIONS:
  SetOpeningBalance - replace-merge a team's allocation plan
  FindOwner         - pre-flight: which allocation would absorb a usage event
  WouldOverdraw     - pre-flight: would the event exceed remaining stock
  LogUsage          - apply a consumption event (counter + audit entry)
  EditAllocationUsed, AddAllocation, RemoveAllocation - privileged edits

CONCURRENCY CONTRACT:
  One Ledger per interactive session, one writer at a time. The Ledger has
  no internal locking; callers that share one instance across goroutines
  (the HTTP handler does) must serialize access themselves. Owner-collection
  writes are whole-list replaces, so two sessions editing the same owner are
  last-writer-wins on the entire list.

FAILURE CONTRACT:
  Usage application issues two writes (team replace, then log append). If
  the append fails after the replace landed, the operation returns a
  PartialFailureError and rolls the working set back, so memory carries no
  half-applied event; the store, however, may now hold the counter increment
  without its log entry, and the operator must be warned.

SEE ALSO:
  - store.go: Record-store contract
  - resolution.go: Owner resolution strategies
  - views.go: Read-only reporting
*/
package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// LEDGER - Session working set plus write-through persistence
// =============================================================================

type Ledger struct {
	store    RecordStore
	resolve  ResolveOwner
	elevated map[Role]struct{}
	now      func() time.Time
	log      logrus.FieldLogger

	teams []Team
	sites []Site
	usage []UsageLogEntry
	idem  map[string]struct{}
}

type Option func(*Ledger)

// WithResolver swaps the owner-resolution strategy.
func WithResolver(r ResolveOwner) Option {
	return func(l *Ledger) { l.resolve = r }
}

// WithElevatedRoles replaces the role set allowed to run privileged edits.
func WithElevatedRoles(roles []Role) Option {
	return func(l *Ledger) {
		l.elevated = make(map[Role]struct{}, len(roles))
		for _, r := range roles {
			l.elevated[r] = struct{}{}
		}
	}
}

// WithClock overrides the timestamp source (tests).
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLogger sets the structured logger for ledger operations.
func WithLogger(log logrus.FieldLogger) Option {
	return func(l *Ledger) { l.log = log }
}

// Open loads all three collections from the store into a fresh working set.
// Call once per session.
func Open(ctx context.Context, store RecordStore, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		store:   store,
		resolve: RolePreferred,
		now:     time.Now,
		log:     logrus.StandardLogger(),
		idem:    make(map[string]struct{}),
	}
	WithElevatedRoles(DefaultElevatedRoles())(l)
	for _, opt := range opts {
		opt(l)
	}

	if err := l.Refresh(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// Refresh reloads all three collections from the store, discarding the
// current working set. Call after out-of-band record edits (team or site
// CRUD) so the session cache picks them up.
func (l *Ledger) Refresh(ctx context.Context) error {
	teams, err := l.store.LoadTeams(ctx)
	if err != nil {
		return &StoreError{Collection: "teams", Op: "load", Cause: err}
	}
	sites, err := l.store.LoadSites(ctx)
	if err != nil {
		return &StoreError{Collection: "sites", Op: "load", Cause: err}
	}
	usage, err := l.store.LoadUsageLog(ctx)
	if err != nil {
		return &StoreError{Collection: "usage_logs", Op: "load", Cause: err}
	}
	l.teams = teams
	l.sites = sites
	l.usage = usage
	l.idem = make(map[string]struct{}, len(usage))
	for _, e := range usage {
		if e.IdempotencyKey != "" {
			l.idem[e.IdempotencyKey] = struct{}{}
		}
	}
	return nil
}

// =============================================================================
// OPENING BALANCE ASSIGNMENT
// =============================================================================

// SetOpeningBalance merges an opening-balance batch into a team's allocation
// list. Validation is all-or-nothing: one bad pair rejects the whole batch
// before any state changes.
//
// Merge rule: a batch entry REPLACES any existing allocation of the same
// name outright - fresh id, new opening balance, used counter reset to zero.
// Opening balances set the plan for the cycle; they do not top up stock.
// Existing allocations not named in the batch are kept unchanged. Duplicate
// names within the batch keep the first occurrence.
func (l *Ledger) SetOpeningBalance(ctx context.Context, teamID string, batch []OpeningBalance) error {
	team := l.findTeam(teamID)
	if team == nil {
		return &NotFoundError{Kind: "team", ID: teamID}
	}

	for _, ob := range batch {
		if strings.TrimSpace(ob.Name) == "" {
			return &ValidationError{Field: "name", Message: "material name is required"}
		}
		if ob.Amount.IsNegative() {
			return &ValidationError{Field: "amount", Message: "opening balance for " + ob.Name + " must be non-negative"}
		}
	}

	incoming := make([]OpeningBalance, 0, len(batch))
	seen := make(map[string]struct{}, len(batch))
	for _, ob := range batch {
		if _, dup := seen[ob.Name]; dup {
			continue
		}
		seen[ob.Name] = struct{}{}
		incoming = append(incoming, ob)
	}

	prev := copyAllocations(team.Allocations)

	// Replace in place so report ordering stays stable, append new names.
	for _, ob := range incoming {
		done := false
		for i := range team.Allocations {
			if team.Allocations[i].Name == ob.Name {
				team.Allocations[i] = newAllocation(ob.Name, ob.Amount, decimal.Zero)
				done = true
				break
			}
		}
		if !done {
			team.Allocations = append(team.Allocations, newAllocation(ob.Name, ob.Amount, decimal.Zero))
		}
	}

	if err := l.persistTeams(ctx); err != nil {
		team.Allocations = prev
		return err
	}

	l.log.WithFields(logrus.Fields{
		"op":        "set_opening_balance",
		"team":      team.Name,
		"materials": len(incoming),
	}).Info("opening balance assigned")
	return nil
}

// =============================================================================
// OWNER RESOLUTION PRE-FLIGHT
// =============================================================================

// FindOwner runs the resolution strategy for a material on behalf of the
// acting team. A nil match with nil error means no owner exists anywhere;
// the caller should then prompt for confirmation before LogUsage creates a
// new allocation under the acting team.
func (l *Ledger) FindOwner(material, actingTeamID string) (*OwnerMatch, error) {
	acting := l.findTeam(actingTeamID)
	if acting == nil {
		return nil, &NotFoundError{Kind: "team", ID: actingTeamID}
	}
	return l.resolve(l.teams, material, acting), nil
}

// WouldOverdraw reports whether consuming qty from the matched allocation
// would push it below zero remaining. Callers use this to drive the
// overdraw confirmation prompt before LogUsage.
func (l *Ledger) WouldOverdraw(m *OwnerMatch, qty decimal.Decimal) bool {
	return m != nil && m.Allocation.Remaining().LessThan(qty)
}

// =============================================================================
// USAGE APPLICATION
// =============================================================================

// UsageRequest is one consumption event to apply.
//
// ConfirmNewAllocation and ConfirmOverdraw record that the orchestrating
// caller has already walked the operator through the corresponding prompt
// (driven by FindOwner / WouldOverdraw). LogUsage refuses to take either
// path unconfirmed. IdempotencyKey, when set, de-duplicates retries.
type UsageRequest struct {
	SiteID       string
	ActingTeamID string
	MaterialName string
	Quantity     decimal.Decimal
	Notes        string

	IdempotencyKey       string
	ConfirmNewAllocation bool
	ConfirmOverdraw      bool
}

// LogUsage applies a consumption event: resolves the absorbing allocation,
// increments its used counter (or creates the allocation when none exists
// anywhere), and appends one usage-log entry. The two writes are one logical
// unit of work; see the failure contract in the package comment.
func (l *Ledger) LogUsage(ctx context.Context, req UsageRequest) (*UsageLogEntry, error) {
	if strings.TrimSpace(req.MaterialName) == "" {
		return nil, &ValidationError{Field: "materialName", Message: "material name is required"}
	}
	if !req.Quantity.IsPositive() {
		return nil, &ValidationError{Field: "quantity", Message: "quantity must be a positive number"}
	}

	site := l.findSite(req.SiteID)
	if site == nil {
		return nil, &NotFoundError{Kind: "site", ID: req.SiteID}
	}
	acting := l.findTeam(req.ActingTeamID)
	if acting == nil {
		return nil, &NotFoundError{Kind: "team", ID: req.ActingTeamID}
	}
	if req.IdempotencyKey != "" {
		if _, dup := l.idem[req.IdempotencyKey]; dup {
			return nil, ErrDuplicateIdempotencyKey
		}
	}

	match := l.resolve(l.teams, req.MaterialName, acting)

	// Owner is whichever team absorbs the draw-down, not necessarily the
	// acting team. The log entry still names the acting team: the audit
	// trail records who consumed, the counter records whose stock moved.
	var ownerTeam *Team
	snapshot := copyTeams(l.teams)

	if match == nil {
		if !req.ConfirmNewAllocation {
			return nil, ErrConfirmationRequired
		}
		// Lot discovered at the moment of first use: opening balance and
		// first consumption land together.
		ownerTeam = acting
		ownerTeam.Allocations = append(ownerTeam.Allocations,
			newAllocation(req.MaterialName, req.Quantity, req.Quantity))
	} else {
		ownerTeam = l.findTeam(match.TeamID)
		alloc := findAllocation(ownerTeam.Allocations, req.MaterialName)
		if alloc.Remaining().LessThan(req.Quantity) && !req.ConfirmOverdraw {
			return nil, &OverdrawError{
				Owner:     TeamOwner(ownerTeam.ID),
				Material:  req.MaterialName,
				Remaining: alloc.Remaining(),
				Requested: req.Quantity,
			}
		}
		alloc.UnitsUsed = alloc.UnitsUsed.Add(req.Quantity)
	}

	if err := l.persistTeams(ctx); err != nil {
		l.teams = snapshot
		return nil, err
	}

	now := l.now()
	entry := UsageLogEntry{
		ID:             newUsageLogID(now),
		TeamID:         acting.ID,
		TeamName:       acting.Name,
		SiteID:         site.ID,
		SiteName:       site.Name,
		MaterialName:   req.MaterialName,
		QuantityUsed:   req.Quantity,
		Timestamp:      now,
		Notes:          req.Notes,
		IdempotencyKey: req.IdempotencyKey,
	}
	if err := l.store.AppendUsage(ctx, entry); err != nil {
		l.teams = snapshot
		return nil, &PartialFailureError{
			Applied: "allocation update",
			Failed:  "usage log append",
			Cause:   err,
		}
	}

	l.usage = append(l.usage, entry)
	if req.IdempotencyKey != "" {
		l.idem[req.IdempotencyKey] = struct{}{}
	}

	l.log.WithFields(logrus.Fields{
		"op":       "log_usage",
		"team":     acting.Name,
		"site":     site.Name,
		"material": req.MaterialName,
		"quantity": req.Quantity.String(),
		"owner":    ownerTeam.Name,
	}).Info("usage logged")
	return &entry, nil
}

// =============================================================================
// DIRECT ALLOCATION EDITS (privileged)
// =============================================================================

// EditAllocationUsed sets an allocation's used counter directly. This is a
// correction to the counter, not a consumption event: no usage-log entry is
// written, and the log will afterwards legitimately disagree with the
// counter for that owner and material.
func (l *Ledger) EditAllocationUsed(ctx context.Context, actor Role, owner OwnerRef, material string, newUsed decimal.Decimal) error {
	if err := l.requireElevated(actor, "edit allocations"); err != nil {
		return err
	}
	if newUsed.IsNegative() {
		return &ValidationError{Field: "unitsUsed", Message: "used counter must be non-negative"}
	}

	allocs, err := l.allocationsFor(owner)
	if err != nil {
		return err
	}
	alloc := findAllocation(*allocs, material)
	if alloc == nil {
		return &NotFoundError{Kind: "allocation", ID: material}
	}

	prev := alloc.UnitsUsed
	alloc.UnitsUsed = newUsed
	if err := l.persistOwner(ctx, owner.Kind); err != nil {
		alloc.UnitsUsed = prev
		return err
	}

	l.log.WithFields(logrus.Fields{
		"op":       "edit_allocation_used",
		"owner":    owner.String(),
		"material": material,
		"used":     newUsed.String(),
	}).Info("allocation counter edited")
	return nil
}

// AddAllocation appends a new allocation to an owner's list. The used
// argument exists for migrating legacy counters; normal adds pass zero.
func (l *Ledger) AddAllocation(ctx context.Context, actor Role, owner OwnerRef, material string, amount, used decimal.Decimal) error {
	if err := l.requireElevated(actor, "add allocations"); err != nil {
		return err
	}
	if strings.TrimSpace(material) == "" {
		return &ValidationError{Field: "name", Message: "material name is required"}
	}
	if amount.IsNegative() {
		return &ValidationError{Field: "amount", Message: "amount must be non-negative"}
	}
	if used.IsNegative() {
		return &ValidationError{Field: "unitsUsed", Message: "used counter must be non-negative"}
	}

	allocs, err := l.allocationsFor(owner)
	if err != nil {
		return err
	}
	if findAllocation(*allocs, material) != nil {
		return &ValidationError{Field: "name", Message: material + " already exists for this owner"}
	}

	prev := copyAllocations(*allocs)
	*allocs = append(*allocs, newAllocation(material, amount, used))
	if err := l.persistOwner(ctx, owner.Kind); err != nil {
		*allocs = prev
		return err
	}
	return nil
}

// RemoveAllocation deletes an allocation from an owner's list outright.
// Usage-log entries referencing the material are kept: history is never
// cascaded away.
func (l *Ledger) RemoveAllocation(ctx context.Context, actor Role, owner OwnerRef, material string) error {
	if err := l.requireElevated(actor, "remove allocations"); err != nil {
		return err
	}

	allocs, err := l.allocationsFor(owner)
	if err != nil {
		return err
	}
	idx := -1
	for i := range *allocs {
		if (*allocs)[i].Name == material {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &NotFoundError{Kind: "allocation", ID: material}
	}

	prev := copyAllocations(*allocs)
	*allocs = append((*allocs)[:idx], (*allocs)[idx+1:]...)
	if err := l.persistOwner(ctx, owner.Kind); err != nil {
		*allocs = prev
		return err
	}
	return nil
}

// =============================================================================
// READ ACCESSORS - Copies of the working set
// =============================================================================

func (l *Ledger) Teams() []Team { return copyTeams(l.teams) }

func (l *Ledger) Sites() []Site { return copySites(l.sites) }

func (l *Ledger) UsageLog() []UsageLogEntry {
	out := make([]UsageLogEntry, len(l.usage))
	copy(out, l.usage)
	return out
}

// Team returns a copy of one team by id.
func (l *Ledger) Team(id string) (Team, bool) {
	if t := l.findTeam(id); t != nil {
		c := *t
		c.Allocations = copyAllocations(t.Allocations)
		return c, true
	}
	return Team{}, false
}

// Site returns a copy of one site by id.
func (l *Ledger) Site(id string) (Site, bool) {
	if s := l.findSite(id); s != nil {
		c := *s
		c.Allocations = copyAllocations(s.Allocations)
		return c, true
	}
	return Site{}, false
}

// IsElevated reports whether the role may run privileged operations and see
// all teams' rows in the dashboard.
func (l *Ledger) IsElevated(role Role) bool {
	_, ok := l.elevated[role]
	return ok
}

// =============================================================================
// INTERNALS
// =============================================================================

func (l *Ledger) requireElevated(actor Role, op string) error {
	if !l.IsElevated(actor) {
		return &AuthorizationError{Role: actor, Operation: op}
	}
	return nil
}

func (l *Ledger) findTeam(id string) *Team {
	for i := range l.teams {
		if l.teams[i].ID == id {
			return &l.teams[i]
		}
	}
	return nil
}

func (l *Ledger) findSite(id string) *Site {
	for i := range l.sites {
		if l.sites[i].ID == id {
			return &l.sites[i]
		}
	}
	return nil
}

// allocationsFor returns a pointer to the owner's live allocation list.
func (l *Ledger) allocationsFor(owner OwnerRef) (*[]MaterialAllocation, error) {
	switch owner.Kind {
	case OwnerTeam:
		if t := l.findTeam(owner.ID); t != nil {
			return &t.Allocations, nil
		}
		return nil, &NotFoundError{Kind: "team", ID: owner.ID}
	case OwnerSite:
		if s := l.findSite(owner.ID); s != nil {
			return &s.Allocations, nil
		}
		return nil, &NotFoundError{Kind: "site", ID: owner.ID}
	default:
		return nil, &ValidationError{Field: "ownerType", Message: "unknown owner kind " + string(owner.Kind)}
	}
}

func (l *Ledger) persistOwner(ctx context.Context, kind OwnerKind) error {
	if kind == OwnerSite {
		return l.persistSites(ctx)
	}
	return l.persistTeams(ctx)
}

func (l *Ledger) persistTeams(ctx context.Context) error {
	if err := l.store.ReplaceTeams(ctx, copyTeams(l.teams)); err != nil {
		return &StoreError{Collection: "teams", Op: "replace", Cause: err}
	}
	return nil
}

func (l *Ledger) persistSites(ctx context.Context) error {
	if err := l.store.ReplaceSites(ctx, copySites(l.sites)); err != nil {
		return &StoreError{Collection: "sites", Op: "replace", Cause: err}
	}
	return nil
}

func findAllocation(allocs []MaterialAllocation, name string) *MaterialAllocation {
	for i := range allocs {
		if allocs[i].Name == name {
			return &allocs[i]
		}
	}
	return nil
}

func copyAllocations(in []MaterialAllocation) []MaterialAllocation {
	out := make([]MaterialAllocation, len(in))
	copy(out, in)
	return out
}

func copyTeams(in []Team) []Team {
	out := make([]Team, len(in))
	for i, t := range in {
		out[i] = t
		out[i].Allocations = copyAllocations(t.Allocations)
	}
	return out
}

func copySites(in []Site) []Site {
	out := make([]Site, len(in))
	for i, s := range in {
		out[i] = s
		out[i].Allocations = copyAllocations(s.Allocations)
	}
	return out
}
