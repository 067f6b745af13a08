// Package store provides RecordStore implementations.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/fieldstone/inventory-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory holds all three collections in memory with deep-copy semantics, so
// callers can never mutate stored records through returned slices.
//
// FailNextReplace / FailNextAppend inject a single store failure on the next
// matching write. Tests use them to exercise the clean-failure and
// partial-failure paths of usage application.
type Memory struct {
	mu    sync.RWMutex
	teams []ledger.Team
	sites []ledger.Site
	usage []ledger.UsageLogEntry
	idem  map[string]struct{}

	FailNextReplace bool
	FailNextAppend  bool
}

// ErrInjected is returned by an injected failure.
var ErrInjected = errors.New("injected store failure")

func NewMemory() *Memory {
	return &Memory{idem: make(map[string]struct{})}
}

// Seed loads initial collections without going through replace semantics.
func (m *Memory) Seed(teams []ledger.Team, sites []ledger.Site, usage []ledger.UsageLogEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teams = copyTeams(teams)
	m.sites = copySites(sites)
	m.usage = append([]ledger.UsageLogEntry{}, usage...)
	for _, e := range usage {
		if e.IdempotencyKey != "" {
			m.idem[e.IdempotencyKey] = struct{}{}
		}
	}
}

func (m *Memory) LoadTeams(_ context.Context) ([]ledger.Team, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyTeams(m.teams), nil
}

func (m *Memory) LoadSites(_ context.Context) ([]ledger.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copySites(m.sites), nil
}

func (m *Memory) LoadUsageLog(_ context.Context) ([]ledger.UsageLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ledger.UsageLogEntry{}, m.usage...), nil
}

// ReplaceTeams overwrites the whole teams collection in one write.
func (m *Memory) ReplaceTeams(_ context.Context, teams []ledger.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNextReplace {
		m.FailNextReplace = false
		return ErrInjected
	}
	m.teams = copyTeams(teams)
	return nil
}

// ReplaceSites overwrites the whole sites collection in one write.
func (m *Memory) ReplaceSites(_ context.Context, sites []ledger.Site) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNextReplace {
		m.FailNextReplace = false
		return ErrInjected
	}
	m.sites = copySites(sites)
	return nil
}

// AppendUsage appends one log entry. Append-only: there is no update or
// delete for usage logs, here or anywhere.
func (m *Memory) AppendUsage(_ context.Context, entry ledger.UsageLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNextAppend {
		m.FailNextAppend = false
		return ErrInjected
	}
	if entry.IdempotencyKey != "" {
		if _, dup := m.idem[entry.IdempotencyKey]; dup {
			return ledger.ErrDuplicateIdempotencyKey
		}
		m.idem[entry.IdempotencyKey] = struct{}{}
	}
	m.usage = append(m.usage, entry)
	return nil
}

// =============================================================================
// OWNER RECORD-KEEPING - Mirrors the sqlite store's CRUD surface
// =============================================================================

// SaveTeam inserts or updates one team record, appending new teams at the
// end of collection order.
func (m *Memory) SaveTeam(_ context.Context, t ledger.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.teams {
		if m.teams[i].ID == t.ID {
			m.teams[i] = t
			m.teams[i].Allocations = append([]ledger.MaterialAllocation{}, t.Allocations...)
			return nil
		}
	}
	t.Allocations = append([]ledger.MaterialAllocation{}, t.Allocations...)
	m.teams = append(m.teams, t)
	return nil
}

func (m *Memory) DeleteTeam(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.teams {
		if m.teams[i].ID == id {
			m.teams = append(m.teams[:i], m.teams[i+1:]...)
			return nil
		}
	}
	return nil
}

// SaveSite inserts or updates one site record.
func (m *Memory) SaveSite(_ context.Context, s ledger.Site) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sites {
		if m.sites[i].ID == s.ID {
			m.sites[i] = s
			m.sites[i].Allocations = append([]ledger.MaterialAllocation{}, s.Allocations...)
			return nil
		}
	}
	s.Allocations = append([]ledger.MaterialAllocation{}, s.Allocations...)
	m.sites = append(m.sites, s)
	return nil
}

func (m *Memory) DeleteSite(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sites {
		if m.sites[i].ID == id {
			m.sites = append(m.sites[:i], m.sites[i+1:]...)
			return nil
		}
	}
	return nil
}

func copyTeams(in []ledger.Team) []ledger.Team {
	out := make([]ledger.Team, len(in))
	for i, t := range in {
		out[i] = t
		out[i].Allocations = append([]ledger.MaterialAllocation{}, t.Allocations...)
	}
	return out
}

func copySites(in []ledger.Site) []ledger.Site {
	out := make([]ledger.Site, len(in))
	for i, s := range in {
		out[i] = s
		out[i].Allocations = append([]ledger.MaterialAllocation{}, s.Allocations...)
	}
	return out
}
