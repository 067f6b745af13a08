/*
Package sqlite provides a SQLite-backed implementation of the ledger's
record store.

PURPOSE:
  Implements ledger.RecordStore plus the team/site record-keeping the portal
  needs. The store contract is deliberately coarse - whole-collection load
  and replace for owners, append-only writes for the usage log - and the SQL
  mirrors that: replace runs DELETE-then-INSERT inside one transaction.

KEY TABLES:
  teams      - one row per team, allocation list as a JSON column
  sites      - one row per site, same shape
  usage_logs - append-only consumption audit trail

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statement exists for usage_logs. Idempotency keys are
  enforced with a partial UNIQUE index, so a retried event is rejected at
  the database even if the in-memory index was lost with the session.

ORDERING:
  Owner collections carry a position column; Load* returns rows in stored
  position order so the working set and every report keep a stable order.

WAL MODE:
  Opened with WAL for better read concurrency and crash recovery.

USAGE:
  st, err := sqlite.New("./data/inventory.db")
  ...
  led, err := ledger.Open(ctx, st)

SEE ALSO:
  - ledger/store.go: Interface definition and concurrency contract
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/fieldstone/inventory-engine/ledger"
)

// Store implements ledger.RecordStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (and migrates) a SQLite store. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS teams (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		allocations_json TEXT NOT NULL DEFAULT '[]',
		position INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sites (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		manager_team_id TEXT,
		allocations_json TEXT NOT NULL DEFAULT '[]',
		position INTEGER NOT NULL
	);

	-- Append-only consumption audit trail. No UPDATE, no DELETE.
	CREATE TABLE IF NOT EXISTS usage_logs (
		position INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		team_id TEXT NOT NULL,
		team_name TEXT NOT NULL,
		site_id TEXT NOT NULL,
		site_name TEXT NOT NULL,
		material_name TEXT NOT NULL,
		quantity_used TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		notes TEXT,
		idempotency_key TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_usage_logs_team_material
		ON usage_logs(team_name, material_name);
	CREATE INDEX IF NOT EXISTS idx_usage_logs_site_material
		ON usage_logs(site_name, material_name);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_usage_logs_idempotency
		ON usage_logs(idempotency_key) WHERE idempotency_key IS NOT NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECORD STORE (ledger.RecordStore interface)
// =============================================================================

// LoadTeams returns the whole teams collection in stored order.
func (s *Store) LoadTeams(ctx context.Context) ([]ledger.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, role, allocations_json FROM teams ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams: %w", err)
	}
	defer rows.Close()

	var teams []ledger.Team
	for rows.Next() {
		var t ledger.Team
		var allocJSON string
		if err := rows.Scan(&t.ID, &t.Name, &t.Role, &allocJSON); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		if err := json.Unmarshal([]byte(allocJSON), &t.Allocations); err != nil {
			return nil, fmt.Errorf("failed to decode allocations for team %s: %w", t.ID, err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// LoadSites returns the whole sites collection in stored order.
func (s *Store) LoadSites(ctx context.Context) ([]ledger.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, manager_team_id, allocations_json FROM sites ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sites: %w", err)
	}
	defer rows.Close()

	var sites []ledger.Site
	for rows.Next() {
		var st ledger.Site
		var manager sql.NullString
		var allocJSON string
		if err := rows.Scan(&st.ID, &st.Name, &manager, &allocJSON); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		st.ManagerTeamID = manager.String
		if err := json.Unmarshal([]byte(allocJSON), &st.Allocations); err != nil {
			return nil, fmt.Errorf("failed to decode allocations for site %s: %w", st.ID, err)
		}
		sites = append(sites, st)
	}
	return sites, rows.Err()
}

// LoadUsageLog returns the full usage log in append order.
func (s *Store) LoadUsageLog(ctx context.Context) ([]ledger.UsageLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, team_id, team_name, site_id, site_name, material_name,
		       quantity_used, timestamp, notes, idempotency_key
		FROM usage_logs ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage logs: %w", err)
	}
	defer rows.Close()

	var entries []ledger.UsageLogEntry
	for rows.Next() {
		var e ledger.UsageLogEntry
		var qty, ts string
		var notes, idemKey sql.NullString
		if err := rows.Scan(&e.ID, &e.TeamID, &e.TeamName, &e.SiteID, &e.SiteName,
			&e.MaterialName, &qty, &ts, &notes, &idemKey); err != nil {
			return nil, fmt.Errorf("failed to scan usage log: %w", err)
		}
		q, err := decimal.NewFromString(qty)
		if err != nil {
			return nil, fmt.Errorf("corrupt quantity %q in usage log %s: %w", qty, e.ID, err)
		}
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("corrupt timestamp %q in usage log %s: %w", ts, e.ID, err)
		}
		e.QuantityUsed = q
		e.Timestamp = t
		e.Notes = notes.String
		e.IdempotencyKey = idemKey.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ReplaceTeams overwrites the whole teams collection in one transaction.
func (s *Store) ReplaceTeams(ctx context.Context, teams []ledger.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM teams`); err != nil {
		return fmt.Errorf("failed to clear teams: %w", err)
	}
	for i, t := range teams {
		allocJSON, err := json.Marshal(t.Allocations)
		if err != nil {
			return fmt.Errorf("failed to encode allocations for team %s: %w", t.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO teams (id, name, role, allocations_json, position) VALUES (?, ?, ?, ?, ?)`,
			t.ID, t.Name, t.Role, string(allocJSON), i); err != nil {
			return fmt.Errorf("failed to insert team %s: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

// ReplaceSites overwrites the whole sites collection in one transaction.
func (s *Store) ReplaceSites(ctx context.Context, sites []ledger.Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sites`); err != nil {
		return fmt.Errorf("failed to clear sites: %w", err)
	}
	for i, st := range sites {
		allocJSON, err := json.Marshal(st.Allocations)
		if err != nil {
			return fmt.Errorf("failed to encode allocations for site %s: %w", st.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sites (id, name, manager_team_id, allocations_json, position) VALUES (?, ?, ?, ?, ?)`,
			st.ID, st.Name, nullString(st.ManagerTeamID), string(allocJSON), i); err != nil {
			return fmt.Errorf("failed to insert site %s: %w", st.ID, err)
		}
	}
	return tx.Commit()
}

// AppendUsage appends one usage-log entry. This is the only usage_logs write.
func (s *Store) AppendUsage(ctx context.Context, entry ledger.UsageLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_logs
		(id, team_id, team_name, site_id, site_name, material_name,
		 quantity_used, timestamp, notes, idempotency_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.TeamID,
		entry.TeamName,
		entry.SiteID,
		entry.SiteName,
		entry.MaterialName,
		entry.QuantityUsed.String(),
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
		nullString(entry.Notes),
		nullString(entry.IdempotencyKey),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append usage log: %w", err)
	}
	return nil
}

// =============================================================================
// OWNER RECORD-KEEPING - Conventional CRUD for the portal
// =============================================================================

// SaveTeam inserts or updates one team record, keeping its position when it
// already exists and appending at the end when it does not.
func (s *Store) SaveTeam(ctx context.Context, t ledger.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	allocJSON, err := json.Marshal(t.Allocations)
	if err != nil {
		return fmt.Errorf("failed to encode allocations for team %s: %w", t.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO teams (id, name, role, allocations_json, position)
		VALUES (?, ?, ?, ?, COALESCE((SELECT MAX(position) + 1 FROM teams), 0))
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			allocations_json = excluded.allocations_json`,
		t.ID, t.Name, t.Role, string(allocJSON))
	if err != nil {
		return fmt.Errorf("failed to save team %s: %w", t.ID, err)
	}
	return nil
}

// DeleteTeam removes one team record. Usage logs referencing it are kept.
func (s *Store) DeleteTeam(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete team %s: %w", id, err)
	}
	return nil
}

// SaveSite inserts or updates one site record.
func (s *Store) SaveSite(ctx context.Context, st ledger.Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	allocJSON, err := json.Marshal(st.Allocations)
	if err != nil {
		return fmt.Errorf("failed to encode allocations for site %s: %w", st.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sites (id, name, manager_team_id, allocations_json, position)
		VALUES (?, ?, ?, ?, COALESCE((SELECT MAX(position) + 1 FROM sites), 0))
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			manager_team_id = excluded.manager_team_id,
			allocations_json = excluded.allocations_json`,
		st.ID, st.Name, nullString(st.ManagerTeamID), string(allocJSON))
	if err != nil {
		return fmt.Errorf("failed to save site %s: %w", st.ID, err)
	}
	return nil
}

// DeleteSite removes one site record. Usage logs referencing it are kept.
func (s *Store) DeleteSite(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM sites WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete site %s: %w", id, err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
