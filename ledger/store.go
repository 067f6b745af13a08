/*
store.go - Persistence interface for the ledger's three collections

PURPOSE:
  Defines the boundary between the ledger and whatever stores its records.
  The contract is deliberately coarse: whole-collection load and replace for
  the two owner collections, append-only writes for the usage log. There are
  no row-level transactions; that shapes the concurrency contract below.

COLLECTIONS:
  teams      - owner records with embedded allocation lists
  sites      - same, independently of teams
  usage_logs - append-only consumption audit trail

APPEND-ONLY CONTRACT:
  Usage-log entries are write-once. The interface has no update or delete
  for them, and no implementation may grow one. Corrections happen through
  privileged direct edits of allocation counters, never by rewriting history.

CONCURRENCY:
  Replace operations overwrite one owner collection wholesale. Two sessions
  editing the same owner exhibit last-writer-wins on the whole list. This is
  the accepted contract for a handful of concurrent operators; it is not a
  bug to engineer away here.

IMPLEMENTATIONS:
  - ledger/store/memory.go: In-memory, for testing/dev
  - store/sqlite/sqlite.go: Production SQLite
*/
package ledger

import "context"

// RecordStore is the abstract record store the ledger runs against.
//
// Load* returns records in stable collection order. Replace* overwrites the
// whole collection in one write. AppendUsage is the only usage-log write.
type RecordStore interface {
	LoadTeams(ctx context.Context) ([]Team, error)
	LoadSites(ctx context.Context) ([]Site, error)
	LoadUsageLog(ctx context.Context) ([]UsageLogEntry, error)

	ReplaceTeams(ctx context.Context, teams []Team) error
	ReplaceSites(ctx context.Context, sites []Site) error

	AppendUsage(ctx context.Context, entry UsageLogEntry) error
}
