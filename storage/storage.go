package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/glebarez/sqlite"

	"nftdrop/distribution"
)

// ErrPathRequired is returned when the backing store path is missing.
var ErrPathRequired = errors.New("storage: database path must be configured")

// ErrNotFound is returned when no aggregate exists under the requested name.
var ErrNotFound = errors.New("storage: distribution not found")

const schema = `
CREATE TABLE IF NOT EXISTS distributions (
    name       TEXT PRIMARY KEY,
    status     TEXT NOT NULL,
    watermark  INTEGER NOT NULL,
    doc        TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS applied_events (
    tx_hash      TEXT PRIMARY KEY,
    distribution TEXT NOT NULL,
    kind         TEXT NOT NULL,
    ledger_index INTEGER NOT NULL,
    applied_at   TIMESTAMP NOT NULL
);
`

// Store persists campaign aggregates as structured documents. One row per
// campaign; the aggregate is the sole resumption state after a restart.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open initialises the backing store at the supplied sqlite DSN.
func Open(path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveDistribution upserts the aggregate document keyed by campaign name.
func (s *Store) SaveDistribution(ctx context.Context, d *distribution.Distribution) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("storage: store not configured")
	}
	if d == nil {
		return fmt.Errorf("storage: distribution required")
	}
	doc, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("storage: encode distribution: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO distributions(name, status, watermark, doc, updated_at)
        VALUES(?, ?, ?, ?, ?)
        ON CONFLICT(name) DO UPDATE SET
            status = excluded.status,
            watermark = excluded.watermark,
            doc = excluded.doc,
            updated_at = excluded.updated_at
    `, d.Name, string(d.Status), d.LastHandledLedgerIndex, string(doc), s.now().UTC())
	if err != nil {
		return fmt.Errorf("storage: upsert distribution: %w", err)
	}
	return nil
}

// LoadDistribution restores the aggregate saved under the supplied name.
func (s *Store) LoadDistribution(ctx context.Context, name string) (*distribution.Distribution, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage: store not configured")
	}
	row := s.db.QueryRowContext(ctx, `SELECT doc FROM distributions WHERE name = ?`, name)
	var doc string
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: query distribution: %w", err)
	}
	var d distribution.Distribution
	if err := json.Unmarshal([]byte(doc), &d); err != nil {
		return nil, fmt.Errorf("storage: decode distribution: %w", err)
	}
	return &d, nil
}

// RecordEvent appends one applied ledger event to the audit trail. Replays of
// an already-recorded hash are absorbed silently.
func (s *Store) RecordEvent(ctx context.Context, campaign, txHash, kind string, ledgerIndex uint64) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("storage: store not configured")
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO applied_events(tx_hash, distribution, kind, ledger_index, applied_at)
        VALUES(?, ?, ?, ?, ?)
        ON CONFLICT(tx_hash) DO NOTHING
    `, txHash, campaign, kind, ledgerIndex, s.now().UTC())
	if err != nil {
		return fmt.Errorf("storage: insert event: %w", err)
	}
	return nil
}

// AppliedEvents lists the audit trail for a campaign in ledger order.
func (s *Store) AppliedEvents(ctx context.Context, campaign string) ([]AppliedEvent, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage: store not configured")
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT tx_hash, kind, ledger_index, applied_at
        FROM applied_events
        WHERE distribution = ?
        ORDER BY ledger_index ASC, tx_hash ASC
    `, campaign)
	if err != nil {
		return nil, fmt.Errorf("storage: query events: %w", err)
	}
	defer rows.Close()
	var out []AppliedEvent
	for rows.Next() {
		var event AppliedEvent
		if err := rows.Scan(&event.TxHash, &event.Kind, &event.LedgerIndex, &event.AppliedAt); err != nil {
			return nil, fmt.Errorf("storage: scan event: %w", err)
		}
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate events: %w", err)
	}
	return out, nil
}

// AppliedEvent is one audit-trail row.
type AppliedEvent struct {
	TxHash      string
	Kind        string
	LedgerIndex uint64
	AppliedAt   time.Time
}
