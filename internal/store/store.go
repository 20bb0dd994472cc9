// Copyright PolyMD Authors, 2026. All rights reserved.

// Package store persists per-document pipeline outcomes in SQLite so
// every batch finishes with a complete accounting of every input
// identifier, including the failed ones.
//
// Outcomes are keyed by document id, the slugged DOI that also names
// every per-document artifact file, so rows from different stages of
// the same article join on one key.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/apaudelx/PolyMD/pkg/types"
)

const dbFile = "ledger.db"

// Stage identifies one pipeline stage in the ledger.
type Stage string

const (
	StageResolve Stage = "resolve"
	StageExtract Stage = "extract"
	StageVerify  Stage = "verify"
)

// Status is a terminal per-document outcome for one stage.
type Status string

const (
	StatusResolved           Status = "resolved"
	StatusResolutionFailed   Status = "resolution_failed"
	StatusParsed             Status = "parsed"
	StatusParseFailed        Status = "parse_failed"
	StatusVerified           Status = "verified"
	StatusVerifiedWithErrors Status = "verified_with_errors"
)

// stageStatuses fixes which statuses each stage may record.
var stageStatuses = map[Stage]map[Status]bool{
	StageResolve: {StatusResolved: true, StatusResolutionFailed: true},
	StageExtract: {StatusParsed: true, StatusParseFailed: true},
	StageVerify:  {StatusVerified: true, StatusVerifiedWithErrors: true},
}

// Store manages the run ledger SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the ledger database at cfg.Dir/ledger.db,
// creating the schema if it does not exist.
func Open(cfg types.StoreConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS outcomes (
			doc_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			status TEXT NOT NULL,
			detail TEXT,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (doc_id, stage)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_stage ON outcomes(stage, status)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record upserts one document's outcome for one stage. docID is the
// DOI slug used in artifact filenames. A re-run of a stage overwrites
// its previous outcome; other stages are untouched.
func (s *Store) Record(ctx context.Context, docID string, stage Stage, status Status, detail string) error {
	allowed, ok := stageStatuses[stage]
	if !ok {
		return fmt.Errorf("unknown stage %q", stage)
	}
	if !allowed[status] {
		return fmt.Errorf("status %q is not valid for stage %q", status, stage)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outcomes (doc_id, stage, status, detail, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(doc_id, stage) DO UPDATE SET
			status = excluded.status,
			detail = excluded.detail,
			updated_at = excluded.updated_at`,
		docID, string(stage), string(status), detail,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("recording outcome for %s: %w", docID, err)
	}
	return nil
}

// Outcome is one recorded stage result for one document.
type Outcome struct {
	DocID     string
	Stage     Stage
	Status    Status
	Detail    string
	UpdatedAt time.Time
}

// Outcomes returns every recorded outcome for one document, in stage
// recording order.
func (s *Store) Outcomes(ctx context.Context, docID string) ([]Outcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id, stage, status, detail, updated_at
		 FROM outcomes WHERE doc_id = ? ORDER BY updated_at`, docID)
	if err != nil {
		return nil, fmt.Errorf("querying outcomes for %s: %w", docID, err)
	}
	defer rows.Close()
	return scanOutcomes(rows)
}

func scanOutcomes(rows *sql.Rows) ([]Outcome, error) {
	var out []Outcome
	for rows.Next() {
		var o Outcome
		var stage, status, updated string
		if err := rows.Scan(&o.DocID, &stage, &status, &o.Detail, &updated); err != nil {
			return nil, fmt.Errorf("scanning outcome: %w", err)
		}
		o.Stage = Stage(stage)
		o.Status = Status(status)
		if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
			o.UpdatedAt = t
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
