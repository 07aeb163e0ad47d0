// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history persists finished conversions and the recent files list
// in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/mdconvert/internal/convert"
	"github.com/pdiddy/mdconvert/pkg/types"
)

const defaultMaxRecent = 10

// Entry is one recorded conversion.
type Entry struct {
	ID          string             `json:"id" yaml:"id"`
	Source      string             `json:"source" yaml:"source"`
	Options     map[string]string  `json:"options,omitempty" yaml:"options,omitempty"`
	State       types.RequestState `json:"state" yaml:"state"`
	OK          bool               `json:"ok" yaml:"ok"`
	ErrorKind   types.ErrorKind    `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Message     string             `json:"message,omitempty" yaml:"message,omitempty"`
	Engine      string             `json:"engine,omitempty" yaml:"engine,omitempty"`
	Chars       int                `json:"chars" yaml:"chars"`
	Warnings    int                `json:"warnings" yaml:"warnings"`
	SubmittedAt time.Time          `json:"submitted_at" yaml:"submitted_at"`
	FinishedAt  time.Time          `json:"finished_at" yaml:"finished_at"`
}

// NewEntry summarises a request and its outcome. For abandoned requests
// out may be the zero Outcome.
func NewEntry(req types.Request, out types.Outcome, state types.RequestState) Entry {
	e := Entry{
		ID:          req.ID,
		Source:      describe(req.Source),
		Options:     convert.Params(req.Options),
		State:       state,
		SubmittedAt: req.SubmittedAt,
		FinishedAt:  time.Now(),
	}
	if state != types.StateDelivered {
		return e
	}
	e.OK = out.OK()
	e.Engine = out.Path
	e.Chars = utf8.RuneCountInString(out.Markdown)
	e.Warnings = len(out.Warnings)
	if !out.OK() {
		e.ErrorKind = out.Err.Kind
		e.Message = out.Err.Message
	}
	return e
}

func describe(src types.Source) string {
	if src.Path != "" {
		if abs, err := filepath.Abs(src.Path); err == nil {
			return abs
		}
		return src.Path
	}
	return src.Describe()
}

// RecentFile is an entry of the recent files list.
type RecentFile struct {
	Path     string    `json:"path" yaml:"path"`
	OpenedAt time.Time `json:"opened_at" yaml:"opened_at"`
}

// Store manages the history database.
type Store struct {
	db        *sql.DB
	maxRecent int
}

// NewStore opens or creates the history database at cfg.Path and creates
// the schema if it does not exist.
func NewStore(cfg types.HistoryConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("history path is not set")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxRecent := cfg.MaxRecent
	if maxRecent <= 0 {
		maxRecent = defaultMaxRecent
	}
	s := &Store{db: db, maxRecent: maxRecent}

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
		`CREATE TABLE IF NOT EXISTS conversions (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			options TEXT,
			state TEXT NOT NULL,
			ok INTEGER NOT NULL,
			error_kind TEXT,
			message TEXT,
			engine TEXT,
			chars INTEGER,
			warnings INTEGER,
			submitted_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_submitted ON conversions(submitted_at)`,
		`CREATE TABLE IF NOT EXISTS recent_files (
			path TEXT PRIMARY KEY,
			opened_at INTEGER NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores e, replacing any earlier record with the same id.
func (s *Store) Record(ctx context.Context, e Entry) error {
	opts, err := json.Marshal(e.Options)
	if err != nil {
		return fmt.Errorf("encoding options: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO conversions
			(id, source, options, state, ok, error_kind, message, engine, chars, warnings, submitted_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Source, string(opts), string(e.State), e.OK, string(e.ErrorKind), e.Message,
		e.Engine, e.Chars, e.Warnings, e.SubmittedAt.UnixNano(), e.FinishedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("recording conversion %s: %w", e.ID, err)
	}
	return nil
}

// List returns up to limit entries, newest first. A limit of 0 or less
// returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, options, state, ok, error_kind, message, engine, chars, warnings, submitted_at, finished_at
		FROM conversions ORDER BY submitted_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying conversions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                   Entry
			opts, state, kind   string
			submitted, finished int64
		)
		if err := rows.Scan(&e.ID, &e.Source, &opts, &state, &e.OK, &kind, &e.Message,
			&e.Engine, &e.Chars, &e.Warnings, &submitted, &finished); err != nil {
			return nil, fmt.Errorf("scanning conversion: %w", err)
		}
		if opts != "" {
			if err := json.Unmarshal([]byte(opts), &e.Options); err != nil {
				return nil, fmt.Errorf("decoding options of %s: %w", e.ID, err)
			}
		}
		e.State = types.RequestState(state)
		e.ErrorKind = types.ErrorKind(kind)
		e.SubmittedAt = time.Unix(0, submitted)
		e.FinishedAt = time.Unix(0, finished)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Export writes up to limit entries to w as YAML.
func (s *Store) Export(ctx context.Context, w io.Writer, limit int) error {
	entries, err := s.List(ctx, limit)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []Entry{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// AddRecent moves path to the front of the recent files list, storing it
// as an absolute path, and trims the list to its maximum length.
func (s *Store) AddRecent(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// opened_at must increase strictly so ordering survives coarse clocks.
	var latest int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(opened_at), 0) FROM recent_files`).Scan(&latest); err != nil {
		return fmt.Errorf("reading recent files: %w", err)
	}
	now := max(time.Now().UnixNano(), latest+1)

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO recent_files (path, opened_at) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET opened_at = excluded.opened_at`, abs, now); err != nil {
		return fmt.Errorf("adding recent file: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM recent_files WHERE path NOT IN (
			SELECT path FROM recent_files ORDER BY opened_at DESC LIMIT ?
		)`, s.maxRecent); err != nil {
		return fmt.Errorf("trimming recent files: %w", err)
	}
	return tx.Commit()
}

// Recent returns the recent files list, most recent first.
func (s *Store) Recent(ctx context.Context) ([]RecentFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, opened_at FROM recent_files ORDER BY opened_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying recent files: %w", err)
	}
	defer rows.Close()

	var files []RecentFile
	for rows.Next() {
		var (
			f  RecentFile
			at int64
		)
		if err := rows.Scan(&f.Path, &at); err != nil {
			return nil, fmt.Errorf("scanning recent file: %w", err)
		}
		f.OpenedAt = time.Unix(0, at)
		files = append(files, f)
	}
	return files, rows.Err()
}

// ClearRecent empties the recent files list.
func (s *Store) ClearRecent(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM recent_files`); err != nil {
		return fmt.Errorf("clearing recent files: %w", err)
	}
	return nil
}
