// Package journal records solved runs in a SQLite database.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("duet.journal")

// Entry is one recorded run.
type Entry struct {
	ID        string
	Puzzle    string // sound, duet or coprocessor
	InputHash string // hex SHA-256 of the program
	Answer    int64
	Halt      string // runner halt reason, empty for single-machine puzzles
	Rounds    int
	Duration  time.Duration
	CreatedAt time.Time
}

// Journal is an append-only log of runs.
type Journal struct {
	db   *sql.DB
	path string
}

// timeLayout has fixed width so timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	puzzle TEXT NOT NULL,
	input_hash TEXT NOT NULL,
	answer INTEGER NOT NULL,
	halt TEXT NOT NULL DEFAULT '',
	rounds INTEGER NOT NULL DEFAULT 0,
	duration_ns INTEGER NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_puzzle ON runs(puzzle, created_at);
`

// Open creates or opens the journal at path, creating parent directories
// as needed.
func Open(ctx context.Context, path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("journal: create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: initialize schema: %w", err)
	}
	log.Debugf("opened %s", path)
	return &Journal{db: db, path: path}, nil
}

// Path returns the database file path.
func (j *Journal) Path() string {
	return j.path
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores e and returns it with ID and CreatedAt filled in when they
// were empty.
func (j *Journal) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.Puzzle == "" {
		return e, errors.New("journal: entry has no puzzle")
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, puzzle, input_hash, answer, halt, rounds, duration_ns, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Puzzle, e.InputHash, e.Answer, e.Halt, e.Rounds,
		int64(e.Duration), e.CreatedAt.Format(timeLayout))
	if err != nil {
		return e, fmt.Errorf("journal: record %s: %w", e.ID, err)
	}
	log.Debugf("recorded %s run %s: %d", e.Puzzle, e.ID, e.Answer)
	return e, nil
}

// Recent returns up to limit entries, newest first. An empty puzzle
// matches every puzzle.
func (j *Journal) Recent(ctx context.Context, puzzle string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		selectRuns+`
		 WHERE ? = '' OR puzzle = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		puzzle, puzzle, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Lookup returns the most recent run recorded for puzzle and input hash.
// The boolean is false when there is none.
func (j *Journal) Lookup(ctx context.Context, puzzle, inputHash string) (Entry, bool, error) {
	row := j.db.QueryRowContext(ctx,
		selectRuns+`
		 WHERE puzzle = ? AND input_hash = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT 1`,
		puzzle, inputHash)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

const selectRuns = `SELECT id, puzzle, input_hash, answer, halt, rounds, duration_ns, created_at FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e        Entry
		duration int64
		created  string
	)
	if err := s.Scan(&e.ID, &e.Puzzle, &e.InputHash, &e.Answer, &e.Halt, &e.Rounds, &duration, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("journal: scan: %w", err)
	}
	e.Duration = time.Duration(duration)
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return e, fmt.Errorf("journal: entry %s: bad timestamp %q: %w", e.ID, created, err)
	}
	e.CreatedAt = t
	return e, nil
}
