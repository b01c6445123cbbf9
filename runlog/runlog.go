// Package runlog persists per-file triage outcomes to SQLite so batch runs
// leave a queryable history. Writes are asynchronous and batched; a slow
// disk never backpressures the pipeline.
package runlog

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/triage/triage"
)

// Schema for the triage_runs table. Applied by Open.
const Schema = `
CREATE TABLE IF NOT EXISTS triage_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_id TEXT NOT NULL,
	file TEXT NOT NULL,
	file_type TEXT NOT NULL,
	decision TEXT,
	skipped INTEGER NOT NULL,
	success INTEGER,
	text_chars INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	errors TEXT,
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_triage_runs_ts ON triage_runs(timestamp);
CREATE INDEX IF NOT EXISTS idx_triage_runs_file ON triage_runs(file);
`

// Entry is one persisted triage outcome.
type Entry struct {
	FileID     string
	File       string
	FileType   string
	Decision   string
	Skipped    bool
	Success    *bool
	TextChars  int
	DurationMs int64
	Errors     string
	Timestamp  int64
}

// FromRecord flattens a file record into a runlog entry.
func FromRecord(rec triage.FileRecord) *Entry {
	e := &Entry{
		FileID:     rec.FileID,
		File:       rec.File,
		FileType:   string(rec.Detected.Type),
		Skipped:    rec.Skipped,
		DurationMs: int64(rec.Metrics.ProcessingTimeSec * 1000),
		Errors:     strings.Join(rec.Errors, "; "),
		Timestamp:  time.Now().Unix(),
	}
	if rec.Quality != nil {
		e.Decision = string(rec.Quality.Decision)
	}
	if rec.Processing != nil {
		e.Success = rec.Processing.Success
		e.TextChars = rec.Processing.TextChars
	}
	return e
}

// Store persists entries to a SQLite table asynchronously.
type Store struct {
	db   *sql.DB
	ch   chan *Entry
	done chan struct{}
	once sync.Once
}

// Open creates a run history store at the given SQLite path and applies the
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("runlog: open %s: %w", path, err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("runlog: apply schema: %w", err)
	}
	return NewStore(db), nil
}

// NewStore creates a store backed by the given database connection. The
// schema must already be applied.
func NewStore(db *sql.DB) *Store {
	s := &Store{
		db:   db,
		ch:   make(chan *Entry, 1024),
		done: make(chan struct{}),
	}
	go s.flushLoop()
	return s
}

// RecordAsync queues an entry for async persistence. Non-blocking; drops if
// the buffer is full.
func (s *Store) RecordAsync(e *Entry) {
	select {
	case s.ch <- e:
	default:
	}
}

// Close drains the buffer, stops the flush goroutine, and closes the
// database.
func (s *Store) Close() error {
	s.once.Do(func() {
		close(s.ch)
		<-s.done
	})
	return s.db.Close()
}

func (s *Store) flushLoop() {
	defer close(s.done)

	batch := make([]*Entry, 0, 64)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-s.ch:
			if !ok {
				s.flushBatch(batch)
				return
			}
			batch = append(batch, e)
			if len(batch) >= 64 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *Store) flushBatch(batch []*Entry) {
	if len(batch) == 0 {
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		slog.Error("runlog: begin tx", "error", err)
		return
	}

	stmt, err := tx.Prepare(`INSERT INTO triage_runs
		(file_id, file, file_type, decision, skipped, success, text_chars, duration_ms, errors, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		slog.Error("runlog: prepare", "error", err)
		return
	}
	defer stmt.Close()

	for _, e := range batch {
		var success any
		if e.Success != nil {
			success = *e.Success
		}
		if _, err := stmt.Exec(e.FileID, e.File, e.FileType, e.Decision, e.Skipped,
			success, e.TextChars, e.DurationMs, e.Errors, e.Timestamp); err != nil {
			slog.Error("runlog: insert", "error", err)
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("runlog: commit", "error", err)
	}
}
