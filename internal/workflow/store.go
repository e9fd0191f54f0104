package workflow

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/blake2b"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

// ResearchRun is one persisted deep research execution.
type ResearchRun struct {
	ID        string
	Query     string
	Synthesis string
	Findings  string
	Sources   []ScoredSource
	CreatedAt time.Time
}

// ResearchStore persists deep research runs to SQLite. Source documents
// are content-addressed by a BLAKE2b hash of URL plus content, so a
// source fetched by many runs is stored once and shared.
type ResearchStore struct {
	db *sql.DB
}

func NewResearchStore(path string) (*ResearchStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open research store: %w", err)
	}

	store := &ResearchStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("research store schema: %w", err)
	}
	L_info("research store opened", "path", path)
	return store, nil
}

func (s *ResearchStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS research_runs (
			id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			synthesis TEXT NOT NULL,
			findings TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS research_sources (
			hash TEXT PRIMARY KEY,
			url TEXT,
			title TEXT,
			description TEXT,
			content TEXT,
			credibility TEXT,
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS run_sources (
			run_id TEXT NOT NULL,
			hash TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (run_id, hash)
		);
	`)
	return err
}

// SaveRun persists the run and returns its research id. Existing source
// documents (same hash) are left untouched.
func (s *ResearchStore) SaveRun(run *ResearchRun) (string, error) {
	if run.ID == "" {
		run.ID = ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO research_runs (id, query, synthesis, findings, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Query, run.Synthesis, run.Findings, run.CreatedAt.Format(time.RFC3339),
	); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for i, src := range run.Sources {
		hash := contentHash(src)
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO research_sources (hash, url, title, description, content, credibility, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			hash, src.URL, src.Title, src.Description, src.ExtractedContent,
			string(src.Credibility), run.CreatedAt.Format(time.RFC3339),
		); err != nil {
			return "", fmt.Errorf("insert source: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO run_sources (run_id, hash, position) VALUES (?, ?, ?)`,
			run.ID, hash, i,
		); err != nil {
			return "", fmt.Errorf("link source: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit save: %w", err)
	}
	L_debug("research store: saved run", "id", run.ID, "sources", len(run.Sources))
	return run.ID, nil
}

// GetRun loads a run with its sources in original order.
func (s *ResearchStore) GetRun(id string) (*ResearchRun, error) {
	run := &ResearchRun{ID: id}
	var createdAt string
	err := s.db.QueryRow(
		`SELECT query, synthesis, findings, created_at FROM research_runs WHERE id = ?`, id,
	).Scan(&run.Query, &run.Synthesis, &run.Findings, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("research run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}
	run.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	rows, err := s.db.Query(`
		SELECT s.url, s.title, s.description, s.content, s.credibility
		FROM run_sources rs JOIN research_sources s ON s.hash = rs.hash
		WHERE rs.run_id = ? ORDER BY rs.position`, id)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var src ScoredSource
		var cred string
		if err := rows.Scan(&src.URL, &src.Title, &src.Description, &src.ExtractedContent, &cred); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		src.Credibility = Credibility(cred)
		run.Sources = append(run.Sources, src)
	}
	return run, rows.Err()
}

// ListRuns returns recent run summaries, newest first. Sources are not
// loaded.
func (s *ResearchStore) ListRuns(limit int) ([]ResearchRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, query, created_at FROM research_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []ResearchRun
	for rows.Next() {
		var run ResearchRun
		var createdAt string
		if err := rows.Scan(&run.ID, &run.Query, &createdAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *ResearchStore) Close() error {
	return s.db.Close()
}

// contentHash addresses a source by what it said, not when it was
// fetched.
func contentHash(src ScoredSource) string {
	content := src.ExtractedContent
	if content == "" {
		content = src.Description
	}
	sum := blake2b.Sum256([]byte(src.URL + "\n" + src.Title + "\n" + content))
	return hex.EncodeToString(sum[:])
}
