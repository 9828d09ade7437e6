// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store archives finished crawl runs in a SQLite database: the user
// query, run statistics, and the serialized citation tree. The archive is
// deliberately minimal; the tree record itself is the product.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paper-crawler/pkg/types"
)

const dbFile = "runs.db"

// Run is one archived crawl.
type Run struct {
	ID        string
	Query     string
	CreatedAt time.Time
	EndDate   string
	Nodes     int
	Touched   int
	Recall    int
	Tree      *types.PaperNode
}

// Store manages the run archive database.
type Store struct {
	db      *sql.DB
	runsDir string
}

// Open opens or creates the archive at runsDir/runs.db, creating the schema
// when missing.
func Open(cfg types.StoreConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.RunsDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating runs directory: %w", err)
	}

	dbPath := filepath.Join(cfg.RunsDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, runsDir: cfg.RunsDir}
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
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		created_at TEXT NOT NULL,
		end_date TEXT,
		nodes INTEGER NOT NULL,
		touched INTEGER NOT NULL,
		recall INTEGER NOT NULL,
		tree TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("executing schema statement: %w", err)
	}
	return nil
}

// Save archives a finished crawl and returns the stored record. Statistics
// are derived from the tree: node count excludes the root, touched and
// recall come from the root's bookkeeping lists.
func (s *Store) Save(ctx context.Context, crawlCfg types.CrawlConfig, root *types.PaperNode) (*Run, error) {
	tree, err := root.MarshalRecord()
	if err != nil {
		return nil, err
	}

	run := &Run{
		ID:        uuid.NewString(),
		Query:     root.Title,
		CreatedAt: time.Now().UTC(),
		EndDate:   crawlCfg.EndDate,
		Nodes:     root.Count() - 1,
		Touched:   len(root.RootStrings(types.ExtraTouchIDs)),
		Recall:    len(root.RootStrings(types.ExtraRecall)),
		Tree:      root,
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, query, created_at, end_date, nodes, touched, recall, tree)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Query, run.CreatedAt.Format(time.RFC3339Nano), run.EndDate,
		run.Nodes, run.Touched, run.Recall, string(tree),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting run: %w", err)
	}
	return run, nil
}

// Get loads one run, including its rebuilt tree. A missing id is an error.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, query, created_at, end_date, nodes, touched, recall, tree
		 FROM runs WHERE id = ?`, id)

	var run Run
	var createdAt, tree string
	if err := row.Scan(&run.ID, &run.Query, &createdAt, &run.EndDate,
		&run.Nodes, &run.Touched, &run.Recall, &tree); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %s not found", id)
		}
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}

	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		run.CreatedAt = t
	}

	root, err := types.UnmarshalRecord([]byte(tree))
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}
	run.Tree = root
	return &run, nil
}

// List returns all runs, newest first, without their trees.
func (s *Store) List(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, created_at, end_date, nodes, touched, recall
		 FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var createdAt string
		if err := rows.Scan(&run.ID, &run.Query, &createdAt, &run.EndDate,
			&run.Nodes, &run.Touched, &run.Recall); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			run.CreatedAt = t
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Delete removes a run from the archive.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// ExportJSON writes a run's tree record to path.
func (s *Store) ExportJSON(ctx context.Context, id, path string) error {
	run, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	data, err := run.Tree.MarshalRecord()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
