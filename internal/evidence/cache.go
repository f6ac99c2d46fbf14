// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evidence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

const cacheDBFile = "evidence-cache.db"

// Cache persists extraction results keyed by (document, query, content,
// model). Entries never expire; a changed document or model produces a new
// key instead.
type Cache struct {
	db *sql.DB
}

// OpenCache opens or creates the cache database under dir.
func OpenCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	dbPath := filepath.Join(dir, cacheDBFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	c := &Cache{db: db}
	if err := c.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return c, nil
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			key TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			model TEXT NOT NULL,
			value TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_document_id ON entries(document_id)`,
	}
	for _, stmt := range statements {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Get returns the cached evidence for key. A missing or unreadable entry
// is a miss; corruption never fails a pipeline run.
func (c *Cache) Get(ctx context.Context, key string) (types.ExtractedEvidence, bool) {
	var value string
	err := c.db.QueryRowContext(ctx,
		`SELECT value FROM entries WHERE key = ?`, key,
	).Scan(&value)
	if err != nil {
		return types.ExtractedEvidence{}, false
	}

	var ev types.ExtractedEvidence
	if err := json.Unmarshal([]byte(value), &ev); err != nil {
		return types.ExtractedEvidence{}, false
	}
	return ev, true
}

// Put stores evidence under key, replacing any prior entry.
func (c *Cache) Put(ctx context.Context, key, documentID, model string, ev types.ExtractedEvidence) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling evidence: %w", err)
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO entries (key, document_id, model, value, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			document_id=excluded.document_id, model=excluded.model,
			value=excluded.value, created_at=excluded.created_at`,
		key, documentID, model, string(value),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// CacheStats summarizes the cache contents.
type CacheStats struct {
	Entries   int    `json:"entries" yaml:"entries"`
	Documents int    `json:"documents" yaml:"documents"`
	Models    int    `json:"models" yaml:"models"`
	Oldest    string `json:"oldest,omitempty" yaml:"oldest,omitempty"`
	Newest    string `json:"newest,omitempty" yaml:"newest,omitempty"`
}

// Stats reports entry counts and the creation time range.
func (c *Cache) Stats(ctx context.Context) (CacheStats, error) {
	var stats CacheStats
	var oldest, newest sql.NullString
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT document_id), COUNT(DISTINCT model),
			MIN(created_at), MAX(created_at)
		 FROM entries`,
	).Scan(&stats.Entries, &stats.Documents, &stats.Models, &oldest, &newest)
	if err != nil {
		return CacheStats{}, fmt.Errorf("reading cache stats: %w", err)
	}
	stats.Oldest = oldest.String
	stats.Newest = newest.String
	return stats, nil
}

// Clear removes every entry.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM entries`)
	if err != nil {
		return 0, fmt.Errorf("clearing cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// cacheExportEntry is one row of the YAML export.
type cacheExportEntry struct {
	Key        string                  `yaml:"key"`
	DocumentID string                  `yaml:"document_id"`
	Model      string                  `yaml:"model"`
	CreatedAt  string                  `yaml:"created_at"`
	Evidence   types.ExtractedEvidence `yaml:"evidence"`
}

// ExportYAML writes every entry to w as a YAML document for inspection.
// Entries whose stored value no longer parses are skipped.
func (c *Cache) ExportYAML(ctx context.Context, w io.Writer) error {
	rows, err := c.db.QueryContext(ctx,
		`SELECT key, document_id, model, value, created_at FROM entries ORDER BY created_at`,
	)
	if err != nil {
		return fmt.Errorf("reading cache entries: %w", err)
	}
	defer rows.Close()

	var export struct {
		Entries []cacheExportEntry `yaml:"entries"`
	}
	for rows.Next() {
		var entry cacheExportEntry
		var value string
		if err := rows.Scan(&entry.Key, &entry.DocumentID, &entry.Model, &value, &entry.CreatedAt); err != nil {
			return fmt.Errorf("scanning cache entry: %w", err)
		}
		if err := json.Unmarshal([]byte(value), &entry.Evidence); err != nil {
			continue
		}
		export.Entries = append(export.Entries, entry)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating cache entries: %w", err)
	}

	data, err := yaml.Marshal(export)
	if err != nil {
		return fmt.Errorf("marshaling export: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	return nil
}
