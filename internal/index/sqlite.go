// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// SQLiteIndex reads a pre-built local index database. The indexer writes
// a documents table plus a documents_fts FTS5 table; this side opens the
// file read-only and never modifies it.
type SQLiteIndex struct {
	db *sql.DB
}

// NewSQLiteIndex opens the pre-built index at dbPath. The file must
// already exist; a missing index is a configuration error, not an empty
// result.
func NewSQLiteIndex(dbPath string) (*SQLiteIndex, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("index database path not configured")
	}
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("index database %s: %w", dbPath, err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}
	return &SQLiteIndex{db: db}, nil
}

// Close releases the database connection.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

// Search runs an FTS5 match over the indexed documents and normalizes the
// bm25 rank into a 0-1 score. Rows below minScore are dropped.
func (s *SQLiteIndex) Search(ctx context.Context, query string, k int, minScore float64) ([]types.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.id, d.title, d.abstract, d.year, d.authors, d.venue,
			bm25(documents_fts) AS rank
		FROM documents_fts
		JOIN documents d ON d.rowid = documents_fts.rowid
		WHERE documents_fts MATCH ?
		ORDER BY rank
		LIMIT ?`,
		ftsQuery(query), k)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		var (
			doc         types.Document
			abstract    sql.NullString
			venue       sql.NullString
			year        sql.NullInt64
			authorsJSON sql.NullString
			rank        float64
		)
		if err := rows.Scan(&doc.ID, &doc.Title, &abstract, &year, &authorsJSON, &venue, &rank); err != nil {
			return nil, fmt.Errorf("scanning index row: %w", err)
		}

		if abstract.Valid {
			doc.Abstract = abstract.String
		}
		if venue.Valid {
			doc.Venue = venue.String
		}
		if year.Valid {
			doc.Year = int(year.Int64)
		}
		if authorsJSON.Valid {
			json.Unmarshal([]byte(authorsJSON.String), &doc.Authors)
		}

		doc.Source = types.SourceLocalIndex
		doc.RelevanceScore = normalizeRank(rank)
		if doc.RelevanceScore < minScore {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// normalizeRank maps a bm25 rank (more negative is better) into (0, 1).
func normalizeRank(rank float64) float64 {
	return 1.0 / (1.0 + math.Exp(rank))
}

// ftsQuery quotes each term individually so user punctuation cannot
// break FTS5 syntax, and joins them with OR: a natural-language query
// should match documents containing any of its terms, with bm25 ranking
// and the score threshold doing the precision work.
func ftsQuery(query string) string {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return `""`
	}
	quoted := make([]string, len(terms))
	for i, term := range terms {
		quoted[i] = `"` + escapeQuotes(term) + `"`
	}
	return strings.Join(quoted, " OR ")
}

func escapeQuotes(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '"' {
			out = append(out, '"', '"')
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}
