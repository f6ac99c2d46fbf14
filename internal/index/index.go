// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index adapts a pre-built local semantic index for retrieval.
// The index is populated by an external indexer; this package only reads.
package index

import (
	"context"
	"fmt"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Client searches the local semantic index. Implementations return at
// most k documents scoring at or above minScore, best first, labelled
// types.SourceLocalIndex.
type Client interface {
	Search(ctx context.Context, query string, k int, minScore float64) ([]types.Document, error)
}

// New constructs the index client selected by cfg.Backend.
func New(cfg types.IndexConfig) (Client, error) {
	switch cfg.Backend {
	case types.IndexHTTP, "":
		return NewHTTPIndex(cfg), nil
	case types.IndexSQLite:
		return NewSQLiteIndex(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unknown index backend %q: use http or sqlite", cfg.Backend)
	}
}
