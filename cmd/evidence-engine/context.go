// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/evidence-engine/internal/compose"
	"github.com/pdiddy/evidence-engine/internal/evidence"
	"github.com/pdiddy/evidence-engine/internal/retrieval"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

var contextCmd = &cobra.Command{
	Use:   "context [query...]",
	Short: "Build evidence context for a clinical question",
	Long: `Context runs the full pipeline: tiered retrieval, structured extraction
through the configured model, and formatting into a length-budgeted text
block. Extractions are cached per (document, question, content, model);
--refresh-cache forces re-extraction, --skip-extraction renders the raw
documents without calling the model.`,
	RunE: runContext,
}

func runContext(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("query required: evidence-engine context <question>")
	}
	query := strings.Join(args, " ")

	cfg := loadPipelineConfig()
	if maxLength, _ := cmd.Flags().GetInt("max-length"); maxLength > 0 {
		cfg.Format.MaxLength = maxLength
	}
	if includeLow, _ := cmd.Flags().GetBool("include-low"); includeLow {
		cfg.Format.IncludeLow = true
	}
	if model, _ := cmd.Flags().GetString("model"); model != "" {
		cfg.Extraction.Model = model
	}

	orch, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}

	maxResults, _ := cmd.Flags().GetInt("max-results")
	fetchFullText, _ := cmd.Flags().GetBool("fetch-full-text")
	forceExternal, _ := cmd.Flags().GetBool("force-external")

	ctx := context.Background()
	docs, meta, err := orch.Retrieve(ctx, retrieval.Request{
		Query:         query,
		MaxResults:    maxResults,
		FetchFullText: fetchFullText,
		ForceExternal: forceExternal,
	}, os.Stderr)
	if err != nil {
		return err
	}

	skipExtraction, _ := cmd.Flags().GetBool("skip-extraction")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if skipExtraction {
		return formatContextOutput(compose.FormatRaw(docs, meta, cfg.Format), jsonOutput)
	}

	backendName, _ := cmd.Flags().GetString("backend")
	backend, err := buildModelBackend(cfg.Extraction, backendName)
	if err != nil {
		return err
	}

	cache, err := evidence.OpenCache(cfg.Cache.Dir)
	if err != nil {
		return err
	}
	defer cache.Close()

	refresh, _ := cmd.Flags().GetBool("refresh-cache")
	extractor := evidence.NewExtractor(backend, cache, cfg.Extraction)
	results, summary := extractor.ExtractBatch(ctx, docs, query, refresh, os.Stderr)
	fmt.Fprintf(os.Stderr, "\nextracted: %d, cached: %d, failed: %d\n",
		summary.Extracted, summary.Cached, summary.Failed)

	return formatContextOutput(compose.Format(results, meta, cfg.Format), jsonOutput)
}

func formatContextOutput(out types.FormattedContext, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	fmt.Println(out.Text)
	return nil
}

func init() {
	contextCmd.Flags().Int("max-results", 0, "maximum documents to retrieve (0 = configured default)")
	contextCmd.Flags().Int("max-length", 0, "character budget for the formatted context (0 = configured default)")
	contextCmd.Flags().Bool("fetch-full-text", false, "augment top results with PubMed Central full text")
	contextCmd.Flags().Bool("force-external", false, "skip the local index and search PubMed directly")
	contextCmd.Flags().Bool("skip-extraction", false, "render raw documents without calling the model")
	contextCmd.Flags().Bool("refresh-cache", false, "re-extract even when a cached result exists")
	contextCmd.Flags().Bool("include-low", false, "include LOW-relevance evidence in the output")
	contextCmd.Flags().String("backend", "claude", "extraction backend: claude or ollama")
	contextCmd.Flags().String("model", "", "override the configured model identifier")
	contextCmd.Flags().Bool("json", false, "output the full context structure as JSON")

	rootCmd.AddCommand(contextCmd)
}
