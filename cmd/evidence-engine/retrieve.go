// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/evidence-engine/internal/retrieval"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query...]",
	Short: "Run tiered retrieval for a clinical question",
	Long: `Retrieve searches the local semantic index and, when coverage is thin or
the question implies recency, PubMed. Results are deduplicated across
sources and ranked by relevance. With --fetch-full-text the top results
are augmented with PubMed Central article bodies.`,
	RunE: runRetrieve,
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("query required: evidence-engine retrieve <question>")
	}
	query := strings.Join(args, " ")

	cfg := loadPipelineConfig()
	orch, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}

	maxResults, _ := cmd.Flags().GetInt("max-results")
	fetchFullText, _ := cmd.Flags().GetBool("fetch-full-text")
	forceExternal, _ := cmd.Flags().GetBool("force-external")

	docs, meta, err := orch.Retrieve(context.Background(), retrieval.Request{
		Query:         query,
		MaxResults:    maxResults,
		FetchFullText: fetchFullText,
		ForceExternal: forceExternal,
	}, os.Stderr)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatRetrieveOutput(docs, meta, jsonOutput)
}

func formatRetrieveOutput(docs []types.Document, meta types.RetrievalMetadata, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Documents []types.Document        `json:"documents"`
			Metadata  types.RetrievalMetadata `json:"metadata"`
		}{Documents: docs, Metadata: meta})
	}

	if len(docs) == 0 {
		fmt.Println("No documents found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-10s  %-6s  %-20s  %-6s  %s\n",
		"Rank", "ID", "Score", "Source", "Year", "Title")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))

	for i, doc := range docs {
		title := doc.Title
		if len(title) > 48 {
			title = title[:45] + "..."
		}
		year := ""
		if doc.Year > 0 {
			year = fmt.Sprintf("%d", doc.Year)
		}
		fmt.Fprintf(os.Stdout, "%-4d  %-10s  %-6.2f  %-20s  %-6s  %s\n",
			i+1, doc.ID, doc.RelevanceScore, doc.Source, year, title)
	}

	sources := make([]string, 0, len(meta.SourcesUsed))
	for _, s := range meta.SourcesUsed {
		sources = append(sources, string(s))
	}
	fmt.Fprintf(os.Stdout, "\n%d documents (sources: %s)\n", len(docs), strings.Join(sources, ", "))
	return nil
}

func init() {
	retrieveCmd.Flags().Int("max-results", 0, "maximum documents to return (0 = configured default)")
	retrieveCmd.Flags().Bool("fetch-full-text", false, "augment top results with PubMed Central full text")
	retrieveCmd.Flags().Bool("force-external", false, "skip the local index and search PubMed directly")
	retrieveCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(retrieveCmd)
}
