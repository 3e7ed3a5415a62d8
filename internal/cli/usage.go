package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"askvid/internal/metrics"
)

var usageServer string

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show server usage statistics",
	Long: `Show runtime statistics from a running askvid-server.

Statistics are in-memory and reset on server restart.

Examples:
  askvid usage
  askvid usage --server http://localhost:8484`,
	RunE: runUsage,
}

func init() {
	usageCmd.Flags().StringVar(&usageServer, "server", "http://localhost:8484", "server base URL")
}

func runUsage(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, usageServer+"/api/stats", nil)
	if err != nil {
		return fmt.Errorf("build stats request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("get server stats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get server stats: unexpected status %s", resp.Status)
	}

	var snap metrics.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return fmt.Errorf("decode server stats: %w", err)
	}

	printSnapshot(&snap)
	return nil
}

// printSnapshot displays server runtime statistics.
func printSnapshot(snap *metrics.Snapshot) {
	fmt.Printf("Server Statistics (in-memory, since restart)\n")
	fmt.Printf("═══════════════════════════════════════════════\n")
	fmt.Printf("Uptime: %.1f seconds\n", snap.UptimeSeconds)

	if snap.TranscriptFetch != nil {
		fmt.Printf("\nTranscript Fetch:\n")
		printOpStats(snap.TranscriptFetch)
	}

	if snap.Embedding != nil {
		fmt.Printf("\nEmbeddings:\n")
		printOpStats(snap.Embedding)
	}

	if snap.LLMGenerate != nil {
		fmt.Printf("\nLLM Generate:\n")
		printOpStats(snap.LLMGenerate)
		printTokenStats(snap.LLMGenerate)
	}

	if snap.LLMStream != nil {
		fmt.Printf("\nLLM Stream:\n")
		printOpStats(snap.LLMStream)
		printTokenStats(snap.LLMStream)
	}

	if snap.IndexUpsert != nil {
		fmt.Printf("\nIndex Upsert:\n")
		printOpStats(snap.IndexUpsert)
	}

	if snap.IndexQuery != nil {
		fmt.Printf("\nIndex Query:\n")
		printOpStats(snap.IndexQuery)
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(op *metrics.OperationSnapshot) {
	fmt.Printf("  Calls: %d, Total: %dms\n", op.Count, op.TotalTimeMs)
	fmt.Printf("  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}

// printTokenStats displays token statistics if available.
func printTokenStats(op *metrics.OperationSnapshot) {
	if op.TotalInputTokens == nil || op.TotalOutputTokens == nil {
		return
	}
	fmt.Printf("  Tokens: %d in, %d out\n", *op.TotalInputTokens, *op.TotalOutputTokens)
}
