package cli

import (
	"context"
	"fmt"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"

	"askvid/internal/youtube"
)

var (
	indexLanguage string
	indexForce    bool
)

var indexCmd = &cobra.Command{
	Use:   "index <url>",
	Short: "Fetch a video's transcript and index it",
	Long: `Fetch a video's transcript and index it for semantic search.

Re-indexing the same video overwrites its existing chunks, so running
index twice leaves a single copy of the transcript in the store.

Examples:
  askvid index "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
  askvid index dQw4w9WgXcQ --language de`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexLanguage, "language", "", "preferred transcript language")
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "re-index even if already indexed")
}

func runIndex(cmd *cobra.Command, args []string) error {
	videoRef := args[0]

	videoID, err := youtube.ExtractVideoID(videoRef)
	if err != nil {
		return err
	}

	manager, err := getManager(false)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if !indexForce && manager.IsIndexed(ctx, videoID) {
		info := manager.Describe(ctx, videoID)
		fmt.Printf("Video %s already indexed (%d chunks). Use --force to re-index.\n", videoID, info.ChunkCount)
		return nil
	}

	updates := make(chan tea.Msg, 4)
	go func() {
		doc, err := fetcher.Fetch(ctx, videoID, youtube.FetchOptions{
			Language: indexLanguage,
			OnRetry: func(attempt int, err error) {
				updates <- phaseMsg(fmt.Sprintf("Fetching transcript (retry %d)...", attempt))
			},
		})
		if err != nil {
			updates <- finishedMsg{err: err}
			return
		}

		updates <- phaseMsg("Indexing transcript...")

		result, err := manager.IndexDocument(ctx, doc, nil)
		if err != nil {
			updates <- finishedMsg{err: err}
			return
		}

		updates <- finishedMsg{
			summary: fmt.Sprintf("Indexed %s (%d chunks)", videoID, result.ChunkCount),
		}
	}()

	return RunWithProgress("Fetching transcript...", updates)
}
