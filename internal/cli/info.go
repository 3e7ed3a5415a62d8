package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"askvid/internal/youtube"
)

var infoCmd = &cobra.Command{
	Use:   "info <url>",
	Short: "Show index status for a video",
	Long: `Show whether a video's transcript is indexed and how many chunks it has.

Examples:
  askvid info "https://youtu.be/dQw4w9WgXcQ"
  askvid info dQw4w9WgXcQ`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	videoID, err := youtube.ExtractVideoID(args[0])
	if err != nil {
		return err
	}

	manager, err := getManager(false)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	info := manager.Describe(ctx, videoID)
	if !info.Exists {
		fmt.Printf("Video %s is not indexed.\n", videoID)
		return nil
	}

	fmt.Printf("Video:  %s\n", videoID)
	fmt.Printf("Chunks: %d\n", info.ChunkCount)
	return nil
}
