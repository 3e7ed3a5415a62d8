package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"askvid/internal/agent"
	"askvid/internal/stream"
)

var (
	askTimeout time.Duration
	askPlain   bool
)

var askCmd = &cobra.Command{
	Use:   "ask <url> <question>",
	Short: "Ask a question about a video",
	Long: `Ask a natural-language question about a video's transcript.

If the video is not yet indexed, its transcript is fetched, chunked and
indexed first. The answer streams to stdout with [n] citations and
MM:SS timestamps into the video.

Examples:
  askvid ask "https://youtu.be/dQw4w9WgXcQ" "What is the main argument?"
  askvid ask dQw4w9WgXcQ "When is pricing discussed?" --plain`,
	Args: cobra.ExactArgs(2),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 5*time.Minute, "overall time budget for the run")
	askCmd.Flags().BoolVar(&askPlain, "plain", false, "disable styled output")
}

func runAsk(cmd *cobra.Command, args []string) error {
	videoRef, question := args[0], args[1]

	ag, err := getAgent()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
	defer cancel()

	serializer := stream.NewSerializer(renderEvent)

	hooks := agent.Hooks{
		OnToolCall: func(name, args string) {
			_ = serializer.ToolStart(name, args)
		},
		OnToolResult: func(name, content string) {
			_ = serializer.ToolEnd(name, content)
		},
		OnAnswerDelta: serializer.AnswerDelta,
	}

	result, err := ag.Run(ctx, agent.Input{VideoRef: videoRef, Question: question}, hooks)
	if err != nil {
		_ = serializer.Error(err)
		exitWithError("%v", err)
	}

	_ = serializer.Answer(result.Answer)
	_ = serializer.Done()

	if verbose {
		fmt.Fprintf(os.Stderr, "\n(%d agent steps)\n", result.Steps)
	}

	return nil
}

// renderEvent prints one stream event to the terminal.
func renderEvent(ev stream.Event) error {
	switch ev.Type {
	case stream.EventToolStart:
		fmt.Fprintln(os.Stderr, toolStyle().Render(fmt.Sprintf("→ %s", ev.Tool)))
	case stream.EventToolEnd:
		if verbose && ev.Summary != "" {
			fmt.Fprintln(os.Stderr, hintStyle().Render(fmt.Sprintf("  %s", ev.Summary)))
		}
	case stream.EventToken:
		fmt.Print(ev.Text)
	case stream.EventDone:
		fmt.Println()
	case stream.EventError:
		fmt.Fprintln(os.Stderr, errorStyle().Render(fmt.Sprintf("✗ %s", ev.Message)))
	}
	return nil
}

func toolStyle() lipgloss.Style {
	if askPlain {
		return lipgloss.NewStyle()
	}
	return lipgloss.NewStyle().Foreground(defaultTheme.Status)
}

func hintStyle() lipgloss.Style {
	if askPlain {
		return lipgloss.NewStyle()
	}
	return lipgloss.NewStyle().Foreground(defaultTheme.Hint).Italic(true)
}

func errorStyle() lipgloss.Style {
	if askPlain {
		return lipgloss.NewStyle()
	}
	return lipgloss.NewStyle().Foreground(defaultTheme.Error).Bold(true)
}
