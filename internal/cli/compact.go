package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/youssefsiam38/ctxoffload"
	"github.com/youssefsiam38/ctxoffload/compaction"
	"github.com/youssefsiam38/ctxoffload/internal/config"
	"github.com/youssefsiam38/ctxoffload/types"
)

var compactCmd = &cobra.Command{
	Use:   "compact [transcript]",
	Short: "Offload tool-result payloads from a transcript",
	Long: `Compact a transcript by writing tool-result payloads to storage and
replacing them with references. The transcript is a JSON or YAML list of
messages; "-" or no argument reads stdin.

Nothing is rewritten unless the final message is an assistant text turn.

Examples:
  ctxoffload compact transcript.json -o compacted.json
  ctxoffload compact transcript.yaml --boundary first-n-messages:4
  ctxoffload compact transcript.json --dry-run`,
	Args: cobra.MaximumNArgs(1),
	RunE: compact,
}

func init() {
	rootCmd.AddCommand(compactCmd)

	compactCmd.Flags().String("boundary", "", "compaction window: since-last-assistant-or-user-text, entire-conversation or first-n-messages:N")
	compactCmd.Flags().StringSlice("reader", nil, "additional reader tool names")
	compactCmd.Flags().String("format", "", "transcript format: json or yaml (default from extension)")
	compactCmd.Flags().StringP("output", "o", "", "write the compacted transcript to a file")
	compactCmd.Flags().Bool("dry-run", false, "report what would be offloaded without writing")
	compactCmd.Flags().Bool("summary", false, "print the compaction result as JSON to stderr")
}

// compactOptions carries the compact command flags
type compactOptions struct {
	Input    string
	Format   string
	Output   string
	Boundary string
	Readers  []string
	DryRun   bool
	Summary  bool
}

func compact(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	a, err := newApp(ctx, cfg, os.Stderr, viper.GetBool("verbose"))
	if err != nil {
		return err
	}
	defer a.Close()

	opts := compactOptions{}
	if len(args) > 0 {
		opts.Input = args[0]
	}
	opts.Boundary, _ = cmd.Flags().GetString("boundary")
	opts.Readers, _ = cmd.Flags().GetStringSlice("reader")
	opts.Format, _ = cmd.Flags().GetString("format")
	opts.Output, _ = cmd.Flags().GetString("output")
	opts.DryRun, _ = cmd.Flags().GetBool("dry-run")
	opts.Summary, _ = cmd.Flags().GetBool("summary")

	return runCompact(ctx, a, opts, os.Stdin, os.Stdout, os.Stderr)
}

// runCompact reads, compacts and writes a transcript
func runCompact(ctx context.Context, a *app, opts compactOptions, stdin io.Reader, stdout, stderr io.Writer) error {
	format, err := detectFormat(opts.Format, opts.Input)
	if err != nil {
		return err
	}

	data, err := readTranscript(opts.Input, stdin)
	if err != nil {
		return err
	}
	messages, err := decodeTranscript(data, format)
	if err != nil {
		return err
	}

	var compactOpts []ctxoffload.CompactOption
	if opts.Boundary != "" {
		boundary, err := compaction.ParseBoundary(opts.Boundary)
		if err != nil {
			return err
		}
		compactOpts = append(compactOpts, ctxoffload.WithBoundary(boundary))
	}
	if len(opts.Readers) > 0 {
		compactOpts = append(compactOpts, ctxoffload.WithReaderToolNames(opts.Readers...))
	}

	if opts.DryRun {
		stats, err := a.client.Stats(messages, compactOpts...)
		if err != nil {
			return err
		}
		printStats(stdout, a.client.Adapter().Identity(), stats)
		return nil
	}

	compacted, result, err := a.client.Compact(ctx, messages, compactOpts...)
	if err != nil {
		if result == nil {
			return err
		}
		// Objects written before the failure are only reachable through the
		// partially compacted transcript, so it is still written out.
		a.logger.Error("compaction stopped early", "offloaded", len(result.Offloads), "error", err)
		if werr := writeTranscript(opts.Output, stdout, compacted, format); werr != nil {
			return fmt.Errorf("%w (partial transcript not written: %v)", err, werr)
		}
		return err
	}

	if err := writeTranscript(opts.Output, stdout, compacted, format); err != nil {
		return err
	}

	if result.Skipped {
		a.logger.Info("transcript does not end with an assistant text turn, nothing compacted")
	} else {
		a.logger.Info("compaction complete",
			"offloaded", len(result.Offloads),
			"references", len(result.References),
			"bytes", result.BytesOffloaded,
			"tokens_saved", result.TokensSaved,
			"duration", result.Duration)
	}

	if opts.Summary {
		summary, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode summary: %w", err)
		}
		fmt.Fprintln(stderr, string(summary))
	}

	return nil
}

func writeTranscript(path string, stdout io.Writer, messages []types.Message, format string) error {
	out, err := encodeTranscript(messages, format)
	if err != nil {
		return err
	}
	return writeOutput(path, stdout, out)
}

func printStats(w io.Writer, identity string, stats *compaction.Stats) {
	fmt.Fprintf(w, "Storage:            %s\n", identity)
	fmt.Fprintf(w, "Messages:           %d (~%d tokens)\n", stats.TotalMessages, stats.TotalTokens)
	if !stats.Concluded {
		fmt.Fprintln(w, "Concluded:          no (nothing would be compacted)")
		return
	}
	fmt.Fprintf(w, "Window:             [%d, %d)\n", stats.Window.Start, stats.Window.EndExclusive)
	fmt.Fprintf(w, "Tool results:       %d\n", stats.ToolResults)
	fmt.Fprintf(w, "Would offload:      %d (%d bytes, ~%d tokens)\n", stats.OffloadCandidates, stats.CandidateBytes, stats.CandidateTokens)
	fmt.Fprintf(w, "Reader references:  %d\n", stats.ReaderResults)
}
