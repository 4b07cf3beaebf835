package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/youssefsiam38/ctxoffload/internal/config"
	"github.com/youssefsiam38/ctxoffload/storage"
)

var catCmd = &cobra.Command{
	Use:   "cat <key>",
	Short: "Print an offloaded payload",
	Long: `Print the payload stored under key in the configured storage.

Unlike the readFile tool, cat does not require the key to have been
produced by a compaction in the same process.

Examples:
  ctxoffload cat 0b7e...c2.txt
  ctxoffload cat 0b7e...c2.txt --storage blob://reports`,
	Args: cobra.ExactArgs(1),
	RunE: catPayload,
}

var grepCmd = &cobra.Command{
	Use:   "grep <key> <pattern>",
	Short: "Search an offloaded payload",
	Long: `Print the lines of the payload stored under key that match a regular
expression. Flags follow the search tool: i (case-insensitive), m
(multi-line) and s (dot matches newline).

Examples:
  ctxoffload grep 0b7e...c2.txt 'error|warn' --flags i`,
	Args: cobra.ExactArgs(2),
	RunE: grepPayload,
}

func init() {
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(grepCmd)

	grepCmd.Flags().String("flags", "", "regular expression flags")
}

func catPayload(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		return runCat(ctx, a.client.Adapter(), args[0], os.Stdout)
	})
}

func grepPayload(cmd *cobra.Command, args []string) error {
	flags, _ := cmd.Flags().GetString("flags")
	return withApp(cmd, func(ctx context.Context, a *app) error {
		return runGrep(ctx, a.client.Adapter(), args[0], args[1], flags, os.Stdout)
	})
}

// withApp loads the config, builds an app and runs fn with it
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
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

	return fn(ctx, a)
}

func runCat(ctx context.Context, adapter storage.Adapter, key string, w io.Writer) error {
	text, err := storage.ReadText(ctx, adapter, key)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", storage.FormatPath(adapter.Identity(), key), err)
	}
	_, err = io.WriteString(w, text)
	return err
}

func runGrep(ctx context.Context, adapter storage.Adapter, key, pattern, flags string, w io.Writer) error {
	re, err := storage.CompilePattern(pattern, flags)
	if err != nil {
		return err
	}

	matches, err := storage.Grep(ctx, adapter, key, re)
	if err != nil {
		return fmt.Errorf("failed to search %s: %w", storage.FormatPath(adapter.Identity(), key), err)
	}

	for _, m := range matches {
		fmt.Fprintf(w, "%d:%s\n", m.LineNumber, m.Line)
	}
	if len(matches) == 0 {
		return fmt.Errorf("no lines matched %q", pattern)
	}
	return nil
}
