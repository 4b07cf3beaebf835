package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the read and search tool definitions",
	Long: `Print the readFile and grepAndSearchFile tool definitions as JSON, in the
shape accepted by the Anthropic Messages API "tools" field.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return printTools(os.Stdout, a.client.AnthropicTools())
		})
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func printTools(w io.Writer, tools []anthropic.ToolUnionParam) error {
	data, err := json.MarshalIndent(tools, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tools: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
