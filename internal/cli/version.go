package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/youssefsiam38/ctxoffload"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the ctxoffload version, with the Go runtime details when verbose.`,
	Run: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		if verbose {
			fmt.Printf("ctxoffload %s (%s, %s/%s)\n", ctxoffload.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		} else {
			fmt.Printf("ctxoffload %s\n", ctxoffload.Version)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
