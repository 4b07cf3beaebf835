package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/youssefsiam38/ctxoffload"
	"github.com/youssefsiam38/ctxoffload/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ctxoffload",
	Short: "ctxoffload - Move tool-result payloads out of agent transcripts",
	Long: `ctxoffload compacts agent transcripts by writing tool-result payloads to
storage and replacing them with short references that the readFile and
grepAndSearchFile tools can resolve later.

Storage is a local directory (file:///abs/dir) or a namespace of a blob
backend (blob://namespace) kept in PostgreSQL or Google Cloud Storage.

Example:
  ctxoffload compact transcript.json --boundary entire-conversation
  ctxoffload grep 3f0c...e1.txt 'ERROR' --flags i`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, which commands use for
// storage and database calls
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Version = ctxoffload.Version
	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .ctxoffload.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable verbose output")
	rootCmd.PersistentFlags().String("storage", "", "storage uri (file:///abs/dir, blob: or blob://namespace)")
	rootCmd.PersistentFlags().String("base-dir", "", "file storage root when no storage uri is set")
	rootCmd.PersistentFlags().String("backend", "", "blob backend: none, memory, postgres or gcs")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("storage.uri", rootCmd.PersistentFlags().Lookup("storage"))
	_ = viper.BindPFlag("storage.base_dir", rootCmd.PersistentFlags().Lookup("base-dir"))
	_ = viper.BindPFlag("storage.backend", rootCmd.PersistentFlags().Lookup("backend"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error getting working directory:", err)
			os.Exit(1)
		}

		viper.AddConfigPath(cwd)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".ctxoffload")
	}

	if err := config.BindEnv(viper.GetViper(), "CTXOFFLOAD"); err != nil {
		fmt.Fprintln(os.Stderr, "Error binding environment:", err)
		os.Exit(1)
	}

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
