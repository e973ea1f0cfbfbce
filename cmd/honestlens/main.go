// Command honestlens runs the verification service or verifies content from the shell.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"honestlens/config"
	"honestlens/logging"
)

var (
	cfg     config.Config
	logger  *zap.Logger
	debug   bool
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:   "honestlens",
	Short: "Credibility verification for URLs, text and images",
	Long: `HonestLens scores the credibility of a URL, a piece of text or an image by
fusing independent signals: content analysis, source reputation, fact-check
corroboration and image forensics.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if debug {
			cfg.Debug = true
		}
		l, err := logging.New(cfg.Debug)
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print JSON instead of formatted output")
	rootCmd.AddCommand(serveCmd, verifyCmd, feedsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
