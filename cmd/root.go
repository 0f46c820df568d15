// Package cmd defines and implements the CLI commands for the toolradar
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toolradar",
		Short: "Discovers trending software tools across the web.",
		Long: `toolradar collects freshly launched tools from feeds, directories
and Hacker News, enriches them with trend and pain-point analysis, and
persists the results for querying.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is env-only configuration)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "toolradar: %v\n", err)
		os.Exit(1)
	}
}
