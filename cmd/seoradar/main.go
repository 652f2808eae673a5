package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "seoradar",
		Short: "Monitor Reddit for SEO keyword opportunities and competitor mentions",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(runCmd())
	root.AddCommand(scanCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(keywordsCmd())
	root.AddCommand(reportCmd())

	return root
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scan loop, command poller, and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a single scan cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan()
		},
	}
	return cmd
}

func statusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the persisted control state and today's counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func keywordsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "Show the loaded keyword tiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeywords(limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "max keywords to show per tier")
	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print today's summary report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport()
		},
	}
	return cmd
}
