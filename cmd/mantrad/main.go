package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/calmstack/mantra/internal/cli"
	"github.com/calmstack/mantra/internal/cli/admin"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "mantrad",
		Short:   "Mantra daemon - resilient meditation content retrieval",
		Version: version,
	}

	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.CacheCmd())
	rootCmd.AddCommand(admin.MoodsCmd())

	cli.AddHelpJSONFlag(rootCmd)
	cli.CheckHelpJSON(rootCmd)

	// Default to serve when invoked without a subcommand
	if len(os.Args) == 1 {
		rootCmd.SetArgs([]string{"serve"})
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
