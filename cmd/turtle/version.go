package main

import (
	"fmt"
	"strings"

	"github.com/newthinker/turtle/internal/strategy/builtins"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "turtle %s\n", Version)
		fmt.Fprintf(cmd.OutOrStdout(), "  Git commit: %s\n", GitCommit)
		fmt.Fprintf(cmd.OutOrStdout(), "  Build time: %s\n", BuildTime)

		reg := builtins.Registry()
		fmt.Fprintf(cmd.OutOrStdout(), "  Open strategies: %s\n", strings.Join(reg.OpenCodes(), ", "))
		fmt.Fprintf(cmd.OutOrStdout(), "  Close strategies: %s\n", strings.Join(reg.CloseCodes(), ", "))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
