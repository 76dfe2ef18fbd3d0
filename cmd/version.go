package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oriondocs/orion/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version and build information",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
		return nil
	},
}
