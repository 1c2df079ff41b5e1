package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/heist/internal/format"
)

var karmaCmd = &cobra.Command{
	Use:   "karma",
	Short: "Print the player's karma",
	RunE:  runKarma,
}

func init() {
	rootCmd.AddCommand(karmaCmd)
}

func runKarma(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "Karma: %s\n", format.Int(e.sim.Karma()))
	return nil
}
