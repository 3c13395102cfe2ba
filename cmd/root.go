package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luma/courage/cmd/gen"
)

var RootCmd = &cobra.Command{
	Use:   "courage",
	Short: "Courage realtime subscription client",
	Long: `Courage keeps one persistent connection to a Courage service and
prints the events published to the channels it is bound to.`,
	SilenceUsage: true,
}

func init() {
	RootCmd.AddCommand(ListenCmd)
	RootCmd.AddCommand(VersionCmd)
	RootCmd.AddCommand(gen.RootCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
