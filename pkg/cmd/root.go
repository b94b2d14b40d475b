// Package cmd wires ploop's developer CLI: a version command and a demo
// command that runs the scenarios SPEC_FULL.md §8 describes end to end,
// in the same cobra-based shape the teacher's own pkg/cmd uses.
package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version is empty unless set at link time (-ldflags "-X"); the version
// command then falls back to the module's build info.
var Version string

var rootCmd = &cobra.Command{
	Use:   "ploop",
	Short: "A polyhedral loop-nest code generation toolbox.",
	Long:  "A developer toolbox for the ploop polyhedral loop-nest core: schedule algebra, AST synthesis, and a reference text-dump back end.",
}

// Execute runs the root command; child commands register themselves with it
// in their init functions. Called by cmd/ploop's main exactly once.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "increase logging verbosity")
	rootCmd.PersistentFlags().String("out", "-", "output path for generated artifacts, or - for stdout")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if getFlag(cmd, "verbose") {
			log.SetLevel(log.DebugLevel)
		}
	}
}

func getFlag(cmd *cobra.Command, flag string) bool {
	r, err := cmd.Flags().GetBool(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	return r
}

func getString(cmd *cobra.Command, flag string) string {
	r, err := cmd.Flags().GetString(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	return r
}
