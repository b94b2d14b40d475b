package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the ploop version.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print("ploop ")

		switch {
		case Version != "":
			fmt.Print(Version)
		default:
			if info, ok := debug.ReadBuildInfo(); ok {
				fmt.Print(info.Main.Version)
			} else {
				fmt.Print("(unknown version)")
			}
		}

		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
