package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kokotools/kokoctl/cmd/kokoctl/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if outputJSON {
			return outputResult(map[string]string{
				"version": build.Version,
				"commit":  build.Commit,
				"date":    build.Date,
			}, "", true)
		}
		fmt.Println(build.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
