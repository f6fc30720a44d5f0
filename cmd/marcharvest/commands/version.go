package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dainst/marc-authority-harvester/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Get()
		fmt.Println(info.String())
		fmt.Printf("go: %s, platform: %s\n", info.GoVersion, info.Platform)
	},
}
