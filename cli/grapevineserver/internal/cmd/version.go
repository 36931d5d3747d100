package cmd

import (
	"github.com/barryWhiteHat/Grapevine/cli"
)

var versionCmd = cli.NewVersionCommand("grapevineserver")

func init() {
	RootCmd.AddCommand(versionCmd)
}
