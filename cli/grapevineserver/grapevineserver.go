// Executable Grapevine server. See README for
// usage instructions.
package main

import (
	"github.com/barryWhiteHat/Grapevine/cli"
	"github.com/barryWhiteHat/Grapevine/cli/grapevineserver/internal/cmd"
)

func main() {
	cli.Execute(cmd.RootCmd)
}
