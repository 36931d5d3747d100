// Package cmd implements the CLI commands for a Grapevine server.
package cmd

import (
	"github.com/barryWhiteHat/Grapevine/cli"
)

// RootCmd represents the base "grapevineserver" command when called
// without any subcommands.
var RootCmd = cli.NewRootCommand("grapevineserver",
	"Grapevine trust-chain server",
	`Server for anonymous proofs of degrees of separation.

Users register a signing identity, grant relationships to each other,
and extend chains of zero-knowledge degree proofs rooted in secret
phrases.`)
