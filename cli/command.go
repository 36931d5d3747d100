// Package cli provides the common building blocks of the Grapevine
// command-line executables.
package cli

import (
	"github.com/spf13/cobra"
)

// cobraCommand is used to implement any type of cobra command
// for any of the Grapevine command-line tools and executables.
type cobraCommand interface {
	Build() *cobra.Command
}
