package cli

import (
	"github.com/spf13/cobra"

	internalcli "github.com/SmitUplenchwar2687/Beacon/internal/cli"
)

// NewRootCmd creates the public Beacon root command for embedding.
func NewRootCmd() *cobra.Command {
	return internalcli.NewRootCmd()
}
