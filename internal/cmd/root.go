package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root cobra command with all subcommands: one root,
// subcommands added via newXCmd() constructors, no package-level
// cobra.Command vars.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "agentmuxd",
		Short: "Supervises a fleet of agent-CLI sessions",
		Long: "agentmuxd drives the agent session lifecycle and terminal-interaction " +
			"engine: bringing sessions up, delivering messages reliably, and tearing " +
			"them down. It is an operator-facing driver over the core engine, not the " +
			"HTTP/chat-UI projection layer.",
		SilenceUsage: true,
	}

	root.AddCommand(
		newSessionCmd(),
		newVersionCmd(),
	)
	return root
}
