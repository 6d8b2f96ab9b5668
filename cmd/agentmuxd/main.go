// Command agentmuxd is the operator-facing CLI entrypoint over the agent
// session lifecycle and terminal-interaction engine. It is a thin shell: all
// behavior lives in internal/cmd and the packages it wires together.
package main

import (
	"fmt"
	"os"

	"agentmux/internal/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
