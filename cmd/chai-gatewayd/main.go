// Command chai-gatewayd runs the local-first multi-agent gateway: the
// duplex protocol server, its channel connectors, and the inbound
// processor, as a single long-running process.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	root := &cobra.Command{
		Use:   "chai-gatewayd",
		Short: "Local-first multi-agent gateway",
	}
	root.AddCommand(buildServeCmd(), buildVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("chai-gatewayd %s (%s)\n", version, commit)
			return nil
		},
	}
}
