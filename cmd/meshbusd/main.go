// Command meshbusd runs a meshbus hub process and provides a thin CLI for
// talking to one: start, list, call, publish, monitor, per §6's external CLI
// surface. None of the cascading resolution logic lives here.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "meshbusd",
		Short: "meshbus hierarchical service-bus node",
		Long:  "meshbusd runs a hub process, or talks to a running one over its peer transport (plain TCP from the CLI) and dashboard API.",
	}

	root.AddCommand(
		startCommand(),
		listCommand(),
		callCommand(),
		publishCommand(),
		monitorCommand(),
	)

	root.PersistentFlags().String("output", "json", "result format: json or yaml")

	return root
}
