// Package cli implements the storegate operator toolbox: image release,
// load testing, and the local service stub. The entrypoint binaries are not
// part of this tree on purpose — their argument vector belongs verbatim to
// the wrapped application command.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "storegate",
	Short: "deployment toolbox for the storefront services",
	Long: "storegate bundles the storefront deployment glue: building and pushing the\n" +
		"service images, running scripted load against a deployment, and serving an\n" +
		"in-memory stub of both services for local testing.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
