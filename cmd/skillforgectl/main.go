// Command skillforgectl is the operator CLI: it uploads skills directly
// against the store and drives a running skillforged daemon's host API for
// everything pipeline- and sandbox-related.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var hostFlag string

var rootCmd = &cobra.Command{
	Use:   "skillforgectl",
	Short: "Operate skill-to-sandbox pipelines and sandboxes",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&hostFlag, "host", "http://localhost:8080", "skillforged host API base URL")
	rootCmd.AddCommand(uploadCmd, pipelineCmd, sandboxCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
