package main

import (
	"github.com/spf13/cobra"
)

var sandboxCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Control running sandboxes",
}

var sandboxLogsCmd = &cobra.Command{
	Use:   "logs <sandbox-id>",
	Short: "Show a sandbox's buffered log lines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := apiGet("/api/sandboxes/" + args[0] + "/logs")
		if err != nil {
			return err
		}
		return printJSON(raw)
	},
}

var sandboxStopCmd = &cobra.Command{
	Use:   "stop <sandbox-id>",
	Short: "Stop a sandbox's container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := apiPost("/api/sandboxes/" + args[0] + "/stop")
		return err
	},
}

var sandboxRestartCmd = &cobra.Command{
	Use:   "restart <sandbox-id>",
	Short: "Restart a sandbox's container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := apiPost("/api/sandboxes/" + args[0] + "/restart")
		return err
	},
}

var sandboxDestroyCmd = &cobra.Command{
	Use:   "destroy <sandbox-id>",
	Short: "Destroy a sandbox's container and stop monitoring it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := apiPost("/api/sandboxes/" + args[0] + "/destroy")
		return err
	},
}

func init() {
	sandboxCmd.AddCommand(sandboxLogsCmd, sandboxStopCmd, sandboxRestartCmd, sandboxDestroyCmd)
}
