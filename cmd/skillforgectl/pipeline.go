package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Manage pipeline runs",
}

var pipelineStartCmd = &cobra.Command{
	Use:   "start <skill-id>",
	Short: "Start a new pipeline run for a skill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := doAPI("POST", fmt.Sprintf("/api/pipelines?skill_id=%s", args[0]), nil)
		if err != nil {
			return err
		}
		return printJSON(raw)
	},
}

var pipelineStatusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Show a pipeline run's current status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := apiGet("/api/runs/" + args[0])
		if err != nil {
			return err
		}
		return printJSON(raw)
	},
}

var pipelineApproveCmd = &cobra.Command{
	Use:   "approve <run-id>",
	Short: "Approve the reviewed sandbox spec and start the build",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := apiPost("/api/runs/" + args[0] + "/approve")
		return err
	},
}

var pipelineReanalyzeCmd = &cobra.Command{
	Use:   "reanalyze <run-id>",
	Short: "Re-run the analyzer from the reviewing state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := apiPost("/api/runs/" + args[0] + "/reanalyze")
		return err
	},
}

var pipelineRetryCmd = &cobra.Command{
	Use:   "retry <run-id>",
	Short: "Retry a failed pipeline run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := apiPost("/api/runs/" + args[0] + "/retry")
		return err
	},
}

func init() {
	pipelineCmd.AddCommand(pipelineStartCmd, pipelineStatusCmd, pipelineApproveCmd, pipelineReanalyzeCmd, pipelineRetryCmd)
}
