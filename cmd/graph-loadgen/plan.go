package main

import (
	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/config"
)

func newPlanCmd() *cobra.Command {
	var planPath string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the effective run plan as YAML",
		Long: `Print the run plan that "run" would execute. Without --plan this is the
default plan, which is a good starting point for a custom plan file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plan, err := config.LoadPlan(planPath)
			if err != nil {
				return err
			}

			return config.WritePlan(cmd.OutOrStdout(), plan)
		},
	}

	cmd.Flags().StringVar(&planPath, "plan", "", "Path to a YAML plan file (default: built-in plan)")

	return cmd
}
