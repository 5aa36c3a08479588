package main

import (
	"github.com/spf13/cobra"
)

var statusOutput string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue and sync status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		a.gate.Refresh(cmd.Context())
		status, err := a.scheduler.GetStatus(cmd.Context())
		if err != nil {
			return err
		}
		return printStructured(cmd.OutOrStdout(), statusOutput, status)
	},
}

func init() {
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", outputYAML, "output format: json or yaml")
	rootCmd.AddCommand(statusCmd)
}
