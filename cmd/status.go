package main

import (
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Describe the current state of previously provisioned resources.",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := buildApp(cmd)
		if err != nil {
			return err
		}

		rows, err := application.Inspector.Status(cmd.Context())
		if err != nil {
			return err
		}
		return application.Reporter.ReportInspection(cmd.Context(), rows)
	},
}
