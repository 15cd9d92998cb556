package main

import (
	"github.com/spf13/cobra"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create or resume the knowledge base resource chain.",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := buildApp(cmd)
		if err != nil {
			return err
		}
		return application.Provision(cmd.Context())
	},
}
