package main

import (
	"github.com/spf13/cobra"

	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
)

var verifyAllKeys bool

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Diff the provisioning record against live resource state.",
	Long: `verify re-describes every recorded resource and compares the persisted
outputs with the live values. A non-zero exit means the record no longer
matches reality, e.g. a resource was recreated out of band.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := buildApp(cmd)
		if err != nil {
			return err
		}

		rows, err := application.Inspector.Verify(cmd.Context(), !verifyAllKeys)
		if err != nil {
			return err
		}
		if err := application.Reporter.ReportInspection(cmd.Context(), rows); err != nil {
			return err
		}

		for _, row := range rows {
			if row.Drift != "" || (row.Recorded && !row.Found) {
				return apperrors.New(apperrors.CodeResourceFailed,
					"provisioning record does not match live resource state")
			}
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyAllKeys, "all-keys", false,
		"Also flag live output keys the record never carried")
}
