package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	env := &environment{}

	rootCmd := &cobra.Command{
		Use:   "gymctl",
		Short: "Operate gym attendance and settings data",
		Long:  `gymctl inspects monthly attendance, reports orphaned records, edits per-admin settings and issues development tokens against the configured store.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return env.open(cmd.Context(), cmd.Annotations[annotationStore] != storeNone)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return env.close(cmd.Context())
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&env.adminID, "admin", "a", "", "Admin id whose data is addressed")

	rootCmd.AddCommand(
		newOverviewCommand(env),
		newOrphansCommand(env),
		newSettingsCommand(env),
		newMembersCommand(env),
		newTokenCommand(env),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
