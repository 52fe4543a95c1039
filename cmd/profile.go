package cmd

import (
	"github.com/dojo-hq/dojo-cli/internal/ui"
	"github.com/spf13/cobra"
)

var flagSyncPlatforms []string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show your synced platform statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := roomsClient()
		if err != nil {
			return err
		}
		stats, err := client.GetProfileStats(cmd.Context())
		if err != nil {
			return loginHint(err)
		}
		if len(stats) == 0 {
			ui.PrintInfo("No platform stats yet, run 'dojo sync' first")
			return nil
		}
		ui.RenderStatsTable(stats)
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync stats from the linked platforms",
	Long: `Trigger a server-side sync of your solved counts and ratings from the
platforms linked in your profile.

Examples:
  dojo sync
  dojo sync --platform leetcode --platform codeforces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := roomsClient()
		if err != nil {
			return err
		}
		stopSpinner := ui.RunSpinner("Syncing platform stats...")
		defer stopSpinner()
		if err := client.SyncPlatforms(cmd.Context(), flagSyncPlatforms); err != nil {
			return loginHint(err)
		}
		stopSpinner()
		ui.PrintSuccess("Sync complete")

		stats, err := client.GetProfileStats(cmd.Context())
		if err != nil {
			return nil
		}
		ui.RenderStatsTable(stats)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringSliceVar(&flagSyncPlatforms, "platform", nil, "Platform to sync (repeatable, default all)")
}
