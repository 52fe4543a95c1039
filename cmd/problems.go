package cmd

import (
	"github.com/dojo-hq/dojo-cli/internal/api"
	"github.com/dojo-hq/dojo-cli/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagDifficulty string
	flagPlatform   string
	flagTags       []string
	flagSearch     string
)

var problemsCmd = &cobra.Command{
	Use:     "problems",
	Aliases: []string{"p"},
	Short:   "Browse tracked problems",
	Long: `List problems tracked by the platform, filtered by difficulty,
platform, tags or a text search.

Examples:
  dojo problems
  dojo problems --difficulty hard --platform codeforces
  dojo problems --search "two pointers"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := roomsClient()
		if err != nil {
			return err
		}
		problems, err := client.ListProblems(cmd.Context(), api.ProblemFilters{
			Difficulty: flagDifficulty,
			Platform:   flagPlatform,
			Tags:       flagTags,
			Search:     flagSearch,
		})
		if err != nil {
			return loginHint(err)
		}
		if len(problems) == 0 {
			ui.PrintInfo("No problems match")
			return nil
		}
		ui.RenderProblemsTable(problems)
		return nil
	},
}

var contestsCmd = &cobra.Command{
	Use:   "contests",
	Short: "Show upcoming contests",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := roomsClient()
		if err != nil {
			return err
		}
		contests, err := client.UpcomingContests(cmd.Context())
		if err != nil {
			return loginHint(err)
		}
		if len(contests) == 0 {
			ui.PrintInfo("No upcoming contests")
			return nil
		}
		ui.RenderContestsTable(contests)
		return nil
	},
}

var sheetsCmd = &cobra.Command{
	Use:   "sheets [sheet-id]",
	Short: "Browse curated problem sheets",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := roomsClient()
		if err != nil {
			return err
		}
		if len(args) == 1 {
			sheet, err := client.GetSheet(cmd.Context(), args[0])
			if err != nil {
				return loginHint(err)
			}
			ui.PrintInfof("%s — %s", sheet.Name, sheet.Description)
			ui.RenderProblemsTable(sheet.Problems)
			return nil
		}
		sheets, err := client.ListSheets(cmd.Context())
		if err != nil {
			return loginHint(err)
		}
		if len(sheets) == 0 {
			ui.PrintInfo("No sheets yet")
			return nil
		}
		ui.RenderSheetsTable(sheets)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(problemsCmd)
	rootCmd.AddCommand(contestsCmd)
	rootCmd.AddCommand(sheetsCmd)

	problemsCmd.Flags().StringVar(&flagDifficulty, "difficulty", "", "Filter by difficulty (easy|medium|hard)")
	problemsCmd.Flags().StringVar(&flagPlatform, "platform", "", "Filter by platform")
	problemsCmd.Flags().StringSliceVar(&flagTags, "tag", nil, "Filter by tag (repeatable)")
	problemsCmd.Flags().StringVar(&flagSearch, "search", "", "Text search in titles")
}
