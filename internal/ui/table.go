package ui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dojo-hq/dojo-cli/internal/api"
	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	return t
}

// RenderRoomsTable prints the room listing.
func RenderRoomsTable(rooms []api.Room) {
	if len(rooms) == 0 {
		fmt.Println(MutedStyle.Render("No active rooms"))
		return
	}
	t := newTable()
	t.AppendHeader(table.Row{"Name", "Code", "Participants", "Active", "Description"})
	for _, r := range rooms {
		active := ""
		if r.IsActive {
			active = IconSuccess
		}
		t.AppendRow(table.Row{
			r.Name,
			r.RoomCode,
			fmt.Sprintf("%d/%d", r.CurrentParticipants, r.MaxParticipants),
			active,
			truncate(r.Description, 40),
		})
	}
	t.Render()
}

// RenderProblemsTable prints a problem listing.
func RenderProblemsTable(problems []api.Problem) {
	if len(problems) == 0 {
		fmt.Println(MutedStyle.Render("No problems match"))
		return
	}
	t := newTable()
	t.AppendHeader(table.Row{"Title", "Difficulty", "Platform", "Tags"})
	for _, p := range problems {
		t.AppendRow(table.Row{
			truncate(p.Title, 48),
			p.Difficulty,
			p.Platform,
			truncate(strings.Join(p.Tags, ", "), 32),
		})
	}
	t.Render()
}

// RenderContestsTable prints the upcoming contest calendar.
func RenderContestsTable(contests []api.Contest) {
	if len(contests) == 0 {
		fmt.Println(MutedStyle.Render("No upcoming contests"))
		return
	}
	t := newTable()
	t.AppendHeader(table.Row{"Contest", "Platform", "Starts", "Duration"})
	for _, c := range contests {
		t.AppendRow(table.Row{
			truncate(c.Name, 48),
			c.Platform,
			c.StartTime.Local().Format("Mon Jan 2 15:04"),
			(time.Duration(c.DurationSeconds) * time.Second).String(),
		})
	}
	t.Render()
}

// RenderSheetsTable prints the sheet listing.
func RenderSheetsTable(sheets []api.Sheet) {
	if len(sheets) == 0 {
		fmt.Println(MutedStyle.Render("No sheets"))
		return
	}
	t := newTable()
	t.AppendHeader(table.Row{"Name", "Problems", "Public", "Description"})
	for _, s := range sheets {
		public := ""
		if s.IsPublic {
			public = IconSuccess
		}
		t.AppendRow(table.Row{s.Name, len(s.Problems), public, truncate(s.Description, 40)})
	}
	t.Render()
}

// RenderStatsTable prints per-platform profile stats.
func RenderStatsTable(stats api.ProfileStats) {
	if len(stats) == 0 {
		fmt.Println(MutedStyle.Render("No platform stats synced yet"))
		return
	}
	t := newTable()
	t.AppendHeader(table.Row{"Platform", "Rating", "Max", "Solved", "Rank", "Contests", "Synced"})
	for _, platform := range []string{"leetcode", "codeforces", "codechef", "geeksforgeeks"} {
		s, ok := stats[platform]
		if !ok {
			continue
		}
		t.AppendRow(table.Row{
			platform, s.Rating, s.MaxRating, s.SolvedCount, s.GlobalRank,
			s.ContestsAttended, truncate(s.LastSyncedAt, 19),
		})
	}
	t.Render()
}

// RoomInfoView renders the joined-room banner.
func RoomInfoView(room *api.Room) string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	content := fmt.Sprintf("%s %s\n\n%s Room Code:  %s\n%s Capacity:   %d participants",
		IconRoom, BoldStyle.Foreground(Primary).Render(room.Name),
		IconCopy, BoldStyle.Render(room.RoomCode),
		IconPeer, room.MaxParticipants,
	)

	return boxStyle.Render(content)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
