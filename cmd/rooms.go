package cmd

import (
	"fmt"

	"github.com/dojo-hq/dojo-cli/internal/api"
	"github.com/dojo-hq/dojo-cli/internal/config"
	"github.com/dojo-hq/dojo-cli/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagRoomDescription string
	flagRoomMax         int
)

var roomsCmd = &cobra.Command{
	Use:     "rooms",
	Aliases: []string{"room"},
	Short:   "Manage collaborative rooms",
}

var roomsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List active rooms",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := roomsClient()
		if err != nil {
			return err
		}
		rooms, err := client.ListRooms(cmd.Context())
		if err != nil {
			return loginHint(err)
		}
		if len(rooms) == 0 {
			ui.PrintInfo("No active rooms")
			return nil
		}
		ui.RenderRoomsTable(rooms)
		return nil
	},
}

var roomsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := roomsClient()
		if err != nil {
			return err
		}
		room, err := client.CreateRoom(cmd.Context(), api.CreateRoomData{
			Name:            args[0],
			Description:     flagRoomDescription,
			MaxParticipants: flagRoomMax,
		})
		if err != nil {
			return loginHint(err)
		}
		fmt.Println(ui.RoomInfoView(room))
		ui.PrintInfof("Join with: dojo join %s", room.ID)
		return nil
	},
}

var roomsDeleteCmd = &cobra.Command{
	Use:   "delete <room-id>",
	Short: "Delete a room you created",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := roomsClient()
		if err != nil {
			return err
		}
		if err := client.DeleteRoom(cmd.Context(), args[0]); err != nil {
			return loginHint(err)
		}
		ui.PrintSuccess("Room deleted")
		return nil
	},
}

func roomsClient() (*api.Client, error) {
	cfg, err := LoadConfig(config.Options{})
	if err != nil {
		return nil, err
	}
	return NewAPIClient(cfg)
}

func init() {
	rootCmd.AddCommand(roomsCmd)
	roomsCmd.AddCommand(roomsListCmd)
	roomsCmd.AddCommand(roomsCreateCmd)
	roomsCmd.AddCommand(roomsDeleteCmd)

	roomsCreateCmd.Flags().StringVarP(&flagRoomDescription, "description", "d", "", "Room description")
	roomsCreateCmd.Flags().IntVarP(&flagRoomMax, "max", "m", 10, "Maximum participants")
}
