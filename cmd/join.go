package cmd

import (
	"context"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dojo-hq/dojo-cli/internal/api"
	"github.com/dojo-hq/dojo-cli/internal/config"
	"github.com/dojo-hq/dojo-cli/internal/media"
	"github.com/dojo-hq/dojo-cli/internal/room"
	"github.com/dojo-hq/dojo-cli/internal/rtc"
	"github.com/dojo-hq/dojo-cli/internal/signaling"
	"github.com/dojo-hq/dojo-cli/internal/ui"
	pion "github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"
)

var (
	flagJoinCode  string
	flagSTUN      string
	flagTURN      string
	flagTURNUser  string
	flagTURNPass  string
	flagAudioFile string
	flagVideoFile string
	flagReconnect bool
)

var joinCmd = &cobra.Command{
	Use:     "join [room-id]",
	Aliases: []string{"j"},
	Short:   "Join a collaborative room",
	Long: `Join a room by id or invite code and open the live view: chat with the
other participants and start a voice or video call over a direct
peer-to-peer connection.

Audio and video are sourced from capture files (--audio-file takes an
Ogg/Opus file, --video-file an IVF/VP8 file); without them the call
intents fail with a device error while chat keeps working.

Examples:
  dojo join 4f7c2a1e
  dojo join --room-code BLUE-TIGER-42
  dojo join 4f7c2a1e --audio-file mic.ogg --video-file cam.ivf`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID := ""
		if len(args) == 1 {
			roomID = args[0]
		}
		if roomID == "" && flagJoinCode == "" {
			return fmt.Errorf("pass a room id or --room-code")
		}
		return joinRoom(cmd.Context(), roomID)
	},
}

func joinRoom(ctx context.Context, roomID string) error {
	cfg, err := LoadConfig(config.Options{
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
		AudioFile:  flagAudioFile,
		VideoFile:  flagVideoFile,
		Reconnect:  flagReconnect,
	})
	if err != nil {
		return err
	}

	client, err := NewAPIClient(cfg)
	if err != nil {
		return err
	}
	user, err := client.Me(ctx)
	if err != nil {
		return loginHint(err)
	}

	target, err := enterRoom(ctx, client, roomID)
	if err != nil {
		return loginHint(err)
	}

	stopSpinner := ui.RunConnectionSpinner("Connecting to room...")
	defer stopSpinner()

	transport := signaling.NewClient(signaling.ClientConfig{
		BuildURL:    cfg.WebSocketURL,
		Credential:  client.EnsureFreshToken,
		DisplayName: user.Username,
	})
	if err := transport.Connect(ctx, target.ID); err != nil {
		return err
	}

	session := room.NewSession(room.Config{
		RoomID:    target.ID,
		SelfID:    user.ID,
		SelfName:  user.Username,
		Transport: transport,
		Media: &media.FileProvider{
			AudioPath: cfg.AudioFile,
			VideoPath: cfg.VideoFile,
		},
		NewConnection: func() (*pion.PeerConnection, error) { return rtc.NewPeerConnection(cfg) },
		Reconnect:     cfg.Reconnect,
		Redial: func(ctx context.Context) error {
			return transport.Connect(ctx, target.ID)
		},
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go session.Run(runCtx)
	stopSpinner()

	program := tea.NewProgram(
		ui.NewRoomModel(session, target.Name, user.Username),
		tea.WithAltScreen(),
	)
	if _, err := program.Run(); err != nil {
		session.LeaveRoom()
		return err
	}

	session.LeaveRoom()
	if err := client.LeaveRoom(ctx, target.ID); err != nil {
		slog.Debug("rest leave failed", "room", target.ID, "error", err)
	}
	return nil
}

// enterRoom resolves the target room and registers the membership with
// the platform before the realtime connection is opened.
func enterRoom(ctx context.Context, client *api.Client, roomID string) (*api.Room, error) {
	if flagJoinCode != "" {
		return client.JoinRoomByCode(ctx, flagJoinCode)
	}
	target, err := client.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := client.JoinRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return target, nil
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().StringVar(&flagJoinCode, "room-code", "", "Join by invite code instead of room id")
	joinCmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	joinCmd.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	joinCmd.Flags().StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	joinCmd.Flags().StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	joinCmd.Flags().StringVar(&flagAudioFile, "audio-file", "", "Ogg/Opus capture file for the microphone track")
	joinCmd.Flags().StringVar(&flagVideoFile, "video-file", "", "IVF/VP8 capture file for the camera track")
	joinCmd.Flags().BoolVar(&flagReconnect, "reconnect", false, "Redial once after a dropped connection")
}
