package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dojo-hq/dojo-cli/internal/room"
)

// sessionEventMsg wraps a room session event for bubbletea.
type sessionEventMsg struct {
	event room.Event
}

// sessionDoneMsg reports that the session dispatch loop has exited.
type sessionDoneMsg struct{}

// RoomModel is the interactive room view: chat log, roster, call state
// and a composer. It consumes the session's event stream and issues user
// intents back to it; all room state mutation stays in the session.
type RoomModel struct {
	session  *room.Session
	roomName string
	selfName string

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	messages     []room.ChatMessage
	roster       []room.Participant
	remoteMedia  map[string]map[string]bool // peer id -> set of track kinds
	callActive   bool
	micOn        bool
	videoOn      bool
	notice       string
	disconnected bool

	width    int
	height   int
	ready    bool
	quitting bool
}

// NewRoomModel creates the room view over a running session.
func NewRoomModel(session *room.Session, roomName, selfName string) *RoomModel {
	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.CharLimit = 512
	input.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &RoomModel{
		session:     session,
		roomName:    roomName,
		selfName:    selfName,
		input:       input,
		spinner:     s,
		remoteMedia: make(map[string]map[string]bool),
	}
}

func (m *RoomModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForEvent())
}

// waitForEvent blocks on the session's event stream and delivers the
// next event as a bubbletea message.
func (m *RoomModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case event := <-m.session.Events():
			return sessionEventMsg{event: event}
		case <-m.session.Done():
			return sessionDoneMsg{}
		}
	}
}

func (m *RoomModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			m.session.LeaveRoom()
			return m, tea.Quit

		case "enter":
			m.session.SendChat(m.input.Value())
			m.input.Reset()
			return m, nil

		case "ctrl+o":
			if m.callActive {
				m.session.StopCall()
			} else if err := m.session.StartCall(context.Background()); err != nil {
				m.notice = err.Error()
			}
			return m, nil

		case "ctrl+t":
			if m.callActive {
				m.session.ToggleMic()
			}
			return m, nil

		case "ctrl+y":
			if m.callActive {
				m.session.ToggleVideo()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		chatHeight := max(msg.Height-9, 3)
		if !m.ready {
			m.viewport = viewport.New(msg.Width-2, chatHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 2
			m.viewport.Height = chatHeight
		}
		m.refreshChat()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case sessionEventMsg:
		m.applyEvent(msg.event)
		cmds = append(cmds, m.waitForEvent())

	case sessionDoneMsg:
		if !m.quitting {
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *RoomModel) applyEvent(event room.Event) {
	switch event := event.(type) {
	case room.ChatEvent:
		m.messages = append(m.messages, event.Message)
		m.refreshChat()
		m.viewport.GotoBottom()

	case room.RosterEvent:
		m.roster = event.Participants

	case room.CallEvent:
		m.callActive = event.Active
		m.micOn = event.MicOn
		m.videoOn = event.VideoOn
		if !event.Active {
			m.remoteMedia = make(map[string]map[string]bool)
		}

	case room.RemoteTrackEvent:
		kinds := m.remoteMedia[event.PeerID]
		if kinds == nil {
			kinds = make(map[string]bool)
			m.remoteMedia[event.PeerID] = kinds
		}
		kinds[event.Kind] = true

	case room.PeerGoneEvent:
		delete(m.remoteMedia, event.PeerID)

	case room.NoticeEvent:
		m.notice = event.Text

	case room.DisconnectedEvent:
		m.disconnected = true
	}
}

func (m *RoomModel) refreshChat() {
	if !m.ready {
		return
	}
	var b strings.Builder
	for _, msg := range m.messages {
		if msg.System {
			b.WriteString(ChatSystemStyle.Render("— "+msg.Content) + "\n")
			continue
		}
		b.WriteString(fmt.Sprintf("%s %s %s\n",
			ChatTimeStyle.Render(msg.ReceivedAt.Format("15:04")),
			ChatSenderStyle.Render(msg.Sender+":"),
			msg.Content,
		))
	}
	m.viewport.SetContent(b.String())
}

func (m *RoomModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return fmt.Sprintf("\n %s Entering room...", m.spinner.View())
	}

	var b strings.Builder

	status := SuccessStyle.Render("connected")
	if m.disconnected {
		status = ErrorStyle.Render("disconnected")
	}
	b.WriteString(fmt.Sprintf("%s %s  %s\n",
		IconRoom, TitleStyle.Render(m.roomName), status))

	b.WriteString(m.viewport.View() + "\n")

	b.WriteString(m.rosterLine() + "\n")
	b.WriteString(m.callLine() + "\n")

	if m.notice != "" {
		b.WriteString(WarningStyle.Render(m.notice) + "\n")
	}

	b.WriteString(m.input.View() + "\n")
	b.WriteString(MutedStyle.Render("enter send · ctrl+o call · ctrl+t mic · ctrl+y camera · esc leave"))

	return b.String()
}

func (m *RoomModel) rosterLine() string {
	if len(m.roster) == 0 {
		return MutedStyle.Render("nobody else here yet")
	}
	names := make([]string, 0, len(m.roster))
	for _, p := range m.roster {
		names = append(names, p.Username)
	}
	return fmt.Sprintf("%s %s %s", IconPeer,
		RosterHeaderStyle.Render(fmt.Sprintf("%d online:", len(m.roster))),
		strings.Join(names, ", "))
}

func (m *RoomModel) callLine() string {
	if !m.callActive {
		return MutedStyle.Render("no call in progress")
	}
	mic := IconMic + " on"
	if !m.micOn {
		mic = IconMic + " muted"
	}
	cam := IconCamera + " on"
	if !m.videoOn {
		cam = IconCamera + " off"
	}

	tiles := make([]string, 0, len(m.remoteMedia))
	for peerID, kinds := range m.remoteMedia {
		name := peerID
		for _, p := range m.roster {
			if p.ID == peerID {
				name = p.Username
				break
			}
		}
		media := make([]string, 0, len(kinds))
		for kind := range kinds {
			media = append(media, kind)
		}
		tiles = append(tiles, fmt.Sprintf("%s(%s)", name, strings.Join(media, "+")))
	}

	line := fmt.Sprintf("%s call active · %s · %s", IconConnect, mic, cam)
	if len(tiles) > 0 {
		line += " · " + strings.Join(tiles, " ")
	}
	return StatusStyle.Render(line)
}
