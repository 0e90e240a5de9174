package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/SK124/Swamp/internal/chat"
	"github.com/SK124/Swamp/internal/room"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const chatHistory = 50

// ChatClient is the part of chat.Client the room view uses.
type ChatClient interface {
	Send(text string) (chat.Message, error)
	Messages() <-chan chat.Message
	Connected() bool
	Close()
}

// RoomOptions configure a RoomModel.
type RoomOptions struct {
	Role         room.Role
	SwampID      string
	Events       <-chan room.Event
	Info         *RoomInfo
	FallbackLink string

	// ChatOnly renders just the chat pane. Events may be nil.
	ChatOnly bool

	// Chat is an already open chat. Otherwise DialChat, when set, is called
	// with ChatUUID at start or with the swamp UUID once it is resolved.
	Chat     ChatClient
	DialChat func(uuid string) (ChatClient, error)
	ChatUUID string
}

type sessionEventMsg room.Event

type sessionEndedMsg struct{}

type chatMessageMsg chat.Message

type chatClosedMsg struct{}

type chatReadyMsg struct{ client ChatClient }

type chatFailedMsg struct{ err error }

var errChatClosed = errors.New("chat disconnected")

// RoomModel is the live view of one room session.
type RoomModel struct {
	opts    RoomOptions
	status  Status
	spinner spinner.Model
	input   textinput.Model

	chat     ChatClient
	dialing  bool
	messages []chat.Message
	chatErr  error
	ended    bool
	width    int
}

func NewRoomModel(opts RoomOptions) *RoomModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	in := textinput.New()
	in.Placeholder = "Connecting…"
	in.CharLimit = 500
	in.Width = 50
	if opts.Chat != nil {
		in.Focus()
	}

	return &RoomModel{
		opts: opts,
		chat: opts.Chat,
		status: Status{
			Role:         opts.Role,
			FallbackLink: opts.FallbackLink,
		},
		spinner: s,
		input:   in,
		width:   80,
	}
}

// Status returns the folded session status.
func (m *RoomModel) Status() Status { return m.status }

func (m *RoomModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick}
	if m.opts.Events != nil {
		cmds = append(cmds, m.waitForEvent())
	}
	switch {
	case m.chat != nil:
		cmds = append(cmds, m.waitForChat(), textinput.Blink)
	case m.opts.ChatUUID != "":
		cmds = append(cmds, m.dialChat(m.opts.ChatUUID))
	}
	return tea.Batch(cmds...)
}

// Close closes the chat if one was opened.
func (m *RoomModel) Close() {
	if m.chat != nil {
		m.chat.Close()
	}
}

func (m *RoomModel) dialChat(uuid string) tea.Cmd {
	dial := m.opts.DialChat
	if dial == nil || m.dialing {
		return nil
	}
	m.dialing = true
	return func() tea.Msg {
		c, err := dial(uuid)
		if err != nil {
			return chatFailedMsg{err}
		}
		return chatReadyMsg{c}
	}
}

func (m *RoomModel) waitForEvent() tea.Cmd {
	events := m.opts.Events
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return sessionEndedMsg{}
		}
		return sessionEventMsg(e)
	}
}

func (m *RoomModel) waitForChat() tea.Cmd {
	msgs := m.chat.Messages()
	return func() tea.Msg {
		msg, ok := <-msgs
		if !ok {
			return chatClosedMsg{}
		}
		return chatMessageMsg(msg)
	}
}

func (m *RoomModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			m.sendChat()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(20, min(80, msg.Width-10))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case sessionEventMsg:
		m.status.Apply(room.Event(msg))
		cmds = append(cmds, m.waitForEvent())
		if msg.SwampUUID != "" && m.chat == nil {
			cmds = append(cmds, m.dialChat(msg.SwampUUID))
		}
		return m, tea.Batch(cmds...)

	case chatReadyMsg:
		m.chat = msg.client
		m.input.Focus()
		return m, tea.Batch(m.waitForChat(), textinput.Blink)

	case chatFailedMsg:
		m.chatErr = msg.err
		if m.opts.ChatOnly {
			return m, tea.Quit
		}
		return m, nil

	case sessionEndedMsg:
		m.ended = true
		return m, tea.Quit

	case chatMessageMsg:
		m.appendMessage(chat.Message(msg))
		return m, m.waitForChat()

	case chatClosedMsg:
		m.chatErr = errChatClosed
		m.input.Blur()
		if m.opts.ChatOnly {
			return m, tea.Quit
		}
		return m, nil
	}

	if m.chat != nil {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *RoomModel) sendChat() {
	if m.chat == nil {
		return
	}
	sent, err := m.chat.Send(m.input.Value())
	switch {
	case err == nil:
		m.appendMessage(sent)
		m.input.SetValue("")
		m.chatErr = nil
	case errors.Is(err, chat.ErrEmptyMessage):
	default:
		m.chatErr = err
	}
}

func (m *RoomModel) appendMessage(msg chat.Message) {
	m.messages = append(m.messages, msg)
	if len(m.messages) > chatHistory {
		m.messages = m.messages[len(m.messages)-chatHistory:]
	}
}

func (m *RoomModel) View() string {
	var b strings.Builder

	if m.opts.ChatOnly {
		b.WriteString(HeaderStyle.Render(fmt.Sprintf("%s The Swamp - Chat %s", IconChat, m.opts.ChatUUID)))
		b.WriteString("\n")
		if m.chat != nil {
			b.WriteString(m.viewChat())
		} else if m.chatErr != nil {
			b.WriteString(FormatError(m.chatErr) + "\n")
		} else {
			b.WriteString(fmt.Sprintf("%s Connecting...\n", m.spinner.View()))
		}
		b.WriteString(FooterStyle.Render("Press Esc or Ctrl+C to leave"))
		return ContainerStyle.Render(b.String())
	}

	icon, title := IconWatch, "Watching"
	if m.opts.Role == room.Broadcaster {
		icon, title = IconBroadcast, "Broadcasting"
	}
	b.WriteString(HeaderStyle.Render(fmt.Sprintf("%s The Swamp - %s %s", icon, title, m.opts.SwampID)))
	b.WriteString("\n")

	if m.opts.Info != nil && m.opts.Role == room.Broadcaster {
		b.WriteString(m.opts.Info.View())
		b.WriteString("\n")
	}

	b.WriteString(m.viewState())
	b.WriteString("\n")
	b.WriteString(MutedStyle.Render(fmt.Sprintf("%s Viewers: %d", IconViewers, m.status.Viewers())))
	b.WriteString("\n")

	for _, banner := range m.status.Banners() {
		b.WriteString(banner.View())
		b.WriteString("\n")
	}

	for _, id := range m.status.Streams {
		fmt.Fprintf(&b, "  %s %s\n", IconPeer, id)
	}
	if p := m.status.Peer; p != nil {
		b.WriteString(MutedStyle.Render(fmt.Sprintf("  peer device: %s %s", p.DeviceName, p.DeviceVersion)))
		b.WriteString("\n")
	}

	if m.chat != nil {
		b.WriteString(m.viewChat())
	} else if m.chatErr != nil {
		b.WriteString(IconChat + " " + FormatError(m.chatErr) + "\n")
	}

	if m.ended {
		b.WriteString(FooterStyle.Render("Session ended"))
	} else {
		b.WriteString(FooterStyle.Render("Press Esc or Ctrl+C to leave"))
	}
	return ContainerStyle.Render(b.String())
}

func (m *RoomModel) viewState() string {
	switch m.status.State {
	case room.StateResolving:
		return fmt.Sprintf("%s Resolving swamp...", m.spinner.View())
	case room.StateAcquiring:
		return fmt.Sprintf("%s Opening camera and microphone...", m.spinner.View())
	case room.StateConnecting:
		return fmt.Sprintf("%s %s Connecting...", m.spinner.View(), IconConnect)
	case room.StateConnected:
		return StatusStyle.Render("LIVE")
	case room.StateClosed:
		return fmt.Sprintf("%s %s %s", m.spinner.View(), IconWaiting, WarningStyle.Render("Waiting to reconnect"))
	default:
		return ErrorStyle.Render(IconError + " " + m.status.State.String())
	}
}

func (m *RoomModel) viewChat() string {
	var lines []string
	lines = append(lines, BoldStyle.Render(IconChat+" Live Chat"))
	for _, msg := range m.messages {
		lines = append(lines, ChatUserStyle.Render(msg.User+":")+" "+msg.Text)
	}

	if m.chat.Connected() {
		m.input.Placeholder = "Type a message…"
	} else {
		m.input.Placeholder = "Connecting…"
	}
	lines = append(lines, m.input.View())
	if m.chatErr != nil {
		lines = append(lines, FormatError(m.chatErr))
	}
	return ChatBoxStyle.Render(strings.Join(lines, "\n")) + "\n"
}
