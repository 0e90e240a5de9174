// Package chat is the room-scoped text channel that runs next to a stream.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/SK124/Swamp/internal/metrics"
	"github.com/SK124/Swamp/internal/signaling"
)

// UnknownUser is shown for frames that are not chat messages.
const UnknownUser = "Unknown"

// DefaultUser is the sender name used when none is configured.
const DefaultUser = "Me"

var (
	ErrNotConnected = errors.New("chat is not connected")
	ErrEmptyMessage = errors.New("message is empty")
)

type Message struct {
	User string `json:"user"`
	Text string `json:"text"`
}

// Decode parses a chat frame. Frames that are not a JSON message are kept
// verbatim under UnknownUser.
func Decode(frame []byte) Message {
	var m Message
	if err := json.Unmarshal(frame, &m); err != nil {
		return Message{User: UnknownUser, Text: string(frame)}
	}
	if m.User == "" {
		m.User = UnknownUser
	}
	return m
}

// Client is one connection to a swamp's chat channel.
type Client struct {
	user   string
	logger *slog.Logger

	sock      *signaling.Client
	messages  chan Message
	connected atomic.Bool
	closeOnce sync.Once
}

// Dial connects to the chat socket at url and starts delivering messages.
func Dial(ctx context.Context, url, user string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if user = strings.TrimSpace(user); user == "" {
		user = DefaultUser
	}

	sock := signaling.NewClient(url, logger)
	if err := sock.Dial(ctx); err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}

	c := &Client{
		user:     user,
		logger:   logger.With("channel", "chat"),
		sock:     sock,
		messages: make(chan Message, 64),
	}
	c.connected.Store(true)

	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer func() {
		c.connected.Store(false)
		close(c.messages)
		c.logger.Debug("chat disconnected")
	}()

	for frame := range c.sock.Incoming() {
		m := Decode(frame)
		metrics.ChatMessagesTotal.WithLabelValues("in").Inc()
		select {
		case c.messages <- m:
		case <-c.sock.Done():
			return
		}
	}
}

// Messages delivers received messages in order. It is closed when the
// socket closes.
func (c *Client) Messages() <-chan Message {
	return c.messages
}

// Send trims text and sends it as the configured user.
func (c *Client) Send(text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}
	if !c.Connected() {
		return Message{}, ErrNotConnected
	}

	m := Message{User: c.user, Text: text}
	frame, err := json.Marshal(m)
	if err != nil {
		return Message{}, err
	}
	if err := c.sock.SendRaw(frame); err != nil {
		if errors.Is(err, signaling.ErrClosed) {
			return Message{}, ErrNotConnected
		}
		return Message{}, err
	}
	metrics.ChatMessagesTotal.WithLabelValues("out").Inc()
	return m, nil
}

// Connected reports whether the socket is open.
func (c *Client) Connected() bool {
	select {
	case <-c.sock.Done():
		return false
	default:
		return c.connected.Load()
	}
}

// User returns the sender name used by Send.
func (c *Client) User() string { return c.user }

// Done is closed once the socket has closed.
func (c *Client) Done() <-chan struct{} {
	return c.sock.Done()
}

func (c *Client) Close() {
	c.closeOnce.Do(c.sock.Close)
}
