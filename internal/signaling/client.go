package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/SK124/Swamp/internal/dns"
	"github.com/SK124/Swamp/internal/metrics"
	"github.com/SK124/Swamp/internal/version"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	handshakeWait  = 10 * time.Second
	sendBuffer     = 32
	receiveBuffer  = 32
)

// ErrClosed is returned when sending on a socket that has closed.
var ErrClosed = errors.New("signaling socket closed")

// Client is one signaling socket. It carries raw text frames; Send encodes
// signaling messages and SendRaw is used by the chat channel.
type Client struct {
	serverURL string
	logger    *slog.Logger

	conn     *websocket.Conn
	incoming chan []byte
	outgoing chan []byte
	stop     chan struct{}
	done     chan struct{}

	stopOnce sync.Once
	doneOnce sync.Once
	mu       sync.Mutex
	dialed   bool
}

// NewClient creates a client for serverURL. Dial must be called before use.
func NewClient(serverURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		serverURL: serverURL,
		logger:    logger.With("url", serverURL),
		incoming:  make(chan []byte, receiveBuffer),
		outgoing:  make(chan []byte, sendBuffer),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Dial opens the socket. Once it returns nil the client is ready to send
// and receive.
func (c *Client) Dial(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid signaling URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid signaling URL scheme %q", u.Scheme)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dialed {
		return errors.New("signaling client already dialed")
	}
	select {
	case <-c.stop:
		return ErrClosed
	default:
	}

	dialer := websocket.Dialer{
		NetDialContext:   dns.DialContext,
		HandshakeTimeout: handshakeWait,
		Proxy:            http.ProxyFromEnvironment,
	}
	header := http.Header{}
	header.Set("User-Agent", version.ClientName+"/"+version.Version)

	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.conn = conn
	c.dialed = true

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readPump()
	go c.writePump()

	c.logger.Debug("signaling socket open")
	return nil
}

// readPump delivers frames in socket order and marks the client done when
// the socket closes for any reason.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
		c.finish()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		kind, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("signaling socket closed", "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		select {
		case c.incoming <- frame:
		case <-c.stop:
			return
		}
	}
}

// writePump serialises writes and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.stop:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-c.done:
			return
		}
	}
}

// Send encodes s and queues it for writing.
func (c *Client) Send(s Signal) error {
	frame, err := Encode(s)
	if err != nil {
		return err
	}
	if err := c.SendRaw(frame); err != nil {
		return err
	}
	metrics.SignalingMessagesTotal.WithLabelValues(string(s.Kind), "out").Inc()
	return nil
}

// SendRaw queues a text frame for writing.
func (c *Client) SendRaw(frame []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	case <-c.stop:
		return ErrClosed
	default:
	}

	select {
	case c.outgoing <- frame:
		return nil
	case <-c.done:
		return ErrClosed
	case <-c.stop:
		return ErrClosed
	}
}

// Incoming returns received frames in delivery order. It is closed when
// the socket closes.
func (c *Client) Incoming() <-chan []byte {
	return c.incoming
}

// Done is closed once the socket has closed, whatever the cause.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close shuts the socket down. It is safe to call more than once.
func (c *Client) Close() {
	c.stopOnce.Do(func() { close(c.stop) })

	c.mu.Lock()
	dialed := c.dialed
	c.mu.Unlock()
	if !dialed {
		c.doneOnce.Do(func() {
			close(c.incoming)
			close(c.done)
		})
	}
}

func (c *Client) finish() {
	c.doneOnce.Do(func() { close(c.done) })
}
