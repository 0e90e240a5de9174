// Package signalingtest runs an in-process room relay for tests. Clients
// connect to /room/{id}/websocket or /room/{id}/chat/websocket; tests push
// frames to them, read what they sent and force their sockets closed.
package signalingtest

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SK124/Swamp/internal/signaling"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 5 * time.Second
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  maxMessageSize,
	WriteBufferSize: maxMessageSize,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Server is a room-scoped relay. With Relay set, every frame a client sends
// is forwarded to the other clients of the same room and channel, which is
// how the chat channel behaves.
type Server struct {
	Relay bool

	srv      *httptest.Server
	accepted chan *Conn

	mu    sync.Mutex
	rooms map[string]map[*Conn]struct{}
}

// NewServer starts a relay that is shut down when the test ends.
func NewServer(tb testing.TB) *Server {
	tb.Helper()

	s := &Server{
		accepted: make(chan *Conn, 64),
		rooms:    make(map[string]map[*Conn]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/room/{id}/websocket", s.serveWs(false))
	mux.HandleFunc("/room/{id}/chat/websocket", s.serveWs(true))
	s.srv = httptest.NewServer(mux)

	tb.Cleanup(s.Close)
	return s
}

// URL returns the media signaling address for room.
func (s *Server) URL(room string) string {
	return s.base() + "/room/" + room + "/websocket"
}

// ChatURL returns the chat address for room.
func (s *Server) ChatURL(room string) string {
	return s.base() + "/room/" + room + "/chat/websocket"
}

// Host returns host:port of the relay.
func (s *Server) Host() string {
	return strings.TrimPrefix(s.srv.URL, "http://")
}

func (s *Server) base() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

// Accept waits for the next client connection.
func (s *Server) Accept(tb testing.TB, timeout time.Duration) *Conn {
	tb.Helper()
	select {
	case c := <-s.accepted:
		return c
	case <-time.After(timeout):
		tb.Fatalf("no signaling connection within %s", timeout)
		return nil
	}
}

// Conns returns how many clients are connected to room right now.
func (s *Server) Conns(room string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for c := range s.rooms[room] {
		if !c.Closed() {
			n++
		}
	}
	return n
}

// Close stops the relay and drops every connection.
func (s *Server) Close() {
	s.mu.Lock()
	var all []*Conn
	for _, members := range s.rooms {
		for c := range members {
			all = append(all, c)
		}
	}
	s.mu.Unlock()

	for _, c := range all {
		c.Close()
	}
	s.srv.Close()
}

func (s *Server) serveWs(chat bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		room := r.PathValue("id")
		if chat {
			room += "/chat"
		}

		c := &Conn{
			Room:     room,
			ws:       ws,
			server:   s,
			send:     make(chan []byte, 64),
			received: make(chan []byte, 64),
			done:     make(chan struct{}),
		}
		s.register(c)

		go c.writePump()
		go c.readPump()

		s.accepted <- c
	}
}

func (s *Server) register(c *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.rooms[c.Room]
	if !ok {
		members = make(map[*Conn]struct{})
		s.rooms[c.Room] = members
	}
	members[c] = struct{}{}
}

func (s *Server) unregister(c *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if members, ok := s.rooms[c.Room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(s.rooms, c.Room)
		}
	}
}

func (s *Server) relay(from *Conn, frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.rooms[from.Room] {
		if c != from {
			c.Push(frame)
		}
	}
}

// Conn is the relay side of one client socket.
type Conn struct {
	Room string

	ws       *websocket.Conn
	server   *Server
	send     chan []byte
	received chan []byte
	done     chan struct{}
	once     sync.Once
}

// ErrConnClosed is returned when pushing to a closed connection.
var ErrConnClosed = errors.New("signalingtest: connection closed")

// Push queues a raw frame for the client.
func (c *Conn) Push(frame []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	case c.send <- frame:
		return nil
	}
}

// PushSignal encodes and queues a signaling message for the client.
func (c *Conn) PushSignal(s signaling.Signal) error {
	frame, err := signaling.Encode(s)
	if err != nil {
		return err
	}
	return c.Push(frame)
}

// Next returns the next frame the client sent.
func (c *Conn) Next(timeout time.Duration) ([]byte, bool) {
	select {
	case frame := <-c.received:
		return frame, true
	case <-time.After(timeout):
		return nil, false
	}
}

// NextSignal returns the next frame the client sent that decodes as kind.
func (c *Conn) NextSignal(kind signaling.Event, timeout time.Duration) (signaling.Signal, bool) {
	deadline := time.After(timeout)
	for {
		select {
		case frame := <-c.received:
			s, err := signaling.Decode(frame)
			if err == nil && s.Kind == kind {
				return s, true
			}
		case <-deadline:
			return signaling.Signal{}, false
		}
	}
}

// Received exposes the raw frames sent by the client.
func (c *Conn) Received() <-chan []byte {
	return c.received
}

// Close force-closes the socket without a close handshake.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
		c.server.unregister(c)
	})
}

// Closed reports whether the connection has gone away.
func (c *Conn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Done is closed when the connection goes away.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) readPump() {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		if c.server.Relay {
			c.server.relay(c, frame)
		}
		select {
		case c.received <- frame:
		default:
			// Tests that never read must not stall the relay.
		}
	}
}

func (c *Conn) writePump() {
	for {
		select {
		case frame := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
