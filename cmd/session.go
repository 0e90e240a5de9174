package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/SK124/Swamp/internal/api"
	"github.com/SK124/Swamp/internal/chat"
	"github.com/SK124/Swamp/internal/config"
	"github.com/SK124/Swamp/internal/media"
	"github.com/SK124/Swamp/internal/media/devices"
	"github.com/SK124/Swamp/internal/room"
	"github.com/SK124/Swamp/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pion/webrtc/v4"
)

// roomTarget says which swamp to join and how.
type roomTarget struct {
	Role       room.Role
	SwampID    string
	StreamLink string
	ChatUUID   string
}

func newAPIClient(cfg *config.Config, logger *slog.Logger) (*api.Client, error) {
	return api.New(cfg.APIBaseURL, cfg.HTTPTimeout,
		api.WithToken(cfg.APIToken),
		api.WithLogger(logger),
	)
}

// runRoom drives one room session with the live view until the session
// ends, the user leaves or ctx is cancelled.
func runRoom(ctx context.Context, target roomTarget) error {
	logger := slog.Default().With("role", target.Role.String())

	watcher, err := config.NewWatcher(loadOptions(), logger)
	if err != nil {
		return err
	}
	cfg := watcher.Current()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := watcher.Run(ctx); err != nil {
			logger.Error("config watcher stopped", "error", err)
		}
	}()
	watcher.OnUpdate(func(c *config.Config) {
		logger.Info("ICE servers updated", "stun", c.STUNServers(), "turn", c.TURNServers())
	})

	client, err := newAPIClient(cfg, logger)
	if err != nil {
		return err
	}

	sess := &room.Session{
		Role:         target.Role,
		RoomID:       target.SwampID,
		StreamLink:   target.StreamLink,
		Resolver:     client,
		SignalingURL: cfg.SignalingURL,
		// Every new peer connection picks up the latest ICE servers.
		ICE:    func() webrtc.Configuration { return watcher.Current().ICEConfiguration() },
		Policy: room.PolicyFromConfig(cfg.Reconnect, target.Role),
		Logger: logger,
	}
	if target.Role == room.Broadcaster {
		sess.Acquirer = media.NewAcquirer(devices.New(logger), media.DefaultConstraints(), logger)
	}

	opts := ui.RoomOptions{
		Role:         target.Role,
		SwampID:      target.SwampID,
		Events:       sess.Events(),
		FallbackLink: cfg.StreamFallbackLink(),
		ChatUUID:     target.ChatUUID,
		DialChat:     chatDialer(ctx, cfg, logger),
	}
	if target.Role == room.Broadcaster {
		opts.Info = &ui.RoomInfo{
			SwampID:      target.SwampID,
			RoomLink:     cfg.RoomLink(target.SwampID),
			WatchCommand: "swamp watch " + target.SwampID,
		}
	}
	model := ui.NewRoomModel(opts)
	defer model.Close()

	runErr := make(chan error, 1)
	go func() { runErr <- sess.Run(ctx) }()

	program := tea.NewProgram(model, tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		logger.Error("room view failed", "error", err)
	}

	cancel()
	err = <-runErr
	ui.SessionSummary(os.Stdout, target.Role, sess.Stats(), time.Now())
	return err
}

func chatDialer(ctx context.Context, cfg *config.Config, logger *slog.Logger) func(string) (ui.ChatClient, error) {
	return func(uuid string) (ui.ChatClient, error) {
		dialCtx, cancel := context.WithTimeout(ctx, cfg.HTTPTimeout)
		defer cancel()
		c, err := chat.Dial(dialCtx, cfg.ChatURL(uuid), flagName, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// isStreamLink reports whether arg is a signaling socket address rather
// than a swamp id.
func isStreamLink(arg string) bool {
	return strings.HasPrefix(arg, "ws://") || strings.HasPrefix(arg, "wss://")
}

// uuidFromStreamLink extracts {uuid} from .../room/{uuid}/websocket.
func uuidFromStreamLink(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("invalid stream link: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "room" && parts[i+2] == "websocket" && parts[i+1] != "" {
			return url.PathUnescape(parts[i+1])
		}
	}
	return "", fmt.Errorf("stream link %q has no room id", link)
}
