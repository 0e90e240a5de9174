package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pion/webrtc/v4"
	"gopkg.in/yaml.v3"
)

// Reconnect policy names.
const (
	PolicyFixed       = "fixed"
	PolicyExponential = "exponential"
)

// Config holds application configuration
type Config struct {
	// APIBaseURL is the REST API root, e.g. http://localhost:8080/api
	APIBaseURL string `yaml:"api_base_url" env:"SWAMP_API_URL" env-default:"http://localhost:8080/api"`

	// APIToken is sent as a bearer token when set
	APIToken string `yaml:"api_token" env:"SWAMP_TOKEN"`

	// SignalingHost is host:port of the room websocket service
	SignalingHost   string `yaml:"signaling_host" env:"SWAMP_SIGNALING_HOST" env-default:"localhost:8081"`
	SignalingScheme string `yaml:"signaling_scheme" env:"SWAMP_SIGNALING_SCHEME" env-default:"ws"`

	// WebURL is the browser app root, used for links shown to the user
	WebURL string `yaml:"web_url" env:"SWAMP_WEB_URL" env-default:"http://localhost:5173"`

	HTTPTimeout time.Duration `yaml:"http_timeout" env:"SWAMP_HTTP_TIMEOUT" env-default:"10s"`

	ICE       ICEConfig       `yaml:"ice"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// ICEConfig holds the STUN/TURN servers handed to every peer connection.
type ICEConfig struct {
	STUNServer string `yaml:"stun_server" env:"STUN_SERVER" env-default:"stun:relay.metered.ca:80"`
	TURNServer string `yaml:"turn_server" env:"TURN_SERVER" env-default:"turn:relay.metered.ca:80"`
	TURNUser   string `yaml:"turn_username" env:"TURN_USERNAME"`
	TURNPass   string `yaml:"turn_password" env:"TURN_PASSWORD"`
	ForceRelay bool   `yaml:"force_relay" env:"FORCE_RELAY"`
}

// ReconnectConfig selects the strategy used after the signaling socket closes.
type ReconnectConfig struct {
	Policy         string        `yaml:"policy" env:"SWAMP_RECONNECT_POLICY" env-default:"exponential"`
	BroadcastDelay time.Duration `yaml:"broadcast_delay" env:"SWAMP_BROADCAST_DELAY" env-default:"2s"`
	WatchDelay     time.Duration `yaml:"watch_delay" env:"SWAMP_WATCH_DELAY" env-default:"1s"`
	MaxDelay       time.Duration `yaml:"max_delay" env:"SWAMP_RECONNECT_MAX_DELAY" env-default:"30s"`

	// MaxAttempts bounds consecutive failed reconnects. Zero means unbounded.
	MaxAttempts int `yaml:"max_attempts" env:"SWAMP_RECONNECT_MAX_ATTEMPTS" env-default:"0"`
}

// Options for loading config with CLI flag overrides
type Options struct {
	ConfigPath    string
	APIBaseURL    string
	SignalingHost string
	STUNServer    string
	TURNServer    string
	TURNUser      string
	TURNPass      string
	ForceRelay    bool
	Policy        string
	MaxAttempts   int
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. YAML config file (Options.ConfigPath or CONFIG_PATH)
// 4. Defaults from struct tags - lowest priority
func Load(opts Options) (*Config, error) {
	var cfg Config

	path := opts.ConfigPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	cfg.apply(opts)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) apply(opts Options) {
	if opts.APIBaseURL != "" {
		c.APIBaseURL = opts.APIBaseURL
	}
	if opts.SignalingHost != "" {
		c.SignalingHost = opts.SignalingHost
	}
	if opts.STUNServer != "" {
		c.ICE.STUNServer = opts.STUNServer
	}
	if opts.TURNServer != "" {
		c.ICE.TURNServer = opts.TURNServer
	}
	if opts.TURNUser != "" {
		c.ICE.TURNUser = opts.TURNUser
	}
	if opts.TURNPass != "" {
		c.ICE.TURNPass = opts.TURNPass
	}
	if opts.ForceRelay {
		c.ICE.ForceRelay = true
	}
	if opts.Policy != "" {
		c.Reconnect.Policy = opts.Policy
	}
	if opts.MaxAttempts > 0 {
		c.Reconnect.MaxAttempts = opts.MaxAttempts
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.APIBaseURL); err != nil {
		return fmt.Errorf("invalid api base url %q: %w", c.APIBaseURL, err)
	}
	if c.SignalingHost == "" {
		return errors.New("signaling host is empty")
	}
	if c.SignalingScheme != "ws" && c.SignalingScheme != "wss" {
		return fmt.Errorf("signaling scheme must be ws or wss, got %q", c.SignalingScheme)
	}

	r := c.Reconnect
	switch r.Policy {
	case PolicyFixed, PolicyExponential:
	default:
		return fmt.Errorf("unknown reconnect policy %q", r.Policy)
	}
	if r.BroadcastDelay <= 0 || r.WatchDelay <= 0 {
		return errors.New("reconnect delays must be positive")
	}
	if r.MaxDelay < r.BroadcastDelay || r.MaxDelay < r.WatchDelay {
		return errors.New("reconnect max delay is shorter than the base delay")
	}
	if r.MaxAttempts < 0 {
		return errors.New("reconnect max attempts cannot be negative")
	}

	if c.ICE.ForceRelay && c.TURNServers() == nil {
		return errors.New("cannot force relay mode without TURN server configured")
	}
	return nil
}

// SignalingURL returns the media signaling socket address for a room.
func (c *Config) SignalingURL(roomUUID string) string {
	return fmt.Sprintf("%s://%s/room/%s/websocket", c.SignalingScheme, c.SignalingHost, url.PathEscape(roomUUID))
}

// ChatURL returns the chat socket address for a room.
func (c *Config) ChatURL(roomUUID string) string {
	return fmt.Sprintf("%s://%s/room/%s/chat/websocket", c.SignalingScheme, c.SignalingHost, url.PathEscape(roomUUID))
}

// StreamFallbackLink is where users without camera access can watch instead.
func (c *Config) StreamFallbackLink() string {
	return strings.TrimSuffix(c.WebURL, "/") + "/stream"
}

// RoomLink returns the web link for a swamp.
func (c *Config) RoomLink(swampID string) string {
	return fmt.Sprintf("%s/room/%s", strings.TrimSuffix(c.WebURL, "/"), url.PathEscape(swampID))
}

// BaseDelay returns the first reconnect delay for broadcasters or viewers.
func (c *Config) BaseDelay(broadcaster bool) time.Duration {
	if broadcaster {
		return c.Reconnect.BroadcastDelay
	}
	return c.Reconnect.WatchDelay
}

// STUNServers returns STUN server URLs as strings
func (c *Config) STUNServers() []string {
	if c.ICE.STUNServer == "" {
		return nil
	}
	return []string{c.ICE.STUNServer}
}

// TURNServers returns TURN server URLs if a server and credentials are configured
func (c *Config) TURNServers() []string {
	if c.ICE.TURNServer == "" || c.ICE.TURNUser == "" {
		return nil
	}
	return []string{c.ICE.TURNServer}
}

// ICEConfiguration builds the pion configuration for a new peer connection.
func (c *Config) ICEConfiguration() webrtc.Configuration {
	var servers []webrtc.ICEServer
	if stun := c.STUNServers(); stun != nil {
		servers = append(servers, webrtc.ICEServer{URLs: stun})
	}

	turn := c.TURNServers()
	if turn != nil {
		servers = append(servers, webrtc.ICEServer{
			URLs:       turn,
			Username:   c.ICE.TURNUser,
			Credential: c.ICE.TURNPass,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if turn != nil && (c.ICE.ForceRelay || ShouldForceRelay()) {
		policy = webrtc.ICETransportPolicyRelay
	}

	return webrtc.Configuration{
		ICEServers:         servers,
		ICETransportPolicy: policy,
	}
}

// Dump renders the effective configuration as YAML with secrets redacted.
func Dump(c *Config) (string, error) {
	redacted := *c
	if redacted.ICE.TURNPass != "" {
		redacted.ICE.TURNPass = "********"
	}
	if redacted.APIToken != "" {
		redacted.APIToken = "********"
	}

	out, err := yaml.Marshal(&redacted)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
