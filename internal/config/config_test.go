package config

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_PATH", "SWAMP_API_URL", "SWAMP_TOKEN", "SWAMP_SIGNALING_HOST",
		"STUN_SERVER", "TURN_SERVER", "TURN_USERNAME", "TURN_PASSWORD", "FORCE_RELAY",
		"SWAMP_RECONNECT_POLICY", "SWAMP_RECONNECT_MAX_ATTEMPTS",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/api", cfg.APIBaseURL)
	assert.Equal(t, "localhost:8081", cfg.SignalingHost)
	assert.Equal(t, "stun:relay.metered.ca:80", cfg.ICE.STUNServer)
	assert.Equal(t, PolicyExponential, cfg.Reconnect.Policy)
	assert.Equal(t, 2*time.Second, cfg.Reconnect.BroadcastDelay)
	assert.Equal(t, time.Second, cfg.Reconnect.WatchDelay)
	assert.Zero(t, cfg.Reconnect.MaxAttempts)
	assert.Nil(t, cfg.TURNServers(), "TURN needs credentials")
}

func TestLoadPriority(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "swamp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
signaling_host: file.example:9000
reconnect:
  policy: fixed
  watch_delay: 3s
  max_delay: 10s
ice:
  stun_server: stun:file.example:3478
`), 0o600))

	t.Setenv("STUN_SERVER", "stun:env.example:3478")

	cfg, err := Load(Options{ConfigPath: path, SignalingHost: "flag.example:1"})
	require.NoError(t, err)

	assert.Equal(t, "flag.example:1", cfg.SignalingHost, "flag beats file")
	assert.Equal(t, "stun:env.example:3478", cfg.ICE.STUNServer, "env beats file")
	assert.Equal(t, PolicyFixed, cfg.Reconnect.Policy)
	assert.Equal(t, 3*time.Second, cfg.Reconnect.WatchDelay)
	assert.Equal(t, 2*time.Second, cfg.Reconnect.BroadcastDelay, "default fills the gap")
}

func TestValidate(t *testing.T) {
	clearEnv(t)

	_, err := Load(Options{Policy: "random"})
	assert.ErrorContains(t, err, "unknown reconnect policy")

	_, err = Load(Options{ForceRelay: true})
	assert.ErrorContains(t, err, "without TURN server")

	t.Setenv("SWAMP_SIGNALING_SCHEME", "http")
	_, err = Load(Options{})
	assert.ErrorContains(t, err, "ws or wss")
}

func TestURLs(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, "ws://localhost:8081/room/abc-123/websocket", cfg.SignalingURL("abc-123"))
	assert.Equal(t, "ws://localhost:8081/room/abc-123/chat/websocket", cfg.ChatURL("abc-123"))
	assert.Equal(t, "http://localhost:5173/stream", cfg.StreamFallbackLink())
	assert.Equal(t, "http://localhost:5173/room/123456", cfg.RoomLink("123456"))
	assert.Equal(t, 2*time.Second, cfg.BaseDelay(true))
	assert.Equal(t, time.Second, cfg.BaseDelay(false))
}

func TestICEConfiguration(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{})
	require.NoError(t, err)

	ice := cfg.ICEConfiguration()
	require.Len(t, ice.ICEServers, 1)
	assert.Equal(t, []string{"stun:relay.metered.ca:80"}, ice.ICEServers[0].URLs)
	assert.Equal(t, webrtc.ICETransportPolicyAll, ice.ICETransportPolicy)

	cfg, err = Load(Options{TURNUser: "alice", TURNPass: "secret", ForceRelay: true})
	require.NoError(t, err)

	ice = cfg.ICEConfiguration()
	require.Len(t, ice.ICEServers, 2)
	assert.Equal(t, "alice", ice.ICEServers[1].Username)
	assert.Equal(t, "secret", ice.ICEServers[1].Credential)
	assert.Equal(t, webrtc.ICETransportPolicyRelay, ice.ICETransportPolicy)
}

func TestDumpRedactsSecrets(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{TURNUser: "alice", TURNPass: "secret"})
	require.NoError(t, err)
	cfg.APIToken = "token"

	out, err := Dump(cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "turn_username: alice")
	assert.NotContains(t, out, "secret")
	assert.NotContains(t, out, "token\n")
	assert.Equal(t, "secret", cfg.ICE.TURNPass, "dump must not mutate the config")
}

func TestTunnelHeuristics(t *testing.T) {
	assert.True(t, isTunnelInterface("wg0"))
	assert.True(t, isTunnelInterface("CloudflareWARP"))
	assert.False(t, isTunnelInterface("eth0"))

	assert.True(t, inCGNAT(&net.IPNet{IP: net.ParseIP("100.100.1.2")}))
	assert.False(t, inCGNAT(&net.IPNet{IP: net.ParseIP("192.168.1.2")}))
	assert.False(t, inCGNAT(&net.IPAddr{}))
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "swamp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ice:\n  stun_server: stun:one:3478\n"), 0o600))

	w, err := NewWatcher(Options{ConfigPath: path}, nil)
	require.NoError(t, err)
	assert.Equal(t, "stun:one:3478", w.Current().ICE.STUNServer)

	updated := make(chan *Config, 4)
	w.OnUpdate(func(c *Config) { updated <- c })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register before editing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("ice:\n  stun_server: stun:two:3478\n"), 0o600))

	deadline := time.After(5 * time.Second)
	for seen := ""; seen != "stun:two:3478"; {
		select {
		case c := <-updated:
			seen = c.ICE.STUNServer
		case <-deadline:
			t.Fatal("no reload after write")
		}
	}
	assert.Equal(t, "stun:two:3478", w.Current().ICE.STUNServer)

	cancel()
	require.NoError(t, <-done)
}
