package cmd

import (
	"testing"

	"github.com/SK124/Swamp/internal/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamLinks(t *testing.T) {
	assert.True(t, isStreamLink("ws://localhost:8081/room/abc/websocket"))
	assert.True(t, isStreamLink("wss://swamp.example/room/abc/websocket"))
	assert.False(t, isStreamLink("123456"))

	uuid, err := uuidFromStreamLink("wss://swamp.example/room/4f1c-9a/websocket")
	require.NoError(t, err)
	assert.Equal(t, "4f1c-9a", uuid)

	_, err = uuidFromStreamLink("ws://localhost/room/abc/chat/websocket")
	assert.Error(t, err)
	_, err = uuidFromStreamLink("ws://localhost/other")
	assert.Error(t, err)
}

func TestFollowedTopics(t *testing.T) {
	all := []api.Topic{{ID: 1, Name: "go"}, {ID: 2, Name: "jazz"}, {ID: 3, Name: "chess"}}
	got := followed(all, []uint{3, 1, 9})
	assert.Equal(t, []api.Topic{{ID: 1, Name: "go"}, {ID: 3, Name: "chess"}, {ID: 9, Name: "?"}}, got)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"broadcast", "watch", "chat", "swamps", "topics", "config"} {
		assert.True(t, names[want], want)
	}
}

func TestReconnectPolicyDefaultDocumented(t *testing.T) {
	assert.Contains(t, configCmd.Long, "default to the exponential policy")
	assert.Contains(t, configCmd.Long, `"fixed"`)

	flag := rootCmd.PersistentFlags().Lookup("reconnect-policy")
	require.NotNil(t, flag)
	assert.Contains(t, flag.Usage, "default exponential")
}
