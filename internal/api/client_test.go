package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/api", 2*time.Second, opts...)
	require.NoError(t, err)
	return c
}

func TestResolveSwamp(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/swamp/123456", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{"ID": 123456, "UUID": "0b7c", "Title": "frogs"})
	}, WithToken("tok"))

	swamp, err := c.ResolveSwamp(context.Background(), "123456")
	require.NoError(t, err)
	assert.Equal(t, "0b7c", swamp.UUID)
	assert.Equal(t, "frogs", swamp.Title)
}

func TestResolveSwampEscapesIDOnce(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/swamp/a b", r.URL.Path)
		assert.Equal(t, "/api/swamp/a%20b", r.URL.EscapedPath())
		json.NewEncoder(w).Encode(map[string]any{"ID": 7, "UUID": "ab"})
	})

	swamp, err := c.ResolveSwamp(context.Background(), "a b")
	require.NoError(t, err)
	assert.Equal(t, "ab", swamp.UUID)
}

func TestResolveSwampEscapesSlash(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/swamp/a%2Fb", r.URL.EscapedPath())
		json.NewEncoder(w).Encode(map[string]any{"ID": 8, "UUID": "slash"})
	})

	swamp, err := c.ResolveSwamp(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, "slash", swamp.UUID)
}

func TestResolveSwampFailureIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "Swamp not found", http.StatusNotFound)
	})

	_, err := c.ResolveSwamp(context.Background(), "404")
	require.ErrorIs(t, err, ErrResolutionFailed)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, int32(1), hits.Load())
}

func TestResolveSwampNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c, err := New(srv.URL+"/api", time.Second)
	require.NoError(t, err)
	srv.Close()

	_, err = c.ResolveSwamp(context.Background(), "1")
	assert.ErrorIs(t, err, ErrResolutionFailed)
}

func TestResolveSwampEmptyID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty id")
	})

	_, err := c.ResolveSwamp(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrResolutionFailed)
}

func TestResolveSwampWithoutStream(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ID": 7, "Title": "empty"}`))
	})

	swamp, err := c.ResolveSwamp(context.Background(), "7")
	assert.ErrorIs(t, err, ErrNoStream)
	assert.Equal(t, 7, swamp.ID)
}

func TestListSwamps(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("pageNumber"))
		assert.Equal(t, "5", r.URL.Query().Get("recordsPerPage"))
		w.Write([]byte(`{"meta":{"totalResults":6,"pageNumber":2,"recordsPerPage":5},"allDocuments":[{"ID":6,"UUID":"u6","Title":"six"}]}`))
	})

	page, err := c.ListSwamps(context.Background(), 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 6, page.Meta.TotalResults)
	require.Len(t, page.Swamps, 1)
	assert.Equal(t, "six", page.Swamps[0].Title)
}

func TestCreateSwamp(t *testing.T) {
	start := time.Date(2026, 10, 16, 18, 0, 0, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var in NewSwamp
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "Lily pads", in.Title)
		json.NewEncoder(w).Encode(map[string]any{
			"message": "Swamp created successfully",
			"swamp":   Swamp{ID: 9, UUID: "u9", Title: in.Title, StartTime: in.StartTime},
		})
	})

	_, err := c.CreateSwamp(context.Background(), NewSwamp{Title: "Lily pads"})
	assert.ErrorIs(t, err, ErrInvalidSwamp)

	swamp, err := c.CreateSwamp(context.Background(), NewSwamp{
		Title: "Lily pads", OwnerID: 1, MaxParticipants: 10, StartTime: start, Duration: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, 9, swamp.ID)
	assert.True(t, swamp.StartTime.Equal(start))
}

func TestTopics(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/topics", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"ID":1,"Name":"frogs"},{"ID":2,"Name":"toads"}]`))
	})
	mux.HandleFunc("POST /api/topics", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		json.NewDecoder(r.Body).Decode(&in)
		json.NewEncoder(w).Encode(Topic{ID: 3, Name: in["name"]})
	})
	mux.HandleFunc("GET /api/user/4/topics", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[1,2]`))
	})
	mux.HandleFunc("POST /api/user/4/topics", func(w http.ResponseWriter, r *http.Request) {
		var in userTopicsRequest
		json.NewDecoder(r.Body).Decode(&in)
		assert.Equal(t, []uint{2}, in.Topics)
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestClient(t, mux.ServeHTTP)
	ctx := context.Background()

	topics, err := c.ListTopics(ctx)
	require.NoError(t, err)
	assert.Len(t, topics, 2)

	topic, err := c.CreateTopic(ctx, " newts ")
	require.NoError(t, err)
	assert.Equal(t, Topic{ID: 3, Name: "newts"}, topic)

	_, err = c.CreateTopic(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidTopic)

	ids, err := c.UserTopics(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2}, ids)

	require.NoError(t, c.AddUserTopic(ctx, 4, 2))
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com", time.Second)
	assert.Error(t, err)
}
