package signaling_test

import (
	"context"
	"testing"
	"time"

	"github.com/SK124/Swamp/internal/signaling"
	"github.com/SK124/Swamp/internal/signaling/signalingtest"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wait = 3 * time.Second

func dial(t *testing.T, url string) *signaling.Client {
	t.Helper()
	c := signaling.NewClient(url, nil)
	require.NoError(t, c.Dial(context.Background()))
	t.Cleanup(c.Close)
	return c
}

func TestClientSendAndReceive(t *testing.T) {
	srv := signalingtest.NewServer(t)
	c := dial(t, srv.URL("room-1"))
	conn := srv.Accept(t, wait)
	assert.Equal(t, "room-1", conn.Room)

	require.NoError(t, c.Send(signaling.Answer(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0"})))
	sig, ok := conn.NextSignal(signaling.EventAnswer, wait)
	require.True(t, ok)
	assert.Equal(t, "v=0", sig.Description.SDP)

	require.NoError(t, conn.Push([]byte("first")))
	require.NoError(t, conn.Push([]byte("second")))

	for _, want := range []string{"first", "second"} {
		select {
		case frame := <-c.Incoming():
			assert.Equal(t, want, string(frame))
		case <-time.After(wait):
			t.Fatalf("missing frame %q", want)
		}
	}
}

func TestClientDoneOnServerClose(t *testing.T) {
	srv := signalingtest.NewServer(t)
	c := dial(t, srv.URL("room-1"))
	srv.Accept(t, wait).Close()

	select {
	case <-c.Done():
	case <-time.After(wait):
		t.Fatal("client not done after socket closed")
	}
	assert.ErrorIs(t, c.Send(signaling.Candidate(webrtc.ICECandidateInit{Candidate: "x"})), signaling.ErrClosed)
}

func TestClientCloseIsIdempotent(t *testing.T) {
	srv := signalingtest.NewServer(t)
	c := dial(t, srv.URL("room-1"))
	conn := srv.Accept(t, wait)

	c.Close()
	c.Close()

	select {
	case <-conn.Done():
	case <-time.After(wait):
		t.Fatal("server did not see the close")
	}
	<-c.Done()
}

func TestClientCloseBeforeDial(t *testing.T) {
	c := signaling.NewClient("ws://127.0.0.1:1/room/x/websocket", nil)
	c.Close()

	<-c.Done()
	_, open := <-c.Incoming()
	assert.False(t, open)
	assert.ErrorIs(t, c.Dial(context.Background()), signaling.ErrClosed)
}

func TestClientDialRejectsBadScheme(t *testing.T) {
	c := signaling.NewClient("http://localhost/room/x/websocket", nil)
	assert.Error(t, c.Dial(context.Background()))
}

func TestHandlerRoutesInOrderAndSurvivesGarbage(t *testing.T) {
	srv := signalingtest.NewServer(t)
	c := dial(t, srv.URL("room-1"))
	conn := srv.Accept(t, wait)

	h := signaling.NewHandler(c, nil)
	go h.Start()

	require.NoError(t, conn.PushSignal(signaling.Candidate(webrtc.ICECandidateInit{Candidate: "early"})))
	require.NoError(t, conn.Push([]byte(`{"event":"offer","data":"{broken"}`)))
	require.NoError(t, conn.PushSignal(signaling.Offer(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"})))

	var kinds []signaling.Event
	for len(kinds) < 2 {
		select {
		case s := <-h.Signals:
			kinds = append(kinds, s.Kind)
		case <-time.After(wait):
			t.Fatal("signals not routed")
		}
	}
	assert.Equal(t, []signaling.Event{signaling.EventCandidate, signaling.EventOffer}, kinds)

	select {
	case err := <-h.Errors:
		var de *signaling.DecodeError
		assert.ErrorAs(t, err, &de)
	case <-time.After(wait):
		t.Fatal("decode error not reported")
	}

	conn.Close()
	select {
	case _, ok := <-h.Signals:
		assert.False(t, ok)
	case <-time.After(wait):
		t.Fatal("handler did not stop after close")
	}
}
