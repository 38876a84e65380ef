package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zishang520/engine.io-go-parser/packet"
	sioparser "github.com/zishang520/socket.io-go-parser/v2/parser"
)

// frame encodes one Engine.IO packet for a scripted server.
func frame(t *testing.T, typ packet.Type, data string) []byte {
	t.Helper()
	p := &packet.Packet{Type: typ}
	if data != "" {
		p.Data = strings.NewReader(data)
	}
	f, err := encodeFrame(p)
	require.NoError(t, err)
	return f
}

// eventFrame encodes a Socket.IO event on the default namespace.
func eventFrame(t *testing.T, name string, args ...any) []byte {
	t.Helper()
	frames, err := messageFrames(&sioparser.Packet{
		Type: sioparser.EVENT,
		Nsp:  "/",
		Data: append([]any{name}, args...),
	})
	require.NoError(t, err)
	require.Len(t, frames, 1)
	return frames[0]
}

// socketServer completes the Engine.IO/Socket.IO handshake and then hands the
// connection to script.
func socketServer(t *testing.T, script func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	open := frame(t, packet.OPEN, `{"sid":"s1","upgrades":[],"pingInterval":25000,"pingTimeout":20000}`)
	connectAck, err := messageFrames(&sioparser.Packet{Type: sioparser.CONNECT, Nsp: "/", Data: map[string]any{"sid": "s1"}})
	require.NoError(t, err)

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/socket.io/" || r.URL.Query().Get("EIO") != "4" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if err := conn.WriteMessage(websocket.TextMessage, open); err != nil {
			return
		}
		_, got, err := conn.ReadMessage()
		if err != nil || string(got) != "40" {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, connectAck[0]); err != nil {
			return
		}
		script(conn)
	}))
}

func progressFrame(t *testing.T, payload map[string]any) []byte {
	t.Helper()
	return eventFrame(t, ProgressEventName, payload)
}

func TestEventChannelDeliversProgressInOrder(t *testing.T) {
	pong := make(chan bool, 1)
	srv := socketServer(t, func(conn *websocket.Conn) {
		frames := [][]byte{
			progressFrame(t, map[string]any{"type": "info", "message": "one", "timestamp": 1}),
			eventFrame(t, "chat", "hi"),
			eventFrame(t, ProgressEventName, "not an object"),
			[]byte(`4["broken`),
			progressFrame(t, map[string]any{"type": "processing", "message": "two", "timestamp": 2, "job_id": "J1"}),
			progressFrame(t, map[string]any{"type": "complete", "message": "three", "timestamp": 3, "job_id": "J1"}),
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, f); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.TextMessage, frame(t, packet.PING, ""))
		_, got, err := conn.ReadMessage()
		pong <- err == nil && string(got) == "3"
		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	events := make(chan ProgressEvent, 10)
	ch := NewEventChannel(srv.URL, func(ev ProgressEvent) { events <- ev }, quietLogger())
	require.NoError(t, ch.Connect(context.Background()))
	defer ch.Close()

	var got []string
	for len(got) < 3 {
		select {
		case ev := <-events:
			got = append(got, ev.Message)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %v", got)
		}
	}
	assert.Equal(t, []string{"one", "two", "three"}, got)

	select {
	case ok := <-pong:
		assert.True(t, ok, "ping must be answered with a pong")
	case <-time.After(2 * time.Second):
		t.Fatal("no pong")
	}
}

func TestEventChannelCloseStopsDelivery(t *testing.T) {
	release := make(chan struct{})
	srv := socketServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, progressFrame(t, map[string]any{"type": "info", "message": "before"}))
		<-release
		_ = conn.WriteMessage(websocket.TextMessage, progressFrame(t, map[string]any{"type": "info", "message": "after"}))
	})
	defer srv.Close()

	events := make(chan ProgressEvent, 10)
	ch := NewEventChannel(srv.URL, func(ev ProgressEvent) { events <- ev }, quietLogger())
	require.NoError(t, ch.Connect(context.Background()))

	select {
	case ev := <-events:
		assert.Equal(t, "before", ev.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
	}

	require.NoError(t, ch.Close())
	close(release)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, events)

	assert.NoError(t, ch.Close(), "second close is a no-op")
	assert.ErrorIs(t, ch.Connect(context.Background()), ErrChannelClosed)
}

func TestEventChannelEndsOnServerDisconnect(t *testing.T) {
	srv := socketServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte("41"))
		time.Sleep(100 * time.Millisecond)
	})
	defer srv.Close()

	ch := NewEventChannel(srv.URL, func(ProgressEvent) {}, quietLogger())
	require.NoError(t, ch.Connect(context.Background()))

	select {
	case <-ch.done:
	case <-time.After(2 * time.Second):
		t.Fatal("read loop kept running after a server disconnect")
	}
	assert.NoError(t, ch.Close())
}

func TestEventChannelConnectFailures(t *testing.T) {
	ch := NewEventChannel("ftp://nowhere", func(ProgressEvent) {}, quietLogger())
	assert.Error(t, ch.Connect(context.Background()))

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	ch = NewEventChannel(srv.URL, func(ProgressEvent) {}, quietLogger())
	assert.Error(t, ch.Connect(context.Background()))
	assert.NoError(t, ch.Close())
}
