package wsbridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rgehrsitz/messagebot/internal/host"
	"rgehrsitz/messagebot/internal/rules"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bridge struct {
	upgrader websocket.Upgrader
	conns    chan *websocket.Conn
	dials    atomic.Int32
	auth     atomic.Value
}

func newBridge(t *testing.T) (*bridge, string) {
	t.Helper()
	b := &bridge{conns: make(chan *websocket.Conn, 4)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.dials.Add(1)
		b.auth.Store(r.Header.Get("Authorization"))
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b.conns <- conn
	}))
	t.Cleanup(srv.Close)
	return b, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (b *bridge) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-b.conns:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("Client did not connect")
		return nil
	}
}

type recorder struct {
	mu     sync.Mutex
	events []host.Event
}

func (r *recorder) add(ev host.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []host.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]host.Event(nil), r.events...)
}

func runClient(t *testing.T, c *Client) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, c.Run(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestClient_EventsAndRoster(t *testing.T) {
	b, url := newBridge(t)
	c := New(url, "secret")
	rec := &recorder{}
	c.Subscribe(rec.add)
	runClient(t, c)

	server := b.accept(t)
	assert.Equal(t, "Bearer secret", b.auth.Load())

	require.NoError(t, server.WriteJSON(Frame{Type: FrameRoster, Players: []rules.Player{{Name: "zed"}, {Name: "amy", Joins: 4}}}))
	require.NoError(t, server.WriteJSON(Frame{Type: FrameJoin, Player: &rules.Player{Name: "bob", Joins: 1}}))
	require.NoError(t, server.WriteJSON(Frame{Type: FrameMessage, Player: &rules.Player{Name: "bob"}, Text: "hi all"}))
	require.NoError(t, server.WriteJSON(Frame{Type: FrameLeave, Player: &rules.Player{Name: "zed"}}))

	require.Eventually(t, func() bool { return len(rec.all()) == 3 }, 2*time.Second, 10*time.Millisecond)
	events := rec.all()
	assert.Equal(t, host.Join, events[0].Kind)
	assert.Equal(t, 1, events[0].Player.Joins)
	assert.Equal(t, host.Message, events[1].Kind)
	assert.Equal(t, "hi all", events[1].Text)
	assert.Equal(t, host.Leave, events[2].Kind)

	online, err := c.OnlinePlayers(context.Background())
	require.NoError(t, err)
	require.Len(t, online, 2)
	assert.Equal(t, "amy", online[0].Name)
	assert.Equal(t, "bob", online[1].Name)
}

func TestClient_IgnoresBadFrames(t *testing.T) {
	b, url := newBridge(t)
	c := New(url, "")
	rec := &recorder{}
	c.Subscribe(rec.add)
	runClient(t, c)

	server := b.accept(t)
	require.NoError(t, server.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, server.WriteJSON(Frame{Type: "kick", Player: &rules.Player{Name: "bob"}}))
	require.NoError(t, server.WriteJSON(Frame{Type: FrameJoin}))
	require.NoError(t, server.WriteJSON(Frame{Type: FrameJoin, Player: &rules.Player{Name: "ok"}}))

	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "ok", rec.all()[0].Player.Name)
}

func TestClient_Send(t *testing.T) {
	b, url := newBridge(t)
	c := New(url, "")

	err := c.Send(context.Background(), "too early", host.SendOptions{})
	assert.ErrorIs(t, err, ErrNotConnected)

	runClient(t, c)
	server := b.accept(t)
	require.Eventually(t, c.Connected, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Send(context.Background(), "welcome", host.SendOptions{Target: "bob"}))
	var f Frame
	require.NoError(t, server.ReadJSON(&f))
	assert.Equal(t, Frame{Type: FrameSend, Text: "welcome", Target: "bob"}, f)
}

func TestClient_Reconnects(t *testing.T) {
	b, url := newBridge(t)
	c := New(url, "", WithBackoff(10*time.Millisecond, 50*time.Millisecond))
	runClient(t, c)

	first := b.accept(t)
	require.NoError(t, first.WriteJSON(Frame{Type: FrameRoster, Players: []rules.Player{{Name: "amy"}}}))
	require.Eventually(t, func() bool {
		online, _ := c.OnlinePlayers(context.Background())
		return len(online) == 1
	}, 2*time.Second, 10*time.Millisecond)

	first.Close()
	b.accept(t)
	assert.GreaterOrEqual(t, int(b.dials.Load()), 2)

	online, err := c.OnlinePlayers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, online, "Expected roster to be cleared after a disconnect")
}
