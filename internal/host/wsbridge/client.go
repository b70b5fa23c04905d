// Package wsbridge connects the engine to a game server through a websocket bridge
// that speaks JSON frames.
package wsbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"rgehrsitz/messagebot/internal/host"
	"rgehrsitz/messagebot/internal/rules"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Frame types.
const (
	FrameJoin    = "join"
	FrameLeave   = "leave"
	FrameMessage = "message"
	FrameRoster  = "roster"
	FrameSend    = "send"
)

var ErrNotConnected = errors.New("bridge not connected")

// Frame is one JSON message on the bridge. Inbound frames carry Player (join, leave,
// message) or Players (roster); outbound send frames carry Text and Target.
type Frame struct {
	Type    string         `json:"type"`
	Player  *rules.Player  `json:"player,omitempty"`
	Players []rules.Player `json:"players,omitempty"`
	Text    string         `json:"text,omitempty"`
	Target  string         `json:"target,omitempty"`
}

// Client implements host.World and host.Sender over a websocket bridge.
type Client struct {
	host.Subscribers

	url    string
	header http.Header
	dialer *websocket.Dialer

	minBackoff   time.Duration
	maxBackoff   time.Duration
	pingInterval time.Duration
	writeTimeout time.Duration

	wmu  sync.Mutex // serializes writes and guards conn
	conn *websocket.Conn

	rmu    sync.RWMutex
	roster map[string]rules.Player

	logger zerolog.Logger
}

type Option func(*Client)

// WithBackoff sets the reconnect backoff range. The wait doubles after every failed
// dial up to limit.
func WithBackoff(first, limit time.Duration) Option {
	return func(c *Client) {
		c.minBackoff = first
		c.maxBackoff = limit
	}
}

func WithPingInterval(d time.Duration) Option {
	return func(c *Client) { c.pingInterval = d }
}

// New creates a client for url. A non-empty token is sent as a bearer token.
func New(url, token string, opts ...Option) *Client {
	c := &Client{
		url:          url,
		header:       http.Header{},
		dialer:       websocket.DefaultDialer,
		minBackoff:   time.Second,
		maxBackoff:   30 * time.Second,
		pingInterval: 10 * time.Second,
		writeTimeout: 5 * time.Second,
		roster:       make(map[string]rules.Player),
		logger:       log.With().Str("component", "wsbridge").Logger(),
	}
	if token != "" {
		c.header.Set("Authorization", "Bearer "+token)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run keeps a connection to the bridge open until ctx is done, reconnecting with
// exponential backoff.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.minBackoff
	for {
		conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("Bridge connect failed")
		} else {
			c.logger.Info().Str("url", c.url).Msg("Bridge connected")
			backoff = c.minBackoff
			c.serve(ctx, conn)
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn().Dur("retry_in", backoff).Msg("Bridge disconnected")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, c.maxBackoff)
	}
}

// Connected reports whether a bridge connection is open.
func (c *Client) Connected() bool {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.conn != nil
}

func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	c.wmu.Lock()
	c.conn = conn
	c.wmu.Unlock()

	stop := make(chan struct{})
	defer func() {
		close(stop)
		c.wmu.Lock()
		c.conn = nil
		c.wmu.Unlock()
		_ = conn.Close()
		c.clearRoster()
	}()

	go func() {
		select {
		case <-ctx.Done():
			c.wmu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
				time.Now().Add(500*time.Millisecond))
			c.wmu.Unlock()
			_ = conn.Close()
		case <-stop:
		}
	}()
	go c.ping(conn, stop)

	pongWait := 3 * c.pingInterval
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Debug().Err(err).Msg("Bridge read failed")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Warn().Err(err).Msg("Ignoring malformed frame")
			continue
		}
		c.handle(f)
	}
}

func (c *Client) ping(conn *websocket.Conn, stop <-chan struct{}) {
	t := time.NewTicker(c.pingInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.wmu.Lock()
			err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(c.writeTimeout))
			c.wmu.Unlock()
			if err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}

func (c *Client) handle(f Frame) {
	switch f.Type {
	case FrameRoster:
		c.rmu.Lock()
		c.roster = make(map[string]rules.Player, len(f.Players))
		for _, p := range f.Players {
			c.roster[p.Name] = p
		}
		c.rmu.Unlock()
		return
	case FrameJoin, FrameLeave, FrameMessage:
	default:
		c.logger.Warn().Str("type", f.Type).Msg("Ignoring unknown frame")
		return
	}
	if f.Player == nil || f.Player.Name == "" {
		c.logger.Warn().Str("type", f.Type).Msg("Ignoring frame without player")
		return
	}

	player := *f.Player
	ev := host.Event{Player: player}
	switch f.Type {
	case FrameJoin:
		ev.Kind = host.Join
		c.rmu.Lock()
		c.roster[player.Name] = player
		c.rmu.Unlock()
	case FrameLeave:
		ev.Kind = host.Leave
		c.rmu.Lock()
		delete(c.roster, player.Name)
		c.rmu.Unlock()
	case FrameMessage:
		ev.Kind = host.Message
		ev.Text = f.Text
	}
	c.Publish(ev)
}

func (c *Client) clearRoster() {
	c.rmu.Lock()
	c.roster = make(map[string]rules.Player)
	c.rmu.Unlock()
}

// OnlinePlayers returns the roster sorted by name.
func (c *Client) OnlinePlayers(context.Context) ([]rules.Player, error) {
	c.rmu.RLock()
	defer c.rmu.RUnlock()
	players := make([]rules.Player, 0, len(c.roster))
	for _, p := range c.roster {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].Name < players[j].Name })
	return players, nil
}

// Send writes a send frame. An empty target broadcasts.
func (c *Client) Send(ctx context.Context, message string, opts host.SendOptions) error {
	data, err := json.Marshal(Frame{Type: FrameSend, Text: message, Target: opts.Target})
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("writing send frame: %w", err)
	}
	return nil
}
