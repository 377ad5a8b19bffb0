package transport

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tbelfort/falcon-ai-sub003/pkg/broadcast"
	"github.com/tbelfort/falcon-ai-sub003/pkg/outputbus"
)

const runChannelPrefix = "run:"

var errSubscriptionCapExceeded = errors.New("subscription cap exceeded for this connection")

// client is one upgraded websocket connection: a read pump decoding
// ClientMessage frames, a write pump serializing ServerMessage frames, and
// the set of channel subscriptions it currently holds.
type client struct {
	id     string
	conn   *websocket.Conn
	server *Server
	send   chan ServerMessage
	done   chan struct{}
	once   sync.Once

	subMu     sync.Mutex
	broadcast map[string]*broadcast.Subscription
	runs      map[string]*outputbus.Subscription
}

func newClient(id string, conn *websocket.Conn, server *Server) *client {
	return &client{
		id:        id,
		conn:      conn,
		server:    server,
		send:      make(chan ServerMessage, 32),
		done:      make(chan struct{}),
		broadcast: map[string]*broadcast.Subscription{},
		runs:      map[string]*outputbus.Subscription{},
	}
}

func (c *client) readPump() {
	idle := c.server.cfg.IdleTimeout
	if idle <= 0 {
		idle = DefaultConfig("").IdleTimeout
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(idle))
	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(idle))
		c.handle(msg)
	}
}

func (c *client) handle(msg ClientMessage) {
	switch msg.Type {
	case ClientSubscribe:
		if err := c.subscribe(msg.Channel); err != nil {
			c.trySend(ServerMessage{Type: ServerError, Message: err.Error()})
			return
		}
		c.trySend(ServerMessage{Type: ServerSubscribed, Channel: msg.Channel})
	case ClientUnsubscribe:
		c.unsubscribe(msg.Channel)
		c.trySend(ServerMessage{Type: ServerUnsubscribed, Channel: msg.Channel})
	case ClientPing:
		c.trySend(ServerMessage{Type: ServerPong})
	default:
		c.trySend(ServerMessage{Type: ServerError, Message: "unknown message type"})
	}
}

func (c *client) subscriptionCount() int {
	return len(c.broadcast) + len(c.runs)
}

// subscribe is idempotent: re-subscribing to a channel the client already
// holds is a no-op rather than a duplicate subscription.
func (c *client) subscribe(channel string) error {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if _, ok := c.broadcast[channel]; ok {
		return nil
	}
	if _, ok := c.runs[channel]; ok {
		return nil
	}

	max := c.server.cfg.MaxSubscriptions
	if max <= 0 {
		max = DefaultConfig("").MaxSubscriptions
	}
	if c.subscriptionCount() >= max {
		return errSubscriptionCapExceeded
	}

	if runID, ok := strings.CutPrefix(channel, runChannelPrefix); ok {
		sub := c.server.output.Subscribe(runID)
		c.runs[channel] = sub
		go c.pumpRun(channel, sub)
		return nil
	}

	sub := c.server.bus.Subscribe(channel)
	c.broadcast[channel] = sub
	go c.pumpBroadcast(channel, sub)
	return nil
}

func (c *client) unsubscribe(channel string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if sub, ok := c.broadcast[channel]; ok {
		sub.Unsubscribe()
		delete(c.broadcast, channel)
	}
	if sub, ok := c.runs[channel]; ok {
		sub.Unsubscribe()
		delete(c.runs, channel)
	}
}

// pumpRun forwards Output Bus lines to the client until sub is unsubscribed
// (its channel closes) or the connection ends.
func (c *client) pumpRun(channel string, sub *outputbus.Subscription) {
	for line := range sub.C() {
		c.trySend(ServerMessage{Type: ServerEvent, Channel: channel, Event: "line", Data: line})
	}
}

// pumpBroadcast forwards Broadcast Bus events to the client the same way.
func (c *client) pumpBroadcast(channel string, sub *broadcast.Subscription) {
	for ev := range sub.C() {
		c.trySend(ServerMessage{Type: ServerEvent, Channel: channel, Event: string(ev.Type), Data: ev.Payload})
	}
}

// trySend delivers msg or gives up once the connection is closing, so a
// pump goroutine can never leak past connection lifetime.
func (c *client) trySend(msg ServerMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// close unsubscribes every channel this client holds and stops its pumps.
// Safe to call multiple times; only the first call has effect.
func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.subMu.Lock()
		for ch, sub := range c.broadcast {
			sub.Unsubscribe()
			delete(c.broadcast, ch)
		}
		for ch, sub := range c.runs {
			sub.Unsubscribe()
			delete(c.runs, ch)
		}
		c.subMu.Unlock()
		close(c.send)
	})
}
