package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/xerrors"

	"github.com/nvbf/scoreboard-sync/pkg/wire"
)

const relayWriteTimeout = 10 * time.Second

// relayBackend speaks the relay wire protocol over a single websocket
// shared by all paths. The connection is opened lazily on the first
// Subscribe or Publish. On connection loss it retries on a fixed interval
// forever; after a reconnect it asks for a full resync instead of assuming
// the relay buffered anything.
type relayBackend struct {
	url            string
	clock          clockwork.Clock
	log            zerolog.Logger
	sink           func(path string, doc json.RawMessage)
	onStatus       func(connected bool)
	sendRetryDelay time.Duration
	reconnectDelay time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	started   bool

	done      chan struct{}
	closeOnce sync.Once
}

func newRelayBackend(cfg Config, sink func(path string, doc json.RawMessage)) *relayBackend {
	return &relayBackend{
		url:            cfg.RelayURL,
		clock:          cfg.Clock,
		log:            cfg.Logger,
		sink:           sink,
		onStatus:       cfg.OnStatusChange,
		sendRetryDelay: cfg.SendRetryDelay,
		reconnectDelay: cfg.ReconnectDelay,
		done:           make(chan struct{}),
	}
}

// Watch is a no-op beyond ensuring the connection: the relay delivers
// every path over the one socket.
func (b *relayBackend) Watch(string) { b.ensureStarted() }

func (b *relayBackend) Publish(_ context.Context, path string, doc json.RawMessage) error {
	b.ensureStarted()
	frame := wire.Frame{Type: wire.TypeUpdate, Path: path, Data: doc}
	if err := b.send(frame); err == nil {
		return nil
	}

	// The connection is still establishing (or down): retry exactly once
	// after a fixed delay, then drop. Callers must not assume delivery.
	go func() {
		select {
		case <-b.clock.After(b.sendRetryDelay):
			if err := b.send(frame); err != nil {
				b.log.Warn().Str("path", path).Msg("dropping update, relay connection not open")
			}
		case <-b.done:
		}
	}()
	return nil
}

func (b *relayBackend) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *relayBackend) Close() error {
	b.closeOnce.Do(func() {
		close(b.done)
		b.mu.Lock()
		if b.conn != nil {
			b.conn.Close()
		}
		b.mu.Unlock()
	})
	return nil
}

func (b *relayBackend) ensureStarted() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return
	}
	b.started = true
	go b.run()
}

func (b *relayBackend) run() {
	first := true
	for {
		if b.isDone() {
			return
		}
		conn, _, err := websocket.DefaultDialer.Dial(b.url, nil)
		if err != nil {
			b.log.Warn().Err(err).Str("url", b.url).Msg("relay unreachable, will retry")
			if !b.wait(b.reconnectDelay) {
				return
			}
			continue
		}

		b.setConn(conn)
		b.setStatus(true)
		if !first {
			// Missed updates are not buffered relay-side; ask for the
			// full snapshot to close the gap.
			if err := b.send(wire.Frame{Type: wire.TypeSyncRequest}); err != nil {
				b.log.Warn().Err(err).Msg("failed to request resync")
			}
		}
		first = false

		b.readLoop(conn)

		b.setConn(nil)
		b.setStatus(false)
		if b.isDone() {
			return
		}
		if !b.wait(b.reconnectDelay) {
			return
		}
	}
}

func (b *relayBackend) readLoop(conn *websocket.Conn) {
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !b.isDone() {
				b.log.Warn().Err(err).Msg("relay connection lost")
			}
			return
		}

		var frame wire.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			b.log.Warn().Err(err).Msg("ignoring malformed frame from relay")
			continue
		}

		switch frame.Type {
		case wire.TypeInit:
			state, err := wire.Snapshot(frame)
			if err != nil {
				b.log.Warn().Err(err).Msg("ignoring malformed snapshot from relay")
				continue
			}
			for path, doc := range state {
				b.sink(path, doc)
			}

		case wire.TypeUpdate:
			b.sink(frame.Path, frame.Data)

		default:
			b.log.Warn().Str("type", frame.Type).Msg("ignoring unknown frame type from relay")
		}
	}
}

func (b *relayBackend) send(frame wire.Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return xerrors.New("relay connection not open")
	}
	b.conn.SetWriteDeadline(time.Now().Add(relayWriteTimeout))
	return b.conn.WriteJSON(frame)
}

func (b *relayBackend) setConn(conn *websocket.Conn) {
	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()
}

func (b *relayBackend) setStatus(connected bool) {
	b.mu.Lock()
	changed := b.connected != connected
	b.connected = connected
	b.mu.Unlock()
	if changed && b.onStatus != nil {
		b.onStatus(connected)
	}
}

func (b *relayBackend) wait(d time.Duration) bool {
	select {
	case <-b.clock.After(d):
		return true
	case <-b.done:
		return false
	}
}

func (b *relayBackend) isDone() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}
