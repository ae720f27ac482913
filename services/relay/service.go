package relay

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/rs/zerolog"

	"github.com/nvbf/scoreboard-sync/pkg/wire"
)

// Msg is a message for the relay loop.
type Msg interface{ isRelayMsg() }

// Join registers a connection and immediately sends it the full snapshot.
type Join struct {
	ClientID string
	Outbox   chan wire.Frame
}

// Leave drops a connection and closes its outbox.
type Leave struct{ ClientID string }

// Update replaces the document at a path and fans it out to every other
// connection.
type Update struct {
	From string
	Path string
	Data json.RawMessage
}

// SyncRequest resends the full snapshot to one connection.
type SyncRequest struct{ ClientID string }

// GetView replies with a copy of the relay's counters, for stats and tests.
type GetView struct{ Reply chan View }

// Shutdown closes all outboxes and stops the loop.
type Shutdown struct{}

func (Join) isRelayMsg()        {}
func (Leave) isRelayMsg()       {}
func (Update) isRelayMsg()      {}
func (SyncRequest) isRelayMsg() {}
func (GetView) isRelayMsg()     {}
func (Shutdown) isRelayMsg()    {}

// View is a point-in-time copy of the relay's state counters.
type View struct {
	Clients int
	Paths   []string
	Updates map[string]int
}

// Relay holds the authoritative in-memory snapshot of all named paths and
// fans updates out to every other connected client. State is owned by a
// single goroutine; it is seeded empty on every process start, durable
// persistence is the managed datastore backend's job.
type Relay struct {
	inbox   chan Msg
	state   map[string]json.RawMessage
	updates map[string]int
	clients map[string]chan wire.Frame
	ctx     context.Context
	cancel  context.CancelFunc
	log     zerolog.Logger
}

func NewRelay(parent context.Context, logger zerolog.Logger) *Relay {
	ctx, cancel := context.WithCancel(parent)
	r := &Relay{
		inbox:   make(chan Msg, 64),
		state:   make(map[string]json.RawMessage),
		updates: make(map[string]int),
		clients: make(map[string]chan wire.Frame),
		ctx:     ctx,
		cancel:  cancel,
		log:     logger,
	}
	go r.loop()
	return r
}

// Inbox exposes the message channel to the websocket layer and tests.
func (r *Relay) Inbox() chan<- Msg { return r.inbox }

// Send delivers a message to the relay loop. After shutdown nothing drains
// the inbox anymore, so the message is dropped instead of blocking the
// caller forever.
func (r *Relay) Send(m Msg) {
	select {
	case r.inbox <- m:
	case <-r.ctx.Done():
	}
}

func (r *Relay) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.clients[msg.ClientID] = msg.Outbox
				r.sendSnapshot(msg.ClientID)
				r.log.Info().
					Str("client_id", msg.ClientID).
					Int("clients", len(r.clients)).
					Msg("client joined")

			case Leave:
				if ch, ok := r.clients[msg.ClientID]; ok {
					delete(r.clients, msg.ClientID)
					close(ch)
					r.log.Info().
						Str("client_id", msg.ClientID).
						Int("clients", len(r.clients)).
						Msg("client left")
				}

			case Update:
				r.state[msg.Path] = msg.Data
				r.updates[msg.Path]++
				r.forward(msg)

			case SyncRequest:
				r.sendSnapshot(msg.ClientID)

			case GetView:
				msg.Reply <- r.view()

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

// forward sends an update to every open connection except the origin.
// Delivery is best-effort: a client whose outbox is full is dropped, never
// queued behind.
func (r *Relay) forward(msg Update) {
	frame := wire.Frame{Type: wire.TypeUpdate, Path: msg.Path, Data: msg.Data}
	for id, ch := range r.clients {
		if id == msg.From {
			continue
		}
		select {
		case ch <- frame:
		default:
			r.log.Warn().Str("client_id", id).Msg("outbox full, dropping client")
			delete(r.clients, id)
			close(ch)
		}
	}
}

func (r *Relay) sendSnapshot(clientID string) {
	ch, ok := r.clients[clientID]
	if !ok {
		return
	}
	frame, err := wire.Init(r.state)
	if err != nil {
		r.log.Error().Err(err).Msg("failed to build snapshot")
		return
	}
	select {
	case ch <- frame:
	default:
		r.log.Warn().Str("client_id", clientID).Msg("outbox full, dropping client")
		delete(r.clients, clientID)
		close(ch)
	}
}

func (r *Relay) view() View {
	paths := make([]string, 0, len(r.state))
	for path := range r.state {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	updates := make(map[string]int, len(r.updates))
	for path, n := range r.updates {
		updates[path] = n
	}
	return View{
		Clients: len(r.clients),
		Paths:   paths,
		Updates: updates,
	}
}

func (r *Relay) shutdown() {
	for id, ch := range r.clients {
		close(ch)
		delete(r.clients, id)
	}
	r.cancel()
}
