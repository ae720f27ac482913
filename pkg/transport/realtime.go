package transport

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nvbf/scoreboard-sync/repos/realtime"
)

// realtimeBackend routes everything to the managed datastore. One snapshot
// listener is opened per path and reused by all local subscribers.
type realtimeBackend struct {
	svc    *realtime.Service
	org    string
	sink   func(path string, doc json.RawMessage)
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	watched map[string]bool
}

func newRealtimeBackend(parent context.Context, cfg Config, sink func(path string, doc json.RawMessage)) *realtimeBackend {
	ctx, cancel := context.WithCancel(parent)
	return &realtimeBackend{
		svc:     cfg.Realtime,
		org:     cfg.OrganizationID,
		sink:    sink,
		log:     cfg.Logger,
		ctx:     ctx,
		cancel:  cancel,
		watched: make(map[string]bool),
	}
}

func (b *realtimeBackend) Publish(ctx context.Context, path string, doc json.RawMessage) error {
	return b.svc.Publish(ctx, b.org, path, doc)
}

func (b *realtimeBackend) Watch(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.watched[path] {
		return
	}
	b.watched[path] = true
	b.svc.Watch(b.ctx, b.org, path, b.sink)
}

// Connected is always true for the managed datastore: its client library
// maintains the link and buffers writes on its own.
func (b *realtimeBackend) Connected() bool { return true }

func (b *realtimeBackend) Close() error {
	b.cancel()
	return nil
}
