package app

import (
	"context"
	"sync"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/service"
)

// Relay fans events out to every attached emitter. Emitters can be attached
// after the services are built, which is how the MCP server gets them.
type Relay struct {
	mu      sync.RWMutex
	targets []service.EventEmitter
}

func NewRelay(targets ...service.EventEmitter) *Relay {
	return &Relay{targets: targets}
}

func (r *Relay) Attach(e service.EventEmitter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = append(r.targets, e)
}

func (r *Relay) Emit(ctx context.Context, event string, data any) {
	r.mu.RLock()
	targets := r.targets
	r.mu.RUnlock()
	for _, t := range targets {
		t.Emit(ctx, event, data)
	}
}
