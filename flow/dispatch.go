package flow

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/poiesic/flowrun/core"
)

// Handler processes one candidate record for a flow.
//
// hash is the flow's current logic hash; handlers normally write it as the
// stamp value (see Commit), which marks the record done and records which
// version of the logic produced it. A returned error leaves the record
// un-stamped so it is picked up again on the next pass, which means handlers
// must be idempotent.
type Handler func(ctx context.Context, rec *core.Record, hash string) error

// Dispatch maps flow names to handlers. It is owned by one Executor and is
// never persisted; handlers must be registered again on every start.
type Dispatch struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewDispatch creates an empty dispatch table.
func NewDispatch() *Dispatch {
	return &Dispatch{handlers: make(map[string]Handler)}
}

// Register binds a handler to a flow name, replacing any previous binding.
func (d *Dispatch) Register(name string, h Handler) error {
	if name == "" {
		return core.ErrEmptyFlowName
	}
	if h == nil {
		return ErrNilHandler
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = h
	return nil
}

// Has reports whether a handler is registered for name.
func (d *Dispatch) Has(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[name]
	return ok
}

// Names returns the registered flow names in sorted order.
func (d *Dispatch) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Invoke calls the handler registered for name. A panic inside the handler
// is recovered and returned as ErrHandlerPanic.
func (d *Dispatch) Invoke(ctx context.Context, name string, rec *core.Record, hash string) (err error) {
	d.mu.RLock()
	h, ok := d.handlers[name]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, name)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return h(ctx, rec, hash)
}
