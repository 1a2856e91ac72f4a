// Package component runs registered components through setup and a periodic
// loop, highest setup priority first.
//
// Topics:
//
//	component/state   retained types.ComponentState
package component

import (
	"context"
	"sort"
	"sync"
	"time"

	"loragw/bus"
	"loragw/errcode"
	"loragw/types"

	"github.com/charmbracelet/log"
)

// Setup priorities. Higher runs first.
const (
	PriorityHardware float32 = 800
	PriorityData     float32 = 600
	PriorityLate     float32 = -100
)

var topicState = bus.T("component", "state")

// Component is anything the registry can set up and loop.
type Component interface {
	Setup(ctx context.Context) error
	Loop(ctx context.Context) error
	DumpConfig()
	SetupPriority() float32
}

type entry struct {
	id       string
	c        Component
	priority float32
	failed   bool
}

// Registry owns the registered components.
type Registry struct {
	conn *bus.Connection
	log  *log.Logger
	now  func() time.Time

	mu      sync.Mutex
	entries []*entry
	byID    map[string]*entry
	setup   bool
}

// NewRegistry returns an empty registry. conn may be nil.
func NewRegistry(conn *bus.Connection, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		conn: conn,
		log:  logger,
		now:  time.Now,
		byID: make(map[string]*entry),
	}
}

// Register adds c under id. A nil priority uses c.SetupPriority().
func (r *Registry) Register(id string, c Component, priority *float32) error {
	if id == "" {
		return errcode.New(errcode.InvalidValue, "id", "empty component id")
	}
	if c == nil {
		return errcode.New(errcode.InvalidValue, id, "nil component")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byID[id]; dup {
		return errcode.New(errcode.DuplicateID, id, "component already registered")
	}
	p := c.SetupPriority()
	if priority != nil {
		p = *priority
	}
	e := &entry{id: id, c: c, priority: p}
	r.entries = append(r.entries, e)
	r.byID[id] = e
	r.log.Debug("component registered", "id", id, "priority", p)
	return nil
}

// Get returns the component registered under id.
func (r *Registry) Get(id string) (Component, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return e.c, true
}

// IDs lists registered ids in setup order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.ordered() {
		out = append(out, e.id)
	}
	return out
}

// ordered sorts by descending priority, keeping registration order for ties.
// Caller holds mu.
func (r *Registry) ordered() []*entry {
	out := append([]*entry(nil), r.entries...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].priority > out[j].priority })
	return out
}

// Setup runs Setup on every component. A failing component is marked failed
// and skipped by the loop; the rest carry on. The returned slice lists the
// failed ids.
func (r *Registry) Setup(ctx context.Context) []string {
	r.mu.Lock()
	order := r.ordered()
	r.mu.Unlock()

	var failed []string
	for _, e := range order {
		if err := ctx.Err(); err != nil {
			break
		}
		if err := e.c.Setup(ctx); err != nil {
			r.log.Error("component setup failed", "id", e.id, "err", err)
			r.mu.Lock()
			e.failed = true
			r.mu.Unlock()
			failed = append(failed, e.id)
			continue
		}
		r.log.Debug("component set up", "id", e.id)
	}

	r.mu.Lock()
	r.setup = true
	r.mu.Unlock()
	r.publishState("ready", "setup_done", failed)
	return failed
}

// LoopOnce calls Loop on every healthy component. A Loop error is logged and
// does not stop the others.
func (r *Registry) LoopOnce(ctx context.Context) {
	r.mu.Lock()
	order := r.ordered()
	r.mu.Unlock()

	for _, e := range order {
		r.mu.Lock()
		skip := e.failed
		r.mu.Unlock()
		if skip {
			continue
		}
		if err := e.c.Loop(ctx); err != nil {
			r.log.Warn("component loop error", "id", e.id, "err", err)
		}
	}
}

// Run sets components up if needed, then loops every interval until ctx ends.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	r.mu.Lock()
	done := r.setup
	r.mu.Unlock()
	if !done {
		r.Setup(ctx)
	}
	r.publishState("running", "loop", r.Failed())

	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			r.publishState("stopped", "ctx_done", r.Failed())
			return ctx.Err()
		case <-tick.C:
			r.LoopOnce(ctx)
		}
	}
}

// DumpConfig asks each component to log its configuration.
func (r *Registry) DumpConfig() {
	r.mu.Lock()
	order := r.ordered()
	r.mu.Unlock()
	for _, e := range order {
		e.c.DumpConfig()
	}
}

// Failed lists components whose setup failed.
func (r *Registry) Failed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.ordered() {
		if e.failed {
			out = append(out, e.id)
		}
	}
	return out
}

func (r *Registry) publishState(level, status string, failed []string) {
	if r.conn == nil {
		return
	}
	r.conn.Publish(r.conn.NewMessage(topicState, types.ComponentState{
		Level:  level,
		Status: status,
		Failed: failed,
		TS:     r.now().UnixMilli(),
	}, true))
}
