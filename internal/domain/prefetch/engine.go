package prefetch

import (
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TouchWindow is how long after a touch start pointer events are treated as
// touch-emulated. It exceeds the gap between a touch and the synthetic mouse
// events some platforms emit for it.
const TouchWindow = 1111 * time.Millisecond

// ViewportIdleTimeout bounds how long viewport setup waits for an idle surface.
const ViewportIdleTimeout = 1500 * time.Millisecond

// Options carries the optional collaborators of an Engine.
type Options struct {
	Clock     Clock
	Logger    *zap.Logger
	Recorder  Recorder
	Navigator Navigator     // required for the pointer-down shortcut
	Viewport  Viewport      // required for viewport prefetching
	Idle      IdleScheduler // nil runs viewport setup immediately
}

// Engine is the prefetch decision engine of one document.
type Engine struct {
	cfg      Config
	plan     Plan
	location *url.URL
	hints    HintSink
	registry *Registry

	clock     Clock
	log       *zap.Logger
	recorder  Recorder
	navigator Navigator
	viewport  Viewport
	idle      IdleScheduler

	mu        sync.Mutex
	lastTouch time.Time
	hover     *pendingHover
	nextToken uint64
	armed     map[Link]struct{}
	observed  map[Link]struct{}
	started   bool
	observing bool
	stopped   bool
}

type pendingHover struct {
	link  Link
	token uint64
	timer Timer
}

// New creates an Engine for a document at location.
func New(cfg Config, location *url.URL, env Environment, hints HintSink, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}

	plan := cfg.Plan(env)
	if plan.Shortcut && opts.Navigator == nil {
		plan.Shortcut = false
	}
	if plan.Viewport && opts.Viewport == nil {
		plan.Viewport = false
	}
	if !env.Capabilities.Idle {
		opts.Idle = nil
	}

	e := &Engine{
		cfg:       cfg,
		plan:      plan,
		location:  location,
		hints:     hints,
		registry:  NewRegistry(),
		clock:     opts.Clock,
		log:       opts.Logger,
		recorder:  opts.Recorder,
		navigator: opts.Navigator,
		viewport:  opts.Viewport,
		idle:      opts.Idle,
		armed:     make(map[Link]struct{}),
		observed:  make(map[Link]struct{}),
	}

	e.log.Debug("Prefetch engine created",
		zap.Stringer("location", location),
		zap.String("mode", string(cfg.Mode)),
		zap.Duration("delay", cfg.Delay),
		zap.Bool("inert", plan.Inert()),
	)

	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Plan returns the attached listeners.
func (e *Engine) Plan() Plan {
	return e.plan
}

// Registry returns the dedup registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Preloadable reports whether link is eligible under the engine configuration.
func (e *Engine) Preloadable(link Link) bool {
	return IsPreloadable(link, e.cfg, e.location)
}

// Start runs the one-time startup work. Only viewport prefetching has any.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.started || !e.plan.Viewport {
		e.started = true
		e.mu.Unlock()
		return
	}
	e.started = true
	idle := e.idle
	e.mu.Unlock()

	if idle != nil {
		idle.RequestIdle(e.observeViewport, ViewportIdleTimeout)
		return
	}
	e.observeViewport()
}

// preload is the single funnel for prefetch work. Caller holds e.mu.
func (e *Engine) preload(url string, trigger Trigger) {
	if e.registry.Has(url) {
		e.recorder.PrefetchDuplicate(trigger)
		return
	}

	e.hints.Prefetch(url)
	e.registry.Record(url)
	e.recorder.PrefetchIssued(trigger)

	e.log.Debug("Prefetch issued",
		zap.String("url", url),
		zap.String("trigger", string(trigger)),
	)
}

// touchRecent reports whether a touch started within TouchWindow. Caller holds e.mu.
func (e *Engine) touchRecent() bool {
	if e.lastTouch.IsZero() {
		return false
	}
	return e.clock.Now().Sub(e.lastTouch) < TouchWindow
}

// Stop cancels the pending hover timer and any viewport setup that has not
// run yet, and makes the engine ignore later events. The host calls it when
// the document is replaced or closed.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopped = true
	e.cancelHover()
	e.observing = true
	e.started = true
}
