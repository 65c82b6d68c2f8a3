package tabgate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

// TabID identifies a browser tab.
type TabID int

// NoTab marks requests not attributable to any tab, such as background or
// service-level fetches.
const NoTab TabID = -1

// String returns the decimal form of the id.
func (id TabID) String() string {
	return strconv.Itoa(int(id))
}

// ParseTabID parses a decimal tab id.
func ParseTabID(s string) (TabID, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid tab id %q: %w", s, err)
	}
	return TabID(n), nil
}

// ErrNoActiveTab is returned by Tabs.ActiveTab when no tab is focused.
var ErrNoActiveTab = errors.New("no active tab")

// Tabs is the platform tab API the gate depends on.
type Tabs interface {
	// ActiveTab returns the focused tab of the current window.
	ActiveTab(ctx context.Context) (TabID, error)
	// Reload reloads the tab's current document.
	Reload(ctx context.Context, id TabID) error
}

// RequestDetails describes an outbound request about to be dispatched.
type RequestDetails struct {
	TabID  TabID
	URL    string
	Method string
}

// BlockingResponse is the synchronous verdict for a request.
type BlockingResponse struct {
	Cancel bool `json:"cancel"`
}

// Recorder receives gate decisions, typically for metrics.
type Recorder interface {
	GateDecision(cancelled bool)
	ActiveTabs(n int)
}

type nopRecorder struct{}

func (nopRecorder) GateDecision(bool) {}
func (nopRecorder) ActiveTabs(int)    {}

// Options carries the optional collaborators of a Gate.
type Options struct {
	Logger   *zap.Logger
	Recorder Recorder
	Filters  []string // request URL filters; empty means all URLs
}

// Gate cancels requests that do not come from a tab known to be active.
type Gate struct {
	tabs     Tabs
	filters  []Filter
	log      *zap.Logger
	recorder Recorder

	mu     sync.RWMutex
	active map[TabID]struct{}
}

// New creates a gate seeded with the currently focused tab. A missing focused
// tab is not an error; the gate then starts empty.
func New(ctx context.Context, tabs Tabs, opts Options) (*Gate, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}

	patterns := opts.Filters
	if len(patterns) == 0 {
		patterns = []string{AllURLs}
	}
	filters := make([]Filter, 0, len(patterns))
	for _, p := range patterns {
		f, err := ParseFilter(p)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}

	g := &Gate{
		tabs:     tabs,
		filters:  filters,
		log:      opts.Logger,
		recorder: opts.Recorder,
		active:   make(map[TabID]struct{}),
	}

	id, err := tabs.ActiveTab(ctx)
	switch {
	case errors.Is(err, ErrNoActiveTab):
		g.log.Info("Tab gate started without an active tab")
	case err != nil:
		return nil, fmt.Errorf("failed to query active tab: %w", err)
	default:
		g.add(id)
		g.log.Info("Tab gate seeded", zap.Stringer("tab_id", id))
	}

	return g, nil
}

// OnActivated handles a tab gaining focus. A tab the gate has not seen, such
// as one that existed before the gate started, is admitted and reloaded so
// its earlier cancelled requests are retried by the page itself.
func (g *Gate) OnActivated(ctx context.Context, id TabID) error {
	if !g.add(id) {
		return nil
	}

	g.log.Info("Unknown tab activated, reloading", zap.Stringer("tab_id", id))
	if err := g.tabs.Reload(ctx, id); err != nil {
		return fmt.Errorf("failed to reload tab %s: %w", id, err)
	}
	return nil
}

// OnCreated admits a new tab.
func (g *Gate) OnCreated(id TabID) {
	g.add(id)
}

// OnRemoved forgets a closed tab.
func (g *Gate) OnRemoved(id TabID) {
	g.mu.Lock()
	delete(g.active, id)
	n := len(g.active)
	g.mu.Unlock()

	g.recorder.ActiveTabs(n)
}

// BeforeRequest decides whether a request may proceed. It never blocks on I/O.
func (g *Gate) BeforeRequest(details RequestDetails) BlockingResponse {
	if details.TabID == NoTab || !g.matches(details.URL) {
		g.recorder.GateDecision(false)
		return BlockingResponse{}
	}

	cancel := !g.IsActive(details.TabID)
	g.recorder.GateDecision(cancel)
	if cancel {
		g.log.Debug("Request cancelled",
			zap.Stringer("tab_id", details.TabID),
			zap.String("url", details.URL),
		)
	}
	return BlockingResponse{Cancel: cancel}
}

// IsActive reports whether id is in the active set.
func (g *Gate) IsActive(id TabID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.active[id]
	return ok
}

// Active returns the active tab ids in ascending order.
func (g *Gate) Active() []TabID {
	g.mu.RLock()
	ids := make([]TabID, 0, len(g.active))
	for id := range g.active {
		ids = append(ids, id)
	}
	g.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// add admits id and reports whether it was new.
func (g *Gate) add(id TabID) bool {
	g.mu.Lock()
	_, known := g.active[id]
	if !known {
		g.active[id] = struct{}{}
	}
	n := len(g.active)
	g.mu.Unlock()

	if !known {
		g.recorder.ActiveTabs(n)
	}
	return !known
}

func (g *Gate) matches(rawURL string) bool {
	for _, f := range g.filters {
		if f.Match(rawURL) {
			return true
		}
	}
	return false
}
