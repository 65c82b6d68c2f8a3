package browser

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/CacheOnHover/internal/domain/prefetch"
	"github.com/GriffinCanCode/CacheOnHover/internal/domain/tabgate"
)

// ErrTabNotFound is returned for operations on unknown tab ids.
var ErrTabNotFound = errors.New("tab not found")

// Gate is the tab authorization gate as seen by the host.
type Gate interface {
	Gatekeeper
	OnCreated(id tabgate.TabID)
	OnActivated(ctx context.Context, id tabgate.TabID) error
	OnRemoved(id tabgate.TabID)
}

// DocumentRecorder observes the number of documents with a running engine.
type DocumentRecorder interface {
	SetDocumentsActive(n int)
}

// HostOptions carries the optional collaborators of a Host.
type HostOptions struct {
	Clock     prefetch.Clock
	Logger    *zap.Logger
	Recorder  prefetch.Recorder
	Documents DocumentRecorder
}

// Host owns the browser tabs: their documents, their attached surfaces and
// one prefetch engine per live document. It implements tabgate.Tabs.
type Host struct {
	loader    *Loader
	clock     prefetch.Clock
	log       *zap.Logger
	recorder  prefetch.Recorder
	documents DocumentRecorder
	engines   atomic.Int64

	mu      sync.RWMutex
	gate    Gate
	tabs    map[tabgate.TabID]*Tab
	focused tabgate.TabID
	nextID  tabgate.TabID
}

// NewHost creates a host loading documents through loader.
func NewHost(loader *Loader, opts HostOptions) *Host {
	if opts.Clock == nil {
		opts.Clock = prefetch.SystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Host{
		loader:    loader,
		clock:     opts.Clock,
		log:       opts.Logger,
		recorder:  opts.Recorder,
		documents: opts.Documents,
		tabs:      make(map[tabgate.TabID]*Tab),
		focused:   tabgate.NoTab,
		nextID:    1,
	}
}

// UseGate routes tab lifecycle notifications and document loads through g.
// The gate is usually created after the host since it seeds from it.
func (h *Host) UseGate(g Gate) {
	h.mu.Lock()
	h.gate = g
	h.mu.Unlock()
	h.loader.gate = g
}

// ActiveTab implements tabgate.Tabs.
func (h *Host) ActiveTab(context.Context) (tabgate.TabID, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.focused == tabgate.NoTab {
		return 0, tabgate.ErrNoActiveTab
	}
	return h.focused, nil
}

// Reload implements tabgate.Tabs by reloading the tab's current document.
// A tab that has not loaded anything yet is left alone.
func (h *Host) Reload(ctx context.Context, id tabgate.TabID) error {
	tab, err := h.Tab(id)
	if err != nil {
		return err
	}
	location := tab.Location()
	if location == "" {
		return nil
	}
	_, err = tab.Navigate(ctx, location)
	return err
}

// CreateTab opens a tab and, when rawURL is set, loads it.
func (h *Host) CreateTab(ctx context.Context, rawURL string) (*Tab, error) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	tab := &Tab{ID: id, host: h}
	h.tabs[id] = tab
	gate := h.gate
	h.mu.Unlock()

	if gate != nil {
		gate.OnCreated(id)
	}
	h.log.Info("Tab created", zap.Stringer("tab_id", id))

	if rawURL != "" {
		if _, err := tab.Navigate(ctx, rawURL); err != nil {
			return tab, err
		}
	}
	return tab, nil
}

// Activate focuses a tab.
func (h *Host) Activate(ctx context.Context, id tabgate.TabID) error {
	h.mu.Lock()
	if _, ok := h.tabs[id]; !ok {
		h.mu.Unlock()
		return fmt.Errorf("activate %s: %w", id, ErrTabNotFound)
	}
	h.focused = id
	gate := h.gate
	h.mu.Unlock()

	h.log.Info("Tab activated", zap.Stringer("tab_id", id))
	if gate == nil {
		return nil
	}
	return gate.OnActivated(ctx, id)
}

// CloseTab closes a tab and detaches its surface.
func (h *Host) CloseTab(id tabgate.TabID) error {
	h.mu.Lock()
	tab, ok := h.tabs[id]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("close %s: %w", id, ErrTabNotFound)
	}
	delete(h.tabs, id)
	if h.focused == id {
		h.focused = tabgate.NoTab
	}
	gate := h.gate
	h.mu.Unlock()

	tab.close()
	if gate != nil {
		gate.OnRemoved(id)
	}
	h.log.Info("Tab closed", zap.Stringer("tab_id", id))
	return nil
}

// Tab returns the tab with the given id.
func (h *Host) Tab(id tabgate.TabID) (*Tab, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	tab, ok := h.tabs[id]
	if !ok {
		return nil, fmt.Errorf("tab %s: %w", id, ErrTabNotFound)
	}
	return tab, nil
}

// Tabs describes every open tab in id order.
func (h *Host) Tabs() []TabInfo {
	h.mu.RLock()
	tabs := make([]*Tab, 0, len(h.tabs))
	for _, t := range h.tabs {
		tabs = append(tabs, t)
	}
	h.mu.RUnlock()

	sort.Slice(tabs, func(i, j int) bool { return tabs[i].ID < tabs[j].ID })
	infos := make([]TabInfo, 0, len(tabs))
	for _, t := range tabs {
		infos = append(infos, t.Info())
	}
	return infos
}

func (h *Host) focusedTab() tabgate.TabID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.focused
}

func (h *Host) engineStarted() {
	n := h.engines.Add(1)
	if h.documents != nil {
		h.documents.SetDocumentsActive(int(n))
	}
}

func (h *Host) engineStopped() {
	n := h.engines.Add(-1)
	if h.documents != nil {
		h.documents.SetDocumentsActive(int(n))
	}
}
