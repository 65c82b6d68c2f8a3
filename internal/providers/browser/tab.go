package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/CacheOnHover/internal/domain/prefetch"
	"github.com/GriffinCanCode/CacheOnHover/internal/domain/tabgate"
)

var (
	// ErrNoDocument is returned for events on a tab that has not loaded a page.
	ErrNoDocument = errors.New("tab has no document")
	// ErrStaleDocument is returned for events naming a replaced document.
	ErrStaleDocument = errors.New("event targets a stale document")
	// ErrNotAttached is returned for events on a tab without a surface.
	ErrNotAttached = errors.New("no surface attached")
)

// Surface is the rendering surface attached to a tab. Its methods are called
// while engine state is locked and must not block.
type Surface interface {
	Ready(info DocumentInfo)
	Prefetch(docID, url string)
	Observe(docID, ref string)
	Unobserve(docID, ref string)
	Navigate(docID, ref, url string)
	RequestIdle(docID string, token uint64, timeout time.Duration)
}

// DocumentInfo describes a document and the listeners its engine attached.
type DocumentInfo struct {
	ID    string        `json:"id"`
	URL   string        `json:"url"`
	Title string        `json:"title"`
	Mode  prefetch.Mode `json:"mode"`
	Plan  prefetch.Plan `json:"plan"`
}

// TabInfo describes a tab.
type TabInfo struct {
	ID            tabgate.TabID `json:"id"`
	Active        bool          `json:"active"`
	Attached      bool          `json:"attached"`
	Document      *DocumentInfo `json:"document,omitempty"`
	PrefetchHints []string      `json:"prefetch_hints,omitempty"`
	History       []string      `json:"history"`
}

// EventType names an event forwarded by the surface.
type EventType string

const (
	EventTouchStart  EventType = "touchstart"
	EventPointerOver EventType = "pointerover"
	EventPointerOut  EventType = "pointerout"
	EventPointerDown EventType = "pointerdown"
	EventClick       EventType = "click"
	EventIntersect   EventType = "intersect"
	EventIdle        EventType = "idle"
)

// Event is a surface event addressed by element reference.
type Event struct {
	Type         EventType
	DocID        string
	Ref          string
	RelatedRef   string
	Button       prefetch.Button
	MetaKey      bool
	CtrlKey      bool
	Synthetic    bool
	Intersecting bool
	Token        uint64
}

// Tab is one browser tab.
type Tab struct {
	ID   tabgate.TabID
	host *Host

	mu      sync.Mutex
	doc     *Document
	history []string
	surface Surface
	env     prefetch.Environment
	binding *binding
}

// Navigate loads rawURL into the tab, replacing the current document. An
// attached surface gets a fresh engine for the new document.
func (t *Tab) Navigate(ctx context.Context, rawURL string) (*Document, error) {
	doc, err := t.host.loader.Load(ctx, t.ID, rawURL)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.unbind()
	t.doc = doc
	t.history = append(t.history, doc.URL.String())
	if t.surface != nil {
		t.bind()
	}
	return doc, nil
}

// Location returns the URL of the current document, or "".
func (t *Tab) Location() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.doc == nil {
		return ""
	}
	return t.doc.URL.String()
}

// Document returns the current document, or nil.
func (t *Tab) Document() *Document {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.doc
}

// Engine returns the engine of the current document, or nil when no surface
// is attached.
func (t *Tab) Engine() *prefetch.Engine {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.binding == nil {
		return nil
	}
	return t.binding.engine
}

// Attach connects a surface describing its environment. A previously
// attached surface is replaced.
func (t *Tab) Attach(s Surface, env prefetch.Environment) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.unbind()
	t.surface = s
	t.env = env
	if t.doc != nil {
		t.bind()
	}
	t.host.log.Info("Surface attached",
		zap.Stringer("tab_id", t.ID),
		zap.Bool("supported", env.Supported()),
		zap.Int("width", env.Width),
		zap.Int("height", env.Height),
	)
}

// Detach disconnects s if it is still the attached surface.
func (t *Tab) Detach(s Surface) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.surface != s {
		return
	}
	t.unbind()
	t.surface = nil
}

// Dispatch routes a surface event to the engine. For clicks it reports
// whether the default action must be prevented.
func (t *Tab) Dispatch(ev Event) (prevent bool, err error) {
	t.mu.Lock()
	b := t.binding
	doc := t.doc
	t.mu.Unlock()

	switch {
	case doc == nil:
		return false, ErrNoDocument
	case b == nil:
		return false, ErrNotAttached
	case ev.DocID != doc.ID:
		return false, fmt.Errorf("%w: %s", ErrStaleDocument, ev.DocID)
	}

	e := b.engine
	switch ev.Type {
	case EventTouchStart:
		e.TouchStart(prefetch.TouchEvent{Target: doc.Target(ev.Ref)})
	case EventPointerOver:
		e.PointerOver(b.pointer(ev))
	case EventPointerOut:
		e.PointerOut(b.pointer(ev))
	case EventPointerDown:
		e.PointerDown(b.pointer(ev))
	case EventClick:
		return e.Click(prefetch.ClickEvent{Target: doc.Target(ev.Ref), Synthetic: ev.Synthetic}), nil
	case EventIntersect:
		if a, ok := doc.Anchor(ev.Ref); ok {
			e.Intersect(prefetch.IntersectionEntry{Link: a, Intersecting: ev.Intersecting})
		}
	case EventIdle:
		b.idleFired(ev.Token)
	default:
		return false, fmt.Errorf("unknown event type %q", ev.Type)
	}
	return false, nil
}

// Info describes the tab.
func (t *Tab) Info() TabInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	info := TabInfo{
		ID:       t.ID,
		Active:   t.host.focusedTab() == t.ID,
		Attached: t.surface != nil,
		History:  append([]string{}, t.history...),
	}
	if t.doc != nil {
		di := t.documentInfo()
		info.Document = &di
		info.PrefetchHints = t.doc.PrefetchHints()
	}
	return info
}

func (t *Tab) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unbind()
	t.surface = nil
}

// documentInfo describes the current document. Caller holds t.mu.
func (t *Tab) documentInfo() DocumentInfo {
	info := DocumentInfo{
		ID:    t.doc.ID,
		URL:   t.doc.URL.String(),
		Title: t.doc.Title,
	}
	if t.binding != nil {
		info.Mode = t.binding.engine.Config().Mode
		info.Plan = t.binding.engine.Plan()
	} else {
		info.Mode = prefetch.Resolve(t.doc.Flags()).Mode
	}
	return info
}

// bind starts an engine for the current document and surface. Caller holds t.mu.
func (t *Tab) bind() {
	h := t.host
	b := &binding{
		doc:     t.doc,
		surface: t.surface,
		clock:   h.clock,
		idle:    make(map[uint64]*idleCallback),
	}

	log := h.log.With(zap.Stringer("tab_id", t.ID), zap.String("doc_id", t.doc.ID))
	b.engine = prefetch.New(prefetch.Resolve(t.doc.Flags()), t.doc.URL, t.env, b, prefetch.Options{
		Clock:     h.clock,
		Logger:    log,
		Recorder:  h.recorder,
		Navigator: b,
		Viewport:  b,
		Idle:      b,
	})
	t.binding = b
	h.engineStarted()

	t.surface.Ready(t.documentInfo())
	b.engine.Start()
}

// unbind stops the current engine. Caller holds t.mu.
func (t *Tab) unbind() {
	if t.binding == nil {
		return
	}
	t.binding.stop()
	t.binding = nil
	t.host.engineStopped()
}
