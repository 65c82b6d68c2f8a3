package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/CacheOnHover/internal/domain/prefetch"
	"github.com/GriffinCanCode/CacheOnHover/internal/domain/tabgate"
	"github.com/GriffinCanCode/CacheOnHover/tests/helpers/testutil"
)

type surfaceCall struct {
	kind  string
	docID string
	arg   string
	token uint64
}

type fakeSurface struct {
	mu    sync.Mutex
	calls []surfaceCall
	ready []DocumentInfo
}

func (s *fakeSurface) record(c surfaceCall) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
}

func (s *fakeSurface) Ready(info DocumentInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = append(s.ready, info)
}
func (s *fakeSurface) Prefetch(docID, url string) {
	s.record(surfaceCall{kind: "prefetch", docID: docID, arg: url})
}
func (s *fakeSurface) Observe(docID, ref string) {
	s.record(surfaceCall{kind: "observe", docID: docID, arg: ref})
}
func (s *fakeSurface) Unobserve(docID, ref string) {
	s.record(surfaceCall{kind: "unobserve", docID: docID, arg: ref})
}
func (s *fakeSurface) Navigate(docID, ref, url string) {
	s.record(surfaceCall{kind: "navigate", docID: docID, arg: url})
}
func (s *fakeSurface) RequestIdle(docID string, token uint64, _ time.Duration) {
	s.record(surfaceCall{kind: "idle", docID: docID, token: token})
}

func (s *fakeSurface) of(kind string) []surfaceCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []surfaceCall
	for _, c := range s.calls {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func (s *fakeSurface) lastReady(t *testing.T) DocumentInfo {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.ready)
	return s.ready[len(s.ready)-1]
}

var desktop = prefetch.Environment{
	Capabilities: prefetch.Capabilities{Prefetch: true, Intersection: true},
	Width:        1280,
	Height:       800,
}

type hostFixture struct {
	host  *Host
	gate  *tabgate.Gate
	clock *testutil.FakeClock
	srv   *httptest.Server
}

func newHostFixture(t *testing.T, pages map[string]string) *hostFixture {
	t.Helper()
	mux := http.NewServeMux()
	for path, body := range pages {
		body := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(body))
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	clock := testutil.NewFakeClock()
	host := NewHost(newTestLoader(nil, nil), HostOptions{Clock: clock})
	gate, err := tabgate.New(context.Background(), host, tabgate.Options{})
	require.NoError(t, err)
	host.UseGate(gate)

	return &hostFixture{host: host, gate: gate, clock: clock, srv: srv}
}

func (f *hostFixture) url(path string) string {
	return f.srv.URL + path
}

func refIn(t *testing.T, tab *Tab, id string) string {
	t.Helper()
	return refOf(t, tab.Document(), id)
}

func TestHostTabLifecycle(t *testing.T) {
	f := newHostFixture(t, map[string]string{"/": samplePage})
	ctx := context.Background()

	_, err := f.host.ActiveTab(ctx)
	assert.ErrorIs(t, err, tabgate.ErrNoActiveTab)

	tab, err := f.host.CreateTab(ctx, f.url("/"))
	require.NoError(t, err)
	assert.True(t, f.gate.IsActive(tab.ID), "created tabs are admitted")

	require.NoError(t, f.host.Activate(ctx, tab.ID))
	active, err := f.host.ActiveTab(ctx)
	require.NoError(t, err)
	assert.Equal(t, tab.ID, active)

	infos := f.host.Tabs()
	require.Len(t, infos, 1)
	assert.True(t, infos[0].Active)
	assert.Equal(t, []string{f.url("/")}, infos[0].History)

	require.NoError(t, f.host.CloseTab(tab.ID))
	assert.False(t, f.gate.IsActive(tab.ID))
	_, err = f.host.Tab(tab.ID)
	assert.ErrorIs(t, err, ErrTabNotFound)
	assert.ErrorIs(t, f.host.CloseTab(tab.ID), ErrTabNotFound)
	assert.ErrorIs(t, f.host.Activate(ctx, tab.ID), ErrTabNotFound)
}

func TestHostGateBlocksRemovedTab(t *testing.T) {
	f := newHostFixture(t, map[string]string{"/": samplePage})
	ctx := context.Background()

	tab, err := f.host.CreateTab(ctx, "")
	require.NoError(t, err)
	f.gate.OnRemoved(tab.ID)

	_, err = tab.Navigate(ctx, f.url("/"))
	assert.ErrorIs(t, err, ErrTabInactive)

	// Activation re-admits the tab and reloads it; with nothing loaded yet
	// the reload is a no-op.
	require.NoError(t, f.host.Activate(ctx, tab.ID))
	_, err = tab.Navigate(ctx, f.url("/"))
	assert.NoError(t, err)
}

func TestHostReloadsUnknownTabOnActivation(t *testing.T) {
	f := newHostFixture(t, map[string]string{"/": samplePage})
	ctx := context.Background()

	tab, err := f.host.CreateTab(ctx, f.url("/"))
	require.NoError(t, err)
	first := tab.Document().ID

	f.gate.OnRemoved(tab.ID)
	require.NoError(t, f.host.Activate(ctx, tab.ID))

	assert.NotEqual(t, first, tab.Document().ID, "tab was reloaded")
	assert.Len(t, tab.Info().History, 2)
}

func TestHoverThroughHost(t *testing.T) {
	f := newHostFixture(t, map[string]string{"/": samplePage})
	tab, err := f.host.CreateTab(context.Background(), f.url("/"))
	require.NoError(t, err)

	s := &fakeSurface{}
	tab.Attach(s, desktop)
	info := s.lastReady(t)
	assert.Equal(t, prefetch.ModeHover, info.Mode)
	assert.True(t, info.Plan.Hover)

	_, err = tab.Dispatch(Event{Type: EventPointerOver, DocID: info.ID, Ref: refIn(t, tab, "label")})
	require.NoError(t, err)
	f.clock.Advance(150 * time.Millisecond)

	prefetches := s.of("prefetch")
	require.Len(t, prefetches, 1)
	assert.Equal(t, f.url("/about"), prefetches[0].arg)
	assert.Equal(t, []string{f.url("/about")}, tab.Document().PrefetchHints())
	assert.Equal(t, []string{f.url("/about")}, tab.Info().PrefetchHints)
}

func TestDispatchErrors(t *testing.T) {
	f := newHostFixture(t, map[string]string{"/": samplePage})
	tab, err := f.host.CreateTab(context.Background(), "")
	require.NoError(t, err)

	_, err = tab.Dispatch(Event{Type: EventTouchStart})
	assert.ErrorIs(t, err, ErrNoDocument)

	_, err = tab.Navigate(context.Background(), f.url("/"))
	require.NoError(t, err)
	_, err = tab.Dispatch(Event{Type: EventTouchStart, DocID: tab.Document().ID})
	assert.ErrorIs(t, err, ErrNotAttached)

	s := &fakeSurface{}
	tab.Attach(s, desktop)
	_, err = tab.Dispatch(Event{Type: EventTouchStart, DocID: "old"})
	assert.ErrorIs(t, err, ErrStaleDocument)

	_, err = tab.Dispatch(Event{Type: "scroll", DocID: tab.Document().ID})
	assert.Error(t, err)
}

const shortcutPage = `<html><body data-coh-mousedown-shortcut>
<a id="go" href="/next"><b id="inner">Next</b></a>
</body></html>`

func TestShortcutThroughHost(t *testing.T) {
	f := newHostFixture(t, map[string]string{"/": shortcutPage})
	tab, err := f.host.CreateTab(context.Background(), f.url("/"))
	require.NoError(t, err)

	s := &fakeSurface{}
	tab.Attach(s, desktop)
	docID := s.lastReady(t).ID
	inner := refIn(t, tab, "inner")

	_, err = tab.Dispatch(Event{Type: EventPointerDown, DocID: docID, Ref: inner, Button: prefetch.ButtonPrimary})
	require.NoError(t, err)

	navs := s.of("navigate")
	require.Len(t, navs, 1)
	assert.Equal(t, f.url("/next"), navs[0].arg)

	prevent, err := tab.Dispatch(Event{Type: EventClick, DocID: docID, Ref: inner, Synthetic: true})
	require.NoError(t, err)
	assert.False(t, prevent)

	prevent, err = tab.Dispatch(Event{Type: EventClick, DocID: docID, Ref: inner})
	require.NoError(t, err)
	assert.True(t, prevent, "first native click is swallowed")

	prevent, err = tab.Dispatch(Event{Type: EventClick, DocID: docID, Ref: inner})
	require.NoError(t, err)
	assert.False(t, prevent)
}

const viewportPage = `<html><body data-coh-intensity="viewport-all">
<a id="a" href="/a">A</a>
<a id="b" href="https://other.com/b">B</a>
</body></html>`

func TestViewportThroughHost(t *testing.T) {
	f := newHostFixture(t, map[string]string{"/": viewportPage})
	tab, err := f.host.CreateTab(context.Background(), f.url("/"))
	require.NoError(t, err)

	env := desktop
	env.Capabilities.Idle = true
	s := &fakeSurface{}
	tab.Attach(s, env)
	docID := s.lastReady(t).ID

	idle := s.of("idle")
	require.Len(t, idle, 1)
	assert.Empty(t, s.of("observe"), "setup waits for idle")

	_, err = tab.Dispatch(Event{Type: EventIdle, DocID: docID, Token: idle[0].token})
	require.NoError(t, err)

	a := refIn(t, tab, "a")
	observed := s.of("observe")
	require.Len(t, observed, 1)
	assert.Equal(t, a, observed[0].arg)

	_, err = tab.Dispatch(Event{Type: EventIntersect, DocID: docID, Ref: a, Intersecting: true})
	require.NoError(t, err)
	assert.Len(t, s.of("unobserve"), 1)
	require.Len(t, s.of("prefetch"), 1)
	assert.Equal(t, f.url("/a"), s.of("prefetch")[0].arg)
}

func TestViewportIdleFallsBackToTimeout(t *testing.T) {
	f := newHostFixture(t, map[string]string{"/": viewportPage})
	tab, err := f.host.CreateTab(context.Background(), f.url("/"))
	require.NoError(t, err)

	env := desktop
	env.Capabilities.Idle = true
	s := &fakeSurface{}
	tab.Attach(s, env)

	f.clock.Advance(prefetch.ViewportIdleTimeout)
	assert.Len(t, s.of("observe"), 1)

	// A late answer from the surface is ignored.
	_, err = tab.Dispatch(Event{Type: EventIdle, DocID: s.lastReady(t).ID, Token: s.of("idle")[0].token})
	require.NoError(t, err)
	assert.Len(t, s.of("observe"), 1)
}

func TestNavigationReplacesEngine(t *testing.T) {
	f := newHostFixture(t, map[string]string{"/": samplePage, "/next": shortcutPage})
	tab, err := f.host.CreateTab(context.Background(), f.url("/"))
	require.NoError(t, err)

	s := &fakeSurface{}
	tab.Attach(s, desktop)
	firstDoc := s.lastReady(t).ID
	_, err = tab.Dispatch(Event{Type: EventPointerOver, DocID: firstDoc, Ref: refIn(t, tab, "home")})
	require.NoError(t, err)

	_, err = tab.Navigate(context.Background(), f.url("/next"))
	require.NoError(t, err)
	f.clock.Advance(time.Second)

	assert.Empty(t, s.of("prefetch"), "pending hover dies with its document")
	assert.NotEqual(t, firstDoc, s.lastReady(t).ID)
	assert.True(t, s.lastReady(t).Plan.Shortcut)

	_, err = tab.Dispatch(Event{Type: EventTouchStart, DocID: firstDoc})
	assert.ErrorIs(t, err, ErrStaleDocument)
}

func TestDetachStopsEngine(t *testing.T) {
	f := newHostFixture(t, map[string]string{"/": samplePage})
	tab, err := f.host.CreateTab(context.Background(), f.url("/"))
	require.NoError(t, err)

	s := &fakeSurface{}
	tab.Attach(s, desktop)
	require.NotNil(t, tab.Engine())

	tab.Detach(&fakeSurface{})
	assert.NotNil(t, tab.Engine(), "only the attached surface can detach")

	tab.Detach(s)
	assert.Nil(t, tab.Engine())
	assert.Zero(t, f.host.engines.Load())
}
