// Package testutil provides testing utilities and helpers for backend tests.
package testutil

import (
	"context"
	"net/url"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/GriffinCanCode/CacheOnHover/internal/domain/prefetch"
	"github.com/GriffinCanCode/CacheOnHover/internal/domain/tabgate"
)

// FakeClock is a manually advanced prefetch.Clock.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock    *FakeClock
	deadline time.Time
	fn       func()
	stopped  bool
	fired    bool
}

// NewFakeClock creates a clock starting at an arbitrary fixed instant.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules fn to run once the clock is advanced past d.
func (c *FakeClock) AfterFunc(d time.Duration, fn func()) prefetch.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, deadline: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward and runs every due timer in deadline order.
// Callbacks run without the clock lock held.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	pending := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.stopped || t.fired:
		case !t.deadline.After(c.now):
			t.fired = true
			due = append(due, t)
		default:
			pending = append(pending, t)
		}
	}
	c.timers = pending
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].deadline.Before(due[j].deadline)
	})
	for _, t := range due {
		t.fn()
	}
}

// Pending returns the number of scheduled, unstopped timers.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// RecordingSink is a prefetch.HintSink that remembers every prefetch.
type RecordingSink struct {
	mu   sync.Mutex
	urls []string
}

// Prefetch records url.
func (s *RecordingSink) Prefetch(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urls = append(s.urls, url)
}

// URLs returns the recorded prefetches in order.
func (s *RecordingSink) URLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.urls...)
}

// Link is an in-memory prefetch.Link.
type Link struct {
	Href       string
	Opt        bool
	Suppress   bool
	parsed     *url.URL
	parseError bool
}

// URL parses Href lazily; an empty or invalid href yields nil.
func (l *Link) URL() *url.URL {
	if l.Href == "" || l.parseError {
		return nil
	}
	if l.parsed == nil {
		u, err := url.Parse(l.Href)
		if err != nil {
			l.parseError = true
			return nil
		}
		l.parsed = u
	}
	return l.parsed
}

// Opted reports the opt-in marker.
func (l *Link) Opted() bool { return l.Opt }

// Suppressed reports the opt-out marker.
func (l *Link) Suppressed() bool { return l.Suppress }

// Element is an in-memory prefetch.Target nested inside an optional link.
type Element struct {
	Link *Link
}

// In returns an element whose closest link is l.
func In(l *Link) *Element {
	return &Element{Link: l}
}

// ClosestLink returns the enclosing link or a nil interface.
func (e *Element) ClosestLink() prefetch.Link {
	if e.Link == nil {
		return nil
	}
	return e.Link
}

// MockNavigator is a mock implementation of prefetch.Navigator.
type MockNavigator struct {
	mock.Mock
}

// Navigate mocks the Navigate method.
func (m *MockNavigator) Navigate(link prefetch.Link) {
	m.Called(link)
}

// NewMockNavigator creates a navigator that accepts any navigation.
func NewMockNavigator(t *testing.T) *MockNavigator {
	t.Helper()
	m := new(MockNavigator)
	m.On("Navigate", mock.Anything).Return().Maybe()
	return m
}

// MockTabs is a mock implementation of tabgate.Tabs.
type MockTabs struct {
	mock.Mock
}

// ActiveTab mocks the ActiveTab method.
func (m *MockTabs) ActiveTab(ctx context.Context) (tabgate.TabID, error) {
	args := m.Called(ctx)
	return args.Get(0).(tabgate.TabID), args.Error(1)
}

// Reload mocks the Reload method.
func (m *MockTabs) Reload(ctx context.Context, id tabgate.TabID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// NewMockTabs creates a tab source whose focused tab is active and whose
// reloads succeed.
func NewMockTabs(t *testing.T, active tabgate.TabID) *MockTabs {
	t.Helper()
	m := new(MockTabs)
	m.On("ActiveTab", mock.Anything).Return(active, nil).Maybe()
	m.On("Reload", mock.Anything, mock.Anything).Return(nil).Maybe()
	return m
}

// MustParseURL parses raw or fails the test.
func MustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid url %q: %v", raw, err)
	}
	return u
}
