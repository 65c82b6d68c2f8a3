package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualTime struct {
	mu  sync.Mutex
	now time.Time
}

func (m *manualTime) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *manualTime) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

var errFetch = errors.New("fetch failed")

func fail() error    { return errFetch }
func succeed() error { return nil }

func newTestBreaker(clock *manualTime) *Breaker {
	return New("https://example.com", Settings{
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 3 },
		Now:         clock.Now,
	})
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name     string
		requests []bool
		want     State
	}{
		{name: "stays closed on successes", requests: []bool{true, true, true}, want: StateClosed},
		{name: "opens after consecutive failures", requests: []bool{false, false, false}, want: StateOpen},
		{name: "success resets the streak", requests: []bool{false, false, true, false, false}, want: StateClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBreaker(&manualTime{now: time.Unix(0, 0)})
			for _, ok := range tt.requests {
				if ok {
					_ = b.Execute(succeed)
				} else {
					_ = b.Execute(fail)
				}
			}
			assert.Equal(t, tt.want, b.State())
		})
	}
}

func TestBreakerRecovers(t *testing.T) {
	clock := &manualTime{now: time.Unix(0, 0)}
	var transitions []string
	b := newTestBreaker(clock)
	b.settings.OnStateChange = func(_ string, from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Execute(fail), errFetch)
	}
	assert.ErrorIs(t, b.Execute(succeed), ErrCircuitOpen)

	clock.Advance(10 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Execute(succeed))
	assert.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, b.Execute(succeed))
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := &manualTime{now: time.Unix(0, 0)}
	b := newTestBreaker(clock)
	for i := 0; i < 3; i++ {
		_ = b.Execute(fail)
	}

	clock.Advance(10 * time.Second)
	_ = b.Execute(fail)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerHalfOpenLimitsProbes(t *testing.T) {
	clock := &manualTime{now: time.Unix(0, 0)}
	b := newTestBreaker(clock)
	for i := 0; i < 3; i++ {
		_ = b.Execute(fail)
	}
	clock.Advance(10 * time.Second)

	done1, err := b.Allow()
	require.NoError(t, err)
	done2, err := b.Allow()
	require.NoError(t, err)
	_, err = b.Allow()
	assert.ErrorIs(t, err, ErrTooManyRequests)

	done1(true)
	done2(true)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerIgnoresStaleOutcome(t *testing.T) {
	clock := &manualTime{now: time.Unix(0, 0)}
	b := newTestBreaker(clock)

	done, err := b.Allow()
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	done(false)

	assert.Zero(t, b.Counts().TotalFailures)
}

func TestBreakerCountsResetEachInterval(t *testing.T) {
	clock := &manualTime{now: time.Unix(0, 0)}
	b := newTestBreaker(clock)

	_ = b.Execute(fail)
	_ = b.Execute(succeed)
	c := b.Counts()
	assert.Equal(t, uint32(2), c.Requests)
	assert.Equal(t, uint32(1), c.TotalFailures)

	clock.Advance(61 * time.Second)
	assert.Equal(t, StateClosed, b.State())
	assert.Zero(t, b.Counts().Requests)
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	b := newTestBreaker(&manualTime{now: time.Unix(0, 0)})

	assert.Panics(t, func() {
		_ = b.Execute(func() error { panic("boom") })
	})
	assert.Equal(t, uint32(1), b.Counts().ConsecutiveFailures)
}

func TestGroupIsolatesKeys(t *testing.T) {
	clock := &manualTime{now: time.Unix(0, 0)}
	g := NewGroup(Settings{
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
		Now:         clock.Now,
	})

	_ = g.Get("https://down.test").Execute(fail)

	assert.Same(t, g.Get("https://down.test"), g.Get("https://down.test"))
	assert.Equal(t, map[string]State{"https://down.test": StateOpen}, g.States())
	assert.NoError(t, g.Get("https://up.test").Execute(succeed))
}
