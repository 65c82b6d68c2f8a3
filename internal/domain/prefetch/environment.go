package prefetch

import (
	"strings"
	"time"
)

// Capabilities reports what the rendering surface supports.
type Capabilities struct {
	Prefetch     bool // resource-hint prefetching
	Intersection bool // viewport intersection with the "is intersecting" attribute
	Idle         bool // idle-priority callback scheduling
}

// Network describes the surface's connection as reported by the platform.
type Network struct {
	SaveData      bool
	EffectiveType string
}

// Constrained reports whether the connection is flagged as data-saving or 2G-class.
func (n Network) Constrained() bool {
	return n.SaveData || strings.Contains(n.EffectiveType, "2g")
}

// Environment is the host snapshot the Engine is constructed against.
type Environment struct {
	Capabilities Capabilities
	Network      Network
	Width        int // viewport width in CSS pixels
	Height       int // viewport height in CSS pixels
}

// Supported reports whether the engine may attach any listener at all.
func (e Environment) Supported() bool {
	return e.Capabilities.Prefetch && e.Capabilities.Intersection
}

// HintSink executes prefetches. Implementations must not call back into the
// Engine synchronously.
type HintSink interface {
	Prefetch(url string)
}

// Navigator performs an immediate navigation for the pointer-down shortcut.
// It is called without the Engine lock held.
type Navigator interface {
	Navigate(link Link)
}

// Viewport gives the Engine access to intersection observation. Observe and
// Unobserve are called with the Engine lock held.
type Viewport interface {
	Links() []Link
	Observe(link Link)
	Unobserve(link Link)
}

// IdleScheduler runs fn when the surface is idle, or after timeout at the latest.
type IdleScheduler interface {
	RequestIdle(fn func(), timeout time.Duration)
}

// Trigger names the signal that caused a prefetch.
type Trigger string

const (
	TriggerTouch       Trigger = "touch"
	TriggerHover       Trigger = "hover"
	TriggerPointerDown Trigger = "pointerdown"
	TriggerViewport    Trigger = "viewport"
)

// Recorder receives prefetch outcomes, typically for metrics.
type Recorder interface {
	PrefetchIssued(trigger Trigger)
	PrefetchDuplicate(trigger Trigger)
}

type nopRecorder struct{}

func (nopRecorder) PrefetchIssued(Trigger)    {}
func (nopRecorder) PrefetchDuplicate(Trigger) {}

// Clock abstracts time for the hover timer and the touch-suppression window.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	Stop() bool
}

type systemClock struct{}

// SystemClock returns a Clock backed by the time package.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
