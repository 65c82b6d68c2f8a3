package prefetch

import "net/url"

// Link is a hyperlink element of the document. Links are compared by
// identity, so implementations should be pointer types.
type Link interface {
	// URL returns the resolved destination, or nil when the link has none.
	URL() *url.URL
	// Opted reports the explicit opt-in marker.
	Opted() bool
	// Suppressed reports the explicit opt-out marker.
	Suppressed() bool
}

// Target is the element an event was dispatched to.
type Target interface {
	// ClosestLink returns the nearest ancestor-or-self link, or nil.
	ClosestLink() Link
}

// Button identifies the pointer button of a pointer-down event.
type Button int

const (
	ButtonPrimary Button = iota
	ButtonAuxiliary
	ButtonSecondary
)

// TouchEvent is a touch start.
type TouchEvent struct {
	Target Target
}

// PointerEvent is a pointer-over, pointer-out or pointer-down.
type PointerEvent struct {
	Target        Target
	RelatedTarget Target // pointer-out only; nil when the pointer left the document
	Button        Button
	MetaKey       bool
	CtrlKey       bool
}

// ClickEvent is a click about to run its default action.
type ClickEvent struct {
	Target    Target
	Synthetic bool // dispatched by the shortcut navigation itself
}

// IntersectionEntry reports an observed link's visibility change.
type IntersectionEntry struct {
	Link         Link
	Intersecting bool
}

func closest(t Target) Link {
	if t == nil {
		return nil
	}
	return t.ClosestLink()
}

func href(link Link) string {
	return link.URL().String()
}
