// Package prefetch decides when a hyperlink destination should be prefetched.
//
// One Engine is constructed per loaded document. The host forwards pointer,
// touch, click and intersection events to it; the Engine fuses them into a
// single decision per link and funnels every prefetch through a dedup
// Registry so a URL is requested at most once for the document's lifetime.
//
// Signals:
//   - Touch: prefetch immediately on touch start, arm the touch-suppression window
//   - Hover: prefetch after Config.Delay unless the pointer leaves the link first
//   - Pointer-down: prefetch immediately on pointer-down
//   - Pointer-down shortcut: navigate on primary pointer-down, swallow the next native click
//   - Viewport: prefetch eligible links the first time they become visible
//
// Which signals are listened to is fixed at construction time by the Config
// and the host Environment (see Plan). An Environment without prefetch or
// intersection support gets an empty Plan and the Engine stays inert.
//
// Event ordering assumptions:
//   - pointer-out of the previously hovered link arrives before pointer-over
//     of the next one; the Engine also cancels a pending hover for a different
//     link on pointer-over, so a host that reorders events cannot leak a timer
//   - touch start arrives before any pointer event the platform synthesizes
//     for the same gesture
//
// Example Usage:
//
//	cfg := prefetch.Resolve(flags)
//	engine := prefetch.New(cfg, location, env, sink, prefetch.Options{Logger: log})
//	engine.Start()
//	engine.PointerOver(prefetch.PointerEvent{Target: target})
package prefetch
