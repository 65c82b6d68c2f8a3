/*
Package browser hosts the tabs whose documents the prefetch engine runs
against.

# Overview

A Host owns a set of tabs. Each tab loads documents through a Loader, which
asks the tab gate for a verdict before fetching, decodes the body to UTF-8
and parses it into a Document. Every element of a Document carries a stable
reference in the data-coh-ref attribute so a rendering surface can name
event targets without holding DOM nodes.

# Surfaces

A Surface is whatever renders the document for a user, usually a websocket
connection. Attaching a surface to a tab starts one prefetch.Engine for the
current document; navigating or detaching stops it. Events the surface
forwards are dispatched to the engine by reference:

	tab.Attach(surface, env)
	prevent, err := tab.Dispatch(browser.Event{
		Type:  browser.EventPointerOver,
		DocID: doc.ID,
		Ref:   "e12",
	})

Prefetches land in two places: the surface is told to issue them, and the
document gains a <link rel="prefetch"> hint in its head.

# Idle callbacks

Viewport observation waits for an idle period. The host asks the surface to
report one and arms a fallback timer on its own clock; whichever fires first
wins and the other is ignored.

# Locking

Host.mu is never held while a tab lock is taken. Tab.Info reads the focused
tab under a read lock after taking the tab lock.
*/
package browser
