package prefetch

import "go.uber.org/zap"

// observeViewport starts observing every link eligible at this moment. Links
// added to the document later are never observed. Safe to run more than once.
func (e *Engine) observeViewport() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.observing {
		return
	}
	e.observing = true

	for _, link := range e.viewport.Links() {
		if !e.Preloadable(link) {
			continue
		}
		if _, ok := e.observed[link]; ok {
			continue
		}
		e.observed[link] = struct{}{}
		e.viewport.Observe(link)
	}

	e.log.Debug("Viewport observation started", zap.Int("links", len(e.observed)))
}

// Intersect handles an intersection report for an observed link.
func (e *Engine) Intersect(entry IntersectionEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped || !entry.Intersecting || entry.Link == nil {
		return
	}

	if _, ok := e.observed[entry.Link]; !ok {
		return
	}
	delete(e.observed, entry.Link)

	e.viewport.Unobserve(entry.Link)
	e.preload(href(entry.Link), TriggerViewport)
}

// Observed returns the number of links still under observation.
func (e *Engine) Observed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.observed)
}
