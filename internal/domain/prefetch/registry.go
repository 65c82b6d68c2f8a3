package prefetch

import "sync"

// Registry is the grow-only set of URLs already submitted for prefetch.
// Entries are never pruned: a URL whose prefetch failed stays recorded.
type Registry struct {
	mu   sync.RWMutex
	urls map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{urls: make(map[string]struct{})}
}

// Has reports whether url was already submitted.
func (r *Registry) Has(url string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.urls[url]
	return ok
}

// Record marks url as submitted.
func (r *Registry) Record(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls[url] = struct{}{}
}

// Len returns the number of recorded URLs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.urls)
}

// URLs returns a copy of the recorded URLs in no particular order.
func (r *Registry) URLs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	urls := make([]string, 0, len(r.urls))
	for u := range r.urls {
		urls = append(urls, u)
	}
	return urls
}
