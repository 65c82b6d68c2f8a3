package browser

import (
	"sync"
	"time"

	"github.com/GriffinCanCode/CacheOnHover/internal/domain/prefetch"
)

// binding connects one document's engine to one surface. It is the engine's
// hint sink, navigator, viewport and idle scheduler.
type binding struct {
	doc     *Document
	surface Surface
	engine  *prefetch.Engine
	clock   prefetch.Clock

	mu        sync.Mutex
	stopped   bool
	nextToken uint64
	idle      map[uint64]*idleCallback
}

type idleCallback struct {
	once  sync.Once
	fn    func()
	timer prefetch.Timer
}

// Prefetch mirrors the hint into the document head and forwards it.
func (b *binding) Prefetch(url string) {
	b.doc.AddPrefetchHint(url)
	b.surface.Prefetch(b.doc.ID, url)
}

// Navigate asks the surface to follow link now.
func (b *binding) Navigate(link prefetch.Link) {
	a, ok := link.(*Anchor)
	if !ok {
		return
	}
	var target string
	if u := a.URL(); u != nil {
		target = u.String()
	}
	b.surface.Navigate(b.doc.ID, a.Ref(), target)
}

func (b *binding) Links() []prefetch.Link {
	return b.doc.Links()
}

func (b *binding) Observe(link prefetch.Link) {
	if a, ok := link.(*Anchor); ok {
		b.surface.Observe(b.doc.ID, a.Ref())
	}
}

func (b *binding) Unobserve(link prefetch.Link) {
	if a, ok := link.(*Anchor); ok {
		b.surface.Unobserve(b.doc.ID, a.Ref())
	}
}

// RequestIdle asks the surface for an idle callback and arms a local timer
// so fn runs after timeout even if the surface never answers.
func (b *binding) RequestIdle(fn func(), timeout time.Duration) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.nextToken++
	token := b.nextToken
	cb := &idleCallback{fn: fn}
	b.idle[token] = cb
	cb.timer = b.clock.AfterFunc(timeout, func() { b.idleFired(token) })
	b.mu.Unlock()

	b.surface.RequestIdle(b.doc.ID, token, timeout)
}

func (b *binding) idleFired(token uint64) {
	b.mu.Lock()
	cb, ok := b.idle[token]
	if ok {
		delete(b.idle, token)
	}
	b.mu.Unlock()

	if !ok {
		return
	}
	cb.timer.Stop()
	cb.once.Do(cb.fn)
}

func (b *binding) pointer(ev Event) prefetch.PointerEvent {
	pe := prefetch.PointerEvent{
		Target:  b.doc.Target(ev.Ref),
		Button:  ev.Button,
		MetaKey: ev.MetaKey,
		CtrlKey: ev.CtrlKey,
	}
	if ev.RelatedRef != "" {
		pe.RelatedTarget = b.doc.Target(ev.RelatedRef)
	}
	return pe
}

func (b *binding) stop() {
	b.mu.Lock()
	b.stopped = true
	pending := b.idle
	b.idle = make(map[uint64]*idleCallback)
	b.mu.Unlock()

	for _, cb := range pending {
		cb.timer.Stop()
	}
	b.engine.Stop()
}
