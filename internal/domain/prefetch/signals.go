package prefetch

import "go.uber.org/zap"

// TouchStart handles a touch start anywhere in the document.
func (e *Engine) TouchStart(ev TouchEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped || !e.plan.Touch {
		return
	}

	// Armed before anything else: some platforms dispatch the emulated
	// pointer-over before the touch gesture ends.
	e.lastTouch = e.clock.Now()

	link := closest(ev.Target)
	if !e.Preloadable(link) {
		return
	}

	e.preload(href(link), TriggerTouch)
}

// PointerOver handles the pointer entering an element.
func (e *Engine) PointerOver(ev PointerEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped || !e.plan.Hover || e.touchRecent() {
		return
	}

	link := closest(ev.Target)
	if !e.Preloadable(link) {
		return
	}

	if e.hover != nil {
		if e.hover.link == link {
			return
		}
		e.cancelHover()
	}

	e.nextToken++
	token := e.nextToken
	timer := e.clock.AfterFunc(e.cfg.Delay, func() {
		e.fireHover(token)
	})
	e.hover = &pendingHover{link: link, token: token, timer: timer}
}

// PointerOut handles the pointer leaving an element.
func (e *Engine) PointerOut(ev PointerEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.plan.Hover || e.hover == nil {
		return
	}

	from := closest(ev.Target)
	if from != e.hover.link {
		return
	}

	if ev.RelatedTarget != nil && closest(ev.RelatedTarget) == from {
		return
	}

	e.cancelHover()
}

func (e *Engine) fireHover(token uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped || e.hover == nil || e.hover.token != token {
		return
	}

	link := e.hover.link
	e.hover = nil
	e.preload(href(link), TriggerHover)
}

// cancelHover drops the pending hover timer. Caller holds e.mu.
func (e *Engine) cancelHover() {
	if e.hover == nil {
		return
	}
	e.hover.timer.Stop()
	e.hover = nil
}

// HoverPending reports whether a hover timer is scheduled.
func (e *Engine) HoverPending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hover != nil
}

// PointerDown handles a pointer-down anywhere in the document. Depending on
// the plan it prefetches the link or drives the shortcut navigation.
func (e *Engine) PointerDown(ev PointerEvent) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}

	if e.plan.PointerDown {
		if link := closest(ev.Target); e.Preloadable(link) {
			e.preload(href(link), TriggerPointerDown)
		}
	}

	if !e.plan.Shortcut {
		e.mu.Unlock()
		return
	}

	link := e.armShortcut(ev)
	navigator := e.navigator
	e.mu.Unlock()

	if link != nil {
		navigator.Navigate(link)
	}
}

// armShortcut marks the link's next native click for suppression and returns
// the link to navigate to, or nil. Caller holds e.mu.
func (e *Engine) armShortcut(ev PointerEvent) Link {
	if e.touchRecent() {
		return nil
	}

	if ev.Button != ButtonPrimary || ev.MetaKey || ev.CtrlKey {
		return nil
	}

	link := closest(ev.Target)
	if link == nil {
		return nil
	}

	e.armed[link] = struct{}{}
	e.log.Debug("Shortcut navigation armed", zap.Stringer("url", link.URL()))
	return link
}

// Click reports whether the click's default action must be prevented. The
// first native click on a link armed by the shortcut is swallowed; synthetic
// clicks never consume the arm.
func (e *Engine) Click(ev ClickEvent) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ev.Synthetic {
		return false
	}

	link := closest(ev.Target)
	if link == nil {
		return false
	}

	if _, ok := e.armed[link]; !ok {
		return false
	}
	delete(e.armed, link)
	return true
}
