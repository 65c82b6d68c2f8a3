package ws

import (
	"github.com/GriffinCanCode/CacheOnHover/internal/domain/prefetch"
	"github.com/GriffinCanCode/CacheOnHover/internal/providers/browser"
)

// Frame types sent by the surface.
const (
	frameHello    = "hello"
	frameNavigate = "navigate"
	framePing     = "ping"
)

// Frame types sent to the surface.
const (
	frameReady       = "ready"
	framePrefetch    = "prefetch"
	frameObserve     = "observe"
	frameUnobserve   = "unobserve"
	frameNavigateTo  = "navigate"
	frameClickResult = "click_result"
	frameRequestIdle = "request_idle"
	framePong        = "pong"
	frameError       = "error"
)

// inbound is any frame read from the surface. Event frames use the browser
// event type names.
type inbound struct {
	Type string `json:"type"`

	// hello
	Capabilities capabilities `json:"capabilities"`
	Network      network      `json:"network"`
	Width        int          `json:"width"`
	Height       int          `json:"height"`

	// navigate
	URL string `json:"url"`

	// events
	DocID        string `json:"doc_id"`
	Ref          string `json:"ref"`
	RelatedRef   string `json:"related_ref"`
	Button       int    `json:"button"`
	MetaKey      bool   `json:"meta_key"`
	CtrlKey      bool   `json:"ctrl_key"`
	Synthetic    bool   `json:"synthetic"`
	Intersecting bool   `json:"intersecting"`
	Token        uint64 `json:"token"`
	Seq          uint64 `json:"seq"`
}

type capabilities struct {
	Prefetch     bool `json:"prefetch"`
	Intersection bool `json:"intersection"`
	Idle         bool `json:"idle"`
}

type network struct {
	SaveData      bool   `json:"save_data"`
	EffectiveType string `json:"effective_type"`
}

func (f inbound) environment() prefetch.Environment {
	return prefetch.Environment{
		Capabilities: prefetch.Capabilities{
			Prefetch:     f.Capabilities.Prefetch,
			Intersection: f.Capabilities.Intersection,
			Idle:         f.Capabilities.Idle,
		},
		Network: prefetch.Network{
			SaveData:      f.Network.SaveData,
			EffectiveType: f.Network.EffectiveType,
		},
		Width:  f.Width,
		Height: f.Height,
	}
}

func (f inbound) event() browser.Event {
	return browser.Event{
		Type:         browser.EventType(f.Type),
		DocID:        f.DocID,
		Ref:          f.Ref,
		RelatedRef:   f.RelatedRef,
		Button:       prefetch.Button(f.Button),
		MetaKey:      f.MetaKey,
		CtrlKey:      f.CtrlKey,
		Synthetic:    f.Synthetic,
		Intersecting: f.Intersecting,
		Token:        f.Token,
	}
}

// outbound is any frame written to the surface.
type outbound struct {
	Type      string                `json:"type"`
	DocID     string                `json:"doc_id,omitempty"`
	Ref       string                `json:"ref,omitempty"`
	URL       string                `json:"url,omitempty"`
	Token     uint64                `json:"token,omitempty"`
	TimeoutMS int64                 `json:"timeout_ms,omitempty"`
	Seq       uint64                `json:"seq,omitempty"`
	Prevent   *bool                 `json:"prevent,omitempty"`
	Document  *browser.DocumentInfo `json:"document,omitempty"`
	Message   string                `json:"message,omitempty"`
	Timestamp int64                 `json:"timestamp"`
}
