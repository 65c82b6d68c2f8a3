package ws

import (
	"context"
	"errors"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/CacheOnHover/internal/domain/tabgate"
	"github.com/GriffinCanCode/CacheOnHover/internal/providers/browser"
)

// DefaultSendBuffer is the number of outbound frames queued per connection.
const DefaultSendBuffer = 256

// Recorder receives connection and frame counts, typically for metrics.
type Recorder interface {
	RecordWSMessage(direction, msgType string)
	IncWSConnections()
	DecWSConnections()
}

type nopRecorder struct{}

func (nopRecorder) RecordWSMessage(string, string) {}
func (nopRecorder) IncWSConnections()              {}
func (nopRecorder) DecWSConnections()              {}

// Options carries the optional collaborators of a Handler.
type Options struct {
	Logger      *zap.Logger
	Recorder    Recorder
	SendBuffer  int
	CheckOrigin func(r *http.Request) bool // nil allows every origin
}

// Handler bridges surfaces connected over WebSocket to browser tabs.
type Handler struct {
	host       *browser.Host
	log        *zap.Logger
	recorder   Recorder
	sendBuffer int
	upgrader   websocket.Upgrader
}

// NewHandler creates a WebSocket handler for the tabs of host.
func NewHandler(host *browser.Host, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}
	if opts.CheckOrigin == nil {
		opts.CheckOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		host:       host,
		log:        opts.Logger,
		recorder:   opts.Recorder,
		sendBuffer: opts.SendBuffer,
		upgrader:   websocket.Upgrader{CheckOrigin: opts.CheckOrigin},
	}
}

// HandleConnection attaches the connecting surface to the tab named by the
// tab query parameter.
func (h *Handler) HandleConnection(c *gin.Context) {
	id, err := tabgate.ParseTabID(c.Query("tab"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tab, err := h.host.Tab(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	log := h.log.With(zap.Stringer("tab_id", id))
	s := newSession(conn, h.sendBuffer, log, h.recorder)
	h.recorder.IncWSConnections()
	defer h.recorder.DecWSConnections()

	go s.writeLoop()
	defer s.close()
	defer tab.Detach(s)

	log.Info("Surface connected")
	h.readLoop(c.Request.Context(), tab, s)
	log.Info("Surface disconnected")
}

func (h *Handler) readLoop(ctx context.Context, tab *browser.Tab, s *session) {
	s.conn.SetReadLimit(64 << 10)
	_ = s.conn.SetReadDeadline(s.now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(s.now().Add(pongWait))
	})

	attached := false
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		var frame inbound
		if err := sonic.Unmarshal(data, &frame); err != nil {
			s.sendError("malformed frame")
			continue
		}
		h.recorder.RecordWSMessage("in", frame.Type)

		switch frame.Type {
		case frameHello:
			tab.Attach(s, frame.environment())
			attached = true
		case framePing:
			s.send(outbound{Type: framePong})
		case frameNavigate:
			if _, err := tab.Navigate(ctx, frame.URL); err != nil {
				s.sendError(err.Error())
			}
		default:
			if !attached {
				s.sendError("hello required before events")
				continue
			}
			h.dispatch(tab, s, frame)
		}
	}
}

func (h *Handler) dispatch(tab *browser.Tab, s *session, frame inbound) {
	prevent, err := tab.Dispatch(frame.event())
	switch {
	case errors.Is(err, browser.ErrStaleDocument):
		s.log.Debug("Dropped event for stale document",
			zap.String("type", frame.Type),
			zap.String("doc_id", frame.DocID),
		)
	case err != nil:
		s.sendError(err.Error())
	case frame.Type == string(browser.EventClick):
		s.clickResult(frame.DocID, frame.Seq, prevent)
	}
}
