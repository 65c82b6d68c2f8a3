package ws

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/CacheOnHover/internal/providers/browser"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// session is one connected surface. It implements browser.Surface; frames
// are queued without blocking and written by a single goroutine.
type session struct {
	conn     *websocket.Conn
	log      *zap.Logger
	recorder Recorder
	now      func() time.Time

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, buffer int, log *zap.Logger, recorder Recorder) *session {
	return &session{
		conn:     conn,
		log:      log,
		recorder: recorder,
		now:      time.Now,
		out:      make(chan []byte, buffer),
		done:     make(chan struct{}),
	}
}

func (s *session) Ready(info browser.DocumentInfo) {
	s.send(outbound{Type: frameReady, DocID: info.ID, Document: &info})
}

func (s *session) Prefetch(docID, url string) {
	s.send(outbound{Type: framePrefetch, DocID: docID, URL: url})
}

func (s *session) Observe(docID, ref string) {
	s.send(outbound{Type: frameObserve, DocID: docID, Ref: ref})
}

func (s *session) Unobserve(docID, ref string) {
	s.send(outbound{Type: frameUnobserve, DocID: docID, Ref: ref})
}

func (s *session) Navigate(docID, ref, url string) {
	s.send(outbound{Type: frameNavigateTo, DocID: docID, Ref: ref, URL: url})
}

func (s *session) RequestIdle(docID string, token uint64, timeout time.Duration) {
	s.send(outbound{
		Type:      frameRequestIdle,
		DocID:     docID,
		Token:     token,
		TimeoutMS: timeout.Milliseconds(),
	})
}

func (s *session) clickResult(docID string, seq uint64, prevent bool) {
	s.send(outbound{Type: frameClickResult, DocID: docID, Seq: seq, Prevent: &prevent})
}

func (s *session) sendError(msg string) {
	s.send(outbound{Type: frameError, Message: msg})
}

// send queues a frame. Frames for a closed session are dropped, as are
// frames that do not fit the buffer of a surface that stopped reading.
func (s *session) send(frame outbound) {
	frame.Timestamp = s.now().Unix()
	data, err := sonic.Marshal(frame)
	if err != nil {
		s.log.Error("Failed to encode frame", zap.String("type", frame.Type), zap.Error(err))
		return
	}

	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.out <- data:
		s.recorder.RecordWSMessage("out", frame.Type)
	case <-s.done:
	default:
		s.log.Warn("Outbound buffer full, dropping frame", zap.String("type", frame.Type))
	}
}

// writeLoop drains the outbound queue and keeps the connection alive.
func (s *session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case data := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log.Debug("WebSocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

var _ browser.Surface = (*session)(nil)
