package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/CacheOnHover/internal/domain/prefetch"
	"github.com/GriffinCanCode/CacheOnHover/internal/providers/browser"
	"github.com/GriffinCanCode/CacheOnHover/internal/providers/http/client"
	"github.com/GriffinCanCode/CacheOnHover/tests/helpers/testutil"
)

const page = `<html><head><title>Page</title></head><body>
<a id="about" href="/about"><span id="label">About</span></a>
<p id="text">Text</p>
</body></html>`

const shortcutPage = `<html><body data-coh-mousedown-shortcut>
<a id="go" href="/next">Next</a>
</body></html>`

type counter struct {
	in, out, conns int
}

func (c *counter) RecordWSMessage(direction, _ string) {
	if direction == "in" {
		c.in++
	} else {
		c.out++
	}
}
func (c *counter) IncWSConnections() { c.conns++ }
func (c *counter) DecWSConnections() { c.conns-- }

type fixture struct {
	host  *browser.Host
	pages *httptest.Server
	api   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mux := http.NewServeMux()
	for path, body := range map[string]string{"/": page, "/shortcut": shortcutPage} {
		body := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(body))
		})
	}
	pages := httptest.NewServer(mux)
	t.Cleanup(pages.Close)

	opts := client.DefaultOptions()
	opts.RetryMax = 0
	loader := browser.NewLoader(client.NewClient(opts), browser.LoaderOptions{})
	host := browser.NewHost(loader, browser.HostOptions{Clock: testutil.NewFakeClock()})

	router := gin.New()
	router.GET("/ws", NewHandler(host, Options{}).HandleConnection)
	api := httptest.NewServer(router)
	t.Cleanup(api.Close)

	return &fixture{host: host, pages: pages, api: api}
}

func (f *fixture) dial(t *testing.T, tab *browser.Tab) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(f.api.URL, "http") + "/ws?tab=" + tab.ID.String()
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func write(t *testing.T, conn *websocket.Conn, frame map[string]any) {
	t.Helper()
	data, err := sonic.Marshal(frame)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func read(t *testing.T, conn *websocket.Conn) outbound {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame outbound
	require.NoError(t, sonic.Unmarshal(data, &frame))
	return frame
}

func hello(t *testing.T, conn *websocket.Conn) outbound {
	t.Helper()
	write(t, conn, map[string]any{
		"type":         "hello",
		"capabilities": map[string]bool{"prefetch": true, "intersection": true},
		"width":        1280,
		"height":       800,
	})
	ready := read(t, conn)
	require.Equal(t, frameReady, ready.Type)
	require.NotNil(t, ready.Document)
	return ready
}

func refByID(t *testing.T, doc *browser.Document, id string) string {
	t.Helper()
	markup, err := doc.HTML()
	require.NoError(t, err)
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)
	ref, ok := dom.Find("#" + id).Attr(browser.AttrRef)
	require.True(t, ok)
	return ref
}

func TestHandshakeErrors(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.api.URL + "/ws?tab=abc")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(f.api.URL + "/ws?tab=42")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHelloAndTouch(t *testing.T) {
	f := newFixture(t)
	tab, err := f.host.CreateTab(context.Background(), f.pages.URL+"/")
	require.NoError(t, err)

	conn := f.dial(t, tab)
	ready := hello(t, conn)
	assert.Equal(t, tab.Document().ID, ready.DocID)
	assert.Equal(t, prefetch.ModeHover, ready.Document.Mode)
	assert.True(t, ready.Document.Plan.Touch)

	write(t, conn, map[string]any{
		"type":   "touchstart",
		"doc_id": ready.DocID,
		"ref":    refByID(t, tab.Document(), "label"),
	})
	frame := read(t, conn)
	assert.Equal(t, framePrefetch, frame.Type)
	assert.Equal(t, f.pages.URL+"/about", frame.URL)

	write(t, conn, map[string]any{"type": "click", "doc_id": ready.DocID, "ref": "e0", "seq": 7})
	frame = read(t, conn)
	assert.Equal(t, frameClickResult, frame.Type)
	assert.Equal(t, uint64(7), frame.Seq)
	require.NotNil(t, frame.Prevent)
	assert.False(t, *frame.Prevent)
}

func TestShortcutFrames(t *testing.T) {
	f := newFixture(t)
	tab, err := f.host.CreateTab(context.Background(), f.pages.URL+"/shortcut")
	require.NoError(t, err)

	conn := f.dial(t, tab)
	ready := hello(t, conn)
	assert.True(t, ready.Document.Plan.Shortcut)
	ref := refByID(t, tab.Document(), "go")

	write(t, conn, map[string]any{"type": "pointerdown", "doc_id": ready.DocID, "ref": ref, "button": 0})
	frame := read(t, conn)
	assert.Equal(t, frameNavigateTo, frame.Type)
	assert.Equal(t, ref, frame.Ref)
	assert.Equal(t, f.pages.URL+"/next", frame.URL)

	write(t, conn, map[string]any{"type": "click", "doc_id": ready.DocID, "ref": ref, "seq": 1})
	frame = read(t, conn)
	require.NotNil(t, frame.Prevent)
	assert.True(t, *frame.Prevent)
}

func TestProtocolErrors(t *testing.T) {
	f := newFixture(t)
	tab, err := f.host.CreateTab(context.Background(), f.pages.URL+"/")
	require.NoError(t, err)
	conn := f.dial(t, tab)

	write(t, conn, map[string]any{"type": "touchstart", "doc_id": tab.Document().ID})
	frame := read(t, conn)
	assert.Equal(t, frameError, frame.Type)
	assert.Contains(t, frame.Message, "hello")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, frameError, read(t, conn).Type)

	write(t, conn, map[string]any{"type": "ping"})
	assert.Equal(t, framePong, read(t, conn).Type)

	ready := hello(t, conn)
	write(t, conn, map[string]any{"type": "scroll", "doc_id": ready.DocID})
	frame = read(t, conn)
	assert.Equal(t, frameError, frame.Type)
	assert.Contains(t, frame.Message, "scroll")
}

func TestNavigateFrameRebinds(t *testing.T) {
	f := newFixture(t)
	tab, err := f.host.CreateTab(context.Background(), "")
	require.NoError(t, err)
	conn := f.dial(t, tab)

	write(t, conn, map[string]any{
		"type":         "hello",
		"capabilities": map[string]bool{"prefetch": true, "intersection": true},
	})
	write(t, conn, map[string]any{"type": "navigate", "url": f.pages.URL + "/shortcut"})

	ready := read(t, conn)
	assert.Equal(t, frameReady, ready.Type)
	assert.Equal(t, f.pages.URL+"/shortcut", ready.Document.URL)

	write(t, conn, map[string]any{"type": "navigate", "url": "ftp://nowhere"})
	assert.Equal(t, frameError, read(t, conn).Type)
}

func TestDisconnectDetaches(t *testing.T) {
	f := newFixture(t)
	tab, err := f.host.CreateTab(context.Background(), f.pages.URL+"/")
	require.NoError(t, err)

	conn := f.dial(t, tab)
	hello(t, conn)
	assert.True(t, tab.Info().Attached)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return !tab.Info().Attached }, 2*time.Second, 10*time.Millisecond)
	assert.Nil(t, tab.Engine())
}

func TestSessionDropsAfterClose(t *testing.T) {
	rec := &counter{}
	s := &session{
		log:      zap.NewNop(),
		recorder: rec,
		now:      time.Now,
		out:      make(chan []byte, 1),
		done:     make(chan struct{}),
	}

	s.Prefetch("d", "https://example.com/a")
	s.Prefetch("d", "https://example.com/b")
	assert.Len(t, s.out, 1, "second frame dropped while the buffer is full")
	assert.Equal(t, 1, rec.out)

	<-s.out
	close(s.done)
	s.Prefetch("d", "https://example.com/c")
	assert.Empty(t, s.out)
}
