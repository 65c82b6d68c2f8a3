// Package ws bridges rendering surfaces to browser tabs over WebSocket.
//
// A surface connects to /ws?tab=ID, announces its capabilities with a hello
// frame and then forwards DOM events by element reference. The tab's prefetch
// engine answers with prefetch, observe, unobserve, navigate and
// request_idle frames.
//
// Frames (surface → server):
//   - hello: capabilities, network class and viewport size
//   - navigate: load a URL into the tab
//   - touchstart, pointerover, pointerout, pointerdown: pointer signals
//   - click: answered with click_result carrying prevent
//   - intersect: viewport intersection change for an observed link
//   - idle: the surface went idle for a request_idle token
//   - ping
//
// Frames (server → surface):
//   - ready: a document is bound, with its mode and listener plan
//   - prefetch, observe, unobserve, navigate, request_idle
//   - click_result, pong, error
//
// Example Usage:
//
//	handler := ws.NewHandler(host, ws.Options{Logger: log, Recorder: metrics})
//	router.GET("/ws", handler.HandleConnection)
package ws
