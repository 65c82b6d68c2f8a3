// Package server wires the prefetch host together.
//
// This package orchestrates all components:
//   - page loader HTTP client with per-origin circuit breakers
//   - tab host and, when enabled, the tab authorization gate
//   - HTTP routing with Gin and the WebSocket event bridge
//   - Middleware stack (recovery, logging, metrics, CORS, rate limiting)
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Close()
//	err = srv.Run(ctx)
package server
