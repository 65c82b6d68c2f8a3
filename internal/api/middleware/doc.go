// Package middleware provides the HTTP middleware stack for the host API:
// CORS with the tab id header allowed, per-IP and global token bucket rate
// limiting, zap request logging, and panic recovery.
package middleware
