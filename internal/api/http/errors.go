package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/GriffinCanCode/CacheOnHover/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/CacheOnHover/internal/providers/browser"
	"github.com/GriffinCanCode/CacheOnHover/internal/providers/http/client"
)

// statusFor maps host and fetch errors to response codes. Anything the
// upstream caused is a bad gateway.
func statusFor(err error) int {
	switch {
	case errors.Is(err, browser.ErrTabNotFound), errors.Is(err, browser.ErrNoDocument):
		return http.StatusNotFound
	case errors.Is(err, browser.ErrTabInactive):
		return http.StatusForbidden
	case errors.Is(err, browser.ErrNotHTML):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return http.StatusServiceUnavailable
	case errors.Is(err, client.ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
