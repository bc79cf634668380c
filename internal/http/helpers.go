package http

import (
	"net/http"
	"strings"

	"cardspend/internal/middleware/trace"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// requestID returns the trace ID of r, if any.
func requestID(r *http.Request) string {
	return trace.GetRequestID(r.Context())
}
