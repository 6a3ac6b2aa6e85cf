package testutil

import (
	"net/http"
	"time"

	"verdant/pkg/requestcontext"
)

// WithFixedTime pins the request-scoped clock, as the request time middleware would.
func WithFixedTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// WithClient sets client IP, User-Agent and device as the metadata middleware would.
func WithClient(req *http.Request, ip, userAgent, device string) *http.Request {
	ctx := requestcontext.WithClientMetadata(req.Context(), ip, userAgent)
	return req.WithContext(requestcontext.WithDevice(ctx, device))
}
