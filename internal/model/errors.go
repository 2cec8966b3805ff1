package model

import (
	"errors"
	"strings"

	"github.com/dusk-indust/consortium/internal/a2a"
)

// ErrRateLimited is the error text recorded when every retry was rate limited.
const ErrRateLimited = "rate limit exceeded after retries"

var rateLimitMarkers = []string{
	"ratelimiterror",
	"rate limit",
	"rate_limit",
	"too many requests",
}

// IsRateLimit reports whether err signals that the model provider throttled
// the request.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var rle *a2a.RateLimitError
	if errors.As(err, &rle) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range rateLimitMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
