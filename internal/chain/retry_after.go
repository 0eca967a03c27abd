package chain

import (
	"net/http"
	"strconv"
	"time"
)

// parseRetryAfter reads a Retry-After header given in seconds or as an
// HTTP date. Returns 0 when absent, unparseable or already past.
func parseRetryAfter(header http.Header) time.Duration {
	val := header.Get("Retry-After")
	if val == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(val); err == nil {
		if seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(val); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
