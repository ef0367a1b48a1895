// Package middleware holds the gin middleware used by the ops router.
package middleware

import (
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// rejectionKey is the gin context key under which handlers record why a
// licensing request was refused.
const rejectionKey = "licensing.rejection"

// loggedQueryParams are the query parameters whose values are logged as-is.
// Anything else the API is sent may carry licensee details and is masked.
var loggedQueryParams = map[string]bool{
	"horizon_days": true,
	"as_of":        true,
}

// SetRejection records the reason a request was refused so RequestLogger
// can attach it to the access log line.
func SetRejection(c *gin.Context, reason string) {
	c.Set(rejectionKey, reason)
}

// maskQuery keeps the values of loggedQueryParams and masks the rest.
func maskQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "[UNPARSEABLE]"
	}
	for name, values := range params {
		if loggedQueryParams[name] {
			continue
		}
		for i := range values {
			values[i] = "[REDACTED]"
		}
	}
	return params.Encode()
}

// RequestLogger logs one line per request with the matched route, the
// licensee or office id it addressed and any licensing rejection.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "http").Logger()

	return func(c *gin.Context) {
		start := time.Now()
		query := maskQuery(c.Request.URL.RawQuery)

		c.Next()

		status := c.Writer.Status()
		var event *zerolog.Event
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		case c.FullPath() == "/health" || c.FullPath() == "/metrics":
			event = log.Debug()
		default:
			event = log.Info()
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		event = event.
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP())

		if id := c.Param("id"); id != "" {
			event = event.Str("resource_id", id)
		}
		if query != "" {
			event = event.Str("query", query)
		}
		if reason := c.GetString(rejectionKey); reason != "" {
			event = event.Str("rejection", reason)
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}

		event.Msg("request")
	}
}
