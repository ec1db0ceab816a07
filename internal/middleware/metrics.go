package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ecohubkosova/ecohub/pkg/metrics"
)

// unmatchedRoute labels requests gin could not route, keeping raw paths out of label values.
const unmatchedRoute = "unmatched"

// Metrics tracks in-flight requests and observes latency per route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.APIInFlight.Inc()
		start := time.Now()
		defer metrics.APIInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metrics.APILatency.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
