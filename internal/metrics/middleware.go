package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMiddleware returns a Gin middleware that records HTTP metrics
// for the debug host's control-surface router.
func PrometheusMiddleware() gin.HandlerFunc {
	m := Get()

	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		m.RecordHTTPRequest(endpoint, c.Request.Method, HTTPStatusCode(c.Writer.Status()), time.Since(start))
	}
}

// PrometheusHandler returns the Prometheus scrape endpoint as a gin handler.
func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// PrometheusHandlerHTTP returns the Prometheus scrape endpoint as a plain
// http.Handler, for use outside of gin (e.g. a bare debug listener).
func PrometheusHandlerHTTP() http.Handler {
	return promhttp.Handler()
}

// HTTPStatusCode renders a status code as its label value.
func HTTPStatusCode(code int) string {
	return strconv.Itoa(code)
}

// HostSampler reports the point-in-time gauges a Collector polls. debughost.Host
// implements it via MailboxLen/ScriptCount/BreakableLocationCount/BreakpointCount.
type HostSampler interface {
	MailboxLen() int
	ScriptCount() int
	BreakableLocationCount() int
	BreakpointCount() int
}

// Collector periodically samples a HostSampler into the gauge metrics that
// have no natural "on every call" hook (mailbox depth, script/breakpoint
// counts).
type Collector struct {
	metrics  *Metrics
	sampler  HostSampler
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector builds a Collector that samples sampler every interval.
func NewCollector(sampler HostSampler, interval time.Duration) *Collector {
	return &Collector{
		metrics:  Get(),
		sampler:  sampler,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins periodic sampling in a background goroutine.
func (c *Collector) Start() {
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.sample()
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop halts periodic sampling.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) sample() {
	c.metrics.MailboxDepth.Set(float64(c.sampler.MailboxLen()))
	c.metrics.ScriptsRegistered.Set(float64(c.sampler.ScriptCount()))
	c.metrics.BreakableLocations.Set(float64(c.sampler.BreakableLocationCount()))
	c.metrics.BreakpointsActive.Set(float64(c.sampler.BreakpointCount()))
}
