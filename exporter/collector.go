package exporter

import (
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vela-games/lfsserver/lfs"
)

type LFSCollector struct {
	// BatchRequests is labelled by response status code.
	BatchRequests metrics.Counter
	// ObjectErrors is labelled by object error code.
	ObjectErrors metrics.Counter
	CacheHits    metrics.Counter
	CacheMiss    metrics.Counter
}

var (
	collector     *LFSCollector
	collectorOnce sync.Once
)

// NewCollector returns the process wide collector. Counters are registered
// with the default prometheus registry on first use.
func NewCollector() *LFSCollector {
	collectorOnce.Do(func() {
		collector = &LFSCollector{
			BatchRequests: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
				Namespace: "lfsserver",
				Name:      "batch_requests_total",
				Help:      "Batch requests by status code",
			}, []string{"code"}),
			ObjectErrors: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
				Namespace: "lfsserver",
				Name:      "object_errors_total",
				Help:      "Per-object errors reported in batch responses",
			}, []string{"code"}),
			CacheHits: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
				Namespace: "lfsserver",
				Name:      "exists_cache_hit",
				Help:      "Object existence cache hits",
			}, []string{}),
			CacheMiss: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
				Namespace: "lfsserver",
				Name:      "exists_cache_miss",
				Help:      "Object existence cache misses",
			}, []string{}),
		}
	})

	return collector
}

// ObserveBatch counts one answered batch request and the object errors it
// carried. response is nil for failed requests.
func (c *LFSCollector) ObserveBatch(code int, response *lfs.BatchResponse) {
	c.BatchRequests.With("code", strconv.Itoa(code)).Add(1)

	if response == nil {
		return
	}

	for _, object := range response.Objects {
		if object.Error != nil {
			c.ObjectErrors.With("code", strconv.Itoa(object.Error.Code)).Add(1)
		}
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()

	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
