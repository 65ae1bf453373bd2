package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/apps/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/apps/:id", "404"))
	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/apps/"+id, nil))
	}
	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/apps/:id", "404"))
	assert.Equal(t, before+2, after)
}

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(executions.WithLabelValues("true", "HIGH"))
	RecordExecution(true, "HIGH", 20*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(executions.WithLabelValues("true", "HIGH")))

	RecordExecution(false, "", 0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(executions.WithLabelValues("false", "none")), 1.0)

	hits := testutil.ToFloat64(cacheLookups.WithLabelValues("shop", "hit"))
	RecordCacheLookup("shop", true)
	assert.Equal(t, hits+1, testutil.ToFloat64(cacheLookups.WithLabelValues("shop", "hit")))

	RecordSalesOutcome("")
	assert.GreaterOrEqual(t, testutil.ToFloat64(salesStages.WithLabelValues("unknown")), 1.0)
}

func TestHandlerExposesCollectors(t *testing.T) {
	RecordShop("OK")
	RecordRateLimited()

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	for _, name := range []string{"axiomeer_shop_results_total", "axiomeer_http_rate_limited_total", "go_goroutines"} {
		assert.True(t, strings.Contains(body, name), "missing %s", name)
	}
}
