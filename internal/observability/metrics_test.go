package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/users/:id", func(c *gin.Context) {
		c.Status(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/users/7", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, m)
	assert.Contains(t, body, `user_records_http_requests_total{code="418",method="GET",route="/api/users/:id"} 1`)
	assert.Contains(t, body, `user_records_http_request_duration_seconds_bucket{method="GET",route="/api/users/:id"`)
}

func TestMetricsMiddlewareUnknownRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	r := gin.New()
	r.Use(m.Middleware())

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	assert.Contains(t, scrape(t, m), `route="unknown"`)
}

func TestMetricsRateLimitedAndDBStats(t *testing.T) {
	m := NewMetrics()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	db, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, m.RegisterDB(db, "users"))
	m.ObserveRateLimited()

	body := scrape(t, m)
	assert.Contains(t, body, "user_records_rate_limited_total 1")
	assert.Contains(t, body, `go_sql_max_open_connections{db_name="users"}`)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	assert.NotPanics(t, func() {
		m.ObserveRateLimited()
		assert.NoError(t, m.RegisterDB(nil, "x"))
	})
}
