package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"user-records-api/internal/adapter/db/pool"
	"user-records-api/internal/adapter/db/postgres"
	"user-records-api/internal/adapter/gin/handler"
	"user-records-api/internal/adapter/gin/middleware"
	"user-records-api/internal/observability"
	"user-records-api/internal/usecase/user"
)

type testApp struct {
	router *gin.Engine
	pool   *pool.Pool
}

type options struct {
	limiter *middleware.RateLimiterConfig
	metrics bool
	swagger bool
	quiet   bool
}

func setupApp(t testing.TB, opts options) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)
	if opts.quiet {
		log = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&postgres.UserSchema{}))

	p, err := pool.New(db, pool.Config{MaxConns: 1, AcquireTimeout: 5 * time.Second}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })

	uc := user.New(postgres.NewUserRepoPG(p, log), log)

	deps := Deps{
		UserHandler: handler.NewUserHandler(uc, log),
		MetaHandler: handler.NewMetaHandler(handler.ServiceInfo{
			Name:      "user-records-api",
			Version:   "2.0.0",
			Endpoints: Endpoints,
		}, p, log),
		SwaggerEnabled: opts.swagger,
		Log:            log,
	}

	if opts.metrics {
		deps.Metrics = observability.NewMetrics()
		require.NoError(t, deps.Metrics.RegisterDB(p.SQLDB(), "users"))
	}

	if opts.limiter != nil {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		deps.RateLimiter = middleware.NewRateLimiter(client, *opts.limiter, deps.Metrics, log)
	}

	return &testApp{router: SetupRouter(deps), pool: p}
}

func (a *testApp) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func TestUserLifecycle(t *testing.T) {
	app := setupApp(t, options{})

	w := app.do(http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())

	w = app.do(http.MethodPost, "/api/users", `{"name":"John Doe","email":"john.doe@example.com"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created handler.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Positive(t, created.ID)
	assert.Equal(t, "John Doe", created.Name)

	w = app.do(http.MethodGet, fmt.Sprintf("/api/users/%d", created.ID), "")
	require.Equal(t, http.StatusOK, w.Code)
	var got handler.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, created, got)

	w = app.do(http.MethodDelete, fmt.Sprintf("/api/users/%d", created.ID), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"message":"User %d deleted"}`, created.ID), w.Body.String())

	w = app.do(http.MethodGet, fmt.Sprintf("/api/users/%d", created.ID), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"User not found"}`, w.Body.String())

	w = app.do(http.MethodDelete, fmt.Sprintf("/api/users/%d", created.ID), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(http.MethodGet, "/api/users", "")
	assert.Equal(t, "[]", w.Body.String())
}

func TestCreateRejections(t *testing.T) {
	app := setupApp(t, options{})

	tests := []struct {
		name string
		body string
	}{
		{"empty name", `{"name":"","email":"a@b.com"}`},
		{"bad email", `{"name":"X","email":"not-an-email"}`},
		{"no dot in domain", `{"name":"X","email":"x@localhost"}`},
		{"malformed json", `{"name":`},
		{"wrong type", `{"name":42,"email":"a@b.com"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := app.do(http.MethodPost, "/api/users", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}

	w := app.do(http.MethodGet, "/api/users", "")
	assert.Equal(t, "[]", w.Body.String())
}

func TestCreateDuplicateEmail(t *testing.T) {
	app := setupApp(t, options{})
	_, err := app.pool.SQLDB().Exec("CREATE UNIQUE INDEX idx_users_email ON users(email)")
	require.NoError(t, err)

	body := `{"name":"John Doe","email":"john.doe@example.com"}`

	w := app.do(http.MethodPost, "/api/users", body)
	require.Equal(t, http.StatusCreated, w.Code)

	w = app.do(http.MethodPost, "/api/users", body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"Email already exists"}`, w.Body.String())

	w = app.do(http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusOK, w.Code)
	var users []handler.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	require.Len(t, users, 1)
	assert.Equal(t, "john.doe@example.com", users[0].Email)
}

func TestInvalidID(t *testing.T) {
	app := setupApp(t, options{})

	for _, path := range []string{"/api/users/abc", "/api/users/0", "/api/users/-4"} {
		assert.Equal(t, http.StatusBadRequest, app.do(http.MethodGet, path, "").Code, path)
		assert.Equal(t, http.StatusBadRequest, app.do(http.MethodDelete, path, "").Code, path)
	}
}

func TestConcurrentCreates(t *testing.T) {
	app := setupApp(t, options{})

	const n = 20
	ids := make([]int64, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			w := app.do(http.MethodPost, "/api/users", fmt.Sprintf(`{"name":"User %d","email":"u%d@example.com"}`, i, i))
			if w.Code != http.StatusCreated {
				return fmt.Errorf("create %d: status %d", i, w.Code)
			}
			var u handler.UserResponse
			if err := json.Unmarshal(w.Body.Bytes(), &u); err != nil {
				return err
			}
			ids[i] = u.ID
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[int64]bool, n)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}

	w := app.do(http.MethodGet, "/api/users", "")
	var users []handler.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	require.Len(t, users, n)
	for i := 1; i < len(users); i++ {
		assert.Less(t, users[i-1].ID, users[i].ID)
	}
}

func TestHealthWithDatabaseDown(t *testing.T) {
	app := setupApp(t, options{})
	require.NoError(t, app.pool.Close(context.Background()))

	w := app.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"user-records-api"}`, w.Body.String())

	w = app.do(http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = app.do(http.MethodGet, "/api/users", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error":"database unavailable"}`, w.Body.String())
}

func TestIndexAndUnknownRoutes(t *testing.T) {
	app := setupApp(t, options{})

	w := app.do(http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"message":"Application API"`)
	assert.Contains(t, w.Body.String(), `{"method":"DELETE","path":"/api/users/{id}","description":"Delete user"}`)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	assert.Equal(t, http.StatusNotFound, app.do(http.MethodGet, "/nope", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, app.do(http.MethodPut, "/api/users/1", "").Code)

	// Optional surfaces are off by default.
	assert.Equal(t, http.StatusNotFound, app.do(http.MethodGet, "/metrics", "").Code)
	assert.Equal(t, http.StatusNotFound, app.do(http.MethodGet, "/docs/openapi.json", "").Code)
}

func TestRateLimitOnAPIOnly(t *testing.T) {
	app := setupApp(t, options{
		limiter: &middleware.RateLimiterConfig{RequestsPerSecond: 0.001, BurstCapacity: 2},
		metrics: true,
	})

	assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/api/users", "").Code)
	assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/api/users", "").Code)
	w := app.do(http.MethodGet, "/api/users", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, w.Body.String())

	// Operational routes are never limited.
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/health", "").Code)
	}

	metrics := app.do(http.MethodGet, "/metrics", "").Body.String()
	assert.Contains(t, metrics, "user_records_rate_limited_total 1")
	assert.Contains(t, metrics, `code="429"`)
	assert.Contains(t, metrics, `go_sql_max_open_connections{db_name="users"} 1`)
}

func TestSwagger(t *testing.T) {
	app := setupApp(t, options{swagger: true})

	w := app.do(http.MethodGet, "/docs/openapi.json", "")
	require.Equal(t, http.StatusOK, w.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.3", doc["openapi"])

	w = app.do(http.MethodGet, "/swagger/index.html", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
