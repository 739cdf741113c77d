package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"
	"time"

	"apex-http-service/internal/error/code"
	"apex-http-service/internal/error/response"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func limitedRouter(rl *RateLimiter, policy string, cfg ...RateLimiterConfig) *gin.Engine {
	r := gin.New()
	r.Use(rl.Limit(policy, cfg...))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.POST("/ping", func(c *gin.Context) { c.String(http.StatusCreated, "created") })
	r.POST("/login", func(c *gin.Context) {
		if c.Query("ok") == "1" {
			c.String(http.StatusOK, "welcome")
			return
		}
		c.String(http.StatusUnauthorized, "nope")
	})
	return r
}

func testPolicies() map[string]RateLimitPolicy {
	return map[string]RateLimitPolicy{
		"tiny":  {Limit: 3, Window: time.Minute, Message: "slow down"},
		"login": {Limit: 2, Window: time.Minute, SkipSuccessfulRequests: true},
	}
}

func TestRateLimiterTripsAfterLimit(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store := NewMemoryStore(time.Minute)
	defer store.Close()
	r := limitedRouter(NewRateLimiter(store, testPolicies()), "tiny")

	for i := 1; i <= 3; i++ {
		w := perform(r, http.MethodGet, "/ping", nil, nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
		assert.Equal(t, "3", w.Header().Get("RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(3-i), w.Header().Get("RateLimit-Remaining"))
	}

	w := perform(r, http.MethodGet, "/ping", nil, nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("RateLimit-Remaining"))
	retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.InDelta(t, 60, retryAfter, 2)

	var body response.RateLimitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "Too many requests", body.Error)
	assert.Equal(t, code.ErrTooManyRequests, body.Code)
	assert.Equal(t, "slow down", body.Message)
	assert.Equal(t, retryAfter, body.RetryAfter)
}

func TestRateLimiterKeysByClient(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()
	r := limitedRouter(NewRateLimiter(store, testPolicies()), "tiny")

	for i := 0; i < 3; i++ {
		perform(r, http.MethodGet, "/ping", nil, nil)
	}
	assert.Equal(t, http.StatusTooManyRequests, perform(r, http.MethodGet, "/ping", nil, nil).Code)

	w := perform(r, http.MethodGet, "/ping", nil, map[string]string{"X-Forwarded-For": "203.0.113.9"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiterSkipsSuccessfulRequests(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()
	r := limitedRouter(NewRateLimiter(store, testPolicies()), "login")

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/login?ok=1", nil, nil).Code)
	}
	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodPost, "/login", nil, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodPost, "/login", nil, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, perform(r, http.MethodPost, "/login", nil, nil).Code)
}

func TestRateLimiterMethodFilter(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()
	r := limitedRouter(NewRateLimiter(store, testPolicies()), "tiny", RateLimiterConfig{Methods: WriteMethods})

	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/ping", nil, nil).Code)
	}
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusCreated, perform(r, http.MethodPost, "/ping", nil, nil).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, perform(r, http.MethodPost, "/ping", nil, nil).Code)
}

func TestRateLimiterUnknownPolicyPasses(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()
	r := limitedRouter(NewRateLimiter(store, testPolicies()), "missing")
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/ping", nil, nil).Code)
	}
}

func TestMemoryStoreWindowResetAndSweep(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store := NewMemoryStore(time.Hour)
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	count, resetAt, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, now.Add(time.Minute), resetAt)

	count, _, _ = store.Increment(ctx, "k", time.Minute)
	assert.Equal(t, int64(2), count)
	require.NoError(t, store.Decrement(ctx, "k", resetAt))
	count, _, _ = store.Increment(ctx, "k", time.Minute)
	assert.Equal(t, int64(2), count)

	now = now.Add(2 * time.Minute)
	count, _, _ = store.Increment(ctx, "k", time.Minute)
	assert.Equal(t, int64(1), count, "a new window starts after reset")

	// 旧窗口的回退不影响新窗口
	require.NoError(t, store.Decrement(ctx, "k", resetAt))
	count, _, _ = store.Increment(ctx, "k", time.Minute)
	assert.Equal(t, int64(2), count)

	now = now.Add(2 * time.Minute)
	store.sweep()
	assert.Equal(t, 0, store.Len())

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store := NewRedisStore(client)
	ctx := context.Background()

	count, resetAt, err := store.Increment(ctx, "general:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.WithinDuration(t, time.Now().Add(time.Minute), resetAt, 2*time.Second)
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:general:1.2.3.4"))

	count, _, err = store.Increment(ctx, "general:1.2.3.4", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:general:1.2.3.4"), "window is not extended")

	require.NoError(t, store.Decrement(ctx, "general:1.2.3.4", resetAt))
	v, err := mr.Get("ratelimit:general:1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	mr.FastForward(time.Minute)
	count, _, err = store.Increment(ctx, "general:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRedisStoreDecrementSkipsExpiredKey(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store := NewRedisStore(client)
	ctx := context.Background()

	_, _, err := store.Increment(ctx, "auth:1.2.3.4", time.Minute)
	require.NoError(t, err)

	// 键已过期，但调用方的窗口尚未到期
	mr.FastForward(time.Minute)
	require.False(t, mr.Exists("ratelimit:auth:1.2.3.4"))
	require.NoError(t, store.Decrement(ctx, "auth:1.2.3.4", time.Now().Add(time.Minute)))
	assert.False(t, mr.Exists("ratelimit:auth:1.2.3.4"), "no negative counter is created")

	// 窗口已到期时不访问存储
	_, _, err = store.Increment(ctx, "auth:1.2.3.4", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Decrement(ctx, "auth:1.2.3.4", time.Now().Add(-time.Second)))
	v, err := mr.Get("ratelimit:auth:1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestRateLimiterRedisTripsAndFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	r := limitedRouter(NewRateLimiter(NewRedisStore(client), testPolicies()), "tiny")

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/ping", nil, nil).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, perform(r, http.MethodGet, "/ping", nil, nil).Code)

	mr.Close()
	w := perform(r, http.MethodGet, "/ping", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("RateLimit-Limit"))
}

func TestParsePolicies(t *testing.T) {
	policies, err := ParsePolicies([]byte(`
policies:
  auth:
    limit: 10
    window: 30m
  export:
    limit: 2
    window: 1h
    message: "exports are limited"
`))
	require.NoError(t, err)

	assert.Equal(t, 10, policies[PolicyAuth].Limit)
	assert.Equal(t, 30*time.Minute, policies[PolicyAuth].Window)
	assert.True(t, policies[PolicyAuth].SkipSuccessfulRequests)
	assert.NotEmpty(t, policies[PolicyAuth].Message)

	assert.Equal(t, RateLimitPolicy{Name: "export", Limit: 2, Window: time.Hour, Message: "exports are limited"}, policies["export"])
	assert.Equal(t, DefaultPolicies()[PolicyGeneral], policies[PolicyGeneral])

	_, err = ParsePolicies([]byte("policies: [oops"))
	assert.Error(t, err)
	_, err = ParsePolicies([]byte("policies:\n  general:\n    limit: -1\n"))
	assert.Error(t, err)
	_, err = ParsePolicies([]byte("policies:\n  brand_new:\n    window: 1m\n"))
	assert.Error(t, err)

	policies, err = LoadPolicies("")
	require.NoError(t, err)
	assert.Len(t, policies, 5)
	_, err = LoadPolicies("/nonexistent/limits.yaml")
	assert.Error(t, err)
}

func TestDefaultPolicies(t *testing.T) {
	p := DefaultPolicies()
	assert.Equal(t, 100, p[PolicyGeneral].Limit)
	assert.Equal(t, 15*time.Minute, p[PolicyGeneral].Window)
	assert.Equal(t, 5, p[PolicyAuth].Limit)
	assert.True(t, p[PolicyAuth].SkipSuccessfulRequests)
	assert.Equal(t, 60, p[PolicyWrite].Limit)
	assert.Equal(t, 30, p[PolicyDispatch].Limit)
	assert.Equal(t, 10, p[PolicyReport].Limit)
	assert.Equal(t, 5*time.Minute, p[PolicyReport].Window)
}
