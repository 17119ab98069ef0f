package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client
}

func TestRedisLimiterAllow(t *testing.T) {
	client := setupTestRedis(t)
	l := NewRedisLimiter(client, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}
	ok, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")

	require.NoError(t, l.Reset(ctx, "1.2.3.4"))
	ok, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiterDisabled(t *testing.T) {
	l := NewRedisLimiter(setupTestRedis(t), 0, time.Minute)
	for i := 0; i < 10; i++ {
		ok, err := l.Allow(context.Background(), "x")
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, error) { return false, errors.New("down") }

func TestMiddleware(t *testing.T) {
	l := NewRedisLimiter(setupTestRedis(t), 1, time.Minute)
	h := Middleware(l, "turno", zap.NewNop().Sugar())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/turno", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}
	assert.Equal(t, http.StatusCreated, do().Code)
	rec := do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)

	open := Middleware(brokenLimiter{}, "turno", zap.NewNop().Sugar())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec = httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
