package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"turnos/internal/apperr"
)

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter is a sliding-window limiter backed by one sorted set per key.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window, prefix: "turnos:ratelimit"}
}

func (l *RedisLimiter) key(id string) string {
	return fmt.Sprintf("%s:%s:%s", l.prefix, id, l.window.String())
}

func (l *RedisLimiter) Allow(ctx context.Context, id string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	now := time.Now()
	key := l.key(id)
	windowStart := now.Add(-l.window).UnixNano()

	pipe := l.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	zcard := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	pipe.Expire(ctx, key, l.window+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit pipeline: %w", err)
	}
	return zcard.Val() < int64(l.limit), nil
}

// Reset forgets every hit recorded for id.
func (l *RedisLimiter) Reset(ctx context.Context, id string) error {
	return l.client.Del(ctx, l.key(id)).Err()
}

// NewClient parses a redis:// URL and checks the server answers.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware rejects requests over the limit with 429. Limiter errors let the
// request through.
func Middleware(l Limiter, scope string, lg *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			ok, err := l.Allow(r.Context(), scope+":"+ip)
			if err != nil {
				lg.Warnw("rate limiter unavailable", "error", err, "ip", ip)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				w.Header().Set("Retry-After", "60")
				apperr.WriteJSON(w, apperr.TooManyRequests("Demasiadas solicitudes, intente más tarde"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
