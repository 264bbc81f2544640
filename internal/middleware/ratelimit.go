package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateLimitWindow   = time.Minute
	rateLimitRequests = 120
)

// RateLimit возвращает middleware, ограничивающее число запросов с одного
// адреса фиксированным окном в Redis. При nil клиенте ограничение выключено;
// при недоступном Redis запросы пропускаются.
func RateLimit(rdb *redis.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rdb == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}

			ctx := r.Context()
			key := fmt.Sprintf("ratelimit:%s:%d", host, time.Now().Unix()/int64(rateLimitWindow.Seconds()))

			count, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				rdb.Expire(ctx, key, rateLimitWindow)
			}

			if count > rateLimitRequests {
				w.Header().Set("Retry-After", strconv.Itoa(int(rateLimitWindow.Seconds())))
				writeCode(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
