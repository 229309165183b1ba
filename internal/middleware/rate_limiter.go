package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/maninjwa/stock-count-backend/internal/apierror"
)

// ipLimiters holds one token bucket per client IP. Buckets of idle clients expire
// from the cache, so the map never grows without bound.
type ipLimiters struct {
	limiters *cache.Cache
	limit    rate.Limit
	burst    int
}

func newIPLimiters(perMinute int, idle time.Duration) *ipLimiters {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &ipLimiters{
		limiters: cache.New(idle, 2*idle),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

func (l *ipLimiters) get(ip string) *rate.Limiter {
	if v, ok := l.limiters.Get(ip); ok {
		return v.(*rate.Limiter)
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	// a concurrent request may have stored one first
	if err := l.limiters.Add(ip, lim, cache.DefaultExpiration); err != nil {
		if v, ok := l.limiters.Get(ip); ok {
			return v.(*rate.Limiter)
		}
	}
	return lim
}

func (l *ipLimiters) handler(msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		lim := l.get(ip)
		l.limiters.SetDefault(ip, lim)

		r := lim.Reserve()
		if delay := r.Delay(); delay > 0 {
			r.Cancel()
			c.Header("Retry-After", strconv.Itoa(int(delay.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New(msg))
			return
		}
		c.Next()
	}
}

// RateLimiter allows perMinute requests per client IP, refilled continuously.
func RateLimiter(perMinute int) gin.HandlerFunc {
	return newIPLimiters(perMinute, 10*time.Minute).handler("too many requests, try again shortly")
}

// LoginRateLimiter limits login attempts to 20 per minute per IP.
func LoginRateLimiter() gin.HandlerFunc {
	return newIPLimiters(20, 10*time.Minute).handler("too many login attempts, try again in a minute")
}
