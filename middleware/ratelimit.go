package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// A visitor entry goes stale after this much inactivity and is swept
// on a later insert.
const visitorIdleTTL = 10 * time.Minute

// Sweep the table whenever this many new IPs have been admitted since
// the last sweep.
const sweepEvery = 256

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit provides per-IP token-bucket rate limiting.
// r = requests per second, b = burst size.
func RateLimit(r rate.Limit, b int) gin.HandlerFunc {
	var (
		mu       sync.Mutex
		visitors = make(map[string]*visitor)
		admitted int
	)

	getLimiter := func(ip string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()

		v, ok := visitors[ip]
		if !ok {
			v = &visitor{limiter: rate.NewLimiter(r, b)}
			visitors[ip] = v
			admitted++
			if admitted >= sweepEvery {
				admitted = 0
				cutoff := time.Now().Add(-visitorIdleTTL)
				for k, old := range visitors {
					if old.lastSeen.Before(cutoff) {
						delete(visitors, k)
					}
				}
			}
		}
		v.lastSeen = time.Now()
		return v.limiter
	}

	return func(c *gin.Context) {
		if !getLimiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
