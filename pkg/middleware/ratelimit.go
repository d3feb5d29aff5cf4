package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// TooManyRequestsMessage はレート制限時にクライアントへ返すメッセージ。
const TooManyRequestsMessage = "Too Many Requests"

// clientTTL はクライアントごとのリミッタを保持する期間。
const clientTTL = 10 * time.Minute

// sweepThreshold はこの数を超えたときに古いリミッタを掃除する。
const sweepThreshold = 1024

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter はクライアントIPごとのトークンバケットでリクエストを制限する。
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

// NewRateLimiter は毎秒rpsリクエスト、バーストburstのレートリミッタを生成する。
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
	}
}

// Allow はクライアントのリクエストを許可するかどうかを返す。
func (rl *RateLimiter) Allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if len(rl.clients) > sweepThreshold {
		for ip, cl := range rl.clients {
			if now.Sub(cl.lastSeen) > clientTTL {
				delete(rl.clients, ip)
			}
		}
	}

	cl, ok := rl.clients[clientIP]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[clientIP] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

// Middleware はレート制限を行うGinミドルウェアを返す。
// 制限を超えた場合は429を返す。
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": TooManyRequestsMessage})
			return
		}
		c.Next()
	}
}
