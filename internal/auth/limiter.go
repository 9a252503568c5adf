package auth

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/roach88/shelf/internal/httpjson"
)

// MsgTooManyAttempts is the 429 response message.
const MsgTooManyAttempts = "Too many login attempts, please try again after 15 minutes"

// Limiter rate limits requests per client IP. Each client may make limit
// requests in a burst, refilled evenly over window.
type Limiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*client
	swept   time.Time
}

type client struct {
	limiter *rate.Limiter
	seen    time.Time
}

// NewLimiter creates a Limiter. limit <= 0 disables limiting.
func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		clients: make(map[string]*client),
	}
}

// WithClock replaces the time source, for tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Reserve takes one request slot for key. It returns zero when the request
// may proceed, or how long the client must wait.
func (l *Limiter) Reserve(key string) time.Duration {
	if l.limit <= 0 {
		return 0
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	c, ok := l.clients[key]
	if !ok {
		every := rate.Every(l.window / time.Duration(l.limit))
		c = &client{limiter: rate.NewLimiter(every, l.limit)}
		l.clients[key] = c
	}
	c.seen = now

	res := c.limiter.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return delay
	}
	return 0
}

// sweep drops clients idle for a full window. Their buckets are full again.
func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.swept) < l.window {
		return
	}
	for key, c := range l.clients {
		if now.Sub(c.seen) >= l.window {
			delete(l.clients, key)
		}
	}
	l.swept = now
}

// Limit wraps next, answering 429 with Retry-After when the client's
// allowance is spent.
func (l *Limiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wait := l.Reserve(ClientIP(r)); wait > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			httpjson.Message(w, http.StatusTooManyRequests, MsgTooManyAttempts)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the host part of the request's remote address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
