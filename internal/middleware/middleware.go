package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"smsbridge-backend/internal/config"
	"smsbridge-backend/internal/utils"
)

type Middleware struct {
	Config       *config.Config
	rateLimiters sync.Map
}

func NewMiddleware(cfg *config.Config) *Middleware {
	return &Middleware{Config: cfg}
}

func (m *Middleware) CORS(next http.Handler) http.Handler {
	allowed := m.Config.AllowedOrigins
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(origin, allowed) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(allowed) == 1 && allowed[0] == "*" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true // non-browser clients
	}
	for _, o := range allowed {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// simple token bucket per IP
type limiter struct {
	tokens     int
	lastRefill time.Time
}

func (m *Middleware) RateLimitMiddleware(next http.Handler) http.Handler {
	const (
		maxTokens    = 120
		refillPeriod = time.Minute
	)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := strings.Split(r.RemoteAddr, ":")[0]

		val, _ := m.rateLimiters.LoadOrStore(ip, &limiter{tokens: maxTokens, lastRefill: time.Now()})
		lim := val.(*limiter)

		now := time.Now()
		if since := now.Sub(lim.lastRefill); since > refillPeriod {
			lim.tokens = maxTokens
			lim.lastRefill = now
		}

		if lim.tokens <= 0 {
			utils.ErrorResponse(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		lim.tokens--

		next.ServeHTTP(w, r)
	})
}
