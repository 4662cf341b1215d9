package filterchain

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jrsteele09/go-authserver-security/oauth2"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RateLimitFilter applies a token bucket per client id, falling back to the remote
// address when the request names no client. It is meant to run ahead of authentication.
type RateLimitFilter struct {
	limiters *cache.Cache
	rate     rate.Limit
	burst    int
	logger   zerolog.Logger
}

// NewRateLimitFilter allows requestsPerSecond with the given burst per key. Keys idle for
// idleTTL are forgotten.
func NewRateLimitFilter(requestsPerSecond float64, burst int, idleTTL time.Duration, logger zerolog.Logger) *RateLimitFilter {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &RateLimitFilter{
		limiters: cache.New(idleTTL, 5*time.Minute),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		logger:   logger,
	}
}

func (f *RateLimitFilter) Name() string { return RateLimitFilterName }

func (f *RateLimitFilter) limiter(key string) *rate.Limiter {
	if l, ok := f.limiters.Get(key); ok {
		f.limiters.SetDefault(key, l)
		return l.(*rate.Limiter)
	}
	l := rate.NewLimiter(f.rate, f.burst)
	if err := f.limiters.Add(key, l, cache.DefaultExpiration); err != nil {
		// lost the race, use the winner's limiter
		if existing, ok := f.limiters.Get(key); ok {
			return existing.(*rate.Limiter)
		}
	}
	return l
}

func (f *RateLimitFilter) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := requestKey(r)
		if !f.limiter(key).Allow() {
			f.logger.Warn().Str("key", key).Str("path", r.URL.Path).Msg("rate limit exceeded")
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(f.rate)))
			oauth2.WriteJSON(w, http.StatusTooManyRequests, &oauth2.Error{
				Code:        oauth2.ErrorCodeRateLimitExceeded,
				Description: "Too many requests",
			})
			return
		}
		next(w, r)
	}
}

func requestKey(r *http.Request) string {
	if id, _, ok := r.BasicAuth(); ok && id != "" {
		return "client:" + id
	}
	if r.Method == http.MethodPost && r.ParseForm() == nil {
		if id := r.PostForm.Get(oauth2.ParamClientID); id != "" {
			return "client:" + id
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}

func retryAfterSeconds(limit rate.Limit) int {
	if limit <= 0 {
		return 60
	}
	secs := int(1 / float64(limit))
	if secs < 1 {
		secs = 1
	}
	return secs
}
