package middleware

import (
	"net/http"
	"time"

	pkghttp "github.com/biasharahub/biashara/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitObserver is told when a limiter rejects a request.
type RateLimitObserver interface {
	RateLimited(limiter string)
}

// RateLimitConfig holds rate limiting configuration for one route group.
type RateLimitConfig struct {
	Name              string
	RequestsPerMinute int
	IPConfig          *pkghttp.IPConfig
	Observer          RateLimitObserver
}

// RateLimitByIP limits requests per client IP. The client IP honours trusted proxies
// the same way the login limiter does.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return config.Name + ":" + pkghttp.ExtractClientIP(r, config.IPConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if config.Observer != nil {
				config.Observer.RateLimited(config.Name)
			}
			pkghttp.WriteTooManyRequests(w, time.Minute, "Too many requests. Please slow down.")
		}),
	)
}
