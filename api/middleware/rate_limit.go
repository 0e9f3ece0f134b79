package middleware

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/benefits-logistics/api/responses"
	pkgerrors "github.com/angelmondragon/benefits-logistics/pkg/errors"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
)

type rateLimiterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// RateLimitPolicy caps requests per client address within a fixed window.
// A zero window or limit disables it.
type RateLimitPolicy struct {
	Name   string
	Window time.Duration
	Limit  int
}

func NewRateLimitPolicy(name string, window time.Duration, limit int) RateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "default"
	}
	return RateLimitPolicy{Name: name, Window: window, Limit: limit}
}

func (p RateLimitPolicy) scope(addr netip.Addr) string {
	return p.Name + ":ip:" + addr.String()
}

// RateLimit counts each request against its client address in Redis and
// answers 429 with Retry-After once the window's limit is spent. Requests
// without a parseable address pass through.
func RateLimit(policy RateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if policy.Window <= 0 || policy.Limit <= 0 || store == nil {
			return next
		}
		retryAfter := strconv.Itoa(int(policy.Window.Round(time.Second).Seconds()))

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			addr, ok := clientAddr(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			count, err := store.IncrWithTTL(ctx, store.RateLimitKey(policy.scope(addr)), policy.Window)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiter unavailable"))
				return
			}
			if count <= int64(policy.Limit) {
				next.ServeHTTP(w, r)
				return
			}
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"rate_limit_policy": policy.Name,
					"client_ip":         addr.String(),
					"attempts":          count,
					"limit":             policy.Limit,
				})
			}
			w.Header().Set("Retry-After", retryAfter)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
		})
	}
}

// clientAddr prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// socket peer.
func clientAddr(r *http.Request) (netip.Addr, bool) {
	candidates := []string{}
	if first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); first != "" {
		candidates = append(candidates, first)
	}
	candidates = append(candidates, r.Header.Get("X-Real-IP"))
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		candidates = append(candidates, host)
	} else {
		candidates = append(candidates, r.RemoteAddr)
	}
	for _, candidate := range candidates {
		if addr, err := netip.ParseAddr(strings.TrimSpace(candidate)); err == nil {
			return addr.Unmap(), true
		}
	}
	return netip.Addr{}, false
}
