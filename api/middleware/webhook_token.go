package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/angelmondragon/benefits-logistics/api/responses"
	pkgerrors "github.com/angelmondragon/benefits-logistics/pkg/errors"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
)

// WebhookTokenHeader carries the shared secret the logistics center sends
// with every pushed message.
const WebhookTokenHeader = "X-Orian-Token"

// WebhookToken rejects requests whose shared secret does not match. An empty
// secret leaves the surface open, which is only accepted outside production.
func WebhookToken(secret string, required bool, logg *logger.Logger) func(http.Handler) http.Handler {
	secret = strings.TrimSpace(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				if required {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook secret not configured"))
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			provided := strings.TrimSpace(r.Header.Get(WebhookTokenHeader))
			if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
