package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/benefits-logistics/pkg/auth"
	"github.com/angelmondragon/benefits-logistics/pkg/config"
	"github.com/angelmondragon/benefits-logistics/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

func mintTestToken(t *testing.T, operatorID string, role enums.OperatorRole) string {
	t.Helper()
	token, err := auth.MintAccessToken(testJWT, time.Now(), auth.AccessTokenPayload{OperatorID: operatorID, Role: role})
	require.NoError(t, err)
	return token
}

func withAuthorization(value string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if value != "" {
		req.Header.Set("Authorization", value)
	}
	return req
}

func TestAuthRejectsMissingOrBadCredentials(t *testing.T) {
	handler := Auth(testJWT, nil)(okHandler())

	for _, header := range []string{"", "Bearer ", "Bearer invalid", "Basic dXNlcjpwYXNz"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, withAuthorization(header))
		require.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
}

func TestAuthStoresOperator(t *testing.T) {
	token := mintTestToken(t, "ops-1", enums.OperatorRoleOps)

	for _, header := range []string{"Bearer " + token, "bearer " + token, token} {
		var got Operator
		handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			op, ok := OperatorFrom(r.Context())
			require.True(t, ok)
			got = op
		}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, withAuthorization(header))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, Operator{ID: "ops-1", Role: enums.OperatorRoleOps}, got)
	}
}

func TestRequireRole(t *testing.T) {
	handler := Auth(testJWT, nil)(RequireRole(nil, enums.OperatorRoleAdmin)(okHandler()))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, withAuthorization("Bearer "+mintTestToken(t, "ops-1", enums.OperatorRoleOps)))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, withAuthorization("Bearer "+mintTestToken(t, "admin-1", enums.OperatorRoleAdmin)))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRoleWithoutAuthIsForbidden(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireRole(nil, enums.OperatorRoleOps)(okHandler()).ServeHTTP(rec, withAuthorization(""))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWebhookToken(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		required bool
		header   string
		want     int
	}{
		{"matching token", "s3cret", true, "s3cret", http.StatusOK},
		{"wrong token", "s3cret", true, "nope", http.StatusUnauthorized},
		{"missing token", "s3cret", false, "", http.StatusUnauthorized},
		{"open outside production", "", false, "", http.StatusOK},
		{"unconfigured in production", "", true, "anything", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.header != "" {
				req.Header.Set(WebhookTokenHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			WebhookToken(tt.secret, tt.required, nil)(okHandler()).ServeHTTP(rec, req)
			require.Equal(t, tt.want, rec.Code)
		})
	}
}
