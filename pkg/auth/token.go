// Package auth mints and verifies the HS256 bearer tokens carried by
// operator requests against the admin API.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/benefits-logistics/pkg/config"
	pkgerrors "github.com/angelmondragon/benefits-logistics/pkg/errors"
)

const clockSkew = 30 * time.Second

var signingMethod = jwt.SigningMethodHS256

func checkConfig(cfg config.JWTConfig) error {
	switch {
	case cfg.Secret == "":
		return errors.New("jwt secret is required")
	case cfg.Issuer == "":
		return errors.New("jwt issuer is required")
	case cfg.ExpirationMinutes <= 0:
		return errors.New("jwt expiration minutes must be positive")
	}
	return nil
}

// MintAccessToken signs a token for the operator that expires after the
// configured number of minutes. A blank JTI gets a random one.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	if err := checkConfig(cfg); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "token signer misconfigured")
	}
	operatorID := strings.TrimSpace(payload.OperatorID)
	if operatorID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "operator id is required")
	}
	if !payload.Role.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid operator role").
			WithDetails(map[string]any{"role": payload.Role})
	}
	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	ttl := time.Duration(cfg.ExpirationMinutes) * time.Minute
	signed, err := jwt.NewWithClaims(signingMethod, AccessTokenClaims{
		OperatorID: operatorID,
		Role:       payload.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    cfg.Issuer,
			Subject:   operatorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sign access token")
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry and returns the
// operator claims. Every rejection is CodeUnauthorized.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	if err := checkConfig(cfg); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "token verifier misconfigured")
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)

	claims := &AccessTokenClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid access token")
	}
	if strings.TrimSpace(claims.OperatorID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "access token has no operator")
	}
	if !claims.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "access token has an unknown role")
	}
	return claims, nil
}
