package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/benefits-logistics/pkg/enums"
)

type AccessTokenPayload struct {
	OperatorID string
	Role       enums.OperatorRole
	JTI        string
}

// AccessTokenClaims is the token body. Subject mirrors OperatorID.
type AccessTokenClaims struct {
	OperatorID string             `json:"operator_id"`
	Role       enums.OperatorRole `json:"role"`
	jwt.RegisteredClaims
}
