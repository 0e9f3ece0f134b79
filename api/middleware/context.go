package middleware

import (
	"context"

	"github.com/angelmondragon/benefits-logistics/pkg/enums"
)

type operatorKey struct{}

// Operator is the authenticated back-office caller of an admin route.
type Operator struct {
	ID   string             `json:"operator_id"`
	Role enums.OperatorRole `json:"role"`
}

func WithOperator(ctx context.Context, op Operator) context.Context {
	return context.WithValue(ctx, operatorKey{}, op)
}

// OperatorFrom reports the operator stored by Auth, if any.
func OperatorFrom(ctx context.Context) (Operator, bool) {
	op, ok := ctx.Value(operatorKey{}).(Operator)
	return op, ok && op.ID != ""
}
