package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestMetadataForKnownCodes(t *testing.T) {
	cases := []struct {
		code      Code
		status    int
		retryable bool
		details   bool
	}{
		{CodeValidation, http.StatusBadRequest, false, true},
		{CodeUnauthorized, http.StatusUnauthorized, false, false},
		{CodeForbidden, http.StatusForbidden, false, false},
		{CodeNotFound, http.StatusNotFound, false, false},
		{CodeConflict, http.StatusConflict, false, false},
		{CodeStateConflict, http.StatusUnprocessableEntity, false, true},
		{CodeIdempotency, http.StatusConflict, false, false},
		{CodeInternal, http.StatusInternalServerError, true, false},
		{CodeDependency, http.StatusServiceUnavailable, true, true},
		{CodeRateLimit, http.StatusTooManyRequests, true, false},
		{CodeMalformedMessage, http.StatusUnprocessableEntity, false, true},
		{CodeMalformedID, http.StatusUnprocessableEntity, false, true},
		{CodeReferenceNotFound, http.StatusNotFound, true, true},
		{CodeBusinessFailure, http.StatusBadGateway, true, true},
	}
	for _, tc := range cases {
		meta := MetadataFor(tc.code)
		require.Equal(t, tc.status, meta.HTTPStatus, tc.code)
		require.Equal(t, tc.retryable, meta.Retryable, tc.code)
		require.Equal(t, tc.details, meta.DetailsAllowed, tc.code)
		require.NotEmpty(t, meta.PublicMessage, tc.code)
	}
	require.Equal(t, MetadataFor(CodeInternal), MetadataFor("SOMETHING_UNKNOWN"))
}

func TestErrorFormatting(t *testing.T) {
	require.Equal(t, "VALIDATION_ERROR: missing sku", New(CodeValidation, "missing sku").Error())

	cause := errors.New("connection reset")
	wrapped := Wrap(CodeDependency, cause, "post to center")
	require.Equal(t, "DEPENDENCY_ERROR: post to center: connection reset", wrapped.Error())
	require.ErrorIs(t, wrapped, cause)
	require.Equal(t, "post to center", wrapped.Message())

	require.Nil(t, Wrap(CodeConflict, nil, "x").Unwrap())

	var nilErr *Error
	require.Equal(t, CodeInternal, nilErr.Code())
	require.Empty(t, nilErr.Error())
	require.Nil(t, nilErr.WithDetails("x"))
}

func TestWithDetails(t *testing.T) {
	err := New(CodeValidation, "bad body")
	require.Nil(t, err.Details())
	require.Same(t, err, err.WithDetails(map[string]string{"sku": "required"}))
	require.Equal(t, map[string]string{"sku": "required"}, err.Details())
}

func TestAsAndIsWalkTheChain(t *testing.T) {
	inner := New(CodeMalformedID, "bad id")
	outer := Wrap(CodeMalformedMessage, fmt.Errorf("decode order: %w", inner), "status change")

	require.Same(t, outer, As(fmt.Errorf("handler: %w", outer)))
	require.Nil(t, As(nil))
	require.Nil(t, As(errors.New("plain")))

	require.True(t, Is(outer, CodeMalformedMessage))
	require.True(t, Is(outer, CodeMalformedID))
	require.False(t, Is(outer, CodeReferenceNotFound))
	require.False(t, Is(errors.New("plain"), CodeInternal))
	require.False(t, Is(nil, CodeInternal))
}

func TestIsRetryable(t *testing.T) {
	require.False(t, IsRetryable(nil))
	require.False(t, IsRetryable(New(CodeMalformedMessage, "bad")))
	require.True(t, IsRetryable(New(CodeReferenceNotFound, "missing")))
	require.True(t, IsRetryable(errors.New("connection reset")))
	// The outermost code decides.
	require.False(t, IsRetryable(Wrap(CodeMalformedMessage, New(CodeDependency, "down"), "bad")))
}

func TestLogFields(t *testing.T) {
	require.Nil(t, LogFields(nil))

	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "uq_logistics_sku", TableName: "products"}
	err := Wrap(CodeConflict, pgErr, "insert product").WithDetails(map[string]any{"step": "upsert"})

	fields := LogFields(fmt.Errorf("sync: %w", err))
	require.Equal(t, CodeConflict, fields["error_code"])
	require.Equal(t, false, fields["retryable"])
	require.Equal(t, "upsert", fields["step"])
	require.Equal(t, "23505", fields["pg_code"])
	require.Equal(t, "uq_logistics_sku", fields["pg_constraint"])
	require.Equal(t, "products", fields["pg_table"])
	require.NotContains(t, fields, "pg_column")
	require.Len(t, fields["error_chain"], 3)
}
