package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/benefits-logistics/pkg/errors"
)

func withParam(r *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rc))
}

func TestParsePathID(t *testing.T) {
	req := withParam(httptest.NewRequest(http.MethodPost, "/", nil), "purchaseOrderId", "42")
	id, err := ParsePathID(req, "purchaseOrderId")
	require.NoError(t, err)
	require.EqualValues(t, 42, id)

	for _, raw := range []string{"", "abc", "0", "-3"} {
		req := withParam(httptest.NewRequest(http.MethodPost, "/", nil), "purchaseOrderId", raw)
		_, err := ParsePathID(req, "purchaseOrderId")
		require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), raw)
	}
}

func TestParseHeaderTime(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/", nil)
	_, err := ParseHeaderTime(req, "X-Snapshot-Time")
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	req.Header.Set("X-Snapshot-Time", "yesterday")
	_, err = ParseHeaderTime(req, "X-Snapshot-Time")
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	req.Header.Set("X-Snapshot-Time", "2024-08-01T09:00:00+03:00")
	at, err := ParseHeaderTime(req, "X-Snapshot-Time")
	require.NoError(t, err)
	require.True(t, at.Equal(time.Date(2024, 8, 1, 6, 0, 0, 0, time.UTC)))
}
