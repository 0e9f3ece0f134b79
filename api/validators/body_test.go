package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/benefits-logistics/pkg/errors"
)

type statusBody struct {
	Status string  `json:"status" validate:"required,po_status"`
	IDs    []int64 `json:"purchase_order_ids" validate:"omitempty,min=1,max=2,dive,gt=0"`
}

func decode(t *testing.T, body string) (*statusBody, error) {
	t.Helper()
	var dest statusBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	return &dest, DecodeJSONBody(httptest.NewRecorder(), req, &dest)
}

func fieldDetails(t *testing.T, err error) map[string]string {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	return details
}

func TestDecodeJSONBodyAcceptsKnownStatus(t *testing.T) {
	dest, err := decode(t, `{"status":"approved","purchase_order_ids":[7]}`)
	require.NoError(t, err)
	require.Equal(t, "approved", dest.Status)
	require.Equal(t, []int64{7}, dest.IDs)
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	_, err := decode(t, `{"status":"shipped","purchase_order_ids":[1,2,3]}`)
	details := fieldDetails(t, err)
	require.Equal(t, "must be a purchase order status", details["status"])
	require.Equal(t, "must contain at most 2 items", details["purchase_order_ids"])

	_, err = decode(t, `{"status":"PENDING","purchase_order_ids":[0]}`)
	require.Equal(t, "must be greater than 0", fieldDetails(t, err)["purchase_order_ids[0]"])
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	for _, body := range []string{
		`{"status":"PENDING","carrier":"dhl"}`,
		`{"status":`,
		`{"status":"PENDING"}{"status":"PENDING"}`,
		`{"status":"` + strings.Repeat("x", MaxJSONBodyBytes) + `"}`,
	} {
		_, err := decode(t, body)
		require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	}
}
