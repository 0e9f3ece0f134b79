package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/benefits-logistics/pkg/db/models"
	"github.com/angelmondragon/benefits-logistics/pkg/enums"
	pkgerrors "github.com/angelmondragon/benefits-logistics/pkg/errors"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
)

type stubIntake struct {
	calls []enums.LogisticsMessageType
	err   error
}

func (s *stubIntake) Intake(_ context.Context, messageType enums.LogisticsMessageType, body []byte) (*models.LogisticsCenterMessage, error) {
	s.calls = append(s.calls, messageType)
	if s.err != nil {
		return nil, s.err
	}
	return &models.LogisticsCenterMessage{ID: 17, MessageType: messageType, RawBody: string(body)}, nil
}

type stubGuard struct {
	seen     map[string]bool
	released int
}

func (g *stubGuard) CheckAndMark(_ context.Context, messageType enums.LogisticsMessageType, body []byte) (bool, error) {
	key := string(messageType) + string(body)
	if g.seen[key] {
		return true, nil
	}
	g.seen[key] = true
	return false, nil
}

func (g *stubGuard) Release(_ context.Context, messageType enums.LogisticsMessageType, body []byte) error {
	delete(g.seen, string(messageType)+string(body))
	g.released++
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "webhooks-test", Output: io.Discard})
}

func serve(handler http.HandlerFunc, messageType, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Post("/api/v1/webhooks/orian/{messageType}", handler)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/orian/"+messageType, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestOrianMessageAccepted(t *testing.T) {
	intake := &stubIntake{}
	rec := serve(OrianMessage(intake, &stubGuard{seen: map[string]bool{}}, testLogger()), "ship-order", `{"DATACOLLECTION":{}}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, []enums.LogisticsMessageType{enums.LogisticsMessageShipOrder}, intake.calls)

	var resp struct {
		Data intakeResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.EqualValues(t, 17, resp.Data.MessageID)
	require.Equal(t, "ship-order", resp.Data.MessageType)
}

func TestOrianMessageDuplicateDeliverySkipsIntake(t *testing.T) {
	intake := &stubIntake{}
	handler := OrianMessage(intake, &stubGuard{seen: map[string]bool{}}, testLogger())

	require.Equal(t, http.StatusAccepted, serve(handler, "inbound-receipt", `{"a":1}`).Code)
	rec := serve(handler, "inbound-receipt", `{"a":1}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), `"duplicate":true`)
	require.Len(t, intake.calls, 1)
}

func TestOrianMessageRejectsUnknownType(t *testing.T) {
	intake := &stubIntake{}
	rec := serve(OrianMessage(intake, nil, testLogger()), "cancel-order", `{}`)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Empty(t, intake.calls)
}

func TestOrianMessageRejectsEmptyBody(t *testing.T) {
	rec := serve(OrianMessage(&stubIntake{}, nil, testLogger()), "order-status-change", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrianMessageIntakeFailureReleasesDelivery(t *testing.T) {
	intake := &stubIntake{err: pkgerrors.Wrap(pkgerrors.CodeInternal, errors.New("db down"), "store logistics message")}
	guard := &stubGuard{seen: map[string]bool{}}

	rec := serve(OrianMessage(intake, guard, testLogger()), "ship-order", `{"x":1}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, 1, guard.released)
	require.Empty(t, guard.seen)
}
