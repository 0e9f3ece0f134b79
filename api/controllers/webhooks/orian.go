package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/benefits-logistics/api/responses"
	"github.com/angelmondragon/benefits-logistics/pkg/db/models"
	"github.com/angelmondragon/benefits-logistics/pkg/enums"
	pkgerrors "github.com/angelmondragon/benefits-logistics/pkg/errors"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
)

const maxMessageBytes = 5 << 20

type messageIntake interface {
	Intake(ctx context.Context, messageType enums.LogisticsMessageType, body []byte) (*models.LogisticsCenterMessage, error)
}

type deliveryGuard interface {
	CheckAndMark(ctx context.Context, messageType enums.LogisticsMessageType, body []byte) (bool, error)
	Release(ctx context.Context, messageType enums.LogisticsMessageType, body []byte) error
}

type intakeResponse struct {
	MessageID   int64  `json:"message_id,omitempty"`
	MessageType string `json:"message_type"`
	Duplicate   bool   `json:"duplicate,omitempty"`
}

// OrianMessage stores one logistics center message for asynchronous
// processing and answers 202. Interpretation happens in the worker.
func OrianMessage(intake messageIntake, guard deliveryGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if intake == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "message intake unavailable"))
			return
		}

		messageType, err := enums.ParseLogisticsMessageType(chi.URLParam(r, "messageType"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "unknown message type"))
			return
		}
		ctx = logg.WithLogisticsMessage(ctx, 0, messageType.String())

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "message body too large"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}
		if len(body) == 0 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "message body is required"))
			return
		}

		if guard != nil {
			seen, err := guard.CheckAndMark(ctx, messageType, body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check delivery"))
				return
			}
			if seen {
				logg.Info(ctx, "duplicate logistics message delivery")
				responses.WriteSuccessStatus(w, http.StatusAccepted, intakeResponse{MessageType: messageType.Slug(), Duplicate: true})
				return
			}
		}

		msg, err := intake.Intake(ctx, messageType, body)
		if err != nil {
			if guard != nil {
				if relErr := guard.Release(ctx, messageType, body); relErr != nil {
					logg.Error(ctx, "failed to release delivery key", relErr)
				}
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		logg.Info(logg.WithLogisticsMessage(ctx, msg.ID, messageType.String()), "logistics message accepted")
		responses.WriteSuccessStatus(w, http.StatusAccepted, intakeResponse{MessageID: msg.ID, MessageType: messageType.Slug()})
	}
}
