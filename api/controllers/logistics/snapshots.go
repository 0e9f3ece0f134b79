package logistics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/benefits-logistics/api/responses"
	"github.com/angelmondragon/benefits-logistics/api/validators"
	pkgerrors "github.com/angelmondragon/benefits-logistics/pkg/errors"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
)

// SnapshotTimeHeader carries the moment the center took the stock snapshot.
const SnapshotTimeHeader = "X-Snapshot-Time"

const maxSnapshotBytes = 20 << 20

type snapshotStore interface {
	Store(ctx context.Context, snapshotPath string, at time.Time, body []byte) (bool, error)
}

type snapshotResponse struct {
	Path   string `json:"path"`
	Stored bool   `json:"stored"`
}

// SnapshotUpload archives a stock snapshot. A new file answers 201; a file
// that was already archived answers 200 and is not reprocessed.
func SnapshotUpload(store snapshotStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if store == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "snapshot service unavailable"))
			return
		}

		snapshotPath := strings.TrimSpace(chi.URLParam(r, "*"))
		at, err := validators.ParseHeaderTime(r, SnapshotTimeHeader)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSnapshotBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "snapshot body too large"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		stored, err := store.Store(ctx, snapshotPath, at, body)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		status := http.StatusOK
		if stored {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, snapshotResponse{Path: snapshotPath, Stored: stored})
	}
}
