package validators

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/angelmondragon/benefits-logistics/pkg/errors"
)

// ParsePathID reads a positive integer route parameter.
func ParsePathID(r *http.Request, key string) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	if raw == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "path parameter is required").WithDetails(map[string]any{"field": key})
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "path parameter must be a positive integer").WithDetails(map[string]any{"field": key})
	}
	return id, nil
}

// ParseHeaderTime reads a required RFC 3339 timestamp header.
func ParseHeaderTime(r *http.Request, header string) (time.Time, error) {
	raw := strings.TrimSpace(r.Header.Get(header))
	if raw == "" {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, header+" header required")
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+header+" header").WithDetails(map[string]any{"expected": time.RFC3339})
	}
	return at, nil
}
