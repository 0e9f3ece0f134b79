// Package writer streams analytics rows into BigQuery.
package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	gax "github.com/googleapis/gax-go/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/benefits-logistics/internal/analytics/types"
	pkgbigquery "github.com/angelmondragon/benefits-logistics/pkg/bigquery"
	"github.com/angelmondragon/benefits-logistics/pkg/config"
)

const defaultAttempts = 3

// Tables lists the fact tables with the row types that define their schema.
func Tables(cfg config.BigQueryConfig) []pkgbigquery.Table {
	return []pkgbigquery.Table{
		{Name: cfg.StatusEventsTable, Row: types.StatusEventRow{}, PartitionField: "occurred_at"},
		{Name: cfg.ReceiptLinesTable, Row: types.ReceiptLineRow{}, PartitionField: "occurred_at"},
	}
}

type inserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

type Config struct {
	StatusEventsTable string
	ReceiptLinesTable string
	// BatchSize above 1 buffers rows until the batch fills or Run flushes.
	// Buffered rows belong to already acked deliveries.
	BatchSize   int
	MaxAttempts int
	Backoff     gax.Backoff
}

type batch[R any] struct {
	mu    sync.Mutex
	table string
	rows  []R
}

// Writer buffers rows per table and inserts them with retries on transient
// BigQuery errors. Rows stay buffered when an insert fails.
type Writer struct {
	client   inserter
	size     int
	attempts int
	backoff  gax.Backoff

	statuses batch[types.StatusEventRow]
	receipts batch[types.ReceiptLineRow]
}

func New(client inserter, cfg Config) (*Writer, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	statusTable := strings.TrimSpace(cfg.StatusEventsTable)
	receiptTable := strings.TrimSpace(cfg.ReceiptLinesTable)
	if statusTable == "" || receiptTable == "" {
		return nil, errors.New("status events and receipt lines tables are required")
	}
	w := &Writer{
		client:   client,
		size:     max(cfg.BatchSize, 1),
		attempts: cfg.MaxAttempts,
		backoff:  cfg.Backoff,
	}
	if w.attempts <= 0 {
		w.attempts = defaultAttempts
	}
	if w.backoff.Initial <= 0 {
		w.backoff = gax.Backoff{Initial: 250 * time.Millisecond, Max: 2 * time.Second, Multiplier: 2}
	}
	w.statuses.table = statusTable
	w.receipts.table = receiptTable
	return w, nil
}

func (w *Writer) InsertStatusEvent(ctx context.Context, row types.StatusEventRow) error {
	return w.statuses.add(ctx, w, row)
}

func (w *Writer) InsertReceiptLine(ctx context.Context, row types.ReceiptLineRow) error {
	return w.receipts.add(ctx, w, row)
}

// Flush inserts every buffered row.
func (w *Writer) Flush(ctx context.Context) error {
	return errors.Join(w.statuses.flush(ctx, w), w.receipts.flush(ctx, w))
}

// Run flushes on every tick and once more when ctx ends.
func (w *Writer) Run(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		<-ctx.Done()
	} else {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case <-ticker.C:
				_ = w.Flush(ctx)
			}
		}
	}
	final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	return w.Flush(final)
}

func (b *batch[R]) add(ctx context.Context, w *Writer, row R) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows = append(b.rows, row)
	if len(b.rows) < w.size {
		return nil
	}
	return b.flushLocked(ctx, w)
}

func (b *batch[R]) flush(ctx context.Context, w *Writer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked(ctx, w)
}

func (b *batch[R]) flushLocked(ctx context.Context, w *Writer) error {
	if len(b.rows) == 0 {
		return nil
	}
	values := make([]any, len(b.rows))
	for i := range b.rows {
		values[i] = &b.rows[i]
	}
	if err := w.insert(ctx, b.table, values); err != nil {
		return err
	}
	b.rows = b.rows[:0]
	return nil
}

func (w *Writer) insert(ctx context.Context, table string, values []any) error {
	backoff := w.backoff
	for attempt := 1; ; attempt++ {
		err := w.client.InsertRows(ctx, table, values)
		if err == nil {
			return nil
		}
		if attempt >= w.attempts || !transient(err) {
			return fmt.Errorf("insert %d rows into %s: %w", len(values), table, err)
		}
		if err := gax.Sleep(ctx, backoff.Pause()); err != nil {
			return err
		}
	}
}

// transient reports whether every part of a BigQuery error is worth retrying.
func transient(err error) bool {
	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		return len(multi) > 0 && allTransient(multi)
	}
	var put cbigquery.PutMultiError
	if errors.As(err, &put) {
		if len(put) == 0 {
			return false
		}
		for _, rowErr := range put {
			if !transient(rowErr.Errors) {
				return false
			}
		}
		return true
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusRequestTimeout, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.OK && st.Code() != codes.Unknown {
		switch st.Code() {
		case codes.Aborted, codes.DeadlineExceeded, codes.Internal, codes.ResourceExhausted, codes.Unavailable:
			return true
		}
	}
	return false
}

func allTransient(errs []error) bool {
	for _, inner := range errs {
		if !transient(inner) {
			return false
		}
	}
	return true
}

// EncodeJSON keeps a raw payload for a BigQuery JSON column.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch value := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case json.RawMessage:
		raw = value
	case []byte:
		raw = value
	default:
		var err error
		if raw, err = json.Marshal(payload); err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
		}
	}
	if len(raw) == 0 {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{JSONVal: string(raw), Valid: true}, nil
}
