package router

import (
	"context"

	"github.com/angelmondragon/benefits-logistics/internal/analytics/types"
)

type fakeWriter struct {
	statuses []types.StatusEventRow
	receipts []types.ReceiptLineRow
	err      error
}

func (f *fakeWriter) InsertStatusEvent(_ context.Context, row types.StatusEventRow) error {
	f.statuses = append(f.statuses, row)
	return f.err
}

func (f *fakeWriter) InsertReceiptLine(_ context.Context, row types.ReceiptLineRow) error {
	f.receipts = append(f.receipts, row)
	return f.err
}
