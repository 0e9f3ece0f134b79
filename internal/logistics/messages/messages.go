// Package messages decodes the messages the logistics center posts back.
// Shape irregularities are normalized here so handlers only see uniform
// types.
package messages

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/benefits-logistics/pkg/enums"
	pkgerrors "github.com/angelmondragon/benefits-logistics/pkg/errors"
	"github.com/angelmondragon/benefits-logistics/pkg/orian"
)

// Text accepts a JSON string, number or null.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*t = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*t = Text(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", trimmed)
	}
	*t = Text(n.String())
	return nil
}

func (t Text) String() string {
	return string(t)
}

// LineList decodes either a single object or an array into a slice. A
// missing or null value is an empty list.
type LineList[T any] []T

func (l *LineList[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*l = nil
		return nil
	}
	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var single T
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return err
	}
	*l = LineList[T]{single}
	return nil
}

// ReceiptLine is one received line of an INBOUND_RECEIPT.
type ReceiptLine struct {
	ReceiptLine Text `json:"RECEIPTLINE"`
	SKU         Text `json:"SKU"`
	OrderID     Text `json:"ORDERID"`
	QtyReceived Text `json:"QTYRECEIVED"`
}

// Receipt is an INBOUND_RECEIPT payload.
type Receipt struct {
	Receipt          Text `json:"RECEIPT"`
	StartReceiptDate Text `json:"STARTRECEIPTDATE"`
	CloseReceiptDate Text `json:"CLOSERECEIPTDATE"`
	Lines            *struct {
		Line LineList[ReceiptLine] `json:"LINE"`
	} `json:"LINES"`
}

// ReceiptLines returns the normalized line list.
func (r Receipt) ReceiptLines() []ReceiptLine {
	if r.Lines == nil {
		return nil
	}
	return r.Lines.Line
}

// StatusChange is an ORDER_STATUS_CHANGE payload.
type StatusChange struct {
	OrderID    Text `json:"ORDERID"`
	OrderType  Text `json:"ORDERTYPE"`
	ToStatus   Text `json:"TOSTATUS"`
	StatusDate Text `json:"STATUSDATE"`
}

// IsCustomerOrder reports whether the status refers to a customer order.
// Every other order type refers to a purchase order.
func (s StatusChange) IsCustomerOrder() bool {
	return strings.EqualFold(s.OrderType.String(), enums.OrianOrderTypeCustomer)
}

// ShipOrder is a SHIP_ORDER payload. It always refers to a customer order.
type ShipOrder struct {
	OrderID     Text `json:"ORDERID"`
	OrderType   Text `json:"ORDERTYPE"`
	Status      Text `json:"STATUS"`
	ShippedDate Text `json:"SHIPPEDDATE"`
}

type envelope[T any] struct {
	DataCollection struct {
		Data *T `json:"DATA"`
	} `json:"DATACOLLECTION"`
}

// ParseReceipt validates and decodes an INBOUND_RECEIPT body.
func ParseReceipt(raw []byte) (Receipt, error) {
	return parse[Receipt](enums.LogisticsMessageInboundReceipt, raw)
}

// ParseStatusChange validates and decodes an ORDER_STATUS_CHANGE body.
func ParseStatusChange(raw []byte) (StatusChange, error) {
	return parse[StatusChange](enums.LogisticsMessageOrderStatusChange, raw)
}

// ParseShipOrder validates and decodes a SHIP_ORDER body.
func ParseShipOrder(raw []byte) (ShipOrder, error) {
	return parse[ShipOrder](enums.LogisticsMessageShipOrder, raw)
}

func parse[T any](messageType enums.LogisticsMessageType, raw []byte) (T, error) {
	var zero T
	if err := Validate(messageType, raw); err != nil {
		return zero, err
	}
	var env envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		return zero, pkgerrors.Wrap(pkgerrors.CodeMalformedMessage, err, fmt.Sprintf("decode %s message", messageType))
	}
	if env.DataCollection.Data == nil {
		return zero, pkgerrors.New(pkgerrors.CodeMalformedMessage, "DATACOLLECTION.DATA is required")
	}
	return *env.DataCollection.Data, nil
}

// ParseTime reads a logistics center date in loc and returns it in UTC.
func ParseTime(value Text, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	parsed, err := time.ParseInLocation(orian.DateLayout, value.String(), loc)
	if err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeMalformedMessage, err, fmt.Sprintf("invalid date %q", value))
	}
	return parsed.UTC(), nil
}

// FormatTime renders t in loc using the logistics center date layout.
func FormatTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(orian.DateLayout)
}

// Quantity parses decimal quantities such as "3.0000", truncating any
// fractional part. Negative values are rejected.
func Quantity(value Text) (int, error) {
	parsed, err := wholeNumber(value, "quantity")
	if err != nil {
		return 0, err
	}
	return int(parsed.IntPart()), nil
}

// LineNumber parses a receipt line number. "2.0000" is accepted, "1.5" and
// anything below one are not.
func LineNumber(value Text) (int, error) {
	parsed, err := wholeNumber(value, "line number")
	if err != nil {
		return 0, err
	}
	if !parsed.IsInteger() || parsed.Sign() <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeMalformedMessage, fmt.Sprintf("invalid line number %q", value))
	}
	return int(parsed.IntPart()), nil
}

var maxWhole = decimal.NewFromInt(math.MaxInt32)

func wholeNumber(value Text, what string) (decimal.Decimal, error) {
	parsed, err := decimal.NewFromString(strings.TrimSpace(value.String()))
	if err != nil {
		return decimal.Decimal{}, pkgerrors.Wrap(pkgerrors.CodeMalformedMessage, err, fmt.Sprintf("invalid %s %q", what, value))
	}
	if parsed.IsNegative() || parsed.Truncate(0).GreaterThan(maxWhole) {
		return decimal.Decimal{}, pkgerrors.New(pkgerrors.CodeMalformedMessage, fmt.Sprintf("%s %q out of range", what, value))
	}
	return parsed, nil
}
