package inbound

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/benefits-logistics/internal/logistics/ids"
	"github.com/angelmondragon/benefits-logistics/internal/logistics/messages"
	"github.com/angelmondragon/benefits-logistics/internal/logistics/statemerge"
	"github.com/angelmondragon/benefits-logistics/pkg/db/models"
	"github.com/angelmondragon/benefits-logistics/pkg/enums"
	pkgerrors "github.com/angelmondragon/benefits-logistics/pkg/errors"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
	"github.com/angelmondragon/benefits-logistics/pkg/metrics"
	"github.com/angelmondragon/benefits-logistics/pkg/outbox"
	"github.com/angelmondragon/benefits-logistics/pkg/outbox/payloads"
)

const maxStoredErrorLen = 1000

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Processor stores raw logistics center messages and applies them to the
// platform entities they reference.
type Processor interface {
	Intake(ctx context.Context, messageType enums.LogisticsMessageType, body []byte) (*models.LogisticsCenterMessage, error)
	Process(ctx context.Context, messageID int64) error
	Replay(ctx context.Context, messageID int64) error
	ReplayPending(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

// ProcessorParams wires a Processor.
type ProcessorParams struct {
	Repo     Repository
	Tx       txRunner
	Outbox   outboxEmitter
	Codec    ids.Codec
	Center   enums.LogisticsCenter
	Location *time.Location
	Metrics  *metrics.LogisticsMetrics
	Logger   *logger.Logger
	Clock    func() time.Time
}

type processor struct {
	repo    Repository
	tx      txRunner
	outbox  outboxEmitter
	codec   ids.Codec
	center  enums.LogisticsCenter
	loc     *time.Location
	metrics *metrics.LogisticsMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewProcessor validates params and returns a Processor.
func NewProcessor(params ProcessorParams) (Processor, error) {
	if params.Repo == nil {
		return nil, errors.New("inbound repository required")
	}
	if params.Tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	center := params.Center
	if center == "" {
		center = enums.LogisticsCenterOrian
	}
	if !center.IsValid() {
		return nil, fmt.Errorf("invalid logistics center %q", center)
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &processor{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		codec:   params.Codec,
		center:  center,
		loc:     loc,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     now,
	}, nil
}

// Intake stores the raw body before any interpretation and queues it for
// processing.
func (p *processor) Intake(ctx context.Context, messageType enums.LogisticsMessageType, body []byte) (*models.LogisticsCenterMessage, error) {
	if !messageType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown message type %q", messageType))
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message body is required")
	}

	msg := &models.LogisticsCenterMessage{
		Center:      p.center,
		MessageType: messageType,
		RawBody:     string(body),
	}
	err := p.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := p.repo.WithTx(tx).CreateMessage(ctx, msg); err != nil {
			return err
		}
		return p.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLogisticsMessageReceived,
			AggregateType: enums.AggregateLogisticsMessage,
			AggregateID:   outbox.AggregateIDFromInt(msg.ID),
			Data: payloads.LogisticsMessageReceivedEvent{
				MessageID:   msg.ID,
				MessageType: messageType,
				Center:      p.center,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store logistics message")
	}

	p.logg.Info(p.logg.WithLogisticsMessage(ctx, msg.ID, messageType.String()), "logistics message received")
	return msg, nil
}

// Process applies a stored message once. Messages already processed are
// skipped so redelivery is harmless.
func (p *processor) Process(ctx context.Context, messageID int64) error {
	return p.run(ctx, messageID, false)
}

// Replay re-applies a stored message even if it was processed before.
func (p *processor) Replay(ctx context.Context, messageID int64) error {
	return p.run(ctx, messageID, true)
}

// ReplayPending re-runs unprocessed messages received before olderThan and
// reports how many succeeded.
func (p *processor) ReplayPending(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	messageIDs, err := p.repo.ListReplayable(ctx, olderThan, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list replayable logistics messages")
	}
	var (
		replayed int
		errs     error
	)
	for _, id := range messageIDs {
		if err := ctx.Err(); err != nil {
			return replayed, multierr.Append(errs, err)
		}
		if err := p.run(ctx, id, false); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("message %d: %w", id, err))
			continue
		}
		replayed++
	}
	return replayed, errs
}

func (p *processor) run(ctx context.Context, messageID int64, force bool) error {
	msg, err := p.repo.FindMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "logistics message not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load logistics message")
	}
	ctx = p.logg.WithLogisticsMessage(ctx, msg.ID, msg.MessageType.String())
	if msg.ProcessedAt != nil && !force {
		p.logg.Info(ctx, "logistics message already processed")
		return nil
	}

	p.logg.Info(ctx, "processing logistics message")
	if err := p.dispatch(ctx, msg); err != nil {
		p.recordFailure(ctx, msg, err)
		return err
	}
	if err := p.repo.MarkProcessed(ctx, msg.ID, p.now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark logistics message processed")
	}
	p.metrics.IncMessageProcessed(msg.MessageType.String(), metrics.MessageOutcomeProcessed)
	p.logg.Info(ctx, "logistics message processed")
	return nil
}

func (p *processor) dispatch(ctx context.Context, msg *models.LogisticsCenterMessage) error {
	raw := []byte(msg.RawBody)
	switch msg.MessageType {
	case enums.LogisticsMessageInboundReceipt:
		receipt, err := messages.ParseReceipt(raw)
		if err != nil {
			return err
		}
		return p.applyReceipt(ctx, msg, receipt)
	case enums.LogisticsMessageOrderStatusChange:
		change, err := messages.ParseStatusChange(raw)
		if err != nil {
			return err
		}
		kind := enums.StatusEntityPurchaseOrder
		if change.IsCustomerOrder() {
			kind = enums.StatusEntityCustomerOrder
		}
		return p.applyStatus(ctx, msg, kind, change.OrderID, change.ToStatus, change.StatusDate)
	case enums.LogisticsMessageShipOrder:
		ship, err := messages.ParseShipOrder(raw)
		if err != nil {
			return err
		}
		return p.applyStatus(ctx, msg, enums.StatusEntityCustomerOrder, ship.OrderID, ship.Status, ship.ShippedDate)
	default:
		return pkgerrors.New(pkgerrors.CodeMalformedMessage, fmt.Sprintf("unknown message type %q", msg.MessageType))
	}
}

// applyReceipt upserts the receipt header, then each line in its own
// transaction. A line that cannot be resolved stops the message; lines
// written before it are kept and rewritten on reprocessing.
func (p *processor) applyReceipt(ctx context.Context, msg *models.LogisticsCenterMessage, data messages.Receipt) error {
	code := data.Receipt.String()
	start, err := messages.ParseTime(data.StartReceiptDate, p.loc)
	if err != nil {
		return err
	}
	closed, err := messages.ParseTime(data.CloseReceiptDate, p.loc)
	if err != nil {
		return err
	}
	lines := data.ReceiptLines()
	ctx = p.logg.WithFields(ctx, map[string]any{"receipt_code": code, "line_count": len(lines)})

	var receipt *models.InboundReceipt
	if err := p.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		receipt, err = p.repo.WithTx(tx).UpsertReceipt(ctx, &models.InboundReceipt{
			Center:           p.center,
			ReceiptCode:      code,
			ReceiptStartDate: start,
			ReceiptCloseDate: closed,
		})
		return err
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert inbound receipt")
	}

	for _, line := range lines {
		if err := p.applyReceiptLine(ctx, msg, receipt, line); err != nil {
			return err
		}
	}
	p.logg.Info(ctx, "inbound receipt applied")
	return nil
}

func (p *processor) applyReceiptLine(ctx context.Context, msg *models.LogisticsCenterMessage, receipt *models.InboundReceipt, line messages.ReceiptLine) error {
	lineNumber, err := messages.LineNumber(line.ReceiptLine)
	if err != nil {
		return err
	}
	quantity, err := messages.Quantity(line.QtyReceived)
	if err != nil {
		return err
	}
	decoded, err := ids.Decode(line.OrderID.String())
	if err != nil {
		return referenceNotFound(err, "purchase order", line.OrderID.String())
	}
	sku := line.SKU.String()

	return p.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := p.repo.WithTx(tx)
		poLine, err := repo.FindPurchaseOrderLine(ctx, decoded.Value, sku)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return referenceNotFound(err, "purchase order line", fmt.Sprintf("%s/%s", line.OrderID, sku))
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load purchase order line")
		}

		var previousLineID int64
		previous, err := repo.FindReceiptLine(ctx, receipt.ID, lineNumber)
		switch {
		case err == nil:
			previousLineID = previous.PurchaseOrderLineID
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load inbound receipt line")
		}

		messageID := msg.ID
		stored, err := repo.UpsertReceiptLine(ctx, &models.InboundReceiptLine{
			LogisticsCenterMessageID: &messageID,
			ReceiptID:                receipt.ID,
			ReceiptLine:              lineNumber,
			PurchaseOrderLineID:      poLine.ID,
			QuantityReceived:         quantity,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert inbound receipt line")
		}
		if err := repo.RecomputeQuantityReceived(ctx, poLine.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recompute quantity received")
		}
		if previousLineID != 0 && previousLineID != poLine.ID {
			if err := repo.RecomputeQuantityReceived(ctx, previousLineID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recompute quantity received")
			}
		}

		return p.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReceiptLineRecorded,
			AggregateType: enums.AggregateInboundReceipt,
			AggregateID:   outbox.AggregateIDFromInt(receipt.ID),
			Data: payloads.ReceiptLineRecordedEvent{
				ReceiptLineID:       stored.ID,
				MessageID:           &messageID,
				Center:              p.center,
				ReceiptCode:         receipt.ReceiptCode,
				ReceiptLine:         stored.ReceiptLine,
				PurchaseOrderID:     poLine.PurchaseOrderID,
				PurchaseOrderLineID: poLine.ID,
				SKU:                 sku,
				QuantityReceived:    stored.QuantityReceived,
				ReceiptCloseDate:    receipt.ReceiptCloseDate,
			},
		})
	})
}

// applyStatus records the reported status and advances the entity's current
// status when the report is newer. The entity row stays locked for the whole
// read-compare-write.
func (p *processor) applyStatus(ctx context.Context, msg *models.LogisticsCenterMessage, kind enums.StatusEntityKind, orderID, status, date messages.Text) error {
	at, err := messages.ParseTime(date, p.loc)
	if err != nil {
		return err
	}
	label := strings.TrimSpace(status.String())
	if label == "" {
		return pkgerrors.New(pkgerrors.CodeMalformedMessage, "status is required")
	}
	entityID, err := p.resolveEntity(ctx, kind, orderID.String())
	if err != nil {
		return err
	}
	ctx = p.logg.WithFields(ctx, map[string]any{
		"entity_kind": string(kind),
		"entity_id":   entityID,
		"status":      label,
	})
	update := statemerge.Update{Status: label, At: at}

	var decision statemerge.Decision
	err = p.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := p.repo.WithTx(tx)
		current, err := repo.LockEntityStatus(ctx, kind, entityID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return referenceNotFound(err, string(kind), orderID.String())
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock entity status")
		}
		exists, err := repo.StatusEventExists(ctx, kind, entityID, label, at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check status event")
		}
		decision = statemerge.Decide(current, update, exists)

		if decision.RecordEvent {
			messageID := msg.ID
			event := &models.OrderStatusEvent{
				LogisticsCenterMessageID: &messageID,
				Center:                   p.center,
				EntityKind:               kind,
				EntityID:                 entityID,
				Status:                   label,
				StatusDateTime:           at,
			}
			created, err := repo.InsertStatusEvent(ctx, event)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert status event")
			}
			if created {
				if err := p.outbox.Emit(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventOrderStatusRecorded,
					AggregateType: aggregateFor(kind),
					AggregateID:   outbox.AggregateIDFromInt(entityID),
					Data: payloads.OrderStatusRecordedEvent{
						StatusEventID:  event.ID,
						MessageID:      &messageID,
						Center:         p.center,
						EntityKind:     kind,
						EntityID:       entityID,
						Status:         label,
						StatusAt:       at,
						BecameCurrent:  decision.Advance,
						PreviousStatus: current.Status,
					},
				}); err != nil {
					return err
				}
			}
		}
		if decision.Advance {
			if err := repo.UpdateEntityStatus(ctx, kind, entityID, label, at); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update entity status")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	p.logg.Info(p.logg.WithFields(ctx, map[string]any{
		"recorded": decision.RecordEvent,
		"advanced": decision.Advance,
	}), "order status applied")
	return nil
}

// resolveEntity decodes a logistics center order id. Customer orders encoded
// with the current scheme must carry their organization's namespace or the
// default prefix.
func (p *processor) resolveEntity(ctx context.Context, kind enums.StatusEntityKind, orderID string) (int64, error) {
	decoded, err := ids.Decode(orderID)
	if err != nil {
		return 0, referenceNotFound(err, string(kind), orderID)
	}
	if kind != enums.StatusEntityCustomerOrder || decoded.Legacy {
		return decoded.Value, nil
	}
	if decoded.Namespace == p.codec.Prefix() {
		return decoded.Value, nil
	}
	org, err := p.repo.FindCustomerOrderOrganization(ctx, decoded.Value)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, referenceNotFound(err, string(kind), orderID)
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load customer order organization")
	}
	if org == nil || ids.Namespace(org.Name) != decoded.Namespace {
		return 0, referenceNotFound(nil, string(kind), orderID)
	}
	return decoded.Value, nil
}

func (p *processor) recordFailure(ctx context.Context, msg *models.LogisticsCenterMessage, cause error) {
	code := pkgerrors.CodeInternal
	if typed := pkgerrors.As(cause); typed != nil {
		code = typed.Code()
	}
	outcome := metrics.MessageOutcomeFailed
	switch {
	case pkgerrors.Is(cause, pkgerrors.CodeMalformedMessage):
		code = pkgerrors.CodeMalformedMessage
		outcome = metrics.MessageOutcomeMalformed
	case pkgerrors.Is(cause, pkgerrors.CodeReferenceNotFound):
		code = pkgerrors.CodeReferenceNotFound
		outcome = metrics.MessageOutcomeNotFound
	}
	p.metrics.IncMessageProcessed(msg.MessageType.String(), outcome)
	p.logg.Error(p.logg.WithField(ctx, "error_code", string(code)), "logistics message processing failed", cause)

	if err := p.repo.MarkFailed(ctx, msg.ID, code, truncateError(cause.Error())); err != nil {
		p.logg.Error(ctx, "failed to record logistics message failure", err)
	}
}

// truncateError keeps at most maxStoredErrorLen bytes without splitting a rune.
func truncateError(text string) string {
	if len(text) <= maxStoredErrorLen {
		return text
	}
	cut := maxStoredErrorLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func referenceNotFound(cause error, what, reference string) error {
	return pkgerrors.Wrap(pkgerrors.CodeReferenceNotFound, cause, fmt.Sprintf("%s %q not found", what, reference)).
		WithDetails(map[string]any{"reference": reference, "kind": what})
}

func aggregateFor(kind enums.StatusEntityKind) enums.OutboxAggregateType {
	if kind == enums.StatusEntityCustomerOrder {
		return enums.AggregateCustomerOrder
	}
	return enums.AggregatePurchaseOrder
}
