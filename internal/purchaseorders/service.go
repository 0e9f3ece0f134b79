// Package purchaseorders owns purchase order status changes. Approving an
// order queues its announcement to the logistics center.
package purchaseorders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/benefits-logistics/pkg/db/models"
	"github.com/angelmondragon/benefits-logistics/pkg/enums"
	pkgerrors "github.com/angelmondragon/benefits-logistics/pkg/errors"
	"github.com/angelmondragon/benefits-logistics/pkg/outbox"
	"github.com/angelmondragon/benefits-logistics/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service changes purchase order status.
type Service interface {
	Get(ctx context.Context, id int64) (*models.PurchaseOrder, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.PurchaseOrder, error)
	ApproveMany(ctx context.Context, ids []int64, actor *outbox.ActorRef) error
}

// UpdateStatusInput carries one status change request.
type UpdateStatusInput struct {
	PurchaseOrderID int64
	Status          enums.PurchaseOrderStatus
	Actor           *outbox.ActorRef
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	now    func() time.Time
}

func NewService(repo Repository, tx txRunner, emitter outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, errors.New("purchase order repository required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if emitter == nil {
		return nil, errors.New("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: emitter, now: time.Now}, nil
}

func (s *service) Get(ctx context.Context, id int64) (*models.PurchaseOrder, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, id)
	}
	return order, nil
}

// UpdateStatus stores the new status. Only a change into APPROVED emits
// purchase_order_approved, in the same transaction as the status write.
func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.PurchaseOrder, error) {
	if input.PurchaseOrderID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase order id is required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid purchase order status %q", input.Status))
	}

	var updated *models.PurchaseOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, input.PurchaseOrderID)
		if err != nil {
			return mapNotFound(err, input.PurchaseOrderID)
		}
		previous := order.Status
		if previous == input.Status {
			updated = order
			return nil
		}
		if err := repo.UpdateStatus(ctx, order.ID, input.Status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update purchase order status")
		}
		order.Status = input.Status
		updated = order

		if input.Status != enums.PurchaseOrderStatusApproved {
			return nil
		}
		approvedAt := s.now().UTC()
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchaseOrderApproved,
			AggregateType: enums.AggregatePurchaseOrder,
			AggregateID:   outbox.AggregateIDFromInt(order.ID),
			Actor:         input.Actor,
			OccurredAt:    approvedAt,
			Data: payloads.PurchaseOrderApprovedEvent{
				PurchaseOrderID: order.ID,
				PreviousStatus:  previous,
				ApprovedAt:      approvedAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ApproveMany approves each order in its own transaction and stops at the
// first failure.
func (s *service) ApproveMany(ctx context.Context, ids []int64, actor *outbox.ActorRef) error {
	if len(ids) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one purchase order id is required")
	}
	for _, id := range ids {
		if _, err := s.UpdateStatus(ctx, UpdateStatusInput{
			PurchaseOrderID: id,
			Status:          enums.PurchaseOrderStatusApproved,
			Actor:           actor,
		}); err != nil {
			return err
		}
	}
	return nil
}

func mapNotFound(err error, id int64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, fmt.Sprintf("purchase order %d not found", id))
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load purchase order")
}
