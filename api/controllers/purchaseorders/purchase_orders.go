package purchaseorders

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/benefits-logistics/api/middleware"
	"github.com/angelmondragon/benefits-logistics/api/responses"
	"github.com/angelmondragon/benefits-logistics/api/validators"
	internalpo "github.com/angelmondragon/benefits-logistics/internal/purchaseorders"
	"github.com/angelmondragon/benefits-logistics/pkg/db/models"
	"github.com/angelmondragon/benefits-logistics/pkg/enums"
	pkgerrors "github.com/angelmondragon/benefits-logistics/pkg/errors"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
	"github.com/angelmondragon/benefits-logistics/pkg/outbox"
)

type service interface {
	Get(ctx context.Context, id int64) (*models.PurchaseOrder, error)
	UpdateStatus(ctx context.Context, input internalpo.UpdateStatusInput) (*models.PurchaseOrder, error)
	ApproveMany(ctx context.Context, ids []int64, actor *outbox.ActorRef) error
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,po_status"`
}

type approveRequest struct {
	PurchaseOrderIDs []int64 `json:"purchase_order_ids" validate:"required,min=1,max=100,dive,gt=0"`
}

type purchaseOrderLineDTO struct {
	ID                            int64 `json:"id"`
	ProductID                     int64 `json:"product_id"`
	QuantityOrdered               int   `json:"quantity_ordered"`
	QuantitySentToLogisticsCenter int   `json:"quantity_sent_to_logistics_center"`
	QuantityReceived              int   `json:"quantity_received"`
}

type purchaseOrderDTO struct {
	ID                      int64                  `json:"id"`
	SupplierID              int64                  `json:"supplier_id"`
	Status                  string                 `json:"status"`
	SentToLogisticsCenterAt *time.Time             `json:"sent_to_logistics_center_at,omitempty"`
	LogisticsCenterStatus   *string                `json:"logistics_center_status,omitempty"`
	LogisticsCenterStatusAt *time.Time             `json:"logistics_center_status_at,omitempty"`
	Lines                   []purchaseOrderLineDTO `json:"lines,omitempty"`
	UpdatedAt               time.Time              `json:"updated_at"`
}

func toDTO(po *models.PurchaseOrder) purchaseOrderDTO {
	dto := purchaseOrderDTO{
		ID:                      po.ID,
		SupplierID:              po.SupplierID,
		Status:                  string(po.Status),
		SentToLogisticsCenterAt: po.SentToLogisticsCenterAt,
		LogisticsCenterStatus:   po.LogisticsCenterStatus,
		LogisticsCenterStatusAt: po.LogisticsCenterStatusAt,
		UpdatedAt:               po.UpdatedAt,
	}
	for _, line := range po.Lines {
		dto.Lines = append(dto.Lines, purchaseOrderLineDTO{
			ID:                            line.ID,
			ProductID:                     line.ProductID,
			QuantityOrdered:               line.QuantityOrdered,
			QuantitySentToLogisticsCenter: line.QuantitySentToLogisticsCenter,
			QuantityReceived:              line.QuantityReceived,
		})
	}
	return dto
}

func actorFrom(r *http.Request) *outbox.ActorRef {
	op, ok := middleware.OperatorFrom(r.Context())
	if !ok {
		return nil
	}
	return &outbox.ActorRef{Subject: op.ID, Role: op.Role.String()}
}

func Detail(svc service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathID(r, "purchaseOrderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		po, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toDTO(po))
	}
}

// UpdateStatus sets a purchase order status. Moving into APPROVED queues the
// order for the logistics center.
func UpdateStatus(svc service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathID(r, "purchaseOrderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req updateStatusRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParsePurchaseOrderStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		po, err := svc.UpdateStatus(r.Context(), internalpo.UpdateStatusInput{
			PurchaseOrderID: id,
			Status:          status,
			Actor:           actorFrom(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toDTO(po))
	}
}

// Approve approves a batch of purchase orders in order and stops at the
// first failure. Orders approved before the failure stay approved.
func Approve(svc service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req approveRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithField(r.Context(), "purchase_order_count", len(req.PurchaseOrderIDs))
		if err := svc.ApproveMany(ctx, req.PurchaseOrderIDs, actorFrom(r)); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		logg.Info(ctx, "purchase orders approved")
		responses.WriteSuccess(w, map[string]any{"approved": req.PurchaseOrderIDs})
	}
}
