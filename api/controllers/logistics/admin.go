package logistics

import (
	"context"
	"net/http"

	"github.com/angelmondragon/benefits-logistics/api/responses"
	"github.com/angelmondragon/benefits-logistics/api/validators"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
)

type orderSender interface {
	SendPurchaseOrder(ctx context.Context, purchaseOrderID int64) error
	SendCustomerOrder(ctx context.Context, orderID int64) error
	SyncProductByID(ctx context.Context, productID int64) error
}

type messageReplayer interface {
	Replay(ctx context.Context, messageID int64) error
}

type actionResponse struct {
	ID     int64  `json:"id"`
	Action string `json:"action"`
	Status string `json:"status"`
}

// AdminSendPurchaseOrder runs the approval chain for one purchase order:
// supplier, products, then the inbound document.
func AdminSendPurchaseOrder(sender orderSender, logg *logger.Logger) http.HandlerFunc {
	return adminAction("purchaseOrderId", "send_purchase_order", logg, func(ctx context.Context, id int64) error {
		return sender.SendPurchaseOrder(ctx, id)
	})
}

func AdminSendCustomerOrder(sender orderSender, logg *logger.Logger) http.HandlerFunc {
	return adminAction("orderId", "send_customer_order", logg, func(ctx context.Context, id int64) error {
		return sender.SendCustomerOrder(ctx, id)
	})
}

func AdminSyncProduct(sender orderSender, logg *logger.Logger) http.HandlerFunc {
	return adminAction("productId", "sync_product", logg, func(ctx context.Context, id int64) error {
		return sender.SyncProductByID(ctx, id)
	})
}

// AdminReplayMessage re-runs one stored message synchronously, including
// ones already processed or flagged as malformed.
func AdminReplayMessage(replayer messageReplayer, logg *logger.Logger) http.HandlerFunc {
	return adminAction("messageId", "replay_message", logg, func(ctx context.Context, id int64) error {
		return replayer.Replay(ctx, id)
	})
}

func adminAction(param, action string, logg *logger.Logger, run func(context.Context, int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathID(r, param)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithFields(r.Context(), map[string]any{"action": action, "entity_id": id})
		if err := run(ctx, id); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		logg.Info(ctx, "admin logistics action completed")
		responses.WriteSuccess(w, actionResponse{ID: id, Action: action, Status: "ok"})
	}
}
