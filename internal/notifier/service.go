// Package notifier consumes order lifecycle events and projects the
// latest status of each order into the Redis cache the API serves
// status reads from. Handlers are idempotent via event-id dedup.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/nk-nexus/order-stock-api/internal/kafka"
	"github.com/nk-nexus/order-stock-api/internal/orders"
	"github.com/nk-nexus/order-stock-api/internal/redisx"
)

type Service struct {
	Redis       *redis.Client
	Log         *zap.Logger
	ServiceName string
}

// HandleEvent: dipasang sebagai handler consumer.
func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	// dedup via Redis (pakai event_id)
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	exists, _ := redisx.Exists(ctx, s.Redis, dkey)
	if exists {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	ownerID, orderID, status, err := statusFromEvent(env)
	if err != nil {
		return err
	}
	if status == "" || ownerID == 0 {
		return nil // event carries no status change (or no owner to key by)
	}

	key := fmt.Sprintf(redisx.KeyOrderStatus, ownerID, orderID)
	body, _ := json.Marshal(map[string]any{"status": status})
	if err := s.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err(); err != nil {
		return err
	}

	s.Log.Info("order status projected",
		zap.Int64("order_id", orderID),
		zap.String("status", string(status)),
		zap.String("event_type", env.EventType),
	)
	return nil
}

// statusFromEvent maps each lifecycle event to the owner/order it
// belongs to and the status it implies. The owner id keys the cache.
func statusFromEvent(env orders.Envelope) (int64, int64, orders.Status, error) {
	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		return p.OwnerID, p.OrderID, orders.StatusInterested, err
	case orders.EventOrderConfirmed:
		p, err := kafkax.UnwrapPayload[orders.OrderConfirmedPayload](env.Payload)
		return p.OwnerID, p.OrderID, orders.StatusOrdered, err
	case orders.EventPaymentRecorded:
		p, err := kafkax.UnwrapPayload[orders.PaymentRecordedPayload](env.Payload)
		return p.OwnerID, p.OrderID, p.OrderStatus, err
	case orders.EventOrderCompleted:
		p, err := kafkax.UnwrapPayload[orders.OrderCompletedPayload](env.Payload)
		return p.OwnerID, p.OrderID, orders.StatusCompleted, err
	case orders.EventOrderCancelled:
		p, err := kafkax.UnwrapPayload[orders.OrderCancelledPayload](env.Payload)
		return p.OwnerID, p.OrderID, orders.StatusCancelled, err
	case orders.EventStockRejected:
		// order stays INTERESTED; nothing to project
		return 0, 0, "", nil
	default:
		return 0, 0, "", nil
	}
}
