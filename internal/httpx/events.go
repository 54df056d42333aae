package httpx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/nk-nexus/order-stock-api/internal/kafka"
	"github.com/nk-nexus/order-stock-api/internal/orders"
)

// EventPublisher is satisfied by *kafkax.Producer built without a
// fixed topic.
type EventPublisher interface {
	PublishTo(topic string, key, value []byte, headers ...kafkago.Header)
}

// publishEvent wraps a payload in the v1 envelope and hands it to the
// producer. Trace id rides along from the incoming request.
func publishEvent(pub EventPublisher, service string, r *http.Request, topic, eventType string, orderID int64, payload any) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: strconv.FormatInt(orderID, 10),
		Payload:       kafkax.MustMarshal(payload),
	}
	pub.PublishTo(topic, orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
