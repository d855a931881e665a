package outbox

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Ameur-sidahmed/Stocks-backend/store"
)

const (
	AggregateInvoice = "invoice"

	InvoiceCreated      = "invoice.created"
	InvoiceItemsUpdated = "invoice.items_updated"
	InvoiceDeleted      = "invoice.deleted"
)

// Envelope is the JSON document stored in outbox.payload and sent to Kafka.
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// NewInvoiceEvent wraps data in an Envelope with a fresh event id, ready to
// be saved in the same transaction as the invoice change.
func NewInvoiceEvent(eventType, topic string, invoiceID int64, data any) (store.OutboxEventRow, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return store.OutboxEventRow{}, fmt.Errorf("marshal %s data: %w", eventType, err)
	}

	payload, err := json.Marshal(Envelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	if err != nil {
		return store.OutboxEventRow{}, fmt.Errorf("marshal %s envelope: %w", eventType, err)
	}

	return store.OutboxEventRow{
		AggregateType: AggregateInvoice,
		AggregateID:   strconv.FormatInt(invoiceID, 10),
		EventType:     eventType,
		Topic:         topic,
		Payload:       payload,
	}, nil
}
