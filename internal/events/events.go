package events

import (
	"encoding/json"
	"time"
)

const (
	EventCartUpdated        = "CartUpdated"
	EventReservationExpired = "ReservationExpired"
	EventOrderCreated       = "OrderCreated"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // usually user_id or order_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payload types per event ----

type CartUpdatedPayload struct {
	UserID string `json:"user_id"`
	Op     string `json:"op"` // add | update | remove | clear
}

type ExpiredItem struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type ReservationExpiredPayload struct {
	UserID       string        `json:"user_id"`
	SalesEventID string        `json:"sales_event_id,omitempty"`
	Items        []ExpiredItem `json:"items"`
}

type OrderItemPayload struct {
	ProductID  string `json:"product_id"`
	Qty        int    `json:"qty"`
	PriceCents int    `json:"price_cents"`
}

type OrderCreatedPayload struct {
	OrderID    string             `json:"order_id"`
	IntentID   string             `json:"intent_id"`
	UserID     string             `json:"user_id"`
	Items      []OrderItemPayload `json:"items"`
	TotalCents int                `json:"total_cents"`
}
