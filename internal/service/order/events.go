package order

import (
	"time"

	"github.com/Additional-Code/orderdesk/internal/dto"
)

// Event types published on the order stream.
const (
	EventOrderCreated = "order.created"
	EventOrderUpdated = "order.updated"
)

// OrderEvent is emitted after an order is created or changed.
type OrderEvent struct {
	Type           string          `json:"type"`
	OrderID        dto.ID          `json:"orderId"`
	Status         dto.OrderStatus `json:"status"`
	PreviousStatus dto.OrderStatus `json:"previousStatus,omitempty"`
	CustomerName   string          `json:"customerName"`
	OrderType      dto.OrderType   `json:"orderType"`
	Total          float64         `json:"total"`
	OccurredAt     time.Time       `json:"occurredAt"`
}
