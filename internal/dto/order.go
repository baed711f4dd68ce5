package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OrderStatus is the preparation stage of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusDelivered OrderStatus = "delivered"
	StatusCompleted OrderStatus = "completed"
)

var statuses = []OrderStatus{
	StatusPending,
	StatusConfirmed,
	StatusPreparing,
	StatusReady,
	StatusDelivered,
	StatusCompleted,
}

// Statuses returns every status in progression order.
func Statuses() []OrderStatus {
	out := make([]OrderStatus, len(statuses))
	copy(out, statuses)
	return out
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	for _, known := range statuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus normalises raw input into a known status.
func ParseStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown order status %q", raw)
	}
	return s, nil
}

// OrderType distinguishes delivery from pickup orders.
type OrderType string

const (
	OrderTypeDelivery OrderType = "delivery"
	OrderTypePickup   OrderType = "pickup"
)

// OrderTypes returns the supported order types.
func OrderTypes() []OrderType {
	return []OrderType{OrderTypeDelivery, OrderTypePickup}
}

// Valid reports whether t is a known order type.
func (t OrderType) Valid() bool {
	return t == OrderTypeDelivery || t == OrderTypePickup
}

// ParseOrderType normalises raw input into a known order type.
func ParseOrderType(raw string) (OrderType, error) {
	t := OrderType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown order type %q", raw)
	}
	return t, nil
}

// ID identifies orders and items. The wire form may be a JSON string or number;
// both decode into the textual form.
type ID string

// String returns the textual identifier.
func (id ID) String() string { return string(id) }

// IsZero reports whether the identifier is unset.
func (id ID) IsZero() bool { return id == "" }

// UnmarshalJSON accepts both string and numeric identifiers.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// OrderItem is a single line of an order.
type OrderItem struct {
	ID                  ID      `json:"id"`
	Name                string  `json:"name"`
	Quantity            int     `json:"quantity"`
	Price               float64 `json:"price"`
	SpecialInstructions string  `json:"specialInstructions,omitempty"`
}

// Order is a customer purchase as exchanged with the order API.
type Order struct {
	ID               ID          `json:"id,omitempty"`
	CustomerName     string      `json:"customerName"`
	CustomerEmail    string      `json:"customerEmail"`
	OrderType        OrderType   `json:"orderType"`
	Items            []OrderItem `json:"items"`
	Status           OrderStatus `json:"status"`
	Total            float64     `json:"total"`
	CreatedAt        time.Time   `json:"createdAt"`
	ScheduledFor     *time.Time  `json:"scheduledFor,omitempty"`
	PreparationNotes string      `json:"preparationNotes"`
}

// OrderPatch carries a partial update; nil fields are left untouched.
type OrderPatch struct {
	Status           *OrderStatus `json:"status,omitempty"`
	PreparationNotes *string      `json:"preparationNotes,omitempty"`
	CustomerName     *string      `json:"customerName,omitempty"`
	CustomerEmail    *string      `json:"customerEmail,omitempty"`
	OrderType        *OrderType   `json:"orderType,omitempty"`
	ScheduledFor     *time.Time   `json:"scheduledFor,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p OrderPatch) IsEmpty() bool {
	return p.Status == nil && p.PreparationNotes == nil && p.CustomerName == nil &&
		p.CustomerEmail == nil && p.OrderType == nil && p.ScheduledFor == nil
}

// StatusPatch builds a patch that only changes the status.
func StatusPatch(status OrderStatus) OrderPatch {
	return OrderPatch{Status: &status}
}

// OrdersResponse is one page of a filtered order listing.
type OrdersResponse struct {
	Orders   []Order `json:"orders"`
	Total    int     `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"pageSize"`
}

// PageCount returns the number of pages needed for Total at PageSize.
func (r OrdersResponse) PageCount() int {
	return PageCount(r.Total, r.PageSize)
}

// PageCount is ceil(total/size), never below one.
func PageCount(total, size int) int {
	if size <= 0 || total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}
