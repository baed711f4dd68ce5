package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Order is the persisted form of a customer order.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID               string          `bun:"id,pk"`
	CustomerName     string          `bun:"customer_name,notnull"`
	CustomerEmail    string          `bun:"customer_email,notnull"`
	OrderType        string          `bun:"order_type,notnull"`
	Status           string          `bun:"status,notnull"`
	Total            decimal.Decimal `bun:"total,type:decimal(12,2),notnull"`
	PreparationNotes string          `bun:"preparation_notes,notnull"`
	CreatedAt        time.Time       `bun:"created_at,notnull"`
	ScheduledFor     *time.Time      `bun:"scheduled_for"`
	UpdatedAt        time.Time       `bun:"updated_at,nullzero"`

	Items []*OrderItem `bun:"rel:has-many,join:id=order_id"`
}

// OrderItem is a single persisted order line.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID                  string          `bun:"id,pk"`
	OrderID             string          `bun:"order_id,notnull"`
	Position            int             `bun:"position,notnull"`
	Name                string          `bun:"name,notnull"`
	Quantity            int             `bun:"quantity,notnull"`
	Price               decimal.Decimal `bun:"price,type:decimal(12,2),notnull"`
	SpecialInstructions string          `bun:"special_instructions,nullzero"`
}
