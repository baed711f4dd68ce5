package entity

import (
	"github.com/shopspring/decimal"

	"github.com/Additional-Code/orderdesk/internal/dto"
)

// ToDTO converts a stored order into its API representation.
func (o *Order) ToDTO() dto.Order {
	out := dto.Order{
		ID:               dto.ID(o.ID),
		CustomerName:     o.CustomerName,
		CustomerEmail:    o.CustomerEmail,
		OrderType:        dto.OrderType(o.OrderType),
		Status:           dto.OrderStatus(o.Status),
		Total:            o.Total.InexactFloat64(),
		CreatedAt:        o.CreatedAt.UTC(),
		PreparationNotes: o.PreparationNotes,
		Items:            make([]dto.OrderItem, 0, len(o.Items)),
	}
	if o.ScheduledFor != nil {
		scheduled := o.ScheduledFor.UTC()
		out.ScheduledFor = &scheduled
	}
	for _, item := range o.Items {
		out.Items = append(out.Items, dto.OrderItem{
			ID:                  dto.ID(item.ID),
			Name:                item.Name,
			Quantity:            item.Quantity,
			Price:               item.Price.InexactFloat64(),
			SpecialInstructions: item.SpecialInstructions,
		})
	}
	return out
}

// OrderFromDTO builds a record from an API order. Item positions follow slice order.
func OrderFromDTO(in dto.Order) *Order {
	order := &Order{
		ID:               in.ID.String(),
		CustomerName:     in.CustomerName,
		CustomerEmail:    in.CustomerEmail,
		OrderType:        string(in.OrderType),
		Status:           string(in.Status),
		Total:            decimal.NewFromFloat(in.Total).Round(2),
		PreparationNotes: in.PreparationNotes,
		CreatedAt:        in.CreatedAt.UTC(),
		Items:            make([]*OrderItem, 0, len(in.Items)),
	}
	if in.ScheduledFor != nil {
		scheduled := in.ScheduledFor.UTC()
		order.ScheduledFor = &scheduled
	}
	for i, item := range in.Items {
		order.Items = append(order.Items, &OrderItem{
			ID:                  item.ID.String(),
			OrderID:             order.ID,
			Position:            i,
			Name:                item.Name,
			Quantity:            item.Quantity,
			Price:               decimal.NewFromFloat(item.Price).Round(2),
			SpecialInstructions: item.SpecialInstructions,
		})
	}
	return order
}
