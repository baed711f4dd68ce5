package entity

import (
	"testing"
	"time"

	"github.com/Additional-Code/orderdesk/internal/dto"
)

func TestOrderMappingPreservesFields(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	scheduled := created.Add(2 * time.Hour)
	in := dto.Order{
		ID:            "ord-1",
		CustomerName:  "Ada Lovelace",
		CustomerEmail: "ada@example.com",
		OrderType:     dto.OrderTypeDelivery,
		Status:        dto.StatusPreparing,
		Total:         18.97,
		CreatedAt:     created,
		ScheduledFor:  &scheduled,
		Items: []dto.OrderItem{
			{ID: "i1", Name: "Margherita Pizza", Quantity: 1, Price: 12.99},
			{ID: "i2", Name: "Coca Cola", Quantity: 2, Price: 2.99, SpecialInstructions: "No ice"},
		},
		PreparationNotes: "Ring twice",
	}

	record := OrderFromDTO(in)
	if record.Items[1].Position != 1 || record.Items[1].OrderID != "ord-1" {
		t.Fatalf("item linkage not set: %+v", record.Items[1])
	}
	if record.Total.StringFixed(2) != "18.97" {
		t.Fatalf("total = %s", record.Total.StringFixed(2))
	}

	out := record.ToDTO()
	if out.ID != in.ID || out.Total != in.Total || out.Status != in.Status {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if out.ScheduledFor == nil || !out.ScheduledFor.Equal(scheduled) {
		t.Fatalf("scheduledFor = %v", out.ScheduledFor)
	}
	if len(out.Items) != 2 || out.Items[1].SpecialInstructions != "No ice" || out.Items[1].Price != 2.99 {
		t.Fatalf("items = %+v", out.Items)
	}
}

func TestToDTOWithoutItemsReturnsEmptySlice(t *testing.T) {
	out := (&Order{ID: "x"}).ToDTO()
	if out.Items == nil {
		t.Fatal("items should encode as [] not null")
	}
}
