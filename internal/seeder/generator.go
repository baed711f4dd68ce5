package seeder

import (
	"math/rand/v2"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/Additional-Code/orderdesk/internal/dto"
)

// DefaultCount is the number of orders generated when none is requested.
const DefaultCount = 40

type menuItem struct {
	name  string
	price float64
}

var menu = []menuItem{
	{"Margherita Pizza", 12.99},
	{"Pepperoni Pizza", 14.99},
	{"Vegetarian Pizza", 13.99},
	{"Caesar Salad", 8.99},
	{"Greek Salad", 9.99},
	{"Garlic Bread", 4.99},
	{"Buffalo Wings", 11.99},
	{"Coca Cola", 2.99},
	{"Tiramisu", 6.99},
	{"Cheesecake", 7.99},
}

var specialInstructions = []string{
	"Extra cheese please",
	"No onions",
	"Extra spicy",
	"Gluten-free if possible",
	"Well done",
	"Light on the sauce",
	"Extra crispy",
	"Add extra toppings",
}

var preparationNotes = []string{
	"Allergy alert: Customer has nut allergy",
	"Regular customer - likes extra sauce",
	"VIP customer",
	"Previous order was late - priority service",
	"Customer prefers items packed separately",
	"Birthday celebration",
	"Corporate order",
}

// Generator produces plausible restaurant orders.
type Generator struct {
	rng   *rand.Rand
	faker *gofakeit.Faker
	now   func() time.Time
}

// NewGenerator builds a Generator. The same seed yields the same orders apart
// from identifiers.
func NewGenerator(seed uint64, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		faker: gofakeit.New(seed),
		now:   now,
	}
}

// Orders generates n orders created within the last 30 days.
func (g *Generator) Orders(n int) []dto.Order {
	now := g.now().UTC()
	window := 30 * 24 * time.Hour

	out := make([]dto.Order, 0, n)
	for i := 0; i < n; i++ {
		items := g.items()

		order := dto.Order{
			ID:            dto.ID(uuid.NewString()),
			CustomerName:  g.faker.Name(),
			CustomerEmail: g.faker.Email(),
			OrderType:     pick(g.rng, dto.OrderTypes()),
			Items:         items,
			Status:        pick(g.rng, dto.Statuses()),
			CreatedAt:     now.Add(-time.Duration(g.rng.Int64N(int64(window)))).Truncate(time.Second),
		}
		order.Total, _ = dto.ItemsSubtotal(items).Float64()
		if g.chance() {
			order.PreparationNotes = pick(g.rng, preparationNotes)
		}
		if g.chance() {
			scheduled := now.Add(time.Duration(1+g.rng.IntN(7)) * 24 * time.Hour).Truncate(time.Second)
			order.ScheduledFor = &scheduled
		}
		out = append(out, order)
	}
	return out
}

func (g *Generator) items() []dto.OrderItem {
	n := 1 + g.rng.IntN(5)
	items := make([]dto.OrderItem, 0, n)
	for i := 0; i < n; i++ {
		m := pick(g.rng, menu)
		item := dto.OrderItem{
			ID:       dto.ID(uuid.NewString()),
			Name:     m.name,
			Quantity: 1 + g.rng.IntN(4),
			Price:    m.price,
		}
		if g.chance() {
			item.SpecialInstructions = pick(g.rng, specialInstructions)
		}
		items = append(items, item)
	}
	return items
}

// chance is a roll of 8..10 on a d10.
func (g *Generator) chance() bool {
	return 1+g.rng.IntN(10) > 7
}

func pick[T any](rng *rand.Rand, from []T) T {
	return from[rng.IntN(len(from))]
}
