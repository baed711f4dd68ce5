package format

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/orderdesk/internal/dto"
)

func TestMoney(t *testing.T) {
	cases := map[float64]string{
		12.99:  "$12.99",
		0:      "$0.00",
		4.5:    "$4.50",
		28.97:  "$28.97",
		-3.2:   "-$3.20",
		1e3:    "$1000.00",
		0.005:  "$0.01",
		14.999: "$15.00",
	}
	for in, want := range cases {
		if got := Money(in); got != want {
			t.Errorf("Money(%v) = %q, want %q", in, got, want)
		}
	}
	if got := MoneyDecimal(decimal.RequireFromString("7.9")); got != "$7.90" {
		t.Errorf("MoneyDecimal = %q", got)
	}
}

func TestDateTime(t *testing.T) {
	ts := time.Date(2024, 5, 1, 18, 30, 0, 0, time.UTC)
	if got := DateTime(ts, time.UTC); got != "May 1, 2024 6:30 PM" {
		t.Errorf("DateTime = %q", got)
	}
	if got := Date(ts, time.UTC); got != "May 1, 2024" {
		t.Errorf("Date = %q", got)
	}
	if got := DateTime(time.Time{}, nil); got != "" {
		t.Errorf("zero DateTime = %q", got)
	}
	if got := OptionalDateTime(nil, time.UTC); got != "-" {
		t.Errorf("nil OptionalDateTime = %q", got)
	}
}

func TestLabel(t *testing.T) {
	if got := Label(dto.OrderTypePickup); got != "Pickup" {
		t.Errorf("Label = %q", got)
	}
	if got := Label(dto.StatusPreparing); got != "Preparing" {
		t.Errorf("Label = %q", got)
	}
	if got := Label(""); got != "" {
		t.Errorf("Label empty = %q", got)
	}
}
