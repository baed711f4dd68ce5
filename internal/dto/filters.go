package dto

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize is used when a filter set carries no page size.
	DefaultPageSize = 10
	// MaxPageSize bounds a single listing request.
	MaxPageSize = 100
)

// OrderFilters selects a page of orders. Zero-valued optional fields are unset.
type OrderFilters struct {
	Status       OrderStatus `json:"status,omitempty"`
	CustomerName string      `json:"customerName,omitempty"`
	OrderType    OrderType   `json:"orderType,omitempty"`
	Search       string      `json:"search,omitempty"`
	Page         int         `json:"page"`
	PageSize     int         `json:"pageSize"`
}

// Normalize clamps pagination into its valid range.
func (f OrderFilters) Normalize() OrderFilters {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

// Validate checks enumerated fields and pagination bounds.
func (f OrderFilters) Validate() error {
	if f.Status != "" && !f.Status.Valid() {
		return fmt.Errorf("unknown order status %q", f.Status)
	}
	if f.OrderType != "" && !f.OrderType.Valid() {
		return fmt.Errorf("unknown order type %q", f.OrderType)
	}
	if f.Page < 1 {
		return fmt.Errorf("page must be >= 1, got %d", f.Page)
	}
	if f.PageSize < 1 {
		return fmt.Errorf("pageSize must be > 0, got %d", f.PageSize)
	}
	return nil
}

// Offset is the number of rows skipped before the current page.
func (f OrderFilters) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// Query encodes the filters as order API query parameters. Unset fields are omitted.
func (f OrderFilters) Query() url.Values {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.OrderType != "" {
		q.Set("orderType", string(f.OrderType))
	}
	if f.CustomerName != "" {
		q.Set("customerName", f.CustomerName)
	}
	q.Set("page", strconv.Itoa(f.Page))
	q.Set("pageSize", strconv.Itoa(f.PageSize))
	return q
}

// ParseFilters decodes query parameters produced by Query. Missing pagination
// falls back to page 1 and DefaultPageSize.
func ParseFilters(q url.Values) (OrderFilters, error) {
	f := OrderFilters{
		CustomerName: strings.TrimSpace(q.Get("customerName")),
		Search:       q.Get("search"),
		Page:         1,
		PageSize:     DefaultPageSize,
	}

	if raw := q.Get("status"); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			return OrderFilters{}, err
		}
		f.Status = status
	}
	if raw := q.Get("orderType"); raw != "" {
		orderType, err := ParseOrderType(raw)
		if err != nil {
			return OrderFilters{}, err
		}
		f.OrderType = orderType
	}
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return OrderFilters{}, fmt.Errorf("invalid page %q", raw)
		}
		f.Page = page
	}
	if raw := q.Get("pageSize"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			return OrderFilters{}, fmt.Errorf("invalid pageSize %q", raw)
		}
		f.PageSize = size
	}

	return f.Normalize(), nil
}
