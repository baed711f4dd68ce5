package orderlist

import (
	"time"

	"github.com/Additional-Code/orderdesk/internal/dashboard"
	"github.com/Additional-Code/orderdesk/internal/dto"
	"github.com/Additional-Code/orderdesk/internal/presentation/format"
)

// EmptyMessage is shown in place of rows when a page has no orders.
const EmptyMessage = "No orders found matching your criteria"

// Row is one rendered order.
type Row struct {
	ID           dto.ID
	CustomerName string
	OrderType    string
	Status       dto.OrderStatus
	Total        string
	CreatedAt    string
	DetailURL    string
	Updating     bool
}

// Pagination describes the pager under the table. Page is 0-based.
type Pagination struct {
	Page            int
	PageNumber      int
	PageCount       int
	PageSize        int
	Total           int
	From            int
	To              int
	HasPrev         bool
	HasNext         bool
	PrevPage        int
	NextPage        int
	PageSizeOptions []int
}

// Table is the list view model.
type Table struct {
	Rows          []Row
	Empty         bool
	EmptyMessage  string
	Loading       bool
	Err           string
	Pagination    Pagination
	Filters       dto.OrderFilters
	SearchInput   string
	StatusOptions []dto.OrderStatus
	TypeOptions   []dto.OrderType
}

// Options tunes rendering.
type Options struct {
	PageSizeOptions []int
	Location        *time.Location
	// Updating reports rows with a status change in flight.
	Updating func(dto.ID) bool
}

// BuildTable renders a dashboard snapshot.
func BuildTable(state dashboard.State, opts Options) Table {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	rows := make([]Row, 0, len(state.Orders))
	for _, o := range state.Orders {
		row := Row{
			ID:           o.ID,
			CustomerName: o.CustomerName,
			OrderType:    format.Label(o.OrderType),
			Status:       o.Status,
			Total:        format.Money(o.Total),
			CreatedAt:    format.DateTime(o.CreatedAt, loc),
			DetailURL:    DetailURL(o.ID),
		}
		if opts.Updating != nil {
			row.Updating = opts.Updating(o.ID)
		}
		rows = append(rows, row)
	}

	table := Table{
		Rows:          rows,
		Empty:         len(rows) == 0,
		Loading:       state.Loading,
		Pagination:    paginate(state, opts.PageSizeOptions),
		Filters:       state.Filters,
		SearchInput:   state.SearchInput,
		StatusOptions: dto.Statuses(),
		TypeOptions:   dto.OrderTypes(),
	}
	if table.Empty {
		table.EmptyMessage = EmptyMessage
	}
	if state.Err != nil {
		table.Err = state.Err.Error()
	}
	return table
}

// DetailURL links to an order's detail view.
func DetailURL(id dto.ID) string {
	return "/orders/" + id.String()
}

func paginate(state dashboard.State, options []int) Pagination {
	size := state.Filters.PageSize
	page := state.UIPage()
	if page < 0 {
		page = 0
	}
	count := state.PageCount()

	p := Pagination{
		Page:            page,
		PageNumber:      page + 1,
		PageCount:       count,
		PageSize:        size,
		Total:           state.Total,
		HasPrev:         page > 0,
		HasNext:         page+1 < count,
		PrevPage:        page - 1,
		NextPage:        page + 1,
		PageSizeOptions: withSize(options, size),
	}
	if len(state.Orders) > 0 {
		p.From = page*size + 1
		p.To = page*size + len(state.Orders)
	}
	return p
}

// withSize makes sure the active page size is selectable.
func withSize(options []int, size int) []int {
	for _, o := range options {
		if o == size {
			return options
		}
	}
	out := make([]int, 0, len(options)+1)
	inserted := false
	for _, o := range options {
		if !inserted && size < o {
			out = append(out, size)
			inserted = true
		}
		out = append(out, o)
	}
	if !inserted {
		out = append(out, size)
	}
	return out
}
