package orderlist

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/Additional-Code/orderdesk/internal/dashboard"
	"github.com/Additional-Code/orderdesk/internal/dto"
	"github.com/Additional-Code/orderdesk/pkg/errorbank"
)

func ordersRange(from, n int) []dto.Order {
	out := make([]dto.Order, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, dto.Order{
			ID:           dto.ID(fmt.Sprintf("%d", from+i)),
			CustomerName: "Ada",
			OrderType:    dto.OrderTypeDelivery,
			Status:       dto.StatusPending,
			Total:        12.5,
			CreatedAt:    time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		})
	}
	return out
}

func TestBuildTablePagination(t *testing.T) {
	state := dashboard.State{
		Filters: dto.OrderFilters{Page: 2, PageSize: 10},
		Orders:  ordersRange(11, 10),
		Total:   23,
	}
	table := BuildTable(state, Options{PageSizeOptions: []int{5, 10, 25}, Location: time.UTC})

	p := table.Pagination
	if p.Page != 1 || p.PageNumber != 2 || p.PageCount != 3 {
		t.Fatalf("pagination = %+v", p)
	}
	if p.From != 11 || p.To != 20 || !p.HasPrev || !p.HasNext || p.PrevPage != 0 || p.NextPage != 2 {
		t.Fatalf("pagination = %+v", p)
	}
	if table.Empty || len(table.Rows) != 10 {
		t.Fatalf("rows = %d empty=%v", len(table.Rows), table.Empty)
	}

	row := table.Rows[0]
	want := Row{
		ID:           "11",
		CustomerName: "Ada",
		OrderType:    "Delivery",
		Status:       dto.StatusPending,
		Total:        "$12.50",
		CreatedAt:    "May 1, 2024 9:00 AM",
		DetailURL:    "/orders/11",
	}
	if !reflect.DeepEqual(row, want) {
		t.Fatalf("row = %+v, want %+v", row, want)
	}
}

func TestBuildTableLastPage(t *testing.T) {
	state := dashboard.State{
		Filters: dto.OrderFilters{Page: 3, PageSize: 10},
		Orders:  ordersRange(21, 3),
		Total:   23,
	}
	p := BuildTable(state, Options{}).Pagination
	if p.From != 21 || p.To != 23 || p.HasNext {
		t.Fatalf("pagination = %+v", p)
	}
}

func TestBuildTableEmpty(t *testing.T) {
	state := dashboard.State{
		Filters: dto.OrderFilters{Search: "sushi", Page: 1, PageSize: 10},
		Loaded:  true,
		Err:     errors.New("boom"),
	}
	table := BuildTable(state, Options{})
	if !table.Empty || table.EmptyMessage != EmptyMessage || len(table.Rows) != 0 {
		t.Fatalf("table = %+v", table)
	}
	if table.Pagination.From != 0 || table.Pagination.To != 0 || table.Pagination.PageCount != 1 {
		t.Fatalf("pagination = %+v", table.Pagination)
	}
	if table.Err != "boom" {
		t.Fatalf("err = %q", table.Err)
	}
}

func TestPageSizeOptionsIncludeActiveSize(t *testing.T) {
	got := withSize([]int{5, 10, 25, 50}, 15)
	if !reflect.DeepEqual(got, []int{5, 10, 15, 25, 50}) {
		t.Fatalf("options = %v", got)
	}
	got = withSize([]int{5, 10}, 10)
	if !reflect.DeepEqual(got, []int{5, 10}) {
		t.Fatalf("options = %v", got)
	}
	got = withSize([]int{5, 10}, 80)
	if !reflect.DeepEqual(got, []int{5, 10, 80}) {
		t.Fatalf("options = %v", got)
	}
}

type fakeUpdater struct {
	patches []dto.OrderPatch
	err     error
	during  func()
}

func (f *fakeUpdater) UpdateOrder(_ context.Context, id dto.ID, patch dto.OrderPatch) (*dto.Order, error) {
	f.patches = append(f.patches, patch)
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &dto.Order{ID: id, Status: *patch.Status}, nil
}

type countingRefresher struct{ n int }

func (r *countingRefresher) Refresh() { r.n++ }

func TestChangeStatusPatchesThenRefreshes(t *testing.T) {
	updater := &fakeUpdater{}
	refresher := &countingRefresher{}
	editor := NewStatusEditor(updater, refresher, nil)

	var busyDuringWrite bool
	updater.during = func() { busyDuringWrite = editor.Updating("7") }

	if err := editor.ChangeStatus(context.Background(), "7", dto.StatusReady); err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	if len(updater.patches) != 1 {
		t.Fatalf("patches = %d", len(updater.patches))
	}
	patch := updater.patches[0]
	if patch.Status == nil || *patch.Status != dto.StatusReady || patch.PreparationNotes != nil {
		t.Fatalf("patch = %+v", patch)
	}
	if refresher.n != 1 {
		t.Fatalf("refreshes = %d", refresher.n)
	}
	if !busyDuringWrite || editor.Updating("7") {
		t.Fatalf("updating flag: during=%v after=%v", busyDuringWrite, editor.Updating("7"))
	}
}

func TestChangeStatusFailureStillRefreshes(t *testing.T) {
	updater := &fakeUpdater{err: errorbank.Network("order api unreachable")}
	refresher := &countingRefresher{}
	editor := NewStatusEditor(updater, refresher, nil)

	err := editor.ChangeStatus(context.Background(), "7", dto.StatusDelivered)
	if !errorbank.Is(err, errorbank.KindNetwork) {
		t.Fatalf("err = %v", err)
	}
	if refresher.n != 1 {
		t.Fatalf("refreshes = %d", refresher.n)
	}
}

func TestChangeStatusRejectsUnknownStatus(t *testing.T) {
	updater := &fakeUpdater{}
	refresher := &countingRefresher{}
	editor := NewStatusEditor(updater, refresher, nil)

	err := editor.ChangeStatus(context.Background(), "7", "cooking")
	if !errorbank.Is(err, errorbank.KindValidation) {
		t.Fatalf("err = %v", err)
	}
	if len(updater.patches) != 0 || refresher.n != 0 {
		t.Fatal("invalid status must not reach the server")
	}
}
