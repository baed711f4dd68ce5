package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/orderdesk/pkg/errorbank"
)

func newContext() (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestBuildSuccessWritesRawData(t *testing.T) {
	c, rec := newContext()
	err := New(c).
		WithStatus(http.StatusCreated).
		WithHeader("Location", "/orders/1").
		WithData(map[string]int{"total": 3}).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusCreated || rec.Header().Get("Location") != "/orders/1" {
		t.Fatalf("code=%d headers=%v", rec.Code, rec.Header())
	}
	var body map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["total"] != 3 {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestBuildErrorUsesKindStatus(t *testing.T) {
	c, rec := newContext()
	if err := New(c).WithError(errorbank.NotFound("order not found", errorbank.WithDetail("id", "9"))).Build(); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("code = %d", rec.Code)
	}
	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Kind != "not_found" || body.Error.Message != "order not found" || body.Error.Details["id"] != "9" {
		t.Fatalf("body = %+v", body)
	}
}

func TestBuildWithoutDataIsNoContent(t *testing.T) {
	c, rec := newContext()
	if err := New(c).WithStatus(http.StatusNoContent).Build(); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Fatalf("code=%d body=%q", rec.Code, rec.Body.String())
	}
}
