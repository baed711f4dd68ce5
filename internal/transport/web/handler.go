package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/dashboard"
	"github.com/Additional-Code/orderdesk/internal/dto"
	"github.com/Additional-Code/orderdesk/internal/orderdetail"
	"github.com/Additional-Code/orderdesk/internal/orderlist"
	"github.com/Additional-Code/orderdesk/pkg/errorbank"
)

var webTracer = otel.Tracer("github.com/Additional-Code/orderdesk/transport/web")

const (
	// pageWait bounds how long a full page render waits for an in-flight fetch.
	pageWait  = 2 * time.Second
	keepAlive = 25 * time.Second
)

// OrderService is what the dashboard needs from the order API.
type OrderService interface {
	dashboard.Lister
	orderdetail.Service
}

// Handler serves the dashboard.
type Handler struct {
	svc      OrderService
	sessions *Registry
	renderer *Renderer
	cfg      config.Dashboard
	logger   *zap.Logger
}

// NewHandler builds the dashboard Handler.
func NewHandler(svc OrderService, sessions *Registry, renderer *Renderer, cfg config.Config, logger *zap.Logger) *Handler {
	return &Handler{
		svc:      svc,
		sessions: sessions,
		renderer: renderer,
		cfg:      cfg.Dashboard,
		logger:   logger.Named("dashboard"),
	}
}

// Register mounts the dashboard routes and installs the template renderer.
func (h *Handler) Register(e *echo.Echo) {
	e.Renderer = h.renderer

	e.GET("/", h.index)
	e.GET("/orders/:id", h.detail)
	e.POST("/orders/:id", h.saveDetail)
	e.POST("/orders/:id/status", h.changeStatus)

	g := e.Group("/dashboard")
	g.GET("/orders", h.ordersFragment)
	g.GET("/events", h.events)
	g.POST("/search", h.search)
	g.POST("/search/clear", h.clearSearch)
	g.POST("/filters/:field", h.setFilter)
	g.POST("/page", h.setPage)
	g.POST("/page-size", h.setPageSize)
	g.POST("/refresh", h.refresh)
	g.POST("/error/dismiss", h.dismissError)
}

func (h *Handler) table(s *Session) orderlist.Table {
	return h.tableFor(s, s.Controller.Snapshot())
}

func (h *Handler) tableFor(s *Session, st dashboard.State) orderlist.Table {
	return orderlist.BuildTable(st, orderlist.Options{
		PageSizeOptions: h.cfg.PageSizeOptions,
		Updating:        s.Editor.Updating,
	})
}

// settle waits briefly for an in-flight fetch so plain page loads show data.
func settle(c echo.Context, s *Session) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), pageWait)
	defer cancel()
	_ = s.Controller.WaitContext(ctx)
}

func (h *Handler) index(c echo.Context) error {
	s := h.sessions.Session(c)
	settle(c, s)
	return c.Render(http.StatusOK, "dashboard.html", h.table(s))
}

func (h *Handler) ordersFragment(c echo.Context) error {
	s := h.sessions.Session(c)
	settle(c, s)
	return c.Render(http.StatusOK, "orders", h.table(s))
}

// done answers a dashboard action: htmx callers get the update over SSE,
// plain form posts go back to the list.
func done(c echo.Context) error {
	if c.Request().Header.Get("HX-Request") == "true" {
		return c.NoContent(http.StatusNoContent)
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) search(c echo.Context) error {
	s := h.sessions.Session(c)
	s.Controller.InputSearch(c.FormValue("search"))
	return done(c)
}

func (h *Handler) clearSearch(c echo.Context) error {
	s := h.sessions.Session(c)
	s.Controller.ClearSearch()
	return done(c)
}

func (h *Handler) setFilter(c echo.Context) error {
	s := h.sessions.Session(c)
	value := strings.TrimSpace(c.FormValue("value"))

	switch c.Param("field") {
	case "status":
		var status dto.OrderStatus
		if value != "" {
			parsed, err := dto.ParseStatus(value)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			status = parsed
		}
		s.Controller.SetStatus(status)
	case "orderType":
		var orderType dto.OrderType
		if value != "" {
			parsed, err := dto.ParseOrderType(value)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			orderType = parsed
		}
		s.Controller.SetOrderType(orderType)
	case "customerName":
		s.Controller.SetCustomerName(value)
	default:
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown filter %q", c.Param("field")))
	}
	return done(c)
}

func (h *Handler) setPage(c echo.Context) error {
	page, err := strconv.Atoi(c.FormValue("page"))
	if err != nil || page < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "page must be a non-negative integer")
	}
	h.sessions.Session(c).Controller.SetUIPage(page)
	return done(c)
}

func (h *Handler) setPageSize(c echo.Context) error {
	size, err := strconv.Atoi(c.FormValue("pageSize"))
	if err != nil || size <= 0 || size > dto.MaxPageSize {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("pageSize must be between 1 and %d", dto.MaxPageSize))
	}
	h.sessions.Session(c).Controller.SetPageSize(size)
	return done(c)
}

func (h *Handler) refresh(c echo.Context) error {
	h.sessions.Session(c).Controller.Refresh()
	return done(c)
}

func (h *Handler) dismissError(c echo.Context) error {
	h.sessions.Session(c).Controller.DismissError()
	return done(c)
}

func (h *Handler) changeStatus(c echo.Context) error {
	s := h.sessions.Session(c)
	id := dto.ID(c.Param("id"))
	status := dto.OrderStatus(strings.TrimSpace(c.FormValue("status")))

	ctx, span := webTracer.Start(c.Request().Context(), "dashboard.changeStatus", trace.WithAttributes(
		attribute.String("order.id", id.String()),
		attribute.String("order.status", string(status)),
	))
	defer span.End()

	if err := s.Editor.ChangeStatus(ctx, id, status); err != nil {
		span.RecordError(err)
		s.Controller.ReportError(fmt.Errorf("updating order %s: %s", id, errorbank.From(err).Message()))
	}
	return done(c)
}

type detailPage struct {
	View     orderdetail.View
	Statuses []dto.OrderStatus
}

func (h *Handler) detail(c echo.Context) error {
	id := dto.ID(c.Param("id"))

	ctx, span := webTracer.Start(c.Request().Context(), "dashboard.orderDetail", trace.WithAttributes(
		attribute.String("order.id", id.String()),
	))
	defer span.End()

	wf := orderdetail.New(h.svc, id, h.logger, h.cfg.RefetchAfterWrite)
	_ = wf.Load(ctx)
	return h.renderDetail(c, wf.View())
}

func (h *Handler) saveDetail(c echo.Context) error {
	id := dto.ID(c.Param("id"))

	ctx, span := webTracer.Start(c.Request().Context(), "dashboard.saveDetail", trace.WithAttributes(
		attribute.String("order.id", id.String()),
	))
	defer span.End()

	wf := orderdetail.New(h.svc, id, h.logger, h.cfg.RefetchAfterWrite)
	if err := wf.Load(ctx); err != nil {
		return h.renderDetail(c, wf.View())
	}
	wf.Edit(dto.OrderStatus(strings.TrimSpace(c.FormValue("status"))), c.FormValue("preparationNotes"))
	if err := wf.Save(ctx); err != nil {
		span.RecordError(err)
	}
	return h.renderDetail(c, wf.View())
}

func (h *Handler) renderDetail(c echo.Context, v orderdetail.View) error {
	code := http.StatusOK
	if v.Phase == orderdetail.PhaseNotFound {
		code = http.StatusNotFound
	}
	return c.Render(code, "detail.html", detailPage{View: v, Statuses: dto.Statuses()})
}
