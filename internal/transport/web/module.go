package web

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/cache"
	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/ordersapi"
)

// Module wires the dashboard web handlers.
var Module = fx.Module("web",
	fx.Provide(
		func(c *ordersapi.Client) OrderService { return c },
		func(svc OrderService, prefs cache.Store, cfg config.Config, logger *zap.Logger) *Registry {
			return NewRegistry(svc, prefs, cfg, logger)
		},
		NewRenderer,
		NewHandler,
	),
	fx.Invoke(func(lc fx.Lifecycle, sessions *Registry) {
		lc.Append(fx.Hook{OnStart: sessions.Start, OnStop: sessions.Stop})
	}),
	fx.Invoke(func(e *echo.Echo, h *Handler) {
		h.Register(e)
	}),
)
