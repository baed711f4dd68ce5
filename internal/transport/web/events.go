package web

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/dashboard"
)

// events streams rendered list fragments to the browser as the session's
// dashboard state changes.
func (h *Handler) events(c echo.Context) error {
	s := h.sessions.Session(c)

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	// Only the latest snapshot matters; a slow reader skips intermediate ones.
	updates := make(chan dashboard.State, 1)
	unsubscribe := s.Controller.Subscribe(func(st dashboard.State) {
		for {
			select {
			case updates <- st:
				return
			default:
				select {
				case <-updates:
				default:
				}
			}
		}
	})
	defer unsubscribe()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.sessions.Touch(s)
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return nil
			}
			w.Flush()
		case st := <-updates:
			html, err := h.renderer.Fragment("orders", h.tableFor(s, st))
			if err != nil {
				h.logger.Error("rendering orders fragment failed", zap.Error(err))
				continue
			}
			if err := writeEvent(w, "orders", html); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

// writeEvent writes one SSE event; every payload line gets its own data field.
func writeEvent(w io.Writer, event, data string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "event: %s\n", event)
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: ")
		b.WriteString(strings.TrimRight(line, "\r"))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}
