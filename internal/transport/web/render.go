package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/orderdesk/internal/presentation/format"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer executes the dashboard templates. It satisfies echo.Renderer.
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	loc := time.Local
	funcs := template.FuncMap{
		"money":    format.Money,
		"datetime": func(t time.Time) string { return format.DateTime(t, loc) },
		"optional": func(t *time.Time) string { return format.OptionalDateTime(t, loc) },
		"label":    func(v any) string { return format.Label(fmt.Sprint(v)) },
		"decimal":  format.MoneyDecimal,
	}
	tmpl, err := template.New("web").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse dashboard templates: %w", err)
	}
	return &Renderer{templates: tmpl}, nil
}

// Render implements echo.Renderer.
func (r *Renderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

// Fragment renders name into a string.
func (r *Renderer) Fragment(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
