package handlers

import (
	"embed"
	"html/template"
	"net/http"

	"screener-web/internal/services"
	"screener-web/pkg/errors"
)

//go:embed templates/*.html
var templateFS embed.FS

// LoadTemplates parses the embedded page and fragment templates.
func LoadTemplates() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/*.html")
}

// BaseHandler provides common functionality and dependencies for all handlers
type BaseHandler struct {
	services *services.Services
}

// NewBaseHandler creates a new base handler with the required service dependencies
func NewBaseHandler(services *services.Services) *BaseHandler {
	return &BaseHandler{
		services: services,
	}
}

// GetServices returns the services instance
func (h *BaseHandler) GetServices() *services.Services {
	return h.services
}

// Page carries the fields the shared layout reads.
type Page struct {
	Title string
	Nav   string
	Error string
}

// pageError maps err to the status code and inline message of an HTML page.
func pageError(err error) (int, string) {
	appErr := errors.As(err)
	if appErr.Code == errors.ErrInternalServer.Code {
		return http.StatusInternalServerError, errors.ErrInternalServer.Message
	}
	return appErr.Status, appErr.Message
}

// Handlers holds all handler instances
type Handlers struct {
	Screener *ScreenerHandler
	Backtest *BacktestHandler
	Status   *StatusHandler
	API      *APIHandler
}

// NewHandlers creates and returns all handler instances
func NewHandlers(services *services.Services, tmpl *template.Template) *Handlers {
	base := NewBaseHandler(services)
	return &Handlers{
		Screener: NewScreenerHandler(base),
		Backtest: NewBacktestHandler(base),
		Status:   NewStatusHandler(base, tmpl),
		API:      NewAPIHandler(base),
	}
}
