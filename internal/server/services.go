package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sevasetu/sevasetu/internal/store"
)

// ServiceSummary is the public catalog listing entry.
type ServiceSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ServicesHandler exposes the read-only catalog endpoints.
type ServicesHandler struct {
	Store *store.Store
}

func (h *ServicesHandler) Register(g *echo.Group) {
	g.GET("/services", h.list)
	g.GET("/admin/services", h.listFull)
}

func (h *ServicesHandler) list(c echo.Context) error {
	services, err := h.Store.ListServices(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]ServiceSummary, 0, len(services))
	for _, svc := range services {
		out = append(out, ServiceSummary{Name: svc.Name, Description: svc.Description})
	}
	return c.JSON(http.StatusOK, out)
}

// listFull is the admin variant including keywords and canned responses.
func (h *ServicesHandler) listFull(c echo.Context) error {
	services, err := h.Store.ListServices(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, services)
}
