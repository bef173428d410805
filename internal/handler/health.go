package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthHandler answers load balancer and client liveness probes.
type HealthHandler struct {
	Service   string
	Endpoints []string
	Now       func() time.Time
}

func NewHealthHandler(service string, endpoints []string) *HealthHandler {
	return &HealthHandler{Service: service, Endpoints: endpoints, Now: time.Now}
}

// Health reports the service as online together with its public endpoints.
func (h *HealthHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":    "online",
		"service":   h.Service,
		"timestamp": timestamp(h.Now()),
		"endpoints": h.Endpoints,
	})
}
