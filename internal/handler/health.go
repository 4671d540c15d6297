package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health answers liveness probes. It deliberately touches no backend: a
// gateway with a flapping database should still report alive so the
// orchestrator does not restart it into the same outage.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
