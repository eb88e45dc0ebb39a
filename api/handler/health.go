package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/portalshot/capture"
	"github.com/use-agent/portalshot/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health. Status is "busy" while a
// capture holds the session.
func Health(svc *capture.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := svc.Stats()

		status := "healthy"
		if st.Capturing {
			status = "busy"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Uptime:    st.Uptime.Round(time.Second).String(),
			Driver:    st.Backend,
			Capturing: st.Capturing,
			Captures:  st.Captures,
			Failures:  st.Failures,
			Version:   Version,
		})
	}
}
