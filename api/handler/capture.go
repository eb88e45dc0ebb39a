package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/portalshot/capture"
	"github.com/use-agent/portalshot/models"
)

// Capture returns a handler for POST /api/v1/capture.
func Capture(svc *capture.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CaptureRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.CaptureResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		resp, err := svc.Capture(c.Request.Context(), &req)
		if err != nil {
			c.JSON(statusFor(err), resp)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// statusFor translates error codes to HTTP status codes.
func statusFor(err error) int {
	var se *models.SessionError
	if !errors.As(err, &se) {
		return http.StatusInternalServerError
	}
	switch se.Code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeAuth:
		return http.StatusBadGateway // 502
	case models.ErrCodeDriver:
		return http.StatusBadGateway // 502
	case models.ErrCodeTimeout, models.ErrCodeReadinessTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeSessionBusy:
		return http.StatusConflict // 409
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
