package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gustwatch/gustwatch/internal/domain/alert"
	"github.com/gustwatch/gustwatch/internal/domain/weather"
	apperrors "github.com/gustwatch/gustwatch/pkg/errors"
)

// Handler wires the HTTP transport to domain services.
type Handler struct {
	alertSvc   alert.Service
	weatherSvc weather.Service
	logger     *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(alertSvc alert.Service, weatherSvc weather.Service, logger *slog.Logger) *Handler {
	return &Handler{
		alertSvc:   alertSvc,
		weatherSvc: weatherSvc,
		logger:     logger.With("component", "http.handler"),
	}
}

type sendAlertsRequest struct {
	Level     string   `json:"level"`
	WindSpeed *float64 `json:"windSpeed"`
	Time      string   `json:"time"`
	Message   string   `json:"message"`
	Place     string   `json:"place"`
}

// SendAlerts triggers a manual fan-out over all active subscribers.
func (h *Handler) SendAlerts(c *gin.Context) {
	var req sendAlertsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	if req.WindSpeed == nil || *req.WindSpeed < 0 || *req.WindSpeed > 300 {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request",
			"windSpeed must be a number between 0 and 300", nil))
		return
	}

	var at time.Time
	if req.Time != "" {
		parsed, err := time.Parse(time.RFC3339, req.Time)
		if err != nil {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request",
				"time must be an RFC 3339 timestamp", err))
			return
		}
		at = parsed
	}

	report, err := h.alertSvc.SendManual(c.Request.Context(), alert.ManualAlert{
		Level:        req.Level,
		WindSpeedKMH: *req.WindSpeed,
		Time:         at,
		Message:      req.Message,
		Place:        req.Place,
	})
	if err != nil {
		abortWithError(c, httpErrorFor(err, "send_failed"))
		return
	}
	if report.Attempted > 0 && report.Delivered == 0 {
		abortWithError(c, NewHTTPError(http.StatusBadGateway, "delivery_failed",
			fmt.Sprintf("all %d delivery attempts failed", report.Attempted), nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"attempted": report.Attempted,
		"delivered": report.Delivered,
		"results":   report.Results,
	})
}

// Weather returns the current snapshot, serving from the short-lived
// cache when fresh.
func (h *Handler) Weather(c *gin.Context) {
	snap, err := h.weatherSvc.Snapshot(c.Request.Context())
	if err != nil {
		abortWithError(c, httpErrorFor(err, "weather_failed"))
		return
	}

	cacheState := "MISS"
	if snap.FromCache {
		cacheState = "HIT"
	}
	c.Header("X-Cache", cacheState)
	c.JSON(http.StatusOK, gin.H{
		"current":  snap.Current,
		"forecast": snap.Forecast,
		"provider": snap.Provider,
	})
}

// CreateSubscriber handles opt-in and settings updates.
func (h *Handler) CreateSubscriber(c *gin.Context) {
	var sub alert.Subscriber
	if err := c.ShouldBindJSON(&sub); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}

	stored, err := h.alertSvc.Subscribe(c.Request.Context(), sub)
	if err != nil {
		abortWithError(c, httpErrorFor(err, "subscribe_failed"))
		return
	}
	c.JSON(http.StatusOK, stored)
}

// GetSubscriber returns one subscriber by id.
func (h *Handler) GetSubscriber(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "id must be a UUID", err))
		return
	}

	sub, err := h.alertSvc.GetSubscriber(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, httpErrorFor(err, "subscriber_failed"))
		return
	}
	c.JSON(http.StatusOK, sub)
}

// TestAlert pushes a test alert through the full pipeline for one
// subscriber.
func (h *Handler) TestAlert(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "id must be a UUID", err))
		return
	}

	result, err := h.alertSvc.SendTest(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, httpErrorFor(err, "test_failed"))
		return
	}
	c.JSON(http.StatusOK, result)
}

// Unsubscribe verifies the signed opt-out token from an email footer.
func (h *Handler) Unsubscribe(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "token is required", nil))
		return
	}

	id, err := h.alertSvc.Unsubscribe(c.Request.Context(), token)
	if err != nil {
		abortWithError(c, httpErrorFor(err, "unsubscribe_failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "subscriberId": id})
}

// Healthz reports liveness.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// httpErrorFor maps domain error codes onto transport statuses. Weather
// provider failures count as our own fault (500); only failed delivery
// forwarding surfaces as 502.
func httpErrorFor(err error, fallbackCode string) *HTTPError {
	status := http.StatusInternalServerError
	code := fallbackCode
	switch {
	case apperrors.IsCode(err, "invalid_input"):
		status = http.StatusBadRequest
		code = "invalid_request"
	case apperrors.IsCode(err, "invalid_token"):
		status = http.StatusBadRequest
		code = "invalid_token"
	case apperrors.IsCode(err, "not_found"):
		status = http.StatusNotFound
		code = "not_found"
	case apperrors.IsCode(err, "missing_config"):
		code = "missing_config"
	case apperrors.IsCode(err, "weather_unavailable"):
		code = "weather_unavailable"
	}
	return NewHTTPError(status, code, errMessage(err), err)
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
