package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/classbot/nz-schedule-bot/internal/models"
	"github.com/classbot/nz-schedule-bot/internal/service"
	appErrors "github.com/classbot/nz-schedule-bot/pkg/errors"
	"github.com/classbot/nz-schedule-bot/pkg/response"
)

// RequestCounter tracks served schedule requests for the statistics page.
type RequestCounter interface {
	Increment(ctx context.Context) error
}

// ScheduleHandler exposes the cached schedule over HTTP.
type ScheduleHandler struct {
	schedules *service.ScheduleService
	requests  RequestCounter
	now       func() time.Time
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(schedules *service.ScheduleService, requests RequestCounter) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules, requests: requests, now: time.Now}
}

// Get returns the lessons for one class and date. The date defaults to today
// (UTC) when the query parameter is absent.
func (h *ScheduleHandler) Get(c *gin.Context) {
	class := models.Class(c.Param("class"))
	if !class.Valid() {
		response.Error(c, appErrors.New(appErrors.ErrValidation.Code, http.StatusBadRequest, "unknown class"))
		return
	}

	date := c.DefaultQuery("date", h.now().UTC().Format("2006-01-02"))
	if _, err := time.Parse("2006-01-02", date); err != nil {
		response.Error(c, appErrors.New(appErrors.ErrValidation.Code, http.StatusBadRequest, "date must be YYYY-MM-DD"))
		return
	}

	lessons, err := h.schedules.GetSchedule(c.Request.Context(), class, date)
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.requests != nil {
		_ = h.requests.Increment(c.Request.Context())
	}

	meta := map[string]interface{}{"date": date}
	if updatedAt, err := h.schedules.UpdatedAt(c.Request.Context(), class); err == nil && updatedAt != nil {
		meta["updatedAt"] = updatedAt.UTC().Format(time.RFC3339)
	}

	response.JSON(c, http.StatusOK, lessons, meta)
}
