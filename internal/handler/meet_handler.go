package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/classbot/nz-schedule-bot/internal/models"
	appErrors "github.com/classbot/nz-schedule-bot/pkg/errors"
	"github.com/classbot/nz-schedule-bot/pkg/response"
)

// ConferenceResolver looks up conferences and records redirect analytics.
type ConferenceResolver interface {
	FindByID(ctx context.Context, id string) (*models.Conference, error)
	RecordVisit(ctx context.Context, conferenceID, deviceType string) error
}

// MeetHandler serves the short conference redirect links embedded in
// schedules.
type MeetHandler struct {
	conferences ConferenceResolver
	logger      *zap.Logger
}

// NewMeetHandler constructs handler.
func NewMeetHandler(conferences ConferenceResolver, logger *zap.Logger) *MeetHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MeetHandler{conferences: conferences, logger: logger}
}

// Redirect resolves a short conference id and forwards the visitor to the
// original meeting URL.
func (h *MeetHandler) Redirect(c *gin.Context) {
	id := c.Param("conferenceId")

	conference, err := h.conferences.FindByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if conference == nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}

	// Analytics must never block the redirect.
	if err := h.conferences.RecordVisit(c.Request.Context(), conference.ID, deviceType(c.GetHeader("User-Agent"))); err != nil {
		h.logger.Warn("record conference visit", zap.String("conference_id", conference.ID), zap.Error(err))
	}

	c.Redirect(http.StatusFound, conference.OriginalConferenceURL)
}

func deviceType(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return "tablet"
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone"):
		return "mobile"
	default:
		return "desktop"
	}
}
