package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classbot/nz-schedule-bot/internal/service"
	"github.com/classbot/nz-schedule-bot/pkg/response"
)

// StatisticsHandler exposes the public usage summary.
type StatisticsHandler struct {
	statistics *service.StatisticsService
}

// NewStatisticsHandler constructs handler.
func NewStatisticsHandler(statistics *service.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{statistics: statistics}
}

// Get returns user and conference visit counts.
func (h *StatisticsHandler) Get(c *gin.Context) {
	stats, err := h.statistics.Statistics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats)
}
