package handler

import (
	"net/http"
	"time"

	"procurement/internal/middleware"
	"procurement/internal/service"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
	auth              *middleware.Auth
	now               func() time.Time
}

func NewStatisticsHandler(statisticsService service.StatisticsService, auth *middleware.Auth) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService, auth: auth, now: time.Now}
}

func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	statsGroup := router.Group("/api/statistics")
	{
		statsGroup.GET("/procurement", h.auth.RequireRole(buyerRoles...), h.GetProcurementStatistics)
	}
}

// @Summary      Get procurement statistics
// @Description  RFP counts by status, quotation count, purchase order value and paid value in a time range
// @Tags         Statistics
// @Produce      json
// @Param        start_date query string false "Start Date (RFC3339), defaults to the first day of the month"
// @Param        end_date   query string false "End Date (RFC3339), defaults to now"
// @Success      200 {object} response.Response
// @Failure      400 {object} response.Response "Invalid date format"
// @Failure      401 {object} response.Response "Unauthorized"
// @Security     BearerAuth
// @Router       /api/statistics/procurement [get]
func (h *StatisticsHandler) GetProcurementStatistics(c *gin.Context) {
	now := h.now()
	startDate := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	endDate := now

	if raw := c.Query("start_date"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid start_date format, expected RFC3339"))
			return
		}
		startDate = parsed
	}
	if raw := c.Query("end_date"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid end_date format, expected RFC3339"))
			return
		}
		endDate = parsed
	}

	stats, err := h.statisticsService.GetProcurementStatistics(c.Request.Context(), startDate, endDate)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
