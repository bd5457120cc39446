package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/agency-queue/internal/service"
)

// StatsHandler serves live queue statistics for polling dashboards.
type StatsHandler struct {
	stats *service.StatsService
}

// NewStatsHandler constructs handler.
func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// Stats GET /agencies/:agencyID/stats.
func (h *StatsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.stats.Stats(c.UserContext(), c.Params("agencyID"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}
