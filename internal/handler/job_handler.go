package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sefazor/guestdrop-backend/internal/models"
	"github.com/sefazor/guestdrop-backend/internal/service"
)

// JobHandler lets an external scheduler trigger background jobs.
type JobHandler struct {
	jobs   *service.JobRegistry
	logger *zap.Logger
}

func NewJobHandler(jobs *service.JobRegistry, logger *zap.Logger) *JobHandler {
	return &JobHandler{jobs: jobs, logger: logger}
}

// RunJob runs the named job synchronously and returns its counters.
func (h *JobHandler) RunJob(c *fiber.Ctx) error {
	params := service.JobParams{
		Limit:   c.QueryInt("limit", 0),
		EventID: c.Query("event_id"),
	}

	result, err := h.jobs.Run(c.UserContext(), c.Params("name"), params)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(models.SuccessResponse(result, "Job finished"))
}
