package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/surveyops/review-api/internal/dto"
	"github.com/surveyops/review-api/internal/service"
	"github.com/surveyops/review-api/internal/utils"
	"github.com/surveyops/review-api/internal/workflow"
)

// WorkflowHandler exposes the workflow definition and its read-side
// statistics.
type WorkflowHandler struct {
	stats  service.StatsService
	logger zerolog.Logger
}

// NewWorkflowHandler constructs a workflow handler.
func NewWorkflowHandler(stats service.StatsService, logger zerolog.Logger) *WorkflowHandler {
	return &WorkflowHandler{
		stats:  stats,
		logger: logger.With().Str("component", "workflow_handler").Logger(),
	}
}

// Register wires workflow routes.
func (h *WorkflowHandler) Register(router fiber.Router) {
	router.Get("/states", h.states)
	router.Get("/transitions", h.transitions)
	router.Get("/statistics", h.statistics)
	router.Get("/metrics", h.metrics)
	router.Get("/logs", h.logs)
}

func (h *WorkflowHandler) states(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "workflow states retrieved", dto.NewStateResponses(workflow.States()))
}

func (h *WorkflowHandler) transitions(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "workflow transitions retrieved", dto.NewTransitionResponses(workflow.Transitions()))
}

func (h *WorkflowHandler) statistics(c *fiber.Ctx) error {
	statistics, err := h.stats.WorkflowStatistics(c.UserContext())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to compute workflow statistics")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to compute workflow statistics")
	}

	return utils.SendSuccess(c, "workflow statistics retrieved", statistics)
}

func (h *WorkflowHandler) metrics(c *fiber.Ctx) error {
	metrics, err := h.stats.PerformanceMetrics(c.UserContext())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to compute performance metrics")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to compute performance metrics")
	}

	return utils.SendSuccess(c, "performance metrics retrieved", metrics)
}

func (h *WorkflowHandler) logs(c *fiber.Ctx) error {
	var filter dto.LogFilterRequest
	if err := c.QueryParser(&filter); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	logs, err := h.stats.WorkflowLogs(c.UserContext(), filter)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load workflow logs")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load workflow logs")
	}

	return utils.SendSuccess(c, "workflow logs retrieved", logs)
}
