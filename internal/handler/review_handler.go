package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/surveyops/review-api/internal/dto"
	"github.com/surveyops/review-api/internal/service"
	"github.com/surveyops/review-api/internal/utils"
	"github.com/surveyops/review-api/internal/workflow"
)

// ReviewHandler exposes review records and workflow transitions over HTTP.
type ReviewHandler struct {
	service service.ReviewService
	logger  zerolog.Logger
}

// NewReviewHandler constructs a review handler.
func NewReviewHandler(service service.ReviewService, logger zerolog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: service,
		logger:  logger.With().Str("component", "review_handler").Logger(),
	}
}

// Register wires record routes.
func (h *ReviewHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Get("/:id/actions", h.actions)
	router.Post("/:id/transitions", h.transition)
	router.Patch("/:id/data", h.editData)
	router.Patch("/:id/assignee", h.reassign)
}

func (h *ReviewHandler) list(c *fiber.Ctx) error {
	var filter dto.RecordListFilter
	if err := c.QueryParser(&filter); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	records, err := h.service.ListRecords(c.UserContext(), filter)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list records")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list records")
	}

	return utils.SendSuccess(c, "records retrieved", records)
}

func (h *ReviewHandler) get(c *fiber.Ctx) error {
	record, err := h.service.GetRecord(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.sendWorkflowError(c, err, "failed to load record")
	}

	return utils.SendSuccess(c, "record retrieved", record)
}

func (h *ReviewHandler) actions(c *fiber.Ctx) error {
	actions, err := h.service.AvailableActions(c.UserContext(), c.Params("id"), userIDFromContext(c))
	if err != nil {
		return h.sendWorkflowError(c, err, "failed to resolve available actions")
	}

	return utils.SendSuccess(c, "available actions retrieved", actions)
}

func (h *ReviewHandler) transition(c *fiber.Ctx) error {
	var payload dto.TransitionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	record, err := h.service.Transition(c.UserContext(), c.Params("id"), payload, userIDFromContext(c))
	if err != nil {
		return h.sendWorkflowError(c, err, "failed to apply transition")
	}

	return utils.SendSuccess(c, "transition applied", record)
}

func (h *ReviewHandler) editData(c *fiber.Ctx) error {
	var payload dto.DataEditRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	record, err := h.service.EditData(c.UserContext(), c.Params("id"), payload, userIDFromContext(c))
	if err != nil {
		return h.sendWorkflowError(c, err, "failed to edit record data")
	}

	return utils.SendSuccess(c, "record data updated", record)
}

func (h *ReviewHandler) reassign(c *fiber.Ctx) error {
	var payload dto.ReassignRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	record, err := h.service.Reassign(c.UserContext(), c.Params("id"), payload, userIDFromContext(c))
	if err != nil {
		return h.sendWorkflowError(c, err, "failed to reassign record")
	}

	return utils.SendSuccess(c, "record reassigned", record)
}

func (h *ReviewHandler) sendWorkflowError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, workflow.ErrInvalidRecord):
		return utils.SendError(c, fiber.StatusNotFound, "record not found")
	case errors.Is(err, workflow.ErrInvalidAction):
		return utils.SendError(c, fiber.StatusBadRequest, "unknown action")
	case errors.Is(err, workflow.ErrInvalidTransition):
		return utils.SendError(c, fiber.StatusBadRequest, "action not allowed from current status")
	case errors.Is(err, workflow.ErrInsufficientPermissions):
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	case errors.Is(err, workflow.ErrMissingNotes):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "notes are required for this action")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "invalid request payload")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(fallback)
		return utils.SendError(c, fiber.StatusInternalServerError, fallback)
	}
}
