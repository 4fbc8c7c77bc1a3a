package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/surveyops/review-api/internal/service"
	"github.com/surveyops/review-api/internal/utils"
)

// ImportHandler triggers importer runs on demand.
type ImportHandler struct {
	importer service.ImportService
	logger   zerolog.Logger
}

// NewImportHandler constructs an import handler.
func NewImportHandler(importer service.ImportService, logger zerolog.Logger) *ImportHandler {
	return &ImportHandler{
		importer: importer,
		logger:   logger.With().Str("component", "import_handler").Logger(),
	}
}

// Register wires import routes.
func (h *ImportHandler) Register(router fiber.Router) {
	router.Post("/run", h.run)
}

func (h *ImportHandler) run(c *fiber.Ctx) error {
	summary, err := h.importer.Run(c.UserContext())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("import run failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "import run failed")
	}

	return utils.SendSuccess(c, "import run completed", summary)
}
