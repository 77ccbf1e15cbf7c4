package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sefazor/guestdrop-backend/internal/models"
	"github.com/sefazor/guestdrop-backend/internal/service"
	"github.com/sefazor/guestdrop-backend/pkg/utils"
)

// GuestHandler serves the participant side: joining, renaming and uploads.
type GuestHandler struct {
	sessionService *service.SessionService
	uploadService  *service.UploadService
	mediaService   *service.MediaService
	validator      *utils.Validator
	logger         *zap.Logger
}

func NewGuestHandler(
	sessionService *service.SessionService,
	uploadService *service.UploadService,
	mediaService *service.MediaService,
	validator *utils.Validator,
	logger *zap.Logger,
) *GuestHandler {
	return &GuestHandler{
		sessionService: sessionService,
		uploadService:  uploadService,
		mediaService:   mediaService,
		validator:      validator,
		logger:         logger,
	}
}

func (h *GuestHandler) Join(c *fiber.Ctx) error {
	var req models.JoinRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	resp, err := h.sessionService.Join(c.UserContext(), c.Params("slug"), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(models.SuccessResponse(resp, "Joined event"))
}

func (h *GuestHandler) GetSession(c *fiber.Ctx) error {
	session, err := h.sessionService.ActiveSession(c.UserContext(), sessionID(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(models.SuccessResponse(session, "Session retrieved successfully"))
}

func (h *GuestHandler) RenameSession(c *fiber.Ctx) error {
	var req models.RenameSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	session, err := h.sessionService.Rename(c.UserContext(), sessionID(c), req.DisplayName)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(models.SuccessResponse(session, "Display name updated"))
}

func (h *GuestHandler) ReserveUpload(c *fiber.Ctx) error {
	var req models.ReserveUploadRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	resp, err := h.uploadService.Reserve(c.UserContext(), sessionID(c), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(models.SuccessResponse(resp, "Upload reserved"))
}

func (h *GuestHandler) FinalizeUpload(c *fiber.Ctx) error {
	item, err := h.uploadService.Finalize(c.UserContext(), sessionID(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(models.SuccessResponse(models.NewMediaResponse(item), "Upload finalized"))
}

func (h *GuestHandler) ListMyMedia(c *fiber.Ctx) error {
	items, err := h.mediaService.ListMyMedia(c.UserContext(), sessionID(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(models.SuccessResponse(items, "Media retrieved successfully"))
}
