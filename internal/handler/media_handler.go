package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sefazor/guestdrop-backend/internal/models"
	"github.com/sefazor/guestdrop-backend/internal/service"
)

// MediaHandler serves the organizer gallery, moderation and facets.
type MediaHandler struct {
	mediaService *service.MediaService
	facetService *service.FacetService
	logger       *zap.Logger
}

func NewMediaHandler(mediaService *service.MediaService, facetService *service.FacetService, logger *zap.Logger) *MediaHandler {
	return &MediaHandler{
		mediaService: mediaService,
		facetService: facetService,
		logger:       logger,
	}
}

func (h *MediaHandler) ListMedia(c *fiber.Ctx) error {
	var filter models.MediaFilter
	if err := c.QueryParser(&filter); err != nil {
		return badRequest(c, "Invalid query parameters")
	}

	page, err := h.mediaService.ListMedia(c.UserContext(), organizerID(c), c.Params("id"), filter)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(models.SuccessResponse(page, "Media retrieved successfully"))
}

func (h *MediaHandler) HideMedia(c *fiber.Ctx) error {
	if err := h.mediaService.Hide(c.UserContext(), organizerID(c), c.Params("id"), c.Params("mediaId")); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(models.SuccessResponse(nil, "Media hidden"))
}

func (h *MediaHandler) UnhideMedia(c *fiber.Ctx) error {
	if err := h.mediaService.Unhide(c.UserContext(), organizerID(c), c.Params("id"), c.Params("mediaId")); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(models.SuccessResponse(nil, "Media restored"))
}

func (h *MediaHandler) DownloadManifest(c *fiber.Ctx) error {
	var filter models.MediaFilter
	if err := c.QueryParser(&filter); err != nil {
		return badRequest(c, "Invalid query parameters")
	}

	entries, err := h.mediaService.DownloadManifest(c.UserContext(), organizerID(c), c.Params("id"), filter)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(models.SuccessResponse(entries, "Download manifest created"))
}

func (h *MediaHandler) ListFacets(c *fiber.Ctx) error {
	facets, err := h.facetService.List(c.UserContext(), organizerID(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(models.SuccessResponse(facets, "Facets retrieved successfully"))
}
