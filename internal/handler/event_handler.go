package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sefazor/guestdrop-backend/internal/models"
	"github.com/sefazor/guestdrop-backend/internal/service"
	"github.com/sefazor/guestdrop-backend/pkg/utils"
)

type EventHandler struct {
	eventService   *service.EventService
	sessionService *service.SessionService
	validator      *utils.Validator
	logger         *zap.Logger
}

func NewEventHandler(eventService *service.EventService, sessionService *service.SessionService, validator *utils.Validator, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		eventService:   eventService,
		sessionService: sessionService,
		validator:      validator,
		logger:         logger,
	}
}

func (h *EventHandler) CreateEvent(c *fiber.Ctx) error {
	var req models.EventRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	event, err := h.eventService.CreateEvent(c.UserContext(), organizerID(c), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(models.SuccessResponse(h.eventService.ToResponse(event), "Event created successfully"))
}

func (h *EventHandler) ListEvents(c *fiber.Ctx) error {
	events, err := h.eventService.ListOrganizerEvents(c.UserContext(), organizerID(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	responses := make([]models.EventResponse, 0, len(events))
	for i := range events {
		responses = append(responses, h.eventService.ToResponse(&events[i]))
	}
	return c.JSON(models.SuccessResponse(responses, "Events retrieved successfully"))
}

func (h *EventHandler) GetEvent(c *fiber.Ctx) error {
	event, err := h.eventService.GetEvent(c.UserContext(), organizerID(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(models.SuccessResponse(h.eventService.ToResponse(event), "Event retrieved successfully"))
}

func (h *EventHandler) ArchiveEvent(c *fiber.Ctx) error {
	event, err := h.eventService.ArchiveEvent(c.UserContext(), organizerID(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(models.SuccessResponse(h.eventService.ToResponse(event), "Event archived"))
}

func (h *EventHandler) GetQRCode(c *fiber.Ctx) error {
	png, err := h.eventService.JoinLinkQR(c.UserContext(), organizerID(c), c.Params("id"), c.QueryInt("size", 0))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}

func (h *EventHandler) ListSessions(c *fiber.Ctx) error {
	sessions, err := h.sessionService.ListSessions(c.UserContext(), organizerID(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(models.SuccessResponse(sessions, "Sessions retrieved successfully"))
}

func (h *EventHandler) DeactivateSession(c *fiber.Ctx) error {
	err := h.sessionService.Deactivate(c.UserContext(), organizerID(c), c.Params("id"), c.Params("sessionId"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(models.SuccessResponse(nil, "Session deactivated"))
}
