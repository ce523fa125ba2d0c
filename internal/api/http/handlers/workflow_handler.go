package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/fieldserve/workflow-service/internal/api/dto"
	"github.com/fieldserve/workflow-service/internal/auth"
	"github.com/fieldserve/workflow-service/internal/service"
	"github.com/fieldserve/workflow-service/internal/workflow"
	apperrors "github.com/fieldserve/workflow-service/pkg/util/errorutil"
)

// WorkflowHandler exposes ticket lifecycle endpoints.
type WorkflowHandler struct {
	service *service.WorkflowService
}

// NewWorkflowHandler constructs handler.
func NewWorkflowHandler(workflowService *service.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{service: workflowService}
}

// CreateTicket POST /tickets.
func (h *WorkflowHandler) CreateTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), actor, service.TicketCreateInput{
		CustomerID:  req.CustomerID,
		AssetID:     req.AssetID,
		ZoneID:      req.ZoneID,
		OwnerID:     req.OwnerID,
		SubOwnerID:  req.SubOwnerID,
		AssigneeID:  req.AssigneeID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.NewTicketResponse(ticket, workflow.NextStatuses(ticket.Status)),
	})
}

// GetTicket GET /tickets/:id.
func (h *WorkflowHandler) GetTicket(c *fiber.Ctx) error {
	if _, ok := auth.ActorFromContext(c); !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := h.service.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.NewTicketResponse(ticket, workflow.NextStatuses(ticket.Status)),
	})
}

// RequestTransition POST /tickets/:id/transition.
func (h *WorkflowHandler) RequestTransition(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}

	result, err := h.service.RequestTransition(c.UserContext(), actor, service.TransitionInput{
		TicketID:        c.Params("id"),
		RequestedStatus: req.Status,
		Note:            req.Note,
		Sample:          req.Location.ToSample(),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.TransitionResponse{
			Ticket:   dto.NewTicketResponse(result.Ticket, workflow.NextStatuses(result.Ticket.Status)),
			History:  dto.NewHistoryEntryResponse(result.History),
			Warnings: result.Warnings,
		},
	})
}

// ListHistory GET /tickets/:id/history.
func (h *WorkflowHandler) ListHistory(c *fiber.Ctx) error {
	if _, ok := auth.ActorFromContext(c); !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	limit := queryInt(c, "limit", 100)
	offset := queryInt(c, "offset", 0)

	entries, err := h.service.ListHistory(c.UserContext(), c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.HistoryEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.NewHistoryEntryResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func queryInt(c *fiber.Ctx, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
