package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/assistenza/helpdesk-gateway/internal/api/dto"
	"github.com/assistenza/helpdesk-gateway/internal/auth"
	"github.com/assistenza/helpdesk-gateway/internal/domain"
	"github.com/assistenza/helpdesk-gateway/internal/session"
	"github.com/assistenza/helpdesk-gateway/internal/workflow"
	apperrors "github.com/assistenza/helpdesk-gateway/pkg/util"
)

// SessionsHandler manages draft editing sessions.
type SessionsHandler struct {
	sessions *session.Manager
	machine  *workflow.StateMachine
}

// NewSessionsHandler constructs handler.
func NewSessionsHandler(sessions *session.Manager, machine *workflow.StateMachine) *SessionsHandler {
	return &SessionsHandler{sessions: sessions, machine: machine}
}

// Open POST /sessions.
func (h *SessionsHandler) Open(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.OpenSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	s, err := h.sessions.Open(c.UserContext(), actor, req.TicketID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewSessionView(s)})
}

// Get GET /sessions/:id.
func (h *SessionsHandler) Get(c *fiber.Ctx) error {
	s, err := h.ownSession(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionView(s)})
}

// SetField PATCH /sessions/:id/fields.
func (h *SessionsHandler) SetField(c *fiber.Ctx) error {
	s, err := h.ownSession(c)
	if err != nil {
		return err
	}
	var req dto.SetFieldRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Field == "" {
		return apperrors.NewValidationError("field is required", nil)
	}
	if err := s.SetField(c.UserContext(), domain.FieldName(req.Field), req.Value); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionView(s)})
}

// Finalize POST /sessions/:id/finalize.
func (h *SessionsHandler) Finalize(c *fiber.Ctx) error {
	s, err := h.ownSession(c)
	if err != nil {
		return err
	}
	ticket, err := h.machine.Finalize(c.UserContext(), s)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketView(ticket)})
}

// Close DELETE /sessions/:id.
func (h *SessionsHandler) Close(c *fiber.Ctx) error {
	s, err := h.ownSession(c)
	if err != nil {
		return err
	}
	h.sessions.Close(s.ID())
	return c.SendStatus(fiber.StatusNoContent)
}

// ownSession loads the session and checks it belongs to the caller.
// Foreign sessions look like missing ones.
func (h *SessionsHandler) ownSession(c *fiber.Ctx) (*session.FormSession, error) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	s, found := h.sessions.Get(c.Params("id"))
	if !found || s.Actor().ID != actor.ID {
		return nil, apperrors.NewNotFound("session", nil)
	}
	return s, nil
}
