package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/assistenza/helpdesk-gateway/internal/api/dto"
	"github.com/assistenza/helpdesk-gateway/internal/auth"
	"github.com/assistenza/helpdesk-gateway/internal/backend"
	"github.com/assistenza/helpdesk-gateway/internal/domain"
	"github.com/assistenza/helpdesk-gateway/internal/policy"
	"github.com/assistenza/helpdesk-gateway/internal/query"
	"github.com/assistenza/helpdesk-gateway/internal/workflow"
	apperrors "github.com/assistenza/helpdesk-gateway/pkg/util"
)

// TicketsHandler manages ticket listing and workflow endpoints.
type TicketsHandler struct {
	backend    backend.Client
	machine    *workflow.StateMachine
	assignment *workflow.AssignmentWorkflow
	queries    *query.Service
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(client backend.Client, machine *workflow.StateMachine, assignment *workflow.AssignmentWorkflow, queries *query.Service) *TicketsHandler {
	return &TicketsHandler{backend: client, machine: machine, assignment: assignment, queries: queries}
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	result, err := h.queries.Tickets(c.UserContext(), actor, parseSelection(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": listResponse(result)})
}

// ListDrafts GET /tickets/drafts.
func (h *TicketsHandler) ListDrafts(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	items, err := h.queries.MyDrafts(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketItems(items)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, t, err := h.load(c)
	if err != nil {
		return err
	}
	perms := policy.Resolve(actor, t, policy.OwnerOf(t))
	if !perms.CanView {
		return apperrors.NewAuthorizationError("you may not view this ticket")
	}
	return c.JSON(fiber.Map{"data": dto.TicketItem{
		Ticket:      dto.NewTicketView(t),
		Permissions: dto.NewPermissionsView(perms),
	}})
}

// Accept POST /tickets/:id/accept.
func (h *TicketsHandler) Accept(c *fiber.Ctx) error {
	actor, t, err := h.load(c)
	if err != nil {
		return err
	}
	updated, err := h.machine.Accept(c.UserContext(), actor, t)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketView(updated)})
}

// Solve POST /tickets/:id/solve.
func (h *TicketsHandler) Solve(c *fiber.Ctx) error {
	actor, t, err := h.load(c)
	if err != nil {
		return err
	}
	updated, err := h.machine.Solve(c.UserContext(), actor, t)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketView(updated)})
}

// Assign POST /tickets/:id/assign.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	return h.reassign(c, h.assignment.Assign)
}

// Reject POST /tickets/:id/reject.
func (h *TicketsHandler) Reject(c *fiber.Ctx) error {
	return h.reassign(c, h.assignment.Reject)
}

// Escalate POST /tickets/:id/escalate.
func (h *TicketsHandler) Escalate(c *fiber.Ctx) error {
	return h.reassign(c, h.assignment.Escalate)
}

// EligibleAssignees GET /tickets/:id/assignees.
func (h *TicketsHandler) EligibleAssignees(c *fiber.Ctx) error {
	actor, t, err := h.load(c)
	if err != nil {
		return err
	}
	mode := workflow.ModeAssign
	if strings.EqualFold(c.Query("mode"), string(workflow.ModeReassign)) {
		mode = workflow.ModeReassign
	}
	accounts, err := h.assignment.EligibleAssignees(c.UserContext(), actor, t, mode)
	if err != nil {
		return err
	}
	views := make([]dto.AccountView, 0, len(accounts))
	for _, account := range accounts {
		views = append(views, dto.NewAccountView(account))
	}
	return c.JSON(fiber.Map{"data": views})
}

// DeleteTicket DELETE /tickets/:id. The confirm query flag is the
// explicit confirmation step.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	actor, t, err := h.load(c)
	if err != nil {
		return err
	}
	confirmed, _ := strconv.ParseBool(c.Query("confirm"))
	if err := h.machine.Delete(c.UserContext(), actor, t, confirmed); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type reassignFunc func(ctx context.Context, actor domain.Actor, t *domain.Ticket, assigneeID string) (*domain.Ticket, error)

func (h *TicketsHandler) reassign(c *fiber.Ctx, run reassignFunc) error {
	actor, t, err := h.load(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.AssigneeID == "" {
		return apperrors.NewValidationError("assigneeId is required", nil)
	}
	updated, err := run(c.UserContext(), actor, t, req.AssigneeID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketView(updated)})
}

func (h *TicketsHandler) load(c *fiber.Ctx) (domain.Actor, *domain.Ticket, error) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return domain.Actor{}, nil, apperrors.NewUnauthorized("authentication required")
	}
	t, err := h.backend.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return domain.Actor{}, nil, err
	}
	return actor, t, nil
}

func parseSelection(c *fiber.Ctx) query.Selection {
	sel := query.Selection{
		Page:      c.QueryInt("page", 0),
		Size:      c.QueryInt("size", 0),
		SortField: c.Query("sort"),
		SortDesc:  strings.EqualFold(c.Query("direction"), "desc"),
		Search:    c.Query("search"),
	}
	if raw := c.Query("status"); raw != "" {
		status := domain.TicketStatus(strings.ToUpper(raw))
		if status.Valid() {
			sel.Status = &status
		}
	}
	if raw := c.Query("priority"); raw != "" {
		priority := domain.TicketPriority(strings.ToUpper(raw))
		if priority.Valid() {
			sel.Priority = &priority
		}
	}
	return sel
}

func ticketItems(items []query.Item) []dto.TicketItem {
	views := make([]dto.TicketItem, 0, len(items))
	for i := range items {
		t := items[i].Ticket
		views = append(views, dto.TicketItem{
			Ticket:      dto.NewTicketView(&t),
			Permissions: dto.NewPermissionsView(items[i].Permissions),
		})
	}
	return views
}

func listResponse(result *query.Result) dto.TicketListResponse {
	return dto.TicketListResponse{
		Items:      ticketItems(result.Items),
		Page:       result.Page,
		Size:       result.Size,
		TotalItems: result.TotalItems,
		TotalPages: result.TotalPages,
	}
}
