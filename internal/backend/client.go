// Package backend adapts the external ticketing REST service. The rest
// of the gateway depends only on the Client interface; the HTTP
// implementation and the error-message rewriting live here.
package backend

import (
	"context"

	"github.com/assistenza/helpdesk-gateway/internal/domain"
)

// TicketRequest is the write payload for create/update calls. It
// mirrors the ticket entity; status is always an explicit literal.
type TicketRequest struct {
	Title            string                `json:"title"`
	Description      string                `json:"description"`
	CategoryID       string                `json:"categoryId"`
	SupportServiceID string                `json:"supportServiceId"`
	Priority         domain.TicketPriority `json:"priority"`
	Email            string                `json:"email"`
	FiscalCode       string                `json:"fiscalCode"`
	PhoneNumber      string                `json:"phoneNumber"`
	Status           domain.TicketStatus   `json:"status"`
	AssignedToID     *string               `json:"assignedToId,omitempty"`
}

// ListParams are the backend's ticket listing parameters.
type ListParams struct {
	Page     int
	Size     int
	Sort     string
	Status   *domain.TicketStatus
	Priority *domain.TicketPriority
	Search   string
}

// Client is the consumed surface of the external REST backend.
type Client interface {
	GetTicket(ctx context.Context, id string) (*domain.Ticket, error)
	CreateTicket(ctx context.Context, req TicketRequest) (*domain.Ticket, error)
	UpdateTicket(ctx context.Context, id string, req TicketRequest) (*domain.Ticket, error)
	DeleteTicket(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error)
	Assign(ctx context.Context, id, helperID string) (*domain.Ticket, error)
	Reject(ctx context.Context, id, newAssigneeID string) (*domain.Ticket, error)
	Escalate(ctx context.Context, id, newAssigneeID string) (*domain.Ticket, error)
	Accept(ctx context.Context, id string) (*domain.Ticket, error)
	ListTickets(ctx context.Context, params ListParams) (*domain.TicketPage, error)
	ListMyDrafts(ctx context.Context) ([]domain.Ticket, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListServicesByCategory(ctx context.Context, categoryID string) ([]domain.SupportService, error)
	ListStaff(ctx context.Context) ([]domain.Account, error)
	ListUsersByRole(ctx context.Context, role domain.Role) ([]domain.Account, error)
}

type tokenKey struct{}

// WithToken attaches the caller's bearer token to the context so the
// HTTP client can forward it to the backend.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext extracts a previously attached bearer token.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey{}).(string)
	return token, ok && token != ""
}
