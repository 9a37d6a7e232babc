// Package query builds ticket listings: it normalizes the caller's
// selection into backend paging parameters and decorates every returned
// ticket with the actions the actor may take on it.
package query

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/assistenza/helpdesk-gateway/internal/backend"
	"github.com/assistenza/helpdesk-gateway/internal/domain"
	"github.com/assistenza/helpdesk-gateway/internal/policy"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	defaultSort     = "createdDate"
)

// sortFields whitelists the sortable columns; anything else falls back
// to the creation date.
var sortFields = map[string]bool{
	"createdDate": true,
	"title":       true,
	"priority":    true,
	"status":      true,
}

// Selection is the caller's listing request before normalization.
type Selection struct {
	Page      int
	Size      int
	SortField string
	SortDesc  bool
	Status    *domain.TicketStatus
	Priority  *domain.TicketPriority
	Search    string
}

// Normalize clamps paging, validates filters and whitelists the sort
// column.
func (sel Selection) Normalize() backend.ListParams {
	page := sel.Page
	if page < 0 {
		page = 0
	}
	size := sel.Size
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	field := sel.SortField
	if !sortFields[field] {
		field = defaultSort
	}
	direction := "asc"
	if sel.SortDesc {
		direction = "desc"
	}
	if sel.SortField == "" {
		// Unspecified selections list the newest tickets first.
		field, direction = defaultSort, "desc"
	}

	params := backend.ListParams{
		Page:   page,
		Size:   size,
		Sort:   fmt.Sprintf("%s,%s", field, direction),
		Search: strings.TrimSpace(sel.Search),
	}
	if sel.Status != nil && sel.Status.Valid() {
		params.Status = sel.Status
	}
	if sel.Priority != nil && sel.Priority.Valid() {
		params.Priority = sel.Priority
	}
	return params
}

// Item pairs a listed ticket with the actor's permissions on it.
type Item struct {
	Ticket      domain.Ticket
	Permissions policy.Permissions
}

// Result is one decorated page of tickets.
type Result struct {
	Items      []Item
	Page       int
	Size       int
	TotalItems int64
	TotalPages int
}

// Service executes ticket listings against the backend.
type Service struct {
	client backend.Client
	logger *zap.Logger
}

// NewService constructs the query service.
func NewService(client backend.Client, logger *zap.Logger) *Service {
	return &Service{client: client, logger: logger}
}

// Tickets lists tickets for the actor. The backend already scopes the
// listing to what the caller's token may see; the decoration here only
// drives which actions are offered per row.
func (s *Service) Tickets(ctx context.Context, actor domain.Actor, sel Selection) (*Result, error) {
	page, err := s.client.ListTickets(ctx, sel.Normalize())
	if err != nil {
		return nil, err
	}
	return &Result{
		Items:      s.decorate(actor, page.Items),
		Page:       page.Page,
		Size:       page.Size,
		TotalItems: page.TotalItems,
		TotalPages: page.TotalPages,
	}, nil
}

// MyDrafts lists the actor's own unfinalized drafts.
func (s *Service) MyDrafts(ctx context.Context, actor domain.Actor) ([]Item, error) {
	drafts, err := s.client.ListMyDrafts(ctx)
	if err != nil {
		return nil, err
	}
	return s.decorate(actor, drafts), nil
}

func (s *Service) decorate(actor domain.Actor, tickets []domain.Ticket) []Item {
	items := make([]Item, 0, len(tickets))
	for i := range tickets {
		t := tickets[i]
		items = append(items, Item{
			Ticket:      t,
			Permissions: policy.Resolve(actor, &t, policy.OwnerOf(&t)),
		})
	}
	return items
}
