package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/assistenza/helpdesk-gateway/internal/backend"
	"github.com/assistenza/helpdesk-gateway/internal/domain"
)

func TestNormalizeClampsPaging(t *testing.T) {
	params := Selection{Page: -3, Size: 0}.Normalize()
	require.Equal(t, 0, params.Page)
	require.Equal(t, defaultPageSize, params.Size)

	params = Selection{Page: 2, Size: 5000}.Normalize()
	require.Equal(t, 2, params.Page)
	require.Equal(t, maxPageSize, params.Size)
}

func TestNormalizeSortWhitelist(t *testing.T) {
	params := Selection{SortField: "priority", SortDesc: true}.Normalize()
	require.Equal(t, "priority,desc", params.Sort)

	params = Selection{SortField: "title"}.Normalize()
	require.Equal(t, "title,asc", params.Sort)

	// Unknown columns and empty selections fall back to newest first.
	params = Selection{SortField: "ownerEmail; DROP TABLE"}.Normalize()
	require.Equal(t, "createdDate,asc", params.Sort)

	params = Selection{}.Normalize()
	require.Equal(t, "createdDate,desc", params.Sort)
}

func TestNormalizeDropsInvalidFilters(t *testing.T) {
	badStatus := domain.TicketStatus("BROKEN")
	badPriority := domain.TicketPriority("SHINY")
	params := Selection{Status: &badStatus, Priority: &badPriority}.Normalize()
	require.Nil(t, params.Status)
	require.Nil(t, params.Priority)

	status := domain.TicketStatusOpen
	params = Selection{Status: &status}.Normalize()
	require.NotNil(t, params.Status)
	require.Equal(t, domain.TicketStatusOpen, *params.Status)
}

type fakeLister struct {
	backend.Client
	page   *domain.TicketPage
	drafts []domain.Ticket
}

func (f *fakeLister) ListTickets(ctx context.Context, params backend.ListParams) (*domain.TicketPage, error) {
	return f.page, nil
}

func (f *fakeLister) ListMyDrafts(ctx context.Context) ([]domain.Ticket, error) {
	return f.drafts, nil
}

func TestTicketsDecoratesRowsWithPermissions(t *testing.T) {
	assignee := "h1"
	client := &fakeLister{page: &domain.TicketPage{
		Items: []domain.Ticket{
			{ID: "t1", Status: domain.TicketStatusOpen, OwnerUserID: "u1", AssignedToID: &assignee},
			{ID: "t2", Status: domain.TicketStatusSolved, OwnerUserID: "u1"},
		},
		Page:       0,
		Size:       10,
		TotalItems: 2,
		TotalPages: 1,
	}}
	svc := NewService(client, zap.NewNop())

	actor := domain.Actor{ID: "h1", Roles: []domain.Role{domain.RoleHelperSenior}}
	result, err := svc.Tickets(context.Background(), actor, Selection{})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)

	open := result.Items[0]
	require.True(t, open.Permissions.CanAccept)
	require.True(t, open.Permissions.CanReject)

	solved := result.Items[1]
	require.False(t, solved.Permissions.CanEdit)
	require.False(t, solved.Permissions.CanDelete)
}

func TestMyDraftsDecoration(t *testing.T) {
	client := &fakeLister{drafts: []domain.Ticket{
		{ID: "d1", Status: domain.TicketStatusDraft, OwnerUserID: "u1"},
	}}
	svc := NewService(client, zap.NewNop())

	actor := domain.Actor{ID: "u1", Email: "u1@users.test", Roles: []domain.Role{domain.RoleUser}}
	items, err := svc.MyDrafts(context.Background(), actor)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.True(t, items[0].Permissions.CanEdit)
}
