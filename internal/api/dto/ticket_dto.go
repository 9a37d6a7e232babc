package dto

import (
	"time"

	"github.com/assistenza/helpdesk-gateway/internal/domain"
	"github.com/assistenza/helpdesk-gateway/internal/policy"
)

// TicketView is the outward shape of a ticket.
type TicketView struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	CategoryID       string     `json:"categoryId"`
	SupportServiceID string     `json:"supportServiceId"`
	Priority         string     `json:"priority"`
	Status           string     `json:"status"`
	OwnerUserID      string     `json:"ownerUserId,omitempty"`
	OwnerEmail       string     `json:"ownerEmail,omitempty"`
	AssignedToID     *string    `json:"assignedToId,omitempty"`
	CreatedAt        *time.Time `json:"createdAt,omitempty"`
}

// NewTicketView maps a domain ticket.
func NewTicketView(t *domain.Ticket) TicketView {
	view := TicketView{
		ID:               t.ID,
		Title:            t.Title,
		Description:      t.Description,
		CategoryID:       t.CategoryID,
		SupportServiceID: t.SupportServiceID,
		Priority:         string(t.Priority),
		Status:           string(t.Status),
		OwnerUserID:      t.OwnerUserID,
		OwnerEmail:       t.OwnerEmail,
		AssignedToID:     t.AssignedToID,
	}
	if !t.CreatedAt.IsZero() {
		created := t.CreatedAt
		view.CreatedAt = &created
	}
	return view
}

// PermissionsView flattens the policy outcome for one ticket.
type PermissionsView struct {
	CanView     bool `json:"canView"`
	CanEdit     bool `json:"canEdit"`
	CanDelete   bool `json:"canDelete"`
	CanAssign   bool `json:"canAssign"`
	CanAccept   bool `json:"canAccept"`
	CanReject   bool `json:"canReject"`
	CanEscalate bool `json:"canEscalate"`
	CanSolve    bool `json:"canSolve"`
}

// NewPermissionsView maps a policy outcome.
func NewPermissionsView(p policy.Permissions) PermissionsView {
	return PermissionsView{
		CanView:     p.CanView,
		CanEdit:     p.CanEdit,
		CanDelete:   p.CanDelete,
		CanAssign:   p.CanAssign,
		CanAccept:   p.CanAccept,
		CanReject:   p.CanReject,
		CanEscalate: p.CanEscalate,
		CanSolve:    p.CanSolve,
	}
}

// TicketItem is one decorated listing row.
type TicketItem struct {
	Ticket      TicketView      `json:"ticket"`
	Permissions PermissionsView `json:"permissions"`
}

// TicketListResponse is one page of decorated tickets.
type TicketListResponse struct {
	Items      []TicketItem `json:"items"`
	Page       int          `json:"page"`
	Size       int          `json:"size"`
	TotalItems int64        `json:"totalItems"`
	TotalPages int          `json:"totalPages"`
}

// AssignRequest selects an assignee.
type AssignRequest struct {
	AssigneeID string `json:"assigneeId"`
}

// CategoryView is the outward shape of a ticket category.
type CategoryView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// NewCategoryView maps a category.
func NewCategoryView(c domain.Category) CategoryView {
	return CategoryView{ID: c.ID, Name: c.Name, Description: c.Description}
}

// SupportServiceView is the outward shape of a support service.
type SupportServiceView struct {
	ID         string `json:"id"`
	CategoryID string `json:"categoryId"`
	Name       string `json:"name"`
}

// NewSupportServiceView maps a support service.
func NewSupportServiceView(s domain.SupportService) SupportServiceView {
	return SupportServiceView{ID: s.ID, CategoryID: s.CategoryID, Name: s.Name}
}

// AccountView is the outward shape of a directory account.
type AccountView struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

// NewAccountView maps a directory account.
func NewAccountView(a domain.Account) AccountView {
	return AccountView{
		ID:       a.ID,
		Email:    a.Email,
		FullName: a.FullName(),
		Role:     string(a.Role),
	}
}
