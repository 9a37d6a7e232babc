// Package policy is the single source of truth for what an actor may do
// to a ticket and which form fields are editable or mandatory. Every
// other component consults Resolve instead of re-deriving permission
// booleans inline.
package policy

import (
	"strings"

	"github.com/assistenza/helpdesk-gateway/internal/domain"
)

// OwnerResolution describes the account a ticket is filed on behalf of.
// While staff edit a draft the owner follows the email field, so the
// resolution can differ from the ticket's stored owner.
type OwnerResolution struct {
	AccountID string
	Email     string
	Role      domain.Role
	Known     bool
}

// IsUser reports whether the resolved owner is a registered USER
// account. Unknown owners never count as users.
func (o OwnerResolution) IsUser() bool {
	return o.Known && o.Role == domain.RoleUser
}

// OwnerOf builds the resolution for a ticket's stored owner, assuming
// the owner account is a registered USER. Callers that can consult the
// directory should prefer a directory-backed resolution.
func OwnerOf(t *domain.Ticket) OwnerResolution {
	if t == nil {
		return OwnerResolution{}
	}
	return OwnerResolution{
		AccountID: t.OwnerUserID,
		Email:     t.OwnerEmail,
		Role:      domain.RoleUser,
		Known:     t.OwnerUserID != "",
	}
}

// Permissions is the full authorization outcome for one (actor, ticket)
// pair. The zero value denies everything.
type Permissions struct {
	CanView     bool
	CanEdit     bool
	CanDelete   bool
	CanAssign   bool
	CanAccept   bool
	CanReject   bool
	CanEscalate bool
	CanSolve    bool

	RequiredFields map[domain.FieldName]bool
	DisabledFields map[domain.FieldName]bool
}

// FieldRequired reports whether the field must be populated.
func (p Permissions) FieldRequired(name domain.FieldName) bool {
	return p.RequiredFields[name]
}

// FieldDisabled reports whether the field is read-only for the actor.
func (p Permissions) FieldDisabled(name domain.FieldName) bool {
	return p.DisabledFields[name]
}

// fieldContext keys the declarative field-rule table.
type fieldContext struct {
	actorRole   domain.Role
	ownerIsUser bool
}

type fieldRule struct {
	field    domain.FieldName
	required func(fieldContext) bool
	disabled func(fieldContext) bool
}

func always(fieldContext) bool { return true }
func never(fieldContext) bool  { return false }

// fieldRules is the field policy keyed by (actor role, owner
// resolution). Status only matters through CanEdit: a non-editable
// session disables everything regardless of this table.
var fieldRules = []fieldRule{
	{domain.FieldTitle, always, never},
	{domain.FieldDescription, always, never},
	{domain.FieldCategoryID, always, never},
	{domain.FieldSupportService, always, never},
	{domain.FieldPriority, always, never},
	{
		// A USER files tickets under their own address; staff pick the
		// owner through this field.
		field:    domain.FieldEmail,
		required: always,
		disabled: func(c fieldContext) bool { return c.actorRole == domain.RoleUser },
	},
	{
		field:    domain.FieldFiscalCode,
		required: func(c fieldContext) bool { return c.ownerIsUser },
		disabled: func(c fieldContext) bool { return !c.ownerIsUser },
	},
	{
		field:    domain.FieldPhoneNumber,
		required: func(c fieldContext) bool { return c.ownerIsUser },
		disabled: func(c fieldContext) bool { return !c.ownerIsUser },
	},
	{
		// Self-service tickets are auto-routed by the backend; only
		// staff preparing a ticket for a USER pick the assignee.
		field: domain.FieldAssignedTo,
		required: func(c fieldContext) bool {
			return c.ownerIsUser && c.actorRole != domain.RoleUser
		},
		disabled: func(c fieldContext) bool {
			return c.actorRole == domain.RoleUser || !c.ownerIsUser
		},
	},
}

// Resolve evaluates the decision table for one actor and ticket. It is
// pure: no lookups, no side effects. Unrecognized role or status
// combinations fall through to the most restrictive outcome.
func Resolve(actor domain.Actor, t *domain.Ticket, owner OwnerResolution) Permissions {
	p := Permissions{
		RequiredFields: map[domain.FieldName]bool{},
		DisabledFields: map[domain.FieldName]bool{},
	}
	if t == nil {
		return denyFields(p)
	}

	role := actor.Role()
	if role == domain.RoleUser {
		resolveForUser(actor, t, &p)
	} else if role.IsStaff() {
		resolveForStaff(actor, role, t, &p)
	}

	if !p.CanEdit {
		return denyFields(p)
	}
	applyFieldRules(fieldContext{actorRole: role, ownerIsUser: owner.IsUser()}, &p)
	return p
}

func resolveForUser(actor domain.Actor, t *domain.Ticket, p *Permissions) {
	isOwner := t.OwnedBy(actor.ID)
	associated := t.OwnerEmail != "" && strings.EqualFold(t.OwnerEmail, actor.Email)
	if !isOwner && !associated {
		// Not persisted yet: a fresh draft belongs to its author.
		if !t.Persisted() && t.Status == domain.TicketStatusDraft {
			isOwner = true
		} else {
			return
		}
	}
	p.CanView = true
	if t.Status == domain.TicketStatusDraft && (isOwner || !t.Persisted()) {
		p.CanEdit = true
		p.CanDelete = t.Persisted()
	}
}

func resolveForStaff(actor domain.Actor, role domain.Role, t *domain.Ticket, p *Permissions) {
	p.CanView = true
	isAdmin := role == domain.RoleAdmin
	isPM := role == domain.RolePM

	switch t.Status {
	case domain.TicketStatusDraft:
		if t.OwnedBy(actor.ID) || !t.Persisted() {
			p.CanEdit = true
			p.CanDelete = t.Persisted()
			return
		}
		// Abandoned drafts can be cleared by ADMIN or PM only.
		p.CanDelete = isAdmin || isPM
	case domain.TicketStatusSolved:
		// Solved tickets are immutable; only ADMIN may still delete.
		p.CanDelete = isAdmin
	case domain.TicketStatusOpen, domain.TicketStatusAnswered:
		inCharge := t.AssignedTo(actor.ID) || isAdmin || isPM
		if inCharge {
			p.CanEdit = true
			p.CanAssign = true
			p.CanAccept = t.Status == domain.TicketStatusOpen
			p.CanReject = t.Status == domain.TicketStatusOpen
			p.CanEscalate = t.Status == domain.TicketStatusAnswered
			p.CanSolve = t.Status == domain.TicketStatusAnswered
		}
		p.CanDelete = isAdmin || t.AssignedTo(actor.ID)
	}
}

func applyFieldRules(c fieldContext, p *Permissions) {
	for _, rule := range fieldRules {
		if rule.required(c) {
			p.RequiredFields[rule.field] = true
		}
		if rule.disabled(c) {
			p.DisabledFields[rule.field] = true
		}
	}
}

func denyFields(p Permissions) Permissions {
	for _, f := range domain.AllFields {
		p.DisabledFields[f] = true
	}
	return p
}
