package policy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/assistenza/helpdesk-gateway/internal/domain"
)

func strPtr(s string) *string { return &s }

func userActor(id, email string) domain.Actor {
	return domain.Actor{ID: id, Email: email, Roles: []domain.Role{domain.RoleUser}}
}

func staffActor(id string, role domain.Role) domain.Actor {
	return domain.Actor{ID: id, Email: id + "@helpdesk.test", Roles: []domain.Role{role}}
}

func draftOwnedBy(userID string) *domain.Ticket {
	return &domain.Ticket{
		ID:          "t1",
		Status:      domain.TicketStatusDraft,
		OwnerUserID: userID,
		OwnerEmail:  userID + "@users.test",
	}
}

func ticketWith(status domain.TicketStatus, assignee string) *domain.Ticket {
	t := &domain.Ticket{
		ID:          "t1",
		Status:      status,
		OwnerUserID: "u1",
		OwnerEmail:  "u1@users.test",
	}
	if assignee != "" {
		t.AssignedToID = strPtr(assignee)
	}
	return t
}

func userOwner(id string) OwnerResolution {
	return OwnerResolution{AccountID: id, Email: id + "@users.test", Role: domain.RoleUser, Known: true}
}

func TestUserEditsOwnDraftOnly(t *testing.T) {
	actor := userActor("u1", "u1@users.test")

	perms := Resolve(actor, draftOwnedBy("u1"), userOwner("u1"))
	require.True(t, perms.CanView)
	require.True(t, perms.CanEdit)
	require.True(t, perms.CanDelete)

	perms = Resolve(actor, draftOwnedBy("u2"), userOwner("u2"))
	require.False(t, perms.CanView)
	require.False(t, perms.CanEdit)
	require.False(t, perms.CanDelete)
}

func TestUserViewsFinalizedTicketReadOnly(t *testing.T) {
	actor := userActor("u1", "u1@users.test")
	perms := Resolve(actor, ticketWith(domain.TicketStatusOpen, "h1"), userOwner("u1"))

	require.True(t, perms.CanView)
	require.False(t, perms.CanEdit)
	for _, field := range domain.AllFields {
		require.True(t, perms.FieldDisabled(field), "field %s should be read-only", field)
	}
}

func TestUserViewsTicketAssociatedByEmail(t *testing.T) {
	actor := userActor("other-id", "u1@users.test")
	ticket := ticketWith(domain.TicketStatusOpen, "h1")

	perms := Resolve(actor, ticket, userOwner("u1"))
	require.True(t, perms.CanView)
	require.False(t, perms.CanEdit)
}

func TestUserMayEditFreshUnsavedDraft(t *testing.T) {
	actor := userActor("u1", "u1@users.test")
	fresh := &domain.Ticket{Status: domain.TicketStatusDraft}

	perms := Resolve(actor, fresh, userOwner("u1"))
	require.True(t, perms.CanEdit)
	require.False(t, perms.CanDelete)
}

func TestAssignedHelperControlsOpenTicket(t *testing.T) {
	actor := staffActor("h1", domain.RoleHelperJunior)
	perms := Resolve(actor, ticketWith(domain.TicketStatusOpen, "h1"), userOwner("u1"))

	require.True(t, perms.CanView)
	require.True(t, perms.CanEdit)
	require.True(t, perms.CanAssign)
	require.True(t, perms.CanAccept)
	require.True(t, perms.CanReject)
	require.False(t, perms.CanEscalate)
	require.False(t, perms.CanSolve)
	require.True(t, perms.CanDelete)
}

func TestUnassignedHelperOnlyViews(t *testing.T) {
	actor := staffActor("h2", domain.RoleHelperSenior)
	perms := Resolve(actor, ticketWith(domain.TicketStatusOpen, "h1"), userOwner("u1"))

	require.True(t, perms.CanView)
	require.False(t, perms.CanEdit)
	require.False(t, perms.CanAccept)
	require.False(t, perms.CanDelete)
}

func TestPMControlsAnyActiveTicket(t *testing.T) {
	actor := staffActor("pm1", domain.RolePM)
	perms := Resolve(actor, ticketWith(domain.TicketStatusAnswered, "h1"), userOwner("u1"))

	require.True(t, perms.CanEdit)
	require.True(t, perms.CanAssign)
	require.True(t, perms.CanEscalate)
	require.True(t, perms.CanSolve)
	require.False(t, perms.CanAccept)
	require.False(t, perms.CanReject)
	// Deletion of active tickets stays with the assignee or an admin.
	require.False(t, perms.CanDelete)
}

func TestSolvedTicketIsImmutable(t *testing.T) {
	solved := ticketWith(domain.TicketStatusSolved, "h1")

	helper := Resolve(staffActor("h1", domain.RoleHelperSenior), solved, userOwner("u1"))
	require.True(t, helper.CanView)
	require.False(t, helper.CanEdit)
	require.False(t, helper.CanDelete)
	require.False(t, helper.CanSolve)

	admin := Resolve(staffActor("a1", domain.RoleAdmin), solved, userOwner("u1"))
	require.False(t, admin.CanEdit)
	require.True(t, admin.CanDelete)
}

func TestForeignDraftDeletableByAdminAndPMOnly(t *testing.T) {
	draft := draftOwnedBy("u1")

	for role, want := range map[domain.Role]bool{
		domain.RoleHelperJunior: false,
		domain.RoleHelperSenior: false,
		domain.RolePM:           true,
		domain.RoleAdmin:        true,
	} {
		perms := Resolve(staffActor("s1", role), draft, userOwner("u1"))
		require.Equal(t, want, perms.CanDelete, "role %s", role)
		require.False(t, perms.CanEdit, "role %s", role)
	}
}

func TestFieldRulesForStaffEditingUserOwnedDraft(t *testing.T) {
	actor := staffActor("h1", domain.RoleHelperSenior)
	fresh := &domain.Ticket{Status: domain.TicketStatusDraft}

	perms := Resolve(actor, fresh, userOwner("u1"))
	require.True(t, perms.CanEdit)
	require.False(t, perms.FieldDisabled(domain.FieldEmail))
	require.True(t, perms.FieldRequired(domain.FieldFiscalCode))
	require.True(t, perms.FieldRequired(domain.FieldPhoneNumber))
	require.True(t, perms.FieldRequired(domain.FieldAssignedTo))
	require.False(t, perms.FieldDisabled(domain.FieldAssignedTo))
}

func TestFieldRulesForStaffWithNonUserOwner(t *testing.T) {
	actor := staffActor("h1", domain.RoleHelperSenior)
	fresh := &domain.Ticket{Status: domain.TicketStatusDraft}
	owner := OwnerResolution{AccountID: "pm1", Email: "pm1@helpdesk.test", Role: domain.RolePM, Known: true}

	perms := Resolve(actor, fresh, owner)
	require.True(t, perms.FieldDisabled(domain.FieldFiscalCode))
	require.True(t, perms.FieldDisabled(domain.FieldPhoneNumber))
	require.True(t, perms.FieldDisabled(domain.FieldAssignedTo))
	require.False(t, perms.FieldRequired(domain.FieldFiscalCode))
	require.False(t, perms.FieldRequired(domain.FieldAssignedTo))
}

func TestFieldRulesForUserActor(t *testing.T) {
	actor := userActor("u1", "u1@users.test")
	perms := Resolve(actor, draftOwnedBy("u1"), userOwner("u1"))

	require.True(t, perms.FieldDisabled(domain.FieldEmail))
	require.True(t, perms.FieldDisabled(domain.FieldAssignedTo))
	require.False(t, perms.FieldRequired(domain.FieldAssignedTo))
	require.True(t, perms.FieldRequired(domain.FieldTitle))
	require.True(t, perms.FieldRequired(domain.FieldFiscalCode))
}

func TestStrongestRoleWins(t *testing.T) {
	actor := domain.Actor{ID: "x1", Roles: []domain.Role{domain.RoleUser, domain.RoleAdmin}}
	perms := Resolve(actor, ticketWith(domain.TicketStatusOpen, "h1"), userOwner("u1"))

	require.True(t, perms.CanEdit)
	require.True(t, perms.CanAssign)
}
