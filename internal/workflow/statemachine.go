// Package workflow executes ticket status transitions. Every operation
// resolves the authorization policy first; a failed precondition is a
// local no-op and never reaches the backend.
package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/assistenza/helpdesk-gateway/internal/backend"
	"github.com/assistenza/helpdesk-gateway/internal/domain"
	"github.com/assistenza/helpdesk-gateway/internal/events"
	"github.com/assistenza/helpdesk-gateway/internal/policy"
	"github.com/assistenza/helpdesk-gateway/internal/session"
	apperrors "github.com/assistenza/helpdesk-gateway/pkg/util"
)

// allowedTransitions lists the legal status edges. SOLVED is terminal.
var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusDraft:    {domain.TicketStatusOpen},
	domain.TicketStatusOpen:     {domain.TicketStatusOpen, domain.TicketStatusAnswered},
	domain.TicketStatusAnswered: {domain.TicketStatusOpen, domain.TicketStatusSolved},
	domain.TicketStatusSolved:   {},
}

// ValidTransition reports whether current→next is a legal edge.
func ValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// StateMachine validates and executes ticket status transitions.
type StateMachine struct {
	client     backend.Client
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewStateMachine constructs the state machine.
func NewStateMachine(client backend.Client, dispatcher events.Dispatcher, logger *zap.Logger) *StateMachine {
	return &StateMachine{client: client, dispatcher: dispatcher, logger: logger}
}

// Finalize turns a draft into an open ticket. All required fields must
// be populated and the resolved owner must be a USER account; neither
// condition being met fails locally without a backend call. The session
// save slot is held for the whole submit, so a debounced autosave that
// fires meanwhile is skipped instead of racing a second write.
func (m *StateMachine) Finalize(ctx context.Context, s *session.FormSession) (*domain.Ticket, error) {
	req, ticketID, err := s.BeginFinalize()
	if err != nil {
		return nil, err
	}

	var updated *domain.Ticket
	if ticketID == "" {
		updated, err = m.client.CreateTicket(ctx, req)
	} else {
		updated, err = m.client.UpdateTicket(ctx, ticketID, req)
	}
	if err != nil {
		s.EndFinalize(nil)
		return nil, err
	}
	s.EndFinalize(updated)
	m.publishStatusChange(ctx, s.Actor().ID, updated.ID, domain.TicketStatusDraft, updated.Status)
	return updated, nil
}

// Accept moves an OPEN ticket to ANSWERED.
func (m *StateMachine) Accept(ctx context.Context, actor domain.Actor, t *domain.Ticket) (*domain.Ticket, error) {
	perms := policy.Resolve(actor, t, policy.OwnerOf(t))
	if !perms.CanAccept {
		return nil, apperrors.NewAuthorizationError("you may not accept this ticket")
	}
	updated, err := m.client.Accept(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	m.publishStatusChange(ctx, actor.ID, t.ID, t.Status, updated.Status)
	return updated, nil
}

// Reject reassigns an OPEN ticket away from its current assignee. The
// status stays OPEN.
func (m *StateMachine) Reject(ctx context.Context, actor domain.Actor, t *domain.Ticket, newAssigneeID string) (*domain.Ticket, error) {
	perms := policy.Resolve(actor, t, policy.OwnerOf(t))
	if !perms.CanReject {
		return nil, apperrors.NewAuthorizationError("you may not reject this ticket")
	}
	if newAssigneeID == "" || t.AssignedTo(newAssigneeID) {
		return nil, apperrors.NewValidationError("the new assignee must differ from the current one", nil)
	}
	updated, err := m.client.Reject(ctx, t.ID, newAssigneeID)
	if err != nil {
		return nil, err
	}
	m.publishAssigned(ctx, actor.ID, t.ID, updated.AssignedToID)
	return updated, nil
}

// Escalate reassigns an ANSWERED ticket and re-opens it.
func (m *StateMachine) Escalate(ctx context.Context, actor domain.Actor, t *domain.Ticket, newAssigneeID string) (*domain.Ticket, error) {
	perms := policy.Resolve(actor, t, policy.OwnerOf(t))
	if !perms.CanEscalate {
		return nil, apperrors.NewAuthorizationError("you may not escalate this ticket")
	}
	if newAssigneeID == "" || t.AssignedTo(newAssigneeID) {
		return nil, apperrors.NewValidationError("the new assignee must differ from the current one", nil)
	}
	updated, err := m.client.Escalate(ctx, t.ID, newAssigneeID)
	if err != nil {
		return nil, err
	}
	m.publishStatusChange(ctx, actor.ID, t.ID, t.Status, updated.Status)
	m.publishAssigned(ctx, actor.ID, t.ID, updated.AssignedToID)
	return updated, nil
}

// Solve closes an ANSWERED ticket. SOLVED is terminal.
func (m *StateMachine) Solve(ctx context.Context, actor domain.Actor, t *domain.Ticket) (*domain.Ticket, error) {
	perms := policy.Resolve(actor, t, policy.OwnerOf(t))
	if !perms.CanSolve {
		return nil, apperrors.NewAuthorizationError("you may not solve this ticket")
	}
	updated, err := m.client.UpdateStatus(ctx, t.ID, domain.TicketStatusSolved)
	if err != nil {
		return nil, err
	}
	m.publishStatusChange(ctx, actor.ID, t.ID, t.Status, updated.Status)
	return updated, nil
}

// Assign sets the assignee without an inherent status change, except
// that assigning while ANSWERED forces the ticket back to OPEN for
// re-triage.
func (m *StateMachine) Assign(ctx context.Context, actor domain.Actor, t *domain.Ticket, helperID string) (*domain.Ticket, error) {
	perms := policy.Resolve(actor, t, policy.OwnerOf(t))
	if !perms.CanAssign {
		return nil, apperrors.NewAuthorizationError("you may not assign this ticket")
	}
	if helperID == "" {
		return nil, apperrors.NewValidationError("an assignee is required", nil)
	}
	wasAnswered := t.Status == domain.TicketStatusAnswered
	updated, err := m.client.Assign(ctx, t.ID, helperID)
	if err != nil {
		return nil, err
	}
	if wasAnswered && updated.Status != domain.TicketStatusOpen {
		updated, err = m.client.UpdateStatus(ctx, updated.ID, domain.TicketStatusOpen)
		if err != nil {
			return nil, err
		}
		m.publishStatusChange(ctx, actor.ID, t.ID, domain.TicketStatusAnswered, domain.TicketStatusOpen)
	}
	m.publishAssigned(ctx, actor.ID, t.ID, updated.AssignedToID)
	return updated, nil
}

// Delete removes a ticket after an explicit confirmation.
func (m *StateMachine) Delete(ctx context.Context, actor domain.Actor, t *domain.Ticket, confirmed bool) error {
	perms := policy.Resolve(actor, t, policy.OwnerOf(t))
	if !perms.CanDelete {
		return apperrors.NewAuthorizationError("you may not delete this ticket")
	}
	if !confirmed {
		return apperrors.NewValidationError("deletion requires explicit confirmation", nil)
	}
	if err := m.client.DeleteTicket(ctx, t.ID); err != nil {
		return err
	}
	m.publish(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		TicketID: t.ID,
		ActorID:  actor.ID,
	})
	return nil
}

func (m *StateMachine) publishStatusChange(ctx context.Context, actorID, ticketID string, oldStatus, newStatus domain.TicketStatus) {
	if oldStatus == newStatus {
		return
	}
	m.publish(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticketID,
		ActorID:  actorID,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
		},
	})
}

func (m *StateMachine) publishAssigned(ctx context.Context, actorID, ticketID string, assigneeID *string) {
	m.publish(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticketID,
		ActorID:  actorID,
		Payload:  events.TicketAssignedPayload{AssigneeID: assigneeID},
	})
}

func (m *StateMachine) publish(ctx context.Context, event events.Event) {
	if m.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = m.dispatcher.Publish(ctx, event)
}
