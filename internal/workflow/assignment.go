package workflow

import (
	"context"

	"github.com/assistenza/helpdesk-gateway/internal/domain"
	apperrors "github.com/assistenza/helpdesk-gateway/pkg/util"
)

// AssignmentMode distinguishes picking an assignee for an unassigned
// ticket from handing one off to somebody else.
type AssignmentMode string

const (
	// ModeAssign picks an assignee; the current assignee (if any) is
	// excluded from the candidates.
	ModeAssign AssignmentMode = "ASSIGN"
	// ModeReassign hands the ticket off; the acting helper excludes
	// themselves from the candidates.
	ModeReassign AssignmentMode = "REASSIGN"
)

// StaffDirectory yields the staff accounts eligible for assignment.
type StaffDirectory interface {
	Staff(ctx context.Context) ([]domain.Account, error)
}

// AssignmentWorkflow drives assign, reject and escalate flows: it
// computes the eligible candidate list up front and refuses to start a
// flow that cannot complete.
type AssignmentWorkflow struct {
	machine   *StateMachine
	directory StaffDirectory
}

// NewAssignmentWorkflow constructs the workflow.
func NewAssignmentWorkflow(machine *StateMachine, directory StaffDirectory) *AssignmentWorkflow {
	return &AssignmentWorkflow{machine: machine, directory: directory}
}

// ErrNoEligibleAssignee is returned when the candidate list is empty
// after exclusions, before any selection is offered.
func ErrNoEligibleAssignee() error {
	return apperrors.NewConflict("no eligible assignee is available", nil)
}

// EligibleAssignees returns the staff accounts the actor may pick for
// the given ticket and mode. An empty result is an error: the flow must
// not start when there is nobody to hand the ticket to.
func (w *AssignmentWorkflow) EligibleAssignees(ctx context.Context, actor domain.Actor, t *domain.Ticket, mode AssignmentMode) ([]domain.Account, error) {
	staff, err := w.directory.Staff(ctx)
	if err != nil {
		return nil, err
	}

	excluded := ""
	switch mode {
	case ModeReassign:
		excluded = actor.ID
	default:
		if t.AssignedToID != nil {
			excluded = *t.AssignedToID
		}
	}

	eligible := make([]domain.Account, 0, len(staff))
	for _, account := range staff {
		if account.ID == excluded {
			continue
		}
		eligible = append(eligible, account)
	}
	if len(eligible) == 0 {
		return nil, ErrNoEligibleAssignee()
	}
	return eligible, nil
}

// Assign validates the chosen helper against the eligible candidates
// and executes the assignment transition.
func (w *AssignmentWorkflow) Assign(ctx context.Context, actor domain.Actor, t *domain.Ticket, helperID string) (*domain.Ticket, error) {
	if err := w.requireEligible(ctx, actor, t, ModeAssign, helperID); err != nil {
		return nil, err
	}
	return w.machine.Assign(ctx, actor, t, helperID)
}

// Reject hands an OPEN ticket to another helper.
func (w *AssignmentWorkflow) Reject(ctx context.Context, actor domain.Actor, t *domain.Ticket, newAssigneeID string) (*domain.Ticket, error) {
	if err := w.requireEligible(ctx, actor, t, ModeReassign, newAssigneeID); err != nil {
		return nil, err
	}
	return w.machine.Reject(ctx, actor, t, newAssigneeID)
}

// Escalate hands an ANSWERED ticket to another helper and re-opens it.
func (w *AssignmentWorkflow) Escalate(ctx context.Context, actor domain.Actor, t *domain.Ticket, newAssigneeID string) (*domain.Ticket, error) {
	if err := w.requireEligible(ctx, actor, t, ModeReassign, newAssigneeID); err != nil {
		return nil, err
	}
	return w.machine.Escalate(ctx, actor, t, newAssigneeID)
}

func (w *AssignmentWorkflow) requireEligible(ctx context.Context, actor domain.Actor, t *domain.Ticket, mode AssignmentMode, helperID string) error {
	eligible, err := w.EligibleAssignees(ctx, actor, t, mode)
	if err != nil {
		return err
	}
	for _, account := range eligible {
		if account.ID == helperID {
			return nil
		}
	}
	return apperrors.NewValidationError("the chosen assignee is not an eligible staff account", nil)
}
