package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/assistenza/helpdesk-gateway/internal/domain"
	"github.com/assistenza/helpdesk-gateway/internal/events"
	apperrors "github.com/assistenza/helpdesk-gateway/pkg/util"
)

type fakeDirectory struct {
	staff []domain.Account
	err   error
}

func (f *fakeDirectory) Staff(ctx context.Context) ([]domain.Account, error) {
	return f.staff, f.err
}

func staffAccounts(ids ...string) []domain.Account {
	accounts := make([]domain.Account, 0, len(ids))
	for _, id := range ids {
		accounts = append(accounts, domain.Account{
			ID:    id,
			Email: id + "@helpdesk.test",
			Role:  domain.RoleHelperSenior,
		})
	}
	return accounts
}

func TestEligibleAssigneesExcludesCurrentAssignee(t *testing.T) {
	machine := NewStateMachine(newFakeClient(), events.NewInMemoryDispatcher(zap.NewNop()), zap.NewNop())
	wf := NewAssignmentWorkflow(machine, &fakeDirectory{staff: staffAccounts("h1", "h2", "h3")})

	eligible, err := wf.EligibleAssignees(context.Background(), helper("pm"), openTicket("h2"), ModeAssign)
	require.NoError(t, err)
	require.Len(t, eligible, 2)
	for _, account := range eligible {
		require.NotEqual(t, "h2", account.ID)
	}
}

func TestEligibleAssigneesExcludesSelfOnReassign(t *testing.T) {
	machine := NewStateMachine(newFakeClient(), events.NewInMemoryDispatcher(zap.NewNop()), zap.NewNop())
	wf := NewAssignmentWorkflow(machine, &fakeDirectory{staff: staffAccounts("h1", "h2")})

	eligible, err := wf.EligibleAssignees(context.Background(), helper("h1"), openTicket("h1"), ModeReassign)
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	require.Equal(t, "h2", eligible[0].ID)
}

func TestEmptyCandidateListFailsBeforeSelection(t *testing.T) {
	machine := NewStateMachine(newFakeClient(), events.NewInMemoryDispatcher(zap.NewNop()), zap.NewNop())
	wf := NewAssignmentWorkflow(machine, &fakeDirectory{staff: staffAccounts("h1")})

	_, err := wf.EligibleAssignees(context.Background(), helper("h1"), openTicket("h1"), ModeReassign)
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
}

func TestRejectGoesThroughEligibilityCheck(t *testing.T) {
	client := newFakeClient()
	client.onReject = func(id, newAssigneeID string) (*domain.Ticket, error) {
		return openTicket(newAssigneeID), nil
	}
	machine := NewStateMachine(client, events.NewInMemoryDispatcher(zap.NewNop()), zap.NewNop())
	wf := NewAssignmentWorkflow(machine, &fakeDirectory{staff: staffAccounts("h1", "h2")})

	updated, err := wf.Reject(context.Background(), helper("h1"), openTicket("h1"), "h2")
	require.NoError(t, err)
	require.Equal(t, "h2", *updated.AssignedToID)

	// An ineligible pick never reaches the backend.
	_, err = wf.Reject(context.Background(), helper("h1"), openTicket("h1"), "ghost")
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
	require.Equal(t, 1, client.callCount("reject"))
}

func TestEscalateReopensThroughWorkflow(t *testing.T) {
	client := newFakeClient()
	client.onEscalate = func(id, newAssigneeID string) (*domain.Ticket, error) {
		return openTicket(newAssigneeID), nil
	}
	machine := NewStateMachine(client, events.NewInMemoryDispatcher(zap.NewNop()), zap.NewNop())
	wf := NewAssignmentWorkflow(machine, &fakeDirectory{staff: staffAccounts("h1", "h2")})

	updated, err := wf.Escalate(context.Background(), helper("h1"), answeredTicket("h1"), "h2")
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusOpen, updated.Status)
}
