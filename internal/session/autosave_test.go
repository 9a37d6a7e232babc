package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/assistenza/helpdesk-gateway/internal/domain"
	"github.com/assistenza/helpdesk-gateway/internal/events"
)

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msg)
}

func TestBurstOfEditsCollapsesIntoOneSave(t *testing.T) {
	client := newFakeBackend()
	m, _ := newTestManager(t, client)
	s, err := m.Open(context.Background(), userActor(), "")
	require.NoError(t, err)
	defer m.Close(s.ID())

	ctx := context.Background()
	require.NoError(t, s.SetField(ctx, domain.FieldTitle, "p"))
	require.NoError(t, s.SetField(ctx, domain.FieldTitle, "pr"))
	require.NoError(t, s.SetField(ctx, domain.FieldTitle, "pri"))
	require.NoError(t, s.SetField(ctx, domain.FieldTitle, "prin"))
	require.NoError(t, s.SetField(ctx, domain.FieldTitle, "printer"))

	waitFor(t, func() bool {
		creates, _ := client.saveCounts()
		return creates == 1
	}, "exactly one create expected")

	waitFor(t, func() bool { return !s.Dirty() }, "session should be pristine after save")
	require.NotEmpty(t, s.TicketID(), "draft id should be adopted")

	// No further saves without further edits.
	time.Sleep(4 * testQuietPeriod)
	creates, updates := client.saveCounts()
	require.Equal(t, 1, creates)
	require.Zero(t, updates)

	client.mu.Lock()
	saved := client.lastRequest
	client.mu.Unlock()
	require.Equal(t, "printer", saved.Title)
	require.Equal(t, domain.TicketStatusDraft, saved.Status)
}

func TestNoSaveWithoutTitleOrDescription(t *testing.T) {
	client := newFakeBackend()
	m, _ := newTestManager(t, client)
	s, err := m.Open(context.Background(), userActor(), "")
	require.NoError(t, err)
	defer m.Close(s.ID())

	require.NoError(t, s.SetField(context.Background(), domain.FieldCategoryID, "cat-1"))

	time.Sleep(4 * testQuietPeriod)
	creates, updates := client.saveCounts()
	require.Zero(t, creates)
	require.Zero(t, updates)
	require.True(t, s.Dirty())
}

func TestEditDuringSaveDefersInsteadOfRacing(t *testing.T) {
	client := newFakeBackend()
	client.block = make(chan struct{})
	m, _ := newTestManager(t, client)
	s, err := m.Open(context.Background(), userActor(), "")
	require.NoError(t, err)
	defer m.Close(s.ID())

	ctx := context.Background()
	require.NoError(t, s.SetField(ctx, domain.FieldTitle, "first"))
	waitFor(t, s.SaveInFlight, "first save should start")

	// Edit while the save is in flight, then let the timer fire into
	// the busy coordinator.
	require.NoError(t, s.SetField(ctx, domain.FieldTitle, "second"))
	time.Sleep(2 * testQuietPeriod)
	close(client.block)

	waitFor(t, func() bool {
		creates, updates := client.saveCounts()
		return creates+updates == 2
	}, "deferred save should follow the first one")

	client.mu.Lock()
	maxInFlight := client.maxInFlight
	saved := client.lastRequest
	client.mu.Unlock()
	require.Equal(t, 1, maxInFlight, "saves must never overlap")
	require.Equal(t, "second", saved.Title)
	waitFor(t, func() bool { return !s.Dirty() }, "session pristine after deferred save")
}

func TestFailedSaveKeepsDirtyWithoutRetry(t *testing.T) {
	client := newFakeBackend()
	client.failSaves = true
	m, dispatcher := newTestManager(t, client)
	captured := captureAll(dispatcher)

	s, err := m.Open(context.Background(), userActor(), "")
	require.NoError(t, err)
	defer m.Close(s.ID())

	require.NoError(t, s.SetField(context.Background(), domain.FieldTitle, "doomed"))
	waitFor(t, func() bool {
		return len(captured.ofType(events.EventDraftSaveFailed)) == 1
	}, "failure event expected")

	require.True(t, s.Dirty())
	require.Empty(t, s.TicketID())

	// No automatic retry; the next edit schedules the next attempt.
	time.Sleep(4 * testQuietPeriod)
	require.Len(t, captured.ofType(events.EventDraftSaveFailed), 1)

	client.mu.Lock()
	client.failSaves = false
	client.mu.Unlock()
	require.NoError(t, s.SetField(context.Background(), domain.FieldTitle, "recovered"))
	waitFor(t, func() bool {
		creates, _ := client.saveCounts()
		return creates == 1
	}, "edit after failure should save again")
}

func TestCloseDiscardsInFlightResult(t *testing.T) {
	client := newFakeBackend()
	client.block = make(chan struct{})
	m, dispatcher := newTestManager(t, client)
	captured := captureAll(dispatcher)

	s, err := m.Open(context.Background(), userActor(), "")
	require.NoError(t, err)

	require.NoError(t, s.SetField(context.Background(), domain.FieldTitle, "late"))
	waitFor(t, s.SaveInFlight, "save should start")

	m.Close(s.ID())
	close(client.block)

	time.Sleep(4 * testQuietPeriod)
	require.Empty(t, captured.ofType(events.EventDraftSaved), "result of a cancelled session must not surface")
	require.Empty(t, s.TicketID())
}

func TestSuppressedSessionNeverSaves(t *testing.T) {
	client := newFakeBackend()
	m, _ := newTestManager(t, client)
	s, err := m.Open(context.Background(), staffActor(), "")
	require.NoError(t, err)
	defer m.Close(s.ID())

	ctx := context.Background()
	require.NoError(t, s.SetField(ctx, domain.FieldEmail, "pm1@helpdesk.test"))
	require.NoError(t, s.SetField(ctx, domain.FieldTitle, "internal note"))
	require.True(t, s.Suppressed())

	time.Sleep(4 * testQuietPeriod)
	creates, updates := client.saveCounts()
	require.Zero(t, creates)
	require.Zero(t, updates)
	require.True(t, s.Dirty())
}
