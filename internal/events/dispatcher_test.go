package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPublishLogsFailingHandlerAndContinues(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	d := NewInMemoryDispatcher(zap.New(core))

	var calls []string
	d.Subscribe(EventDraftSaved, func(ctx context.Context, e Event) error {
		calls = append(calls, "first")
		return errors.New("handler exploded")
	})
	d.Subscribe(EventDraftSaved, func(ctx context.Context, e Event) error {
		calls = append(calls, "second")
		return nil
	})

	err := d.Publish(context.Background(), Event{ID: "e1", Type: EventDraftSaved})
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second"}, calls)

	entries := logs.FilterMessage("event handler failed").All()
	require.Len(t, entries, 1)
	require.Equal(t, "e1", entries[0].ContextMap()["event_id"])
}

func TestPublishIgnoresUnrelatedEventTypes(t *testing.T) {
	d := NewInMemoryDispatcher(zap.NewNop())

	called := false
	d.Subscribe(EventTicketDeleted, func(ctx context.Context, e Event) error {
		called = true
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventDraftSaved}))
	require.False(t, called)
}
