package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/assistenza/helpdesk-gateway/internal/backend"
	"github.com/assistenza/helpdesk-gateway/internal/domain"
	"github.com/assistenza/helpdesk-gateway/internal/events"
)

// DefaultQuietPeriod is the debounce interval between the last edit and
// the autosave attempt.
const DefaultQuietPeriod = 1500 * time.Millisecond

// AutosaveCoordinator debounces edits and persists the draft after a
// quiet period. At most one save is in flight per session; attempts
// that fire during a save are deferred, never raced.
type AutosaveCoordinator struct {
	session    *FormSession
	client     backend.Client
	dispatcher events.Dispatcher
	logger     *zap.Logger
	quiet      time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func newAutosaveCoordinator(s *FormSession, deps Dependencies) *AutosaveCoordinator {
	quiet := deps.QuietPeriod
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &AutosaveCoordinator{
		session:    s,
		client:     deps.Backend,
		dispatcher: deps.Dispatcher,
		logger:     s.logger,
		quiet:      quiet,
	}
}

// Touch restarts the debounce timer. Called after every accepted edit,
// so a burst of edits collapses into a single save attempt.
func (a *AutosaveCoordinator) Touch() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.quiet, a.attempt)
}

// StopTimer cancels a scheduled attempt without saving.
func (a *AutosaveCoordinator) StopTimer() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// Flush runs a save attempt immediately, skipping the quiet period.
func (a *AutosaveCoordinator) Flush() {
	a.StopTimer()
	a.attempt()
}

// attempt checks the gating conditions and runs the save. When a save
// is already in flight the session records a deferred attempt instead.
func (a *AutosaveCoordinator) attempt() {
	req, ticketID, gen, ok := a.session.beginSave()
	if !ok {
		return
	}
	a.run(req, ticketID, gen)
}

func (a *AutosaveCoordinator) run(req backend.TicketRequest, ticketID string, gen uint64) {
	ctx := a.session.Context()
	var (
		saved   *domain.Ticket
		err     error
		created = ticketID == ""
	)
	if created {
		saved, err = a.client.CreateTicket(ctx, req)
	} else {
		saved, err = a.client.UpdateTicket(ctx, ticketID, req)
	}
	if ctx.Err() != nil {
		// The session was torn down while the request ran; the result
		// must not be applied.
		a.session.completeSave(gen, nil, ctx.Err())
		return
	}

	followUp := a.session.completeSave(gen, saved, err)
	if err != nil {
		a.logger.Warn("draft autosave failed", zap.Error(err))
		a.publish(ctx, events.EventDraftSaveFailed, events.DraftSaveFailedPayload{Reason: err.Error()})
	} else {
		a.logger.Debug("draft autosaved",
			zap.String("ticket_id", saved.ID),
			zap.Bool("created", created))
		a.publish(ctx, events.EventDraftSaved, events.DraftSavedPayload{Created: created})
	}
	if followUp {
		a.Touch()
	}
}

func (a *AutosaveCoordinator) announceSuppressed() {
	a.logger.Info("autosave suppressed for non-user owner")
	a.publish(context.Background(), events.EventAutosaveSuppressed, events.AutosaveSuppressedPayload{})
}

func (a *AutosaveCoordinator) publish(ctx context.Context, eventType events.EventType, payload interface{}) {
	if a.dispatcher == nil {
		return
	}
	_ = a.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  a.session.TicketID(),
		SessionID: a.session.ID(),
		ActorID:   a.session.Actor().ID,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
