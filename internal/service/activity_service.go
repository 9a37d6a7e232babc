package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/assistenza/helpdesk-gateway/internal/events"
	"github.com/assistenza/helpdesk-gateway/internal/observability"
)

// ActivityService turns domain events into the activity log and the
// save/transition counters.
type ActivityService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewActivityService creates the service.
func NewActivityService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *ActivityService {
	return &ActivityService{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to events.
func (a *ActivityService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventDraftSaved, a.handleDraftSaved)
	a.dispatcher.Subscribe(events.EventDraftSaveFailed, a.handleDraftSaveFailed)
	a.dispatcher.Subscribe(events.EventAutosaveSuppressed, a.handleAutosaveSuppressed)
	a.dispatcher.Subscribe(events.EventTicketStatusChanged, a.handleStatusChanged)
	a.dispatcher.Subscribe(events.EventTicketAssigned, a.handleAssigned)
	a.dispatcher.Subscribe(events.EventTicketDeleted, a.handleDeleted)
}

func (a *ActivityService) handleDraftSaved(ctx context.Context, event events.Event) error {
	a.logger.Info("DraftSaved", zap.String("ticket_id", event.TicketID), zap.String("session_id", event.SessionID))
	a.metrics.RecordSave("ok")
	return nil
}

func (a *ActivityService) handleDraftSaveFailed(ctx context.Context, event events.Event) error {
	a.logger.Warn("DraftSaveFailed", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	a.metrics.RecordSave("failed")
	return nil
}

func (a *ActivityService) handleAutosaveSuppressed(ctx context.Context, event events.Event) error {
	a.logger.Info("AutosaveSuppressed", zap.String("session_id", event.SessionID))
	a.metrics.RecordSave("suppressed")
	return nil
}

func (a *ActivityService) handleStatusChanged(ctx context.Context, event events.Event) error {
	a.logger.Info("TicketStatusChanged", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	if payload, ok := event.Payload.(events.TicketStatusChangedPayload); ok {
		a.metrics.RecordTransition(string(payload.OldStatus), string(payload.NewStatus))
	}
	return nil
}

func (a *ActivityService) handleAssigned(ctx context.Context, event events.Event) error {
	a.logger.Info("TicketAssigned", zap.String("ticket_id", event.TicketID), zap.String("actor_id", event.ActorID))
	return nil
}

func (a *ActivityService) handleDeleted(ctx context.Context, event events.Event) error {
	a.logger.Info("TicketDeleted", zap.String("ticket_id", event.TicketID), zap.String("actor_id", event.ActorID))
	return nil
}
