package events

import (
	"time"

	"github.com/assistenza/helpdesk-gateway/internal/domain"
)

// EventType enumerates supported event identifiers. Events are the
// seam toward the notification/toast collaborator: the core reports,
// the subscriber renders.
type EventType string

const (
	EventDraftSaved          EventType = "draft_saved"
	EventDraftSaveFailed     EventType = "draft_save_failed"
	EventAutosaveSuppressed  EventType = "autosave_suppressed"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketDeleted       EventType = "ticket_deleted"
)

// Event represents a domain event emitted by the workflow components.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// DraftSavedPayload payload.
type DraftSavedPayload struct {
	Created bool `json:"created"`
}

// DraftSaveFailedPayload payload.
type DraftSaveFailedPayload struct {
	Reason string `json:"reason"`
}

// AutosaveSuppressedPayload payload.
type AutosaveSuppressedPayload struct {
	OwnerEmail string `json:"owner_email,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeID *string `json:"assignee_id,omitempty"`
}
