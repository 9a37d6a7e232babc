package dto

import (
	"github.com/assistenza/helpdesk-gateway/internal/session"
)

// OpenSessionRequest starts an editing session. An empty ticketId opens
// a fresh draft.
type OpenSessionRequest struct {
	TicketID string `json:"ticketId"`
}

// SetFieldRequest updates one form field.
type SetFieldRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// SessionView is the outward editing state of a form session.
type SessionView struct {
	ID          string               `json:"id"`
	TicketID    string               `json:"ticketId,omitempty"`
	Status      string               `json:"status"`
	Dirty       bool                 `json:"dirty"`
	Saving      bool                 `json:"saving"`
	Suppressed  bool                 `json:"autosaveSuppressed"`
	Finalizable bool                 `json:"finalizable"`
	Fields      []session.FieldState `json:"fields"`
	Permissions PermissionsView      `json:"permissions"`
}

// NewSessionView snapshots a form session.
func NewSessionView(s *session.FormSession) SessionView {
	ticket := s.Ticket()
	return SessionView{
		ID:          s.ID(),
		TicketID:    ticket.ID,
		Status:      string(ticket.Status),
		Dirty:       s.Dirty(),
		Saving:      s.SaveInFlight(),
		Suppressed:  s.Suppressed(),
		Finalizable: s.IsFinalizable(),
		Fields:      s.Fields(),
		Permissions: NewPermissionsView(s.Permissions()),
	}
}
