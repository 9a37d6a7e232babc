package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusDraft    TicketStatus = "DRAFT"
	TicketStatusOpen     TicketStatus = "OPEN"
	TicketStatusAnswered TicketStatus = "ANSWERED"
	TicketStatusSolved   TicketStatus = "SOLVED"
)

// Valid reports whether s is one of the four known statuses.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusDraft, TicketStatusOpen, TicketStatusAnswered, TicketStatusSolved:
		return true
	}
	return false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "LOW"
	TicketPriorityMedium   TicketPriority = "MEDIUM"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityCritical TicketPriority = "CRITICAL"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests. ID is empty until the
// backend persists the ticket for the first time.
type Ticket struct {
	ID               string
	Title            string
	Description      string
	CategoryID       string
	SupportServiceID string
	Priority         TicketPriority
	Status           TicketStatus
	OwnerUserID      string
	OwnerEmail       string
	OwnerFiscalCode  string
	OwnerPhone       string
	AssignedToID     *string
	CreatedAt        time.Time
}

// Persisted reports whether the backend has assigned an id yet.
func (t *Ticket) Persisted() bool {
	return t != nil && t.ID != ""
}

// AssignedTo reports whether the ticket is currently assigned to the
// given account.
func (t *Ticket) AssignedTo(accountID string) bool {
	return t != nil && t.AssignedToID != nil && *t.AssignedToID == accountID
}

// OwnedBy reports whether the given account owns the ticket.
func (t *Ticket) OwnedBy(accountID string) bool {
	return t != nil && accountID != "" && t.OwnerUserID == accountID
}
