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
	"github.com/assistenza/helpdesk-gateway/internal/policy"
	apperrors "github.com/assistenza/helpdesk-gateway/pkg/util"
)

// Dependencies bundles the collaborators a form session needs.
type Dependencies struct {
	Backend     backend.Client
	Resolver    OwnerResolver
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	QuietPeriod time.Duration
}

// Manager opens and tracks the live form sessions of the process.
type Manager struct {
	deps Dependencies

	mu       sync.RWMutex
	sessions map[string]*FormSession
}

// NewManager constructs the session registry.
func NewManager(deps Dependencies) *Manager {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Manager{
		deps:     deps,
		sessions: make(map[string]*FormSession),
	}
}

// Open starts an editing session. With an empty ticketID a fresh draft
// is created locally; nothing is persisted until the first autosave.
// Otherwise the ticket is fetched and the actor must be allowed to view
// it.
func (m *Manager) Open(ctx context.Context, actor domain.Actor, ticketID string) (*FormSession, error) {
	var (
		t   *domain.Ticket
		err error
	)
	if ticketID == "" {
		t = m.freshDraft(actor)
	} else {
		t, err = m.deps.Backend.GetTicket(ctx, ticketID)
		if err != nil {
			return nil, err
		}
	}

	owner, err := m.resolveOwner(ctx, t.OwnerEmail)
	if err != nil {
		return nil, err
	}
	perms := policy.Resolve(actor, t, owner)
	if !perms.CanView {
		return nil, apperrors.NewAuthorizationError("you may not view this ticket")
	}

	s := newFormSession(uuid.NewString(), ctx, actor, t, owner, m.deps)
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s, nil
}

func (m *Manager) freshDraft(actor domain.Actor) *domain.Ticket {
	t := &domain.Ticket{
		Status:   domain.TicketStatusDraft,
		Priority: domain.TicketPriorityLow,
	}
	if !actor.IsStaff() {
		t.OwnerUserID = actor.ID
		t.OwnerEmail = actor.Email
	}
	return t
}

func (m *Manager) resolveOwner(ctx context.Context, email string) (policy.OwnerResolution, error) {
	if email == "" {
		return policy.OwnerResolution{}, nil
	}
	account, found, err := m.deps.Resolver.ResolveByEmail(ctx, email)
	if err != nil {
		return policy.OwnerResolution{}, err
	}
	if !found {
		return policy.OwnerResolution{Email: email}, nil
	}
	return policy.OwnerResolution{
		AccountID: account.ID,
		Email:     account.Email,
		Role:      account.Role,
		Known:     true,
	}, nil
}

// Get returns a live session by id.
func (m *Manager) Get(id string) (*FormSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Close tears a session down and removes it from the registry.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// CloseAll tears every session down, used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*FormSession)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
