package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/assistenza/helpdesk-gateway/internal/backend"
	"github.com/assistenza/helpdesk-gateway/internal/domain"
	"github.com/assistenza/helpdesk-gateway/internal/events"
	apperrors "github.com/assistenza/helpdesk-gateway/pkg/util"
)

const testQuietPeriod = 20 * time.Millisecond

// fakeBackend scripts the draft persistence calls. A non-nil block
// channel holds create/update calls open until it is closed.
type fakeBackend struct {
	backend.Client

	mu          sync.Mutex
	creates     int
	updates     int
	inFlight    int
	maxInFlight int
	failSaves   bool
	block       chan struct{}
	lastRequest backend.TicketRequest
	tickets     map[string]*domain.Ticket
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{tickets: map[string]*domain.Ticket{}}
}

func (f *fakeBackend) enter() chan struct{} {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	block := f.block
	f.mu.Unlock()
	return block
}

func (f *fakeBackend) leave() {
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

func (f *fakeBackend) save(id string, req backend.TicketRequest) (*domain.Ticket, error) {
	block := f.enter()
	if block != nil {
		<-block
	}
	defer f.leave()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastRequest = req
	if f.failSaves {
		return nil, apperrors.NewNetworkError(errors.New("connection refused"))
	}
	created := id == ""
	if created {
		id = uuid.NewString()
		f.creates++
	} else {
		f.updates++
	}
	assignee := req.AssignedToID
	t := &domain.Ticket{
		ID:               id,
		Title:            req.Title,
		Description:      req.Description,
		CategoryID:       req.CategoryID,
		SupportServiceID: req.SupportServiceID,
		Priority:         req.Priority,
		Status:           req.Status,
		OwnerEmail:       req.Email,
		OwnerFiscalCode:  req.FiscalCode,
		OwnerPhone:       req.PhoneNumber,
		AssignedToID:     assignee,
	}
	f.tickets[id] = t
	return t, nil
}

func (f *fakeBackend) CreateTicket(ctx context.Context, req backend.TicketRequest) (*domain.Ticket, error) {
	return f.save("", req)
}

func (f *fakeBackend) UpdateTicket(ctx context.Context, id string, req backend.TicketRequest) (*domain.Ticket, error) {
	return f.save(id, req)
}

func (f *fakeBackend) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tickets[id]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, apperrors.NewNotFound("ticket", nil)
}

func (f *fakeBackend) saveCounts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates, f.updates
}

// fakeResolver resolves emails from a fixed account set. A non-nil
// failWith makes every lookup fail with that error.
type fakeResolver struct {
	accounts map[string]domain.Account

	mu       sync.Mutex
	failWith error
}

func (f *fakeResolver) failNext(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = err
}

func (f *fakeResolver) ResolveByEmail(ctx context.Context, email string) (domain.Account, bool, error) {
	f.mu.Lock()
	failWith := f.failWith
	f.mu.Unlock()
	if failWith != nil {
		return domain.Account{}, false, failWith
	}
	account, ok := f.accounts[strings.ToLower(email)]
	return account, ok, nil
}

type capturedEvents struct {
	mu   sync.Mutex
	seen []events.Event
}

func (c *capturedEvents) ofType(eventType events.EventType) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Event
	for _, e := range c.seen {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func captureAll(dispatcher events.Dispatcher) *capturedEvents {
	captured := &capturedEvents{}
	handler := func(ctx context.Context, event events.Event) error {
		captured.mu.Lock()
		defer captured.mu.Unlock()
		captured.seen = append(captured.seen, event)
		return nil
	}
	for _, eventType := range []events.EventType{
		events.EventDraftSaved,
		events.EventDraftSaveFailed,
		events.EventAutosaveSuppressed,
	} {
		dispatcher.Subscribe(eventType, handler)
	}
	return captured
}

func testAccounts() map[string]domain.Account {
	return map[string]domain.Account{
		"u1@users.test": {
			ID:         "u1",
			Email:      "u1@users.test",
			Role:       domain.RoleUser,
			FiscalCode: "FC123",
			Phone:      "555-0100",
		},
		"pm1@helpdesk.test": {
			ID:    "pm1",
			Email: "pm1@helpdesk.test",
			Role:  domain.RolePM,
		},
	}
}

func newTestManager(t *testing.T, client backend.Client) (*Manager, events.Dispatcher) {
	t.Helper()
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	m := NewManager(Dependencies{
		Backend:     client,
		Resolver:    &fakeResolver{accounts: testAccounts()},
		Dispatcher:  dispatcher,
		Logger:      zap.NewNop(),
		QuietPeriod: testQuietPeriod,
	})
	return m, dispatcher
}

func userActor() domain.Actor {
	return domain.Actor{ID: "u1", Email: "u1@users.test", Roles: []domain.Role{domain.RoleUser}}
}

func staffActor() domain.Actor {
	return domain.Actor{ID: "h1", Email: "h1@helpdesk.test", Roles: []domain.Role{domain.RoleHelperSenior}}
}

func TestOpenFreshDraftForUser(t *testing.T) {
	m, _ := newTestManager(t, newFakeBackend())
	s, err := m.Open(context.Background(), userActor(), "")
	require.NoError(t, err)
	defer m.Close(s.ID())

	require.Empty(t, s.TicketID())
	require.False(t, s.Dirty())
	require.False(t, s.IsFinalizable())

	email, ok := s.Field(domain.FieldEmail)
	require.True(t, ok)
	require.Equal(t, "u1@users.test", email.Value)
	require.False(t, email.Enabled)

	assignee, _ := s.Field(domain.FieldAssignedTo)
	require.False(t, assignee.Enabled)
	require.False(t, assignee.Required)
}

func TestSetFieldRejectsDisabledAndUnknownFields(t *testing.T) {
	m, _ := newTestManager(t, newFakeBackend())
	s, err := m.Open(context.Background(), userActor(), "")
	require.NoError(t, err)
	defer m.Close(s.ID())

	err = s.SetField(context.Background(), domain.FieldEmail, "someone@else.test")
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	err = s.SetField(context.Background(), domain.FieldName("color"), "red")
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestFinalizableWhenRequiredFieldsFilled(t *testing.T) {
	m, _ := newTestManager(t, newFakeBackend())
	s, err := m.Open(context.Background(), userActor(), "")
	require.NoError(t, err)
	defer m.Close(s.ID())

	ctx := context.Background()
	require.NoError(t, s.SetField(ctx, domain.FieldTitle, "printer on fire"))
	require.NoError(t, s.SetField(ctx, domain.FieldDescription, "smoke everywhere"))
	require.NoError(t, s.SetField(ctx, domain.FieldCategoryID, "cat-1"))
	require.NoError(t, s.SetField(ctx, domain.FieldSupportService, "svc-1"))
	require.NoError(t, s.SetField(ctx, domain.FieldPriority, "HIGH"))
	require.False(t, s.IsFinalizable(), "fiscal code and phone still missing")

	require.NoError(t, s.SetField(ctx, domain.FieldFiscalCode, "FC123"))
	require.NoError(t, s.SetField(ctx, domain.FieldPhoneNumber, "555-0100"))
	require.True(t, s.IsFinalizable())
}

func TestStaffEmailChangeResolvesOwnerAndPrefills(t *testing.T) {
	m, _ := newTestManager(t, newFakeBackend())
	s, err := m.Open(context.Background(), staffActor(), "")
	require.NoError(t, err)
	defer m.Close(s.ID())

	require.NoError(t, s.SetField(context.Background(), domain.FieldEmail, "u1@users.test"))

	owner := s.Owner()
	require.True(t, owner.IsUser())
	require.Equal(t, "u1", owner.AccountID)

	fiscal, _ := s.Field(domain.FieldFiscalCode)
	require.Equal(t, "FC123", fiscal.Value)
	phone, _ := s.Field(domain.FieldPhoneNumber)
	require.Equal(t, "555-0100", phone.Value)

	assignee, _ := s.Field(domain.FieldAssignedTo)
	require.True(t, assignee.Enabled)
	require.True(t, assignee.Required)
	require.False(t, s.Suppressed())
}

func TestStaffNonUserOwnerSuppressesWithSingleWarning(t *testing.T) {
	m, dispatcher := newTestManager(t, newFakeBackend())
	captured := captureAll(dispatcher)

	s, err := m.Open(context.Background(), staffActor(), "")
	require.NoError(t, err)
	defer m.Close(s.ID())

	ctx := context.Background()
	require.NoError(t, s.SetField(ctx, domain.FieldEmail, "pm1@helpdesk.test"))
	require.True(t, s.Suppressed())

	// More edits while suppressed do not repeat the warning.
	require.NoError(t, s.SetField(ctx, domain.FieldTitle, "handover notes"))
	require.NoError(t, s.SetField(ctx, domain.FieldDescription, "details"))
	require.Len(t, captured.ofType(events.EventAutosaveSuppressed), 1)

	// Switching back to a USER owner clears suppression and re-arms
	// the warning.
	require.NoError(t, s.SetField(ctx, domain.FieldEmail, "u1@users.test"))
	require.False(t, s.Suppressed())
	require.NoError(t, s.SetField(ctx, domain.FieldEmail, "pm1@helpdesk.test"))
	require.Len(t, captured.ofType(events.EventAutosaveSuppressed), 2)
}

func TestUnregisteredEmailLeavesOwnerUnknown(t *testing.T) {
	m, _ := newTestManager(t, newFakeBackend())
	s, err := m.Open(context.Background(), staffActor(), "")
	require.NoError(t, err)
	defer m.Close(s.ID())

	require.NoError(t, s.SetField(context.Background(), domain.FieldEmail, "nobody@users.test"))
	require.False(t, s.Owner().Known)
	require.False(t, s.Suppressed())
	require.False(t, s.IsFinalizable())
}

func TestFailedOwnerLookupDowngradesToUnknown(t *testing.T) {
	resolver := &fakeResolver{accounts: testAccounts()}
	m := NewManager(Dependencies{
		Backend:     newFakeBackend(),
		Resolver:    resolver,
		Dispatcher:  events.NewInMemoryDispatcher(zap.NewNop()),
		Logger:      zap.NewNop(),
		QuietPeriod: testQuietPeriod,
	})
	s, err := m.Open(context.Background(), staffActor(), "")
	require.NoError(t, err)
	defer m.Close(s.ID())

	ctx := context.Background()
	require.NoError(t, s.SetField(ctx, domain.FieldEmail, "pm1@helpdesk.test"))
	require.True(t, s.Suppressed())

	resolver.failNext(apperrors.NewNetworkError(errors.New("directory unavailable")))
	err = s.SetField(ctx, domain.FieldEmail, "u1@users.test")
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeNetwork))

	// The stale staff resolution must not survive the failed lookup;
	// suppression follows the typed address, not the last success.
	owner := s.Owner()
	require.False(t, owner.Known)
	require.Equal(t, "u1@users.test", owner.Email)
	require.False(t, s.Suppressed())
	require.True(t, s.Dirty())

	fiscal, _ := s.Field(domain.FieldFiscalCode)
	require.False(t, fiscal.Required)
}

func TestOpenDeniedForForeignTicket(t *testing.T) {
	client := newFakeBackend()
	client.tickets["t9"] = &domain.Ticket{
		ID:          "t9",
		Status:      domain.TicketStatusDraft,
		OwnerUserID: "u2",
		OwnerEmail:  "u2@users.test",
	}
	m, _ := newTestManager(t, client)

	_, err := m.Open(context.Background(), userActor(), "t9")
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeAuthorization))
}

func TestManagerRegistryLifecycle(t *testing.T) {
	m, _ := newTestManager(t, newFakeBackend())
	s, err := m.Open(context.Background(), userActor(), "")
	require.NoError(t, err)

	got, ok := m.Get(s.ID())
	require.True(t, ok)
	require.Equal(t, s.ID(), got.ID())

	m.Close(s.ID())
	_, ok = m.Get(s.ID())
	require.False(t, ok)
	require.Error(t, s.Context().Err())
}
