// Package session holds the editing state of one ticket form: the
// working copy of the field values, per-field enabled/required flags
// derived from policy, the dirty flag and the autosave machinery.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/assistenza/helpdesk-gateway/internal/backend"
	"github.com/assistenza/helpdesk-gateway/internal/domain"
	"github.com/assistenza/helpdesk-gateway/internal/policy"
	apperrors "github.com/assistenza/helpdesk-gateway/pkg/util"
)

// OwnerResolver looks up the account behind an email address.
type OwnerResolver interface {
	ResolveByEmail(ctx context.Context, email string) (domain.Account, bool, error)
}

// FieldState is the presentation state of one form field.
type FieldState struct {
	Name     domain.FieldName `json:"name"`
	Value    string           `json:"value"`
	Enabled  bool             `json:"enabled"`
	Required bool             `json:"required"`
	Valid    bool             `json:"valid"`
}

// FormSession is the per-edit working copy of a ticket form. All state
// is guarded by mu; the session context is cancelled on Close so that
// in-flight saves cannot apply their results afterwards.
type FormSession struct {
	id    string
	actor domain.Actor

	mu             sync.Mutex
	ticket         *domain.Ticket
	values         map[domain.FieldName]string
	owner          policy.OwnerResolution
	perms          policy.Permissions
	dirty          bool
	saving         bool
	pendingSave    bool
	suppressed     bool
	suppressWarned bool
	editGen        uint64

	ctx      context.Context
	cancel   context.CancelFunc
	resolver OwnerResolver
	autosave *AutosaveCoordinator
	logger   *zap.Logger
}

// newFormSession builds a session whose context outlives the opening
// request but carries its bearer token, so autosaves run with the
// caller's own authority until Close cancels them.
func newFormSession(id string, parent context.Context, actor domain.Actor, t *domain.Ticket, owner policy.OwnerResolution, deps Dependencies) *FormSession {
	base := context.Background()
	if token, ok := backend.TokenFromContext(parent); ok {
		base = backend.WithToken(base, token)
	}
	ctx, cancel := context.WithCancel(base)
	s := &FormSession{
		id:       id,
		actor:    actor,
		ticket:   t,
		values:   valuesFromTicket(t),
		owner:    owner,
		ctx:      ctx,
		cancel:   cancel,
		resolver: deps.Resolver,
		logger:   deps.Logger.With(zap.String("session_id", id), zap.String("actor_id", actor.ID)),
	}
	s.perms = policy.Resolve(actor, t, owner)
	announce := s.refreshSuppressionLocked()
	s.autosave = newAutosaveCoordinator(s, deps)
	if announce {
		s.autosave.announceSuppressed()
	}
	return s
}

func valuesFromTicket(t *domain.Ticket) map[domain.FieldName]string {
	values := map[domain.FieldName]string{
		domain.FieldTitle:          t.Title,
		domain.FieldDescription:    t.Description,
		domain.FieldCategoryID:     t.CategoryID,
		domain.FieldSupportService: t.SupportServiceID,
		domain.FieldPriority:       string(t.Priority),
		domain.FieldEmail:          t.OwnerEmail,
		domain.FieldFiscalCode:     t.OwnerFiscalCode,
		domain.FieldPhoneNumber:    t.OwnerPhone,
	}
	if t.AssignedToID != nil {
		values[domain.FieldAssignedTo] = *t.AssignedToID
	}
	return values
}

// ID returns the session identifier.
func (s *FormSession) ID() string { return s.id }

// Actor returns the acting account.
func (s *FormSession) Actor() domain.Actor { return s.actor }

// TicketID returns the persisted ticket id, empty for an unsaved draft.
func (s *FormSession) TicketID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticket.ID
}

// Ticket returns a copy of the last persisted ticket snapshot.
func (s *FormSession) Ticket() domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.ticket
}

// Dirty reports whether there are unsaved edits.
func (s *FormSession) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// SaveInFlight reports whether a save request is currently running.
func (s *FormSession) SaveInFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

// Suppressed reports whether autosave is currently suppressed.
func (s *FormSession) Suppressed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suppressed
}

// Permissions returns the policy outcome for the current owner
// resolution.
func (s *FormSession) Permissions() policy.Permissions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.perms
}

// Owner returns the current owner resolution.
func (s *FormSession) Owner() policy.OwnerResolution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// Fields returns the presentation state of every form field.
func (s *FormSession) Fields() []FieldState {
	s.mu.Lock()
	defer s.mu.Unlock()
	states := make([]FieldState, 0, len(domain.AllFields))
	for _, name := range domain.AllFields {
		states = append(states, s.fieldStateLocked(name))
	}
	return states
}

// Field returns the presentation state of one field.
func (s *FormSession) Field(name domain.FieldName) (FieldState, bool) {
	if !domain.KnownField(name) {
		return FieldState{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fieldStateLocked(name), true
}

func (s *FormSession) fieldStateLocked(name domain.FieldName) FieldState {
	value := s.values[name]
	required := s.perms.FieldRequired(name)
	return FieldState{
		Name:     name,
		Value:    value,
		Enabled:  !s.perms.FieldDisabled(name),
		Required: required,
		Valid:    s.fieldValidLocked(name, value, required),
	}
}

func (s *FormSession) fieldValidLocked(name domain.FieldName, value string, required bool) bool {
	if required && strings.TrimSpace(value) == "" {
		return false
	}
	if name == domain.FieldPriority && value != "" && !domain.TicketPriority(value).Valid() {
		return false
	}
	return true
}

// SetField updates one field of the working copy. Editing a disabled
// field or an unknown field fails locally. Changing the email while a
// staff member edits re-resolves the owner, which can flip the field
// policy and the autosave suppression.
func (s *FormSession) SetField(ctx context.Context, name domain.FieldName, value string) error {
	if !domain.KnownField(name) {
		return apperrors.NewValidationError("unknown form field", map[string]interface{}{"field": string(name)})
	}

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return apperrors.NewConflict("the editing session is closed", nil)
	}
	if !s.perms.CanEdit {
		s.mu.Unlock()
		return apperrors.NewAuthorizationError("the ticket is not editable")
	}
	if s.perms.FieldDisabled(name) {
		s.mu.Unlock()
		return apperrors.NewValidationError("the field is read-only", map[string]interface{}{"field": string(name)})
	}
	if s.values[name] == value {
		s.mu.Unlock()
		return nil
	}
	s.values[name] = value
	s.dirty = true
	s.editGen++
	s.mu.Unlock()

	var resolveErr error
	if name == domain.FieldEmail {
		resolveErr = s.resolveOwner(ctx, value)
	}

	s.mu.Lock()
	announce := s.refreshSuppressionLocked()
	suppressed := s.suppressed
	s.mu.Unlock()

	if announce {
		s.autosave.announceSuppressed()
	}
	if resolveErr != nil {
		return resolveErr
	}
	if !suppressed {
		s.autosave.Touch()
	}
	return nil
}

// resolveOwner re-resolves the owner account for a changed email and
// recomputes the field policy. A failed lookup still downgrades the
// owner to unknown, so suppression and the field rules never lag behind
// the typed address. A USER owner gets fiscal code and phone prefilled
// from the directory when the form is still blank there.
func (s *FormSession) resolveOwner(ctx context.Context, email string) error {
	resolution := policy.OwnerResolution{Email: email}
	var (
		account    domain.Account
		found      bool
		resolveErr error
	)
	if strings.TrimSpace(email) != "" {
		account, found, resolveErr = s.resolver.ResolveByEmail(ctx, email)
	}
	if resolveErr == nil && found {
		resolution = policy.OwnerResolution{
			AccountID: account.ID,
			Email:     account.Email,
			Role:      account.Role,
			Known:     true,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.owner = resolution
	s.perms = policy.Resolve(s.actor, s.ticket, resolution)
	if resolution.IsUser() {
		if s.values[domain.FieldFiscalCode] == "" {
			s.values[domain.FieldFiscalCode] = account.FiscalCode
		}
		if s.values[domain.FieldPhoneNumber] == "" {
			s.values[domain.FieldPhoneNumber] = account.Phone
		}
	}
	return resolveErr
}

// refreshSuppressionLocked recomputes the autosave suppression flag.
// Autosave is suppressed while a staff member has cleared the email or
// pointed it at a non-USER account. The returned flag asks the caller
// to announce the transition into suppression, once until it clears.
func (s *FormSession) refreshSuppressionLocked() bool {
	suppressed := false
	if s.actor.IsStaff() {
		email := strings.TrimSpace(s.values[domain.FieldEmail])
		if email == "" {
			suppressed = true
		} else if s.owner.Known && s.owner.Role != domain.RoleUser {
			suppressed = true
		}
	}
	announce := suppressed && !s.suppressed && !s.suppressWarned
	if announce {
		s.suppressWarned = true
	}
	if !suppressed {
		s.suppressWarned = false
	}
	s.suppressed = suppressed
	return announce
}

// IsFinalizable reports whether the draft can be submitted: every
// required field is valid and the resolved owner is a registered USER
// account.
func (s *FormSession) IsFinalizable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalizableLocked()
}

func (s *FormSession) finalizableLocked() bool {
	if s.ticket.Status != domain.TicketStatusDraft {
		return false
	}
	if !s.owner.IsUser() {
		return false
	}
	for _, name := range domain.AllFields {
		if !s.perms.FieldRequired(name) {
			continue
		}
		if !s.fieldValidLocked(name, s.values[name], true) {
			return false
		}
	}
	return true
}

// snapshotLocked builds the backend payload from the raw working copy,
// disabled values included.
func (s *FormSession) snapshotLocked(status domain.TicketStatus) backend.TicketRequest {
	req := backend.TicketRequest{
		Title:            s.values[domain.FieldTitle],
		Description:      s.values[domain.FieldDescription],
		CategoryID:       s.values[domain.FieldCategoryID],
		SupportServiceID: s.values[domain.FieldSupportService],
		Priority:         domain.TicketPriority(s.values[domain.FieldPriority]),
		Email:            s.values[domain.FieldEmail],
		FiscalCode:       s.values[domain.FieldFiscalCode],
		PhoneNumber:      s.values[domain.FieldPhoneNumber],
		Status:           status,
	}
	if assignee := s.values[domain.FieldAssignedTo]; assignee != "" {
		req.AssignedToID = &assignee
	}
	return req
}

// BeginFinalize claims the save slot for a submit. The pending debounce
// timer is stopped first, so an armed autosave cannot fire and write
// concurrently while the submit request is in flight. Every successful
// claim must be released with EndFinalize.
func (s *FormSession) BeginFinalize() (backend.TicketRequest, string, error) {
	s.autosave.StopTimer()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return backend.TicketRequest{}, "", apperrors.NewConflict("the editing session is closed", nil)
	}
	if s.saving {
		return backend.TicketRequest{}, "", apperrors.NewConflict("a save is already in progress, wait for it to finish", nil)
	}
	if !s.finalizableLocked() {
		return backend.TicketRequest{}, "", apperrors.NewValidationError("all required fields must be filled and the owner must be a registered USER account", nil)
	}
	s.saving = true
	return s.snapshotLocked(domain.TicketStatusOpen), s.ticket.ID, nil
}

// EndFinalize releases the slot claimed by BeginFinalize. A persisted
// ticket becomes the new baseline; on nil the submit failed and the
// draft stays dirty so no edit is lost.
func (s *FormSession) EndFinalize(saved *domain.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false
	s.pendingSave = false
	if saved == nil {
		return
	}
	s.ticket = saved
	s.values = valuesFromTicket(saved)
	s.dirty = false
	s.perms = policy.Resolve(s.actor, saved, s.owner)
}

// Close tears the session down. The session context is cancelled, so a
// save still in flight completes without effect.
func (s *FormSession) Close() {
	s.autosave.StopTimer()
	s.cancel()
}

// beginSave captures the payload for an autosave attempt if the gating
// conditions hold. When a save is already in flight the attempt is
// deferred instead of cancelled.
func (s *FormSession) beginSave() (backend.TicketRequest, string, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return backend.TicketRequest{}, "", 0, false
	}
	if s.saving {
		s.pendingSave = true
		return backend.TicketRequest{}, "", 0, false
	}
	if !s.shouldSaveLocked() {
		return backend.TicketRequest{}, "", 0, false
	}
	s.saving = true
	return s.snapshotLocked(domain.TicketStatusDraft), s.ticket.ID, s.editGen, true
}

func (s *FormSession) shouldSaveLocked() bool {
	if !s.dirty || s.suppressed {
		return false
	}
	if s.ticket.Status != domain.TicketStatusDraft {
		return false
	}
	return strings.TrimSpace(s.values[domain.FieldTitle]) != "" ||
		strings.TrimSpace(s.values[domain.FieldDescription]) != ""
}

// completeSave applies the outcome of a save. On success the session
// becomes pristine unless edits happened while the request was in
// flight; on failure the dirty flag stays so the next edit retries. The
// returned flag asks the coordinator to schedule a follow-up save.
func (s *FormSession) completeSave(gen uint64, saved *domain.Ticket, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false
	if s.ctx.Err() != nil {
		s.pendingSave = false
		return false
	}
	if err == nil && saved != nil {
		s.ticket = saved
		if s.editGen == gen {
			s.dirty = false
		}
	}
	deferred := s.pendingSave
	s.pendingSave = false
	if err != nil {
		// No automatic retry after a failure.
		return false
	}
	return deferred || s.editGen != gen
}

// Context returns the session-scoped context.
func (s *FormSession) Context() context.Context { return s.ctx }

// QuietPeriod exposes the autosave debounce interval, mainly for the
// HTTP surface to report.
func (s *FormSession) QuietPeriod() time.Duration { return s.autosave.quiet }
