package command

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/encadrement"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/messaging"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/progress"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/resource"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/session"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
	"github.com/reussite-hub/reussite-tutoring-hub/pkg/timeutil"
)

// In-memory repository fakes implementing the same conditional-write
// contracts as the real store, so handler tests exercise the actual race
// semantics (state preconditions, quota re-checks) without a database.

type fakeEncadrementRepo struct {
	mu   sync.Mutex
	rows map[shared.EncadrementID]*encadrement.Encadrement
}

func newFakeEncadrementRepo() *fakeEncadrementRepo {
	return &fakeEncadrementRepo{rows: make(map[shared.EncadrementID]*encadrement.Encadrement)}
}

func (r *fakeEncadrementRepo) Create(_ context.Context, e *encadrement.Encadrement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[e.ID]; ok {
		return shared.ErrAlreadyExists
	}
	cp := *e
	r.rows[e.ID] = &cp
	return nil
}

func (r *fakeEncadrementRepo) GetByID(_ context.Context, id shared.EncadrementID) (*encadrement.Encadrement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[id]
	if !ok {
		return nil, shared.ErrEncadrementNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *fakeEncadrementRepo) GetByParticipants(_ context.Context, userID, teacherID shared.UserID) (*encadrement.Encadrement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.rows {
		if e.UserID == userID && e.TeacherID == teacherID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeEncadrementRepo) ListByUser(_ context.Context, userID shared.UserID) ([]*encadrement.Encadrement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*encadrement.Encadrement
	for _, e := range r.rows {
		if e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeEncadrementRepo) ListByTeacher(_ context.Context, teacherID shared.UserID) ([]*encadrement.Encadrement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*encadrement.Encadrement
	for _, e := range r.rows {
		if e.TeacherID == teacherID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeEncadrementRepo) UpdateStatus(_ context.Context, id shared.EncadrementID, from []encadrement.Status, to encadrement.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[id]
	if !ok {
		return shared.ErrEncadrementNotFound
	}
	for _, f := range from {
		if e.Status == f {
			e.Status = to
			e.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return shared.ErrStateTransition
}

func (r *fakeEncadrementRepo) ApplyBillingOutcome(_ context.Context, e *encadrement.Encadrement, expectedNextBilling time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[e.ID]
	if !ok {
		return shared.ErrEncadrementNotFound
	}
	if !stored.NextBillingDate.Equal(expectedNextBilling) {
		return shared.ErrConcurrentModification
	}
	cp := *e
	r.rows[e.ID] = &cp
	return nil
}

func (r *fakeEncadrementRepo) ListBillingDue(_ context.Context, asOf time.Time, limit int) ([]*encadrement.Encadrement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*encadrement.Encadrement
	for _, e := range r.rows {
		if e.BillingDue(asOf) {
			cp := *e
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *fakeEncadrementRepo) GetStatus(_ context.Context, id shared.EncadrementID) (encadrement.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[id]
	if !ok {
		return "", shared.ErrEncadrementNotFound
	}
	return e.Status, nil
}

// put installs an encadrement directly, bypassing Create.
func (r *fakeEncadrementRepo) put(e *encadrement.Encadrement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.rows[e.ID] = &cp
}

// flakyEncadrementRepo fails ApplyBillingOutcome a fixed number of times with
// a retryable store error before delegating, standing in for a transient
// outage between the read and the conditional write.
type flakyEncadrementRepo struct {
	*fakeEncadrementRepo
	mu       sync.Mutex
	failures int
	attempts int
}

func (r *flakyEncadrementRepo) ApplyBillingOutcome(ctx context.Context, e *encadrement.Encadrement, expectedNextBilling time.Time) error {
	r.mu.Lock()
	r.attempts++
	flake := r.failures > 0
	if flake {
		r.failures--
	}
	r.mu.Unlock()
	if flake {
		return shared.WrapError("encadrement", "ApplyBillingOutcome", shared.ErrStoreUnavailable,
			"apply billing outcome", errors.New("connection refused"))
	}
	return r.fakeEncadrementRepo.ApplyBillingOutcome(ctx, e, expectedNextBilling)
}

// ─────────────────────────────────────────────────────────────────────────────

type fakeSessionRepo struct {
	mu      sync.Mutex
	rows    map[string]*session.Session
	parents *fakeEncadrementRepo
}

func newFakeSessionRepo(parents *fakeEncadrementRepo) *fakeSessionRepo {
	return &fakeSessionRepo{rows: make(map[string]*session.Session), parents: parents}
}

func (r *fakeSessionRepo) CreateChecked(ctx context.Context, s *session.Session, window timeutil.Window, quota int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	parent, err := r.parents.GetByID(ctx, s.EncadrementID)
	if err != nil {
		return err
	}
	if !parent.IsActive() {
		return shared.ErrSubscriptionNotActive
	}

	count := 0
	for _, existing := range r.rows {
		if existing.EncadrementID == s.EncadrementID && window.Contains(existing.CreatedAt) {
			count++
		}
	}
	if count >= quota {
		return shared.ErrSessionQuotaReached
	}

	for _, existing := range r.rows {
		if existing.TeacherID == s.TeacherID && existing.Overlaps(s) {
			return shared.ErrSessionOverlap
		}
	}

	cp := *s
	r.rows[s.ID] = &cp
	return nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id string) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSessionRepo) UpdateStatus(_ context.Context, id string, from, to session.Status, notes string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[id]
	if !ok {
		return shared.ErrNotFound
	}
	if s.Status != from {
		return shared.ErrStateTransition
	}
	s.Status = to
	if notes != "" {
		s.Notes = notes
	}
	s.UpdatedAt = now
	return nil
}

func (r *fakeSessionRepo) CountCreatedInWindow(_ context.Context, encadrementID shared.EncadrementID, window timeutil.Window) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, s := range r.rows {
		if s.EncadrementID == encadrementID && window.Contains(s.CreatedAt) {
			count++
		}
	}
	return count, nil
}

func (r *fakeSessionRepo) ListByEncadrement(_ context.Context, encadrementID shared.EncadrementID) ([]*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*session.Session
	for _, s := range r.rows {
		if s.EncadrementID == encadrementID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) ListTeacherSessionsInWindow(_ context.Context, teacherID shared.UserID, window timeutil.Window) ([]*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*session.Session
	for _, s := range r.rows {
		if s.TeacherID == teacherID && s.Status != session.StatusCancelled && s.Window().Overlaps(window) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) ListUpcomingConfirmed(_ context.Context, window timeutil.Window) ([]*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*session.Session
	for _, s := range r.rows {
		if s.Status == session.StatusConfirmed && window.Contains(s.Date) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────

type fakeMessageRepo struct {
	mu   sync.Mutex
	rows []*messaging.Message
	seq  time.Time
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{seq: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (r *fakeMessageRepo) Append(_ context.Context, m *messaging.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq = r.seq.Add(time.Second)
	m.CreatedAt = r.seq
	cp := *m
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeMessageRepo) GetByID(_ context.Context, id string) (*messaging.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.rows {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, shared.ErrMessageNotFound
}

func (r *fakeMessageRepo) MarkRead(_ context.Context, id string, readerID shared.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.rows {
		if m.ID == id {
			if readerID != m.RecipientID {
				return shared.ErrNotRecipient
			}
			m.Read = true
			return nil
		}
	}
	return shared.ErrMessageNotFound
}

func (r *fakeMessageRepo) ListByChannel(_ context.Context, encadrementID shared.EncadrementID, limit int) ([]*messaging.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*messaging.Message
	for _, m := range r.rows {
		if m.EncadrementID == encadrementID {
			cp := *m
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *fakeMessageRepo) CountUnread(_ context.Context, encadrementID shared.EncadrementID, readerID shared.UserID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, m := range r.rows {
		if m.EncadrementID == encadrementID && m.RecipientID == readerID && !m.Read {
			count++
		}
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────

type progressKey struct {
	enc     shared.EncadrementID
	chapter shared.Chapter
}

type fakeProgressRepo struct {
	mu   sync.Mutex
	rows map[progressKey]*progress.Progression
	seq  time.Time
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{
		rows: make(map[progressKey]*progress.Progression),
		seq:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (r *fakeProgressRepo) Upsert(_ context.Context, p *progress.Progression) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq = r.seq.Add(time.Second)
	key := progressKey{enc: p.EncadrementID, chapter: p.Chapter}
	if existing, ok := r.rows[key]; ok && existing.LastUpdated.After(r.seq) {
		return nil
	}
	cp := *p
	cp.LastUpdated = r.seq
	r.rows[key] = &cp
	return nil
}

func (r *fakeProgressRepo) GetByEncadrement(_ context.Context, encadrementID shared.EncadrementID) (map[shared.Chapter]*progress.Progression, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[shared.Chapter]*progress.Progression)
	for key, p := range r.rows {
		if key.enc == encadrementID {
			cp := *p
			out[key.chapter] = &cp
		}
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────

type fakeResourceRepo struct {
	mu   sync.Mutex
	rows []*resource.Resource
}

func newFakeResourceRepo() *fakeResourceRepo { return &fakeResourceRepo{} }

func (r *fakeResourceRepo) Create(_ context.Context, res *resource.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *res
	cp.CreatedAt = time.Now().UTC()
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeResourceRepo) ListByEncadrement(_ context.Context, encadrementID shared.EncadrementID) ([]*resource.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*resource.Resource
	for i := len(r.rows) - 1; i >= 0; i-- {
		if r.rows[i].EncadrementID == encadrementID {
			cp := *r.rows[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────

// statusStub satisfies only the StatusReader port, so a test compiling
// against it proves the handler never needs the full repository.
type statusStub struct {
	status encadrement.Status
	calls  int
}

func (s *statusStub) GetStatus(_ context.Context, _ shared.EncadrementID) (encadrement.Status, error) {
	s.calls++
	return s.status, nil
}

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []shared.EncadrementID
}

func (i *recordingInvalidator) Invalidate(_ context.Context, id shared.EncadrementID) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ids = append(i.ids, id)
	return nil
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) typesSeen() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}
