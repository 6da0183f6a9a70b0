package query

import (
	"context"
	"time"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/session"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
	"github.com/reussite-hub/reussite-tutoring-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST SESSIONS QUERY
// Returns the sessions of an encadrement, optionally filtered by status,
// soonest first.
// ══════════════════════════════════════════════════════════════════════════════

// ListSessionsQuery contains the lookup parameters.
type ListSessionsQuery struct {
	// EncadrementID is the subscription whose sessions to list.
	EncadrementID string

	// Status filters by session status; empty means all.
	Status string

	// UpcomingOnly drops sessions whose start lies in the past.
	UpcomingOnly bool
}

// Validate validates the query parameters.
func (q *ListSessionsQuery) Validate() error {
	if q.EncadrementID == "" {
		return shared.NewDomainError("query", "ListSessions", shared.ErrEmptyValue, "encadrement_id is required")
	}
	if q.Status != "" && !session.Status(q.Status).IsValid() {
		return shared.NewDomainError("query", "ListSessions", shared.ErrInvalidInput, "unknown session status")
	}
	return nil
}

// SessionDTO is the read model of one session.
type SessionDTO struct {
	SessionID       string    `json:"session_id"`
	EncadrementID   string    `json:"encadrement_id"`
	UserID          string    `json:"user_id"`
	TeacherID       string    `json:"teacher_id"`
	Date            time.Time `json:"date"`
	DurationMinutes int       `json:"duration_minutes"`
	Subject         string    `json:"subject"`
	Status          string    `json:"status"`
	Notes           string    `json:"notes,omitempty"`
	MeetingURL      string    `json:"meeting_url,omitempty"`
	ResourceIDs     []string  `json:"resource_ids,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// ListSessionsResult contains the query result.
type ListSessionsResult struct {
	Sessions    []SessionDTO `json:"sessions"`
	Total       int          `json:"total"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// ListSessionsHandler handles ListSessionsQuery.
type ListSessionsHandler struct {
	sessions session.Repository
	now      func() time.Time
}

// NewListSessionsHandler creates a new ListSessionsHandler.
func NewListSessionsHandler(sessions session.Repository) *ListSessionsHandler {
	return &ListSessionsHandler{
		sessions: sessions,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the query.
func (h *ListSessionsHandler) Handle(ctx context.Context, query ListSessionsQuery) (*ListSessionsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	id, err := shared.NewEncadrementID(query.EncadrementID)
	if err != nil {
		return nil, err
	}

	all, err := h.sessions.ListByEncadrement(ctx, id)
	if err != nil {
		return nil, err
	}

	now := h.now()
	dtos := make([]SessionDTO, 0, len(all))
	for _, s := range all {
		if query.Status != "" && s.Status != session.Status(query.Status) {
			continue
		}
		if query.UpcomingOnly && s.Date.Before(now) {
			continue
		}
		dtos = append(dtos, buildSessionDTO(s))
	}

	return &ListSessionsResult{
		Sessions:    dtos,
		Total:       len(dtos),
		GeneratedAt: now,
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────

// TeacherAgendaQuery lists a teacher's booked slots inside a time range,
// for the conflict view of the scheduling UI.
type TeacherAgendaQuery struct {
	// TeacherID is the teacher whose agenda to fetch.
	TeacherID string

	// From and To bound the half-open range [From, To).
	From time.Time
	To   time.Time
}

// Validate validates the query parameters.
func (q *TeacherAgendaQuery) Validate() error {
	if q.TeacherID == "" {
		return shared.NewDomainError("query", "TeacherAgenda", shared.ErrEmptyValue, "teacher_id is required")
	}
	if q.From.IsZero() || q.To.IsZero() || !q.To.After(q.From) {
		return shared.NewDomainError("query", "TeacherAgenda", shared.ErrInvalidInput, "range must be a non-empty [from, to) interval")
	}
	return nil
}

// TeacherAgendaResult contains the query result.
type TeacherAgendaResult struct {
	Sessions    []SessionDTO `json:"sessions"`
	Total       int          `json:"total"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// TeacherAgendaHandler handles TeacherAgendaQuery.
type TeacherAgendaHandler struct {
	sessions session.Repository
}

// NewTeacherAgendaHandler creates a new TeacherAgendaHandler.
func NewTeacherAgendaHandler(sessions session.Repository) *TeacherAgendaHandler {
	return &TeacherAgendaHandler{sessions: sessions}
}

// Handle executes the query.
func (h *TeacherAgendaHandler) Handle(ctx context.Context, query TeacherAgendaQuery) (*TeacherAgendaResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	teacherID, err := shared.NewUserID(query.TeacherID)
	if err != nil {
		return nil, err
	}

	window := timeutil.Window{From: query.From, To: query.To}
	sessions, err := h.sessions.ListTeacherSessionsInWindow(ctx, teacherID, window)
	if err != nil {
		return nil, err
	}

	dtos := make([]SessionDTO, len(sessions))
	for i, s := range sessions {
		dtos[i] = buildSessionDTO(s)
	}

	return &TeacherAgendaResult{
		Sessions:    dtos,
		Total:       len(dtos),
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func buildSessionDTO(s *session.Session) SessionDTO {
	return SessionDTO{
		SessionID:       s.ID,
		EncadrementID:   s.EncadrementID.String(),
		UserID:          s.UserID.String(),
		TeacherID:       s.TeacherID.String(),
		Date:            s.Date,
		DurationMinutes: s.DurationMinutes,
		Subject:         s.Subject,
		Status:          s.Status.String(),
		Notes:           s.Notes,
		MeetingURL:      s.MeetingURL,
		ResourceIDs:     s.ResourceIDs,
		CreatedAt:       s.CreatedAt,
	}
}
