// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"time"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/encadrement"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/session"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SUBSCRIPTION QUERY
// Returns one encadrement with its billing position and, optionally, the
// quota consumption of the current cycle.
// ══════════════════════════════════════════════════════════════════════════════

// GetSubscriptionQuery contains the lookup parameters.
type GetSubscriptionQuery struct {
	// EncadrementID is the subscription to fetch.
	EncadrementID string

	// IncludeQuota also counts the sessions created in the current billing
	// cycle. Costs one extra read.
	IncludeQuota bool
}

// Validate validates the query parameters.
func (q *GetSubscriptionQuery) Validate() error {
	if q.EncadrementID == "" {
		return shared.NewDomainError("query", "GetSubscription", shared.ErrEmptyValue, "encadrement_id is required")
	}
	return nil
}

// SubscriptionDTO is the read model of one encadrement.
type SubscriptionDTO struct {
	EncadrementID    string    `json:"encadrement_id"`
	UserID           string    `json:"user_id"`
	TeacherID        string    `json:"teacher_id"`
	Formule          string    `json:"formule"`
	Status           string    `json:"status"`
	StartDate        time.Time `json:"start_date"`
	NextBillingDate  time.Time `json:"next_billing_date"`
	MonthlyAmount    int64     `json:"monthly_amount_cents"`
	MonthlyAmountEUR string    `json:"monthly_amount_formatted"`
	SessionsPerMonth int       `json:"sessions_per_month"`

	// BillingGrace is set after one failed charge; the subscription keeps
	// running until a second consecutive failure pauses it.
	BillingGrace        bool `json:"billing_grace"`
	ConsecutiveFailures int  `json:"consecutive_failures"`

	// Quota fields, populated when IncludeQuota was set.
	CycleStart     *time.Time `json:"cycle_start,omitempty"`
	CycleEnd       *time.Time `json:"cycle_end,omitempty"`
	QuotaUsed      int        `json:"quota_used,omitempty"`
	QuotaRemaining int        `json:"quota_remaining,omitempty"`
}

// GetSubscriptionResult contains the query result.
type GetSubscriptionResult struct {
	Subscription SubscriptionDTO `json:"subscription"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// GetSubscriptionHandler handles GetSubscriptionQuery.
type GetSubscriptionHandler struct {
	encadrements encadrement.Repository
	sessions     session.Repository
}

// NewGetSubscriptionHandler creates a new GetSubscriptionHandler.
func NewGetSubscriptionHandler(encadrements encadrement.Repository, sessions session.Repository) *GetSubscriptionHandler {
	return &GetSubscriptionHandler{
		encadrements: encadrements,
		sessions:     sessions,
	}
}

// Handle executes the query.
func (h *GetSubscriptionHandler) Handle(ctx context.Context, query GetSubscriptionQuery) (*GetSubscriptionResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	id, err := shared.NewEncadrementID(query.EncadrementID)
	if err != nil {
		return nil, err
	}

	enc, err := h.encadrements.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	dto := buildSubscriptionDTO(enc)

	if query.IncludeQuota && h.sessions != nil {
		window := enc.CurrentBillingWindow()
		used, err := h.sessions.CountCreatedInWindow(ctx, id, window)
		if err != nil {
			return nil, err
		}
		remaining := enc.SessionsPerMonth - used
		if remaining < 0 {
			remaining = 0
		}
		dto.CycleStart = &window.From
		dto.CycleEnd = &window.To
		dto.QuotaUsed = used
		dto.QuotaRemaining = remaining
	}

	return &GetSubscriptionResult{
		Subscription: dto,
		GeneratedAt:  time.Now().UTC(),
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────

// ListSubscriptionsQuery lists the encadrements of one account, as student
// or as teacher.
type ListSubscriptionsQuery struct {
	// UserID is the account to list for.
	UserID string

	// AsTeacher selects the teacher side of the pairing instead of the
	// student side.
	AsTeacher bool
}

// Validate validates the query parameters.
func (q *ListSubscriptionsQuery) Validate() error {
	if q.UserID == "" {
		return shared.NewDomainError("query", "ListSubscriptions", shared.ErrEmptyValue, "user_id is required")
	}
	return nil
}

// ListSubscriptionsResult contains the query result.
type ListSubscriptionsResult struct {
	Subscriptions []SubscriptionDTO `json:"subscriptions"`
	Total         int               `json:"total"`
	GeneratedAt   time.Time         `json:"generated_at"`
}

// ListSubscriptionsHandler handles ListSubscriptionsQuery.
type ListSubscriptionsHandler struct {
	encadrements encadrement.Repository
}

// NewListSubscriptionsHandler creates a new ListSubscriptionsHandler.
func NewListSubscriptionsHandler(encadrements encadrement.Repository) *ListSubscriptionsHandler {
	return &ListSubscriptionsHandler{encadrements: encadrements}
}

// Handle executes the query.
func (h *ListSubscriptionsHandler) Handle(ctx context.Context, query ListSubscriptionsQuery) (*ListSubscriptionsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	userID, err := shared.NewUserID(query.UserID)
	if err != nil {
		return nil, err
	}

	var encs []*encadrement.Encadrement
	if query.AsTeacher {
		encs, err = h.encadrements.ListByTeacher(ctx, userID)
	} else {
		encs, err = h.encadrements.ListByUser(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	dtos := make([]SubscriptionDTO, len(encs))
	for i, enc := range encs {
		dtos[i] = buildSubscriptionDTO(enc)
	}

	return &ListSubscriptionsResult{
		Subscriptions: dtos,
		Total:         len(dtos),
		GeneratedAt:   time.Now().UTC(),
	}, nil
}

func buildSubscriptionDTO(enc *encadrement.Encadrement) SubscriptionDTO {
	return SubscriptionDTO{
		EncadrementID:       enc.ID.String(),
		UserID:              enc.UserID.String(),
		TeacherID:           enc.TeacherID.String(),
		Formule:             enc.Formule.String(),
		Status:              enc.Status.String(),
		StartDate:           enc.StartDate,
		NextBillingDate:     enc.NextBillingDate,
		MonthlyAmount:       enc.MonthlyAmount.Int64(),
		MonthlyAmountEUR:    enc.MonthlyAmount.Euros(),
		SessionsPerMonth:    enc.SessionsPerMonth,
		BillingGrace:        enc.BillingGrace,
		ConsecutiveFailures: enc.ConsecutiveBillingFailures,
	}
}
