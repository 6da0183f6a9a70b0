package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/application/command"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/application/query"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "Unknown endpoint")
		return
	}

	info := map[string]interface{}{
		"name":    "Réussite Tutoring API",
		"version": "v1",
		"endpoints": map[string]string{
			"health":        "/health",
			"subscriptions": "/api/v1/subscriptions",
			"sessions":      "/api/v1/subscriptions/{id}/sessions",
			"messages":      "/api/v1/subscriptions/{id}/messages",
			"progress":      "/api/v1/subscriptions/{id}/progress",
			"resources":     "/api/v1/subscriptions/{id}/resources",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBSCRIPTION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type createSubscriptionRequest struct {
	UserID    string `json:"user_id"`
	TeacherID string `json:"teacher_id"`
	Formule   string `json:"formule"`
}

// handleCreateSubscription opens a new encadrement.
func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.CreateSubscription.Handle(r.Context(), command.CreateSubscriptionCommand{
		UserID:        req.UserID,
		TeacherID:     req.TeacherID,
		Formule:       req.Formule,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"encadrement_id":     result.EncadrementID,
		"status":             result.Status.String(),
		"next_billing_date":  result.NextBillingDate,
		"sessions_per_month": result.SessionsPerMonth,
		"monthly_amount":     result.MonthlyAmount.Euros(),
	})
}

// handleListSubscriptions lists the encadrements of one account.
func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.ListSubscriptions.Handle(r.Context(), query.ListSubscriptionsQuery{
		UserID:    getQueryParam(r, "user_id", ""),
		AsTeacher: getQueryParamBool(r, "as_teacher"),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetSubscription fetches one encadrement, optionally with its quota.
func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetSubscription.Handle(r.Context(), query.GetSubscriptionQuery{
		EncadrementID: r.PathValue("id"),
		IncludeQuota:  getQueryParamBool(r, "include_quota"),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type lifecycleRequest struct {
	InitiatorID string `json:"initiator_id"`
}

// handleLifecycle returns a handler applying one lifecycle action.
func (s *Server) handleLifecycle(action command.LifecycleAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req lifecycleRequest
		if !s.decodeBody(w, r, &req) {
			return
		}

		result, err := s.deps.SubscriptionLifecycle.Handle(r.Context(), command.SubscriptionLifecycleCommand{
			EncadrementID: r.PathValue("id"),
			Action:        action,
			InitiatorID:   req.InitiatorID,
			CorrelationID: getRequestID(r.Context()),
		})
		if err != nil {
			s.writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"encadrement_id":  result.EncadrementID,
			"from":            result.From.String(),
			"to":              result.To.String(),
			"already_applied": result.AlreadyApplied,
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type scheduleSessionRequest struct {
	Date            time.Time `json:"date"`
	DurationMinutes int       `json:"duration_minutes"`
	Subject         string    `json:"subject"`
}

// handleScheduleSession books a session against the subscription's quota.
func (s *Server) handleScheduleSession(w http.ResponseWriter, r *http.Request) {
	var req scheduleSessionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.ScheduleSession.Handle(r.Context(), command.ScheduleSessionCommand{
		EncadrementID:   r.PathValue("id"),
		Date:            req.Date,
		DurationMinutes: req.DurationMinutes,
		Subject:         req.Subject,
		CorrelationID:   getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session_id":     result.SessionID,
		"encadrement_id": result.EncadrementID,
		"status":         result.Status.String(),
		"date":           result.Date,
		"quota_used":     result.QuotaUsed,
		"quota_limit":    result.QuotaLimit,
	})
}

// handleListSessions lists an encadrement's sessions.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.ListSessions.Handle(r.Context(), query.ListSessionsQuery{
		EncadrementID: r.PathValue("id"),
		Status:        getQueryParam(r, "status", ""),
		UpcomingOnly:  getQueryParamBool(r, "upcoming"),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type sessionTransitionRequest struct {
	Notes       string `json:"notes,omitempty"`
	MeetingURL  string `json:"meeting_url,omitempty"`
	InitiatorID string `json:"initiator_id"`
}

// handleSessionTransition returns a handler applying one session action.
func (s *Server) handleSessionTransition(action command.SessionAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionTransitionRequest
		if !s.decodeBody(w, r, &req) {
			return
		}

		result, err := s.deps.SessionTransition.Handle(r.Context(), command.SessionTransitionCommand{
			SessionID:     r.PathValue("id"),
			Action:        action,
			Notes:         req.Notes,
			MeetingURL:    req.MeetingURL,
			InitiatorID:   req.InitiatorID,
			CorrelationID: getRequestID(r.Context()),
		})
		if err != nil {
			s.writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"session_id":     result.SessionID,
			"encadrement_id": result.EncadrementID,
			"from":           result.From.String(),
			"to":             result.To.String(),
		})
	}
}

// handleTeacherAgenda lists a teacher's booked slots inside [from, to).
func (s *Server) handleTeacherAgenda(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeParam(r, "from")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.deps.TeacherAgenda.Handle(r.Context(), query.TeacherAgendaQuery{
		TeacherID: r.PathValue("id"),
		From:      from,
		To:        to,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGING HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type sendMessageRequest struct {
	SenderID string `json:"sender_id"`
	Content  string `json:"content"`
}

// handleSendMessage appends a message to the encadrement's channel.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.SendMessage.Handle(r.Context(), command.SendMessageCommand{
		EncadrementID: r.PathValue("id"),
		SenderID:      req.SenderID,
		Content:       req.Content,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message_id":   result.MessageID,
		"recipient_id": result.RecipientID,
		"sent_at":      result.SentAt,
	})
}

// handleListMessages returns the channel history and the reader's unread count.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.ListMessages.Handle(r.Context(), query.ListMessagesQuery{
		EncadrementID: r.PathValue("id"),
		ReaderID:      getQueryParam(r, "reader_id", ""),
		Limit:         getQueryParamInt(r, "limit", 0),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type markReadRequest struct {
	ReaderID string `json:"reader_id"`
}

// handleMarkMessageRead marks one message as read by its recipient.
func (s *Server) handleMarkMessageRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	err := s.deps.MarkMessageRead.Handle(r.Context(), command.MarkMessageReadCommand{
		MessageID:     r.PathValue("id"),
		ReaderID:      req.ReaderID,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message_id": r.PathValue("id"),
		"read":       true,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS & RESOURCE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type updateProgressRequest struct {
	Chapter  string  `json:"chapter"`
	Progress float64 `json:"progress"`
	Notes    string  `json:"notes,omitempty"`
}

// handleUpdateProgress writes one chapter progression.
func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	var req updateProgressRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.UpdateProgress.Handle(r.Context(), command.UpdateProgressCommand{
		EncadrementID: r.PathValue("id"),
		Chapter:       req.Chapter,
		Progress:      req.Progress,
		Notes:         req.Notes,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"encadrement_id": result.EncadrementID,
		"chapter":        result.Chapter,
		"progress":       result.Progress,
	})
}

// handleGetProgress returns the per-chapter progression of an encadrement.
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetProgress.Handle(r.Context(), query.GetProgressQuery{
		EncadrementID: r.PathValue("id"),
		Subject:       getQueryParam(r, "subject", ""),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type attachResourceRequest struct {
	Title      string `json:"title"`
	Type       string `json:"type"`
	URL        string `json:"url"`
	UploadedBy string `json:"uploaded_by"`
}

// handleAttachResource registers a resource in the encadrement's catalogue.
func (s *Server) handleAttachResource(w http.ResponseWriter, r *http.Request) {
	var req attachResourceRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.AttachResource.Handle(r.Context(), command.AttachResourceCommand{
		EncadrementID: r.PathValue("id"),
		Title:         req.Title,
		Type:          req.Type,
		URL:           req.URL,
		UploadedBy:    req.UploadedBy,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"resource_id": result.ResourceID,
	})
}

// handleListResources returns the encadrement's resource catalogue.
func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.ListResources.Handle(r.Context(), query.ListResourcesQuery{
		EncadrementID: r.PathValue("id"),
		Type:          getQueryParam(r, "type", ""),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST / ERROR HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody decodes the JSON request body into dst. On failure it writes a
// 400 and returns false.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed_body", "Request body is not valid JSON")
		return false
	}
	return true
}

// parseTimeParam parses an RFC 3339 query parameter.
func parseTimeParam(r *http.Request, key string) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s is required (RFC 3339)", key)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be RFC 3339", key)
	}
	return t, nil
}

// writeDomainError maps the domain error taxonomy onto HTTP status codes.
// Authorization failures are checked before generic validation because the
// validation family includes ErrForbidden.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, "forbidden", err.Error())
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, shared.ErrConcurrentModification):
		writeJSONError(w, http.StatusConflict, "conflict", "The resource changed underneath the request, retry")
	case shared.IsBusinessRejection(err):
		writeJSONError(w, http.StatusConflict, "conflict", err.Error())
	default:
		s.logger.Error("unhandled domain error", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
