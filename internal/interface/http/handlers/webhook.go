package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/application/command"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BILLING PROVIDER WEBHOOK
// The provider reports charge outcomes asynchronously. The webhook and the
// nightly sweep feed the same billing command; the command's conditional
// write makes a cycle reported by both land exactly once.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// SignatureHeader carries the hex HMAC-SHA256 of the raw body.
	SignatureHeader = "X-Billing-Signature"

	// maxWebhookBody bounds the payload size accepted from the provider.
	maxWebhookBody = 1 << 20
)

// Charge event types delivered by the provider.
const (
	EventChargeSucceeded = "charge.succeeded"
	EventChargeFailed    = "charge.failed"
)

// ErrInvalidSignature is returned when the HMAC check fails.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// BillingEvent is the provider's webhook payload.
type BillingEvent struct {
	// Type is "charge.succeeded" or "charge.failed".
	Type string `json:"type"`

	// Reference is the encadrement ID the charge was issued under.
	Reference string `json:"reference"`

	// ProviderRef is the provider-side identifier of the charge.
	ProviderRef string `json:"provider_ref"`

	// Reason explains a failed charge.
	Reason string `json:"reason,omitempty"`

	// CreatedAt is the provider-side event time.
	CreatedAt time.Time `json:"created_at"`
}

// BillingCommandHandler is the application seam the webhook feeds into.
type BillingCommandHandler interface {
	Handle(ctx context.Context, cmd command.AdvanceBillingCommand) (*command.AdvanceBillingResult, error)
}

// BillingWebhookHandler verifies and applies charge events from the payment
// provider. It implements http.Handler so the server can mount it directly.
type BillingWebhookHandler struct {
	handler BillingCommandHandler
	secret  []byte
	logger  *slog.Logger
}

// NewBillingWebhookHandler creates a new BillingWebhookHandler.
func NewBillingWebhookHandler(handler BillingCommandHandler, secret string, logger *slog.Logger) *BillingWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingWebhookHandler{
		handler: handler,
		secret:  []byte(secret),
		logger:  logger.With("component", "billing_webhook"),
	}
}

// ServeHTTP implements http.Handler.
//
// Status codes steer the provider's retry behavior: 2xx acknowledges the
// event (including outcomes rejected as stale or out of order, which a retry
// can never fix), 4xx rejects it permanently, 5xx asks for a redelivery.
func (h *BillingWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, `{"error":"unreadable_body"}`, http.StatusBadRequest)
		return
	}

	if err := h.VerifySignature(body, r.Header.Get(SignatureHeader)); err != nil {
		h.logger.Warn("webhook signature rejected", "remote_addr", r.RemoteAddr)
		http.Error(w, `{"error":"invalid_signature"}`, http.StatusUnauthorized)
		return
	}

	var event BillingEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, `{"error":"malformed_payload"}`, http.StatusBadRequest)
		return
	}

	status, response := h.apply(r.Context(), event)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

// VerifySignature checks the hex HMAC-SHA256 of the raw body against the
// shared webhook secret. Comparison is constant-time.
func (h *BillingWebhookHandler) VerifySignature(body []byte, signature string) error {
	if len(h.secret) == 0 || signature == "" {
		return ErrInvalidSignature
	}

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), provided) {
		return ErrInvalidSignature
	}
	return nil
}

type webhookResponse struct {
	Received bool   `json:"received"`
	Applied  bool   `json:"applied"`
	Detail   string `json:"detail,omitempty"`
}

func (h *BillingWebhookHandler) apply(ctx context.Context, event BillingEvent) (int, webhookResponse) {
	var outcome command.BillingOutcome
	switch event.Type {
	case EventChargeSucceeded:
		outcome = command.BillingSuccess
	case EventChargeFailed:
		outcome = command.BillingFailure
	default:
		// Unknown event types are acknowledged and dropped so a provider
		// rollout of new types never floods us with redeliveries.
		h.logger.Info("ignoring unknown webhook event", "type", event.Type)
		return http.StatusOK, webhookResponse{Received: true, Detail: "event type ignored"}
	}

	result, err := h.handler.Handle(ctx, command.AdvanceBillingCommand{
		EncadrementID: event.Reference,
		Outcome:       outcome,
		ProviderRef:   event.ProviderRef,
	})
	if err != nil {
		switch {
		case shared.IsValidation(err):
			return http.StatusBadRequest, webhookResponse{Received: true, Detail: err.Error()}
		case shared.IsNotFound(err):
			// A reference this system never issued (or one already purged).
			// Ack it: redelivering can never make it resolve.
			h.logger.Warn("webhook for unknown reference", "reference", event.Reference)
			return http.StatusOK, webhookResponse{Received: true, Detail: "unknown reference ignored"}
		case shared.IsBusinessRejection(err):
			// The subscription moved on (cancelled, or the sweep already
			// applied this cycle). Ack so the provider stops retrying.
			h.logger.Info("webhook outcome not applicable",
				"reference", event.Reference,
				"type", event.Type,
				"error", err,
			)
			return http.StatusOK, webhookResponse{Received: true, Detail: "outcome no longer applicable"}
		default:
			h.logger.Error("webhook apply failed",
				"reference", event.Reference,
				"type", event.Type,
				"error", err,
			)
			return http.StatusInternalServerError, webhookResponse{Received: true, Detail: "temporary failure"}
		}
	}

	h.logger.Info("billing outcome applied via webhook",
		"reference", event.Reference,
		"outcome", string(result.Outcome),
		"auto_paused", result.AutoPaused,
	)
	return http.StatusOK, webhookResponse{Received: true, Applied: true}
}

// SignPayload computes the hex HMAC-SHA256 signature for a payload. Exposed
// for tests and for the provider simulator used in local development.
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
