package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/application/command"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

const webhookTestSecret = "test-webhook-secret"

// fakeBillingHandler records the last command and returns a canned answer.
type fakeBillingHandler struct {
	lastCmd command.AdvanceBillingCommand
	result  *command.AdvanceBillingResult
	err     error
}

func (f *fakeBillingHandler) Handle(ctx context.Context, cmd command.AdvanceBillingCommand) (*command.AdvanceBillingResult, error) {
	f.lastCmd = cmd
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &command.AdvanceBillingResult{
		EncadrementID: cmd.EncadrementID,
		Outcome:       cmd.Outcome,
	}, nil
}

func postWebhook(t *testing.T, h *BillingWebhookHandler, event BillingEvent, secret string) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(event)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/billing", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, SignPayload(secret, body))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBillingWebhook_ChargeSucceededApplied(t *testing.T) {
	fake := &fakeBillingHandler{}
	h := NewBillingWebhookHandler(fake, webhookTestSecret, nil)

	rec := postWebhook(t, h, BillingEvent{
		Type:        EventChargeSucceeded,
		Reference:   "d3b4c7a0-1f2e-4a5b-8c9d-0e1f2a3b4c5d",
		ProviderRef: "ch_001",
	}, webhookTestSecret)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, command.BillingSuccess, fake.lastCmd.Outcome)
	assert.Equal(t, "d3b4c7a0-1f2e-4a5b-8c9d-0e1f2a3b4c5d", fake.lastCmd.EncadrementID)
	assert.Equal(t, "ch_001", fake.lastCmd.ProviderRef)

	var resp struct {
		Received bool `json:"received"`
		Applied  bool `json:"applied"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Received)
	assert.True(t, resp.Applied)
}

func TestBillingWebhook_ChargeFailedMapsToFailureOutcome(t *testing.T) {
	fake := &fakeBillingHandler{}
	h := NewBillingWebhookHandler(fake, webhookTestSecret, nil)

	rec := postWebhook(t, h, BillingEvent{
		Type:        EventChargeFailed,
		Reference:   "d3b4c7a0-1f2e-4a5b-8c9d-0e1f2a3b4c5d",
		ProviderRef: "ch_002",
		Reason:      "insufficient_funds",
	}, webhookTestSecret)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, command.BillingFailure, fake.lastCmd.Outcome)
}

func TestBillingWebhook_RejectsBadSignature(t *testing.T) {
	fake := &fakeBillingHandler{}
	h := NewBillingWebhookHandler(fake, webhookTestSecret, nil)

	rec := postWebhook(t, h, BillingEvent{
		Type:      EventChargeSucceeded,
		Reference: "d3b4c7a0-1f2e-4a5b-8c9d-0e1f2a3b4c5d",
	}, "wrong-secret")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, fake.lastCmd.EncadrementID, "command must not run on a bad signature")
}

func TestBillingWebhook_RejectsMissingSignature(t *testing.T) {
	h := NewBillingWebhookHandler(&fakeBillingHandler{}, webhookTestSecret, nil)

	body := []byte(`{"type":"charge.succeeded"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/billing", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBillingWebhook_MalformedPayload(t *testing.T) {
	h := NewBillingWebhookHandler(&fakeBillingHandler{}, webhookTestSecret, nil)

	body := []byte(`{not json`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/billing", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, SignPayload(webhookTestSecret, body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBillingWebhook_UnknownEventTypeAcked(t *testing.T) {
	fake := &fakeBillingHandler{}
	h := NewBillingWebhookHandler(fake, webhookTestSecret, nil)

	rec := postWebhook(t, h, BillingEvent{
		Type:      "customer.updated",
		Reference: "d3b4c7a0-1f2e-4a5b-8c9d-0e1f2a3b4c5d",
	}, webhookTestSecret)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, fake.lastCmd.EncadrementID, "unknown events must not reach the command")
}

func TestBillingWebhook_UnknownReferenceAcked(t *testing.T) {
	// References this system never issued can never resolve; the provider
	// must not be told to redeliver.
	fake := &fakeBillingHandler{err: shared.ErrEncadrementNotFound}
	h := NewBillingWebhookHandler(fake, webhookTestSecret, nil)

	rec := postWebhook(t, h, BillingEvent{
		Type:      EventChargeSucceeded,
		Reference: "d3b4c7a0-1f2e-4a5b-8c9d-0e1f2a3b4c5d",
	}, webhookTestSecret)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Received bool `json:"received"`
		Applied  bool `json:"applied"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Received)
	assert.False(t, resp.Applied)
}

func TestBillingWebhook_StaleOutcomeAcked(t *testing.T) {
	// A cancelled subscription rejects the billing outcome; the provider
	// must still get a 2xx or it retries a delivery that can never apply.
	fake := &fakeBillingHandler{err: shared.ErrEncadrementTerminal}
	h := NewBillingWebhookHandler(fake, webhookTestSecret, nil)

	rec := postWebhook(t, h, BillingEvent{
		Type:      EventChargeFailed,
		Reference: "d3b4c7a0-1f2e-4a5b-8c9d-0e1f2a3b4c5d",
	}, webhookTestSecret)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Received bool `json:"received"`
		Applied  bool `json:"applied"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Received)
	assert.False(t, resp.Applied)
}

func TestBillingWebhook_TransientFailureAsksForRedelivery(t *testing.T) {
	fake := &fakeBillingHandler{err: shared.ErrStoreUnavailable}
	h := NewBillingWebhookHandler(fake, webhookTestSecret, nil)

	rec := postWebhook(t, h, BillingEvent{
		Type:      EventChargeSucceeded,
		Reference: "d3b4c7a0-1f2e-4a5b-8c9d-0e1f2a3b4c5d",
	}, webhookTestSecret)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSignPayload_VerifiesRoundTrip(t *testing.T) {
	h := NewBillingWebhookHandler(&fakeBillingHandler{}, webhookTestSecret, nil)

	body := []byte(`{"type":"charge.succeeded","reference":"abc"}`)
	sig := SignPayload(webhookTestSecret, body)

	assert.NoError(t, h.VerifySignature(body, sig))
	assert.ErrorIs(t, h.VerifySignature([]byte(`tampered`), sig), ErrInvalidSignature)
	assert.ErrorIs(t, h.VerifySignature(body, "zz-not-hex"), ErrInvalidSignature)
}
