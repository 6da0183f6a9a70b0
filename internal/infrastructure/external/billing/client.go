// Package billing implements the payment provider client used by the billing
// worker to charge subscriptions when their billing date comes due. Webhook
// deliveries from the same provider land on the HTTP interface; both paths
// feed the same billing command, which applies each cycle exactly once.
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
	"github.com/reussite-hub/reussite-tutoring-hub/pkg/circuitbreaker"
	"github.com/reussite-hub/reussite-tutoring-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROVIDER PORT
// ══════════════════════════════════════════════════════════════════════════════

// ChargeRequest describes one charge attempt for a billing cycle.
type ChargeRequest struct {
	// EncadrementID is the subscription being charged.
	EncadrementID string

	// UserID is the paying student.
	UserID string

	// AmountCents is the charge amount in euro cents.
	AmountCents int64

	// CycleStart identifies the billing cycle. Together with the
	// encadrement ID it forms the idempotency key, so retrying a charge
	// for the same cycle can never double-bill.
	CycleStart time.Time
}

// IdempotencyKey derives the provider-side idempotency key for the charge.
func (r ChargeRequest) IdempotencyKey() string {
	return fmt.Sprintf("%s:%s", r.EncadrementID, r.CycleStart.UTC().Format("2006-01-02"))
}

// ChargeResult is the provider's answer to a charge attempt. A declined card
// is a successful call with Succeeded=false, not an error: errors mean the
// provider could not be asked.
type ChargeResult struct {
	Succeeded   bool
	ProviderRef string
	Reason      string
}

// Provider is the outbound payment port consumed by the billing worker.
type Provider interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the billing provider client.
type ClientConfig struct {
	// BaseURL is the provider API base URL
	BaseURL string

	// APIKey authenticates this platform with the provider
	APIKey string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// Logger for structured logging
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
	}
}

// Client is the HTTP implementation of Provider, wrapped in a circuit
// breaker and retry policy so a degraded provider cannot stall the whole
// billing sweep.
type Client struct {
	config         ClientConfig
	httpClient     *http.Client
	logger         *slog.Logger
	circuitBreaker *circuitbreaker.CircuitBreaker
	retrier        *retry.Retrier
}

// NewClient creates a new billing provider client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	logger := config.Logger.With("component", "billing_client")

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
		circuitBreaker: circuitbreaker.BillingProviderBreaker(func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		}),
		retrier: retry.BillingProviderRetrier(),
	}
}

type chargeRequestDTO struct {
	Reference   string `json:"reference"`
	CustomerID  string `json:"customer_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

type chargeResponseDTO struct {
	Status      string `json:"status"` // "succeeded" or "declined"
	ProviderRef string `json:"provider_ref"`
	Reason      string `json:"reason,omitempty"`
}

// Charge implements Provider. Transport failures and 5xx answers are retried
// under the idempotency key; a declined charge is returned as a result.
func (c *Client) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	var result *ChargeResult

	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		return c.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
			res, err := c.doCharge(ctx, req)
			if err != nil {
				return err
			}
			result = res
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (c *Client) doCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	body, err := json.Marshal(chargeRequestDTO{
		Reference:   req.EncadrementID,
		CustomerID:  req.UserID,
		AmountCents: req.AmountCents,
		Currency:    "EUR",
	})
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("marshal charge request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("build charge request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, retry.Retryable(fmt.Errorf("%w: %v", shared.ErrExternalService, err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, retry.Retryable(fmt.Errorf("%w: read charge response: %v", shared.ErrExternalService, err))
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, retry.Retryable(fmt.Errorf("%w: provider returned %d", shared.ErrExternalService, resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, retry.Retryable(fmt.Errorf("%w: provider rate limited", shared.ErrExternalService))
	case resp.StatusCode >= 400 && resp.StatusCode != http.StatusPaymentRequired:
		return nil, retry.Permanent(fmt.Errorf("%w: provider rejected request with %d", shared.ErrExternalService, resp.StatusCode))
	}

	var dto chargeResponseDTO
	if err := json.Unmarshal(payload, &dto); err != nil {
		return nil, retry.Permanent(fmt.Errorf("%w: decode charge response: %v", shared.ErrExternalService, err))
	}

	switch dto.Status {
	case "succeeded":
		return &ChargeResult{Succeeded: true, ProviderRef: dto.ProviderRef}, nil
	case "declined":
		return &ChargeResult{Succeeded: false, ProviderRef: dto.ProviderRef, Reason: dto.Reason}, nil
	default:
		return nil, retry.Permanent(fmt.Errorf("%w: unknown charge status %q", shared.ErrExternalService, dto.Status))
	}
}

// Healthy reports whether the breaker currently admits requests.
func (c *Client) Healthy() bool {
	return !c.circuitBreaker.IsOpen()
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// ErrProviderUnavailable is returned by callers that want to distinguish an
// open breaker from a provider-side rejection.
var ErrProviderUnavailable = errors.New("billing provider unavailable")
