// Package jobs contains the scheduled jobs of the tutoring subsystem: the
// billing sweep that charges due subscriptions and the reminder pass over
// upcoming confirmed sessions.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/application/command"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/encadrement"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/infrastructure/external/billing"
)

// ══════════════════════════════════════════════════════════════════════════════
// BILLING DUE JOB
// ══════════════════════════════════════════════════════════════════════════════

// BillingDueJob charges every active subscription whose billing date has
// passed and feeds the outcome into the billing command. The provider webhook
// may report the same cycle concurrently; the command's conditional write
// makes whichever lands first win and the other a harmless conflict.
type BillingDueJob struct {
	encadrements encadrement.Repository
	provider     billing.Provider
	handler      *command.AdvanceBillingHandler
	logger       *slog.Logger
	config       BillingDueConfig

	lastStats atomic.Value // *BillingSweepStats
}

// BillingDueConfig contains configuration for the billing sweep.
type BillingDueConfig struct {
	// BatchSize is the maximum number of subscriptions charged per run.
	BatchSize int

	// Concurrency is the number of charges in flight at once.
	Concurrency int

	// ChargeTimeout bounds a single charge attempt.
	ChargeTimeout time.Duration
}

// DefaultBillingDueConfig returns sensible defaults.
func DefaultBillingDueConfig() BillingDueConfig {
	return BillingDueConfig{
		BatchSize:     500,
		Concurrency:   5,
		ChargeTimeout: 45 * time.Second,
	}
}

// BillingSweepStats summarizes one sweep.
type BillingSweepStats struct {
	Due       int
	Charged   int
	Declined  int
	Errors    int
	StartedAt time.Time
	Duration  time.Duration
}

// NewBillingDueJob creates a new BillingDueJob.
func NewBillingDueJob(
	encadrements encadrement.Repository,
	provider billing.Provider,
	handler *command.AdvanceBillingHandler,
	config BillingDueConfig,
	logger *slog.Logger,
) *BillingDueJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 500
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 5
	}
	if config.ChargeTimeout <= 0 {
		config.ChargeTimeout = 45 * time.Second
	}

	return &BillingDueJob{
		encadrements: encadrements,
		provider:     provider,
		handler:      handler,
		logger:       logger.With("job", "billing_due"),
		config:       config,
	}
}

// Name implements scheduler.Job.
func (j *BillingDueJob) Name() string {
	return "billing_due"
}

// Description implements scheduler.Job.
func (j *BillingDueJob) Description() string {
	return "Charges active subscriptions whose billing date has passed"
}

// Run implements scheduler.Job.
func (j *BillingDueJob) Run(ctx context.Context) error {
	startedAt := time.Now()

	due, err := j.encadrements.ListBillingDue(ctx, startedAt.UTC(), j.config.BatchSize)
	if err != nil {
		return fmt.Errorf("list billing due: %w", err)
	}

	stats := &BillingSweepStats{Due: len(due), StartedAt: startedAt}
	if len(due) == 0 {
		j.lastStats.Store(stats)
		return nil
	}

	j.logger.Info("billing sweep started", "due", len(due))

	var charged, declined, failures int64
	sem := make(chan struct{}, j.config.Concurrency)
	var wg sync.WaitGroup

	for _, enc := range due {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(enc *encadrement.Encadrement) {
			defer wg.Done()
			defer func() { <-sem }()

			switch outcome := j.chargeOne(ctx, enc); outcome {
			case command.BillingSuccess:
				atomic.AddInt64(&charged, 1)
			case command.BillingFailure:
				atomic.AddInt64(&declined, 1)
			default:
				atomic.AddInt64(&failures, 1)
			}
		}(enc)
	}

	wg.Wait()

	stats.Charged = int(charged)
	stats.Declined = int(declined)
	stats.Errors = int(failures)
	stats.Duration = time.Since(startedAt)
	j.lastStats.Store(stats)

	j.logger.Info("billing sweep completed",
		"due", stats.Due,
		"charged", stats.Charged,
		"declined", stats.Declined,
		"errors", stats.Errors,
		"duration", stats.Duration.String(),
	)

	if stats.Errors > 0 {
		return fmt.Errorf("billing sweep: %d of %d charges errored", stats.Errors, stats.Due)
	}

	return nil
}

// chargeOne charges a single subscription and applies the outcome. The empty
// return value means the charge could not be attempted or applied; the
// subscription stays due and the next sweep picks it up again.
func (j *BillingDueJob) chargeOne(ctx context.Context, enc *encadrement.Encadrement) command.BillingOutcome {
	chargeCtx, cancel := context.WithTimeout(ctx, j.config.ChargeTimeout)
	defer cancel()

	result, err := j.provider.Charge(chargeCtx, billing.ChargeRequest{
		EncadrementID: enc.ID.String(),
		UserID:        enc.UserID.String(),
		AmountCents:   enc.MonthlyAmount.Int64(),
		CycleStart:    enc.NextBillingDate,
	})
	if err != nil {
		j.logger.Error("charge attempt failed",
			"encadrement_id", enc.ID,
			"error", err,
		)
		return ""
	}

	outcome := command.BillingSuccess
	if !result.Succeeded {
		outcome = command.BillingFailure
	}

	if _, err := j.handler.Handle(ctx, command.AdvanceBillingCommand{
		EncadrementID: enc.ID.String(),
		Outcome:       outcome,
		ProviderRef:   result.ProviderRef,
	}); err != nil {
		// A conflict here means the webhook already applied this cycle.
		j.logger.Warn("billing outcome not applied",
			"encadrement_id", enc.ID,
			"outcome", outcome,
			"error", err,
		)
		return ""
	}

	return outcome
}

// LastStats returns the stats of the most recent sweep, nil before the first.
func (j *BillingDueJob) LastStats() *BillingSweepStats {
	stats, _ := j.lastStats.Load().(*BillingSweepStats)
	return stats
}
