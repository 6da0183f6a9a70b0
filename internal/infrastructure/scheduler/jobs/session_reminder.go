package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/session"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
	"github.com/reussite-hub/reussite-tutoring-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION REMINDER JOB
// ══════════════════════════════════════════════════════════════════════════════

// SessionReminderJob emits a reminder event for every confirmed session
// starting LeadTime from now. Each pass covers the half-open slice of the
// calendar [now+LeadTime, now+LeadTime+PassInterval), so a session is
// reminded by exactly one pass as long as the job runs on its interval.
type SessionReminderJob struct {
	sessions  session.Repository
	publisher shared.EventPublisher
	logger    *slog.Logger
	config    SessionReminderConfig
	now       func() time.Time
}

// SessionReminderConfig contains configuration for the reminder pass.
type SessionReminderConfig struct {
	// LeadTime is how far before the session start the reminder fires.
	LeadTime time.Duration

	// PassInterval must match the schedule the job is registered under.
	PassInterval time.Duration
}

// DefaultSessionReminderConfig reminds one hour ahead, scanning every
// ten minutes.
func DefaultSessionReminderConfig() SessionReminderConfig {
	return SessionReminderConfig{
		LeadTime:     time.Hour,
		PassInterval: 10 * time.Minute,
	}
}

// NewSessionReminderJob creates a new SessionReminderJob.
func NewSessionReminderJob(
	sessions session.Repository,
	publisher shared.EventPublisher,
	config SessionReminderConfig,
	logger *slog.Logger,
) *SessionReminderJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.LeadTime <= 0 {
		config.LeadTime = time.Hour
	}
	if config.PassInterval <= 0 {
		config.PassInterval = 10 * time.Minute
	}

	return &SessionReminderJob{
		sessions:  sessions,
		publisher: publisher,
		logger:    logger.With("job", "session_reminder"),
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Name implements scheduler.Job.
func (j *SessionReminderJob) Name() string {
	return "session_reminder"
}

// Description implements scheduler.Job.
func (j *SessionReminderJob) Description() string {
	return "Emits reminder events for confirmed sessions starting soon"
}

// Run implements scheduler.Job.
func (j *SessionReminderJob) Run(ctx context.Context) error {
	from := j.now().Add(j.config.LeadTime).Truncate(j.config.PassInterval)
	window := timeutil.Window{From: from, To: from.Add(j.config.PassInterval)}

	upcoming, err := j.sessions.ListUpcomingConfirmed(ctx, window)
	if err != nil {
		return fmt.Errorf("list upcoming sessions: %w", err)
	}

	var published int
	for _, s := range upcoming {
		event := shared.NewSessionEvent(shared.EventSessionReminder,
			s.EncadrementID.String(), s.ID, s.Status.String(), s.Date, s.Subject)

		if err := j.publisher.Publish(event); err != nil {
			j.logger.Error("publish session reminder",
				"session_id", s.ID,
				"error", err,
			)
			continue
		}
		published++
	}

	if published > 0 {
		j.logger.Info("session reminders published",
			"count", published,
			"window_from", window.From.Format(time.RFC3339),
			"window_to", window.To.Format(time.RFC3339),
		)
	}

	return nil
}
