package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles for the tutoring subsystem.
// Supports gradual rollout, per-user overrides, and time-based activation.
type FeatureFlags struct {
	mu sync.RWMutex

	// Core features
	features map[string]*Feature

	// Override rules (for testing/debugging)
	userOverrides map[string]map[string]bool // userID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Users are assigned based on hash of their ID
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time

	// A/B test variant (for experiments)
	Variants []string
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	UserID    string // Account UUID
	IsTeacher bool   // Evaluating for the teacher side of a pairing
	IsAdmin   bool   // Is admin user
}

// Predefined feature flag names.
const (
	// === Billing Features ===

	// FeatureBillingAutoResume resumes an auto-paused subscription when a
	// successful charge arrives through the webhook, instead of requiring
	// an explicit resume. Off by default: an auto-paused subscription
	// schedules no charges of its own, so a human decision is the norm.
	FeatureBillingAutoResume = "billing.auto_resume"

	// FeatureBillingGracePeriod keeps a subscription active after one
	// failed charge; a second consecutive failure pauses it.
	FeatureBillingGracePeriod = "billing.grace_period"

	// === Session Features ===
	FeatureSessionReminders     = "sessions.reminders"      // reminder events before confirmed sessions
	FeatureSessionConflictCheck = "sessions.conflict_check" // teacher double-booking detection
	FeatureTeacherAgenda        = "sessions.teacher_agenda" // agenda endpoint for the scheduling UI

	// === Messaging Features ===
	FeatureMessagingLiveFeed = "messaging.live_feed" // real-time delivery over pub/sub
	FeatureMessagingUnread   = "messaging.unread"    // unread counters in channel listings

	// === Progress & Resource Features ===
	FeatureProgressDashboard = "progress.dashboard" // per-subject aggregation for the dashboard
	FeatureResourceCatalogue = "resources.catalogue"

	// === Experimental Features ===
	FeatureExperimentalQuotaRollover = "experimental.quota_rollover" // carry unused sessions to the next cycle
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature),
		userOverrides: make(map[string]map[string]bool),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureBillingAutoResume] = &Feature{
		Name:           FeatureBillingAutoResume,
		Description:    "Resume auto-paused subscriptions on a successful webhook charge",
		Enabled:        false,
		RolloutPercent: 0,
	}

	ff.features[FeatureBillingGracePeriod] = &Feature{
		Name:           FeatureBillingGracePeriod,
		Description:    "One failed charge grants a grace cycle before auto-pause",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureSessionReminders] = &Feature{
		Name:           FeatureSessionReminders,
		Description:    "Emit reminder events for confirmed sessions starting soon",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureSessionConflictCheck] = &Feature{
		Name:           FeatureSessionConflictCheck,
		Description:    "Reject bookings overlapping a teacher's existing session",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureTeacherAgenda] = &Feature{
		Name:           FeatureTeacherAgenda,
		Description:    "Teacher agenda endpoint for the scheduling UI",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureMessagingLiveFeed] = &Feature{
		Name:           FeatureMessagingLiveFeed,
		Description:    "Real-time message delivery over Redis pub/sub",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureMessagingUnread] = &Feature{
		Name:           FeatureMessagingUnread,
		Description:    "Unread counters in channel listings",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureProgressDashboard] = &Feature{
		Name:           FeatureProgressDashboard,
		Description:    "Per-subject progress aggregation for the dashboard",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureResourceCatalogue] = &Feature{
		Name:           FeatureResourceCatalogue,
		Description:    "Resource catalogue per subscription",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureExperimentalQuotaRollover] = &Feature{
		Name:           FeatureExperimentalQuotaRollover,
		Description:    "Carry unused sessions into the next billing cycle",
		Enabled:        false,
		RolloutPercent: 0,
	}
}

// loadFromEnvironment applies FEATURE_* environment overrides.
// Example: FEATURE_BILLING_AUTO_RESUME=true, FEATURE_SESSIONS_REMINDERS=false
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)

		if val := os.Getenv(envKey); val != "" {
			if enabled, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = enabled
				if enabled && feature.RolloutPercent == 0 {
					feature.RolloutPercent = 100
				}
			}
		}

		if val := os.Getenv(envKey + "_ROLLOUT"); val != "" {
			if percent, err := strconv.Atoi(val); err == nil && percent >= 0 && percent <= 100 {
				feature.RolloutPercent = percent
			}
		}
	}
}

// featureNameToEnvKey converts "billing.auto_resume" to "FEATURE_BILLING_AUTO_RESUME".
func featureNameToEnvKey(name string) string {
	key := strings.ReplaceAll(name, ".", "_")
	return "FEATURE_" + strings.ToUpper(key)
}

// IsEnabled evaluates a feature for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// User overrides win over everything
	if ctx != nil && ctx.UserID != "" {
		if overrides, ok := ff.userOverrides[ctx.UserID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	if !feature.Enabled {
		return false
	}

	// Admins see everything that is enabled
	if ctx != nil && ctx.IsAdmin {
		return true
	}

	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	if feature.RolloutPercent >= 100 {
		return true
	}
	if feature.RolloutPercent <= 0 {
		return false
	}

	if ctx == nil || ctx.UserID == "" {
		return false
	}
	return ff.isInRollout(ctx.UserID, featureName, feature.RolloutPercent)
}

// isInRollout deterministically buckets a user into the rollout percentage.
// Hashing user and feature together decorrelates buckets across features.
func (ff *FeatureFlags) isInRollout(userID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(userID))
	h.Write([]byte(featureName))
	return int(h.Sum32()%100) < percent
}

// GetVariant returns the A/B variant assigned to the context, or "" when
// the feature is off or has no variants.
func (ff *FeatureFlags) GetVariant(featureName string, ctx *FeatureContext) string {
	if !ff.IsEnabled(featureName, ctx) {
		return ""
	}

	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	if !ok || len(feature.Variants) == 0 {
		return ""
	}

	if ctx == nil || ctx.UserID == "" {
		return feature.Variants[0]
	}

	h := fnv.New32a()
	h.Write([]byte(ctx.UserID))
	h.Write([]byte(featureName))
	h.Write([]byte("variant"))
	return feature.Variants[h.Sum32()%uint32(len(feature.Variants))]
}

// SetUserOverride forces a feature on or off for one user.
func (ff *FeatureFlags) SetUserOverride(userID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if ff.userOverrides[userID] == nil {
		ff.userOverrides[userID] = make(map[string]bool)
	}
	ff.userOverrides[userID][featureName] = enabled
}

// ClearUserOverrides removes all overrides for one user.
func (ff *FeatureFlags) ClearUserOverrides(userID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.userOverrides, userID)
}

// SetRolloutPercent adjusts the rollout percentage of a feature.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	feature.RolloutPercent = percent
	return nil
}

// EnableFeature turns a feature on at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	feature.Enabled = true
	feature.RolloutPercent = 100
	return nil
}

// DisableFeature turns a feature off.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	feature.Enabled = false
	return nil
}

// GetAllFeatures returns a snapshot of all registered features.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	snapshot := make(map[string]*Feature, len(ff.features))
	for name, feature := range ff.features {
		copied := *feature
		snapshot[name] = &copied
	}
	return snapshot
}

// Predefined errors.
var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
