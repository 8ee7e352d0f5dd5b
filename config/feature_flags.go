package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles and A/B testing.
// Supports gradual rollout, learner targeting, and cohort-based experiments.
//
// Philosophy alignment: progression should teach, not gate.
// - Adaptation features default on so learners see scaffolding adjust
// - Gamification balanced against intrinsic motivation
// - Experimental storage semantics stay off until proven
type FeatureFlags struct {
	mu sync.RWMutex

	// Core features
	features map[string]*Feature

	// Override rules (for testing/debugging)
	learnerOverrides map[string]map[string]bool // learnerID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Learners are assigned based on hash of their ID
	RolloutPercent int

	// Cohort targeting (e.g., "2026-q1", "beta-testers")
	// Empty means all cohorts
	TargetCohorts []string

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time

	// A/B test variant (for experiments)
	Variants []string
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	LearnerID string // pseudonymized learner id

	Cohort     string // learner cohort (e.g., "2026-q1")
	IsInternal bool   // internal/staff account
}

// Predefined feature flag names.
const (
	// === Content Adaptation Features ===
	FeatureAdaptationContent     = "adaptation.content"     // Stage-driven UI configuration
	FeatureAdaptationTerminology = "adaptation.terminology" // Vocabulary level adaptation
	FeatureAdaptationChallenges  = "adaptation.challenges"  // Challenge type suggestions

	// === Assessment Features ===
	FeatureAssessmentCache   = "assessment.cache"   // Cached stage assessments
	FeatureAssessmentReasons = "assessment.reasons" // Human-readable stage rationale
	FeatureAssessmentPreview = "assessment.preview" // Next-stage readiness preview

	// === Gamification Features ===
	FeatureGamificationBadges  = "gamification.badges"  // Badge awards
	FeatureGamificationStreaks = "gamification.streaks" // Daily streak tracking
	FeatureGamificationPoints  = "gamification.points"  // Stage progression points

	// === Notification Features ===
	FeatureNotifyBadgeUnlocked = "notify.badge_unlocked" // "New badge!"
	FeatureNotifyStageAdvance  = "notify.stage_advance"  // "You advanced a stage"
	FeatureNotifyStreakBroken  = "notify.streak_broken"  // Streak loss nudges

	// === Experimental Features ===
	FeatureExperimentalCASUpsert   = "experimental.cas_upsert"   // Compare-and-swap metrics writes
	FeatureExperimentalAsyncEvents = "experimental.async_events" // Async event bus dispatch
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:         make(map[string]*Feature),
		learnerOverrides: make(map[string]map[string]bool),
	}

	// Initialize all features with defaults
	ff.initializeDefaults()

	// Load overrides from environment
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	// Adaptation features - core to the engine, enabled by default
	ff.features[FeatureAdaptationContent] = &Feature{
		Name:           FeatureAdaptationContent,
		Description:    "Adapt interface complexity to learner stage",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureAdaptationTerminology] = &Feature{
		Name:           FeatureAdaptationTerminology,
		Description:    "Adapt vocabulary level to learner stage",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureAdaptationChallenges] = &Feature{
		Name:           FeatureAdaptationChallenges,
		Description:    "Suggest stage-appropriate challenge types",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Assessment features
	ff.features[FeatureAssessmentCache] = &Feature{
		Name:           FeatureAssessmentCache,
		Description:    "Serve cached stage assessments",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureAssessmentReasons] = &Feature{
		Name:           FeatureAssessmentReasons,
		Description:    "Include human-readable stage rationale",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureAssessmentPreview] = &Feature{
		Name:           FeatureAssessmentPreview,
		Description:    "Show next-stage readiness preview",
		Enabled:        true,
		RolloutPercent: 50, // Gradual rollout
	}

	// Gamification features
	ff.features[FeatureGamificationBadges] = &Feature{
		Name:           FeatureGamificationBadges,
		Description:    "Award achievement badges",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureGamificationStreaks] = &Feature{
		Name:           FeatureGamificationStreaks,
		Description:    "Track daily analysis streaks",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureGamificationPoints] = &Feature{
		Name:           FeatureGamificationPoints,
		Description:    "Accumulate stage progression points",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Notification features - carefully tuned to avoid spam
	ff.features[FeatureNotifyBadgeUnlocked] = &Feature{
		Name:           FeatureNotifyBadgeUnlocked,
		Description:    "Notify when a badge is unlocked",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureNotifyStageAdvance] = &Feature{
		Name:           FeatureNotifyStageAdvance,
		Description:    "Notify when the learning stage advances",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureNotifyStreakBroken] = &Feature{
		Name:           FeatureNotifyStreakBroken,
		Description:    "Nudge learners after a broken streak",
		Enabled:        true,
		RolloutPercent: 50, // A/B test - can be demotivating
	}

	// Experimental features - disabled by default
	ff.features[FeatureExperimentalCASUpsert] = &Feature{
		Name:           FeatureExperimentalCASUpsert,
		Description:    "Compare-and-swap progress metric writes",
		Enabled:        false,
		RolloutPercent: 0,
	}

	ff.features[FeatureExperimentalAsyncEvents] = &Feature{
		Name:           FeatureExperimentalAsyncEvents,
		Description:    "Asynchronous domain event dispatch",
		Enabled:        false,
		RolloutPercent: 0,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_ADAPTATION_CONTENT=true
// Example: FEATURE_NOTIFY_STREAK_BROKEN=50 (50% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			// Try parsing as boolean
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			// Try parsing as percentage
			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "adaptation.content" -> "FEATURE_ADAPTATION_CONTENT"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	return ff.isEnabledLocked(featureName, ctx)
}

func (ff *FeatureFlags) isEnabledLocked(featureName string, ctx *FeatureContext) bool {
	// Check learner overrides first
	if ctx != nil && ctx.LearnerID != "" {
		if overrides, ok := ff.learnerOverrides[ctx.LearnerID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	// Internal accounts get all features
	if ctx != nil && ctx.IsInternal {
		return true
	}

	// Check if feature is enabled at all
	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check cohort targeting
	if len(feature.TargetCohorts) > 0 && ctx != nil && ctx.Cohort != "" {
		cohortMatch := false
		for _, c := range feature.TargetCohorts {
			if c == ctx.Cohort {
				cohortMatch = true
				break
			}
		}
		if !cohortMatch {
			return false
		}
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.LearnerID != "" {
		return ff.isInRollout(ctx.LearnerID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a learner is in the rollout percentage.
// Uses consistent hashing so learners stay in their bucket.
func (ff *FeatureFlags) isInRollout(learnerID, featureName string, percent int) bool {
	// Create a consistent hash for this learner+feature combination
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(learnerID))
	hash := h.Sum32()

	// Map to 0-99 range
	bucket := int(hash % 100)

	return bucket < percent
}

// GetVariant returns the A/B test variant for a learner.
// Returns empty string if no variants defined or feature disabled.
func (ff *FeatureFlags) GetVariant(featureName string, ctx *FeatureContext) string {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	if !ok || !ff.isEnabledLocked(featureName, ctx) {
		return ""
	}

	if len(feature.Variants) == 0 || ctx == nil {
		return ""
	}

	// Use consistent hashing to assign variant
	h := fnv.New32a()
	h.Write([]byte(featureName + "_variant"))
	h.Write([]byte(ctx.LearnerID))
	hash := h.Sum32()

	variantIndex := int(hash % uint32(len(feature.Variants)))
	return feature.Variants[variantIndex]
}

// SetLearnerOverride sets a feature override for a specific learner.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetLearnerOverride(learnerID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.learnerOverrides[learnerID]; !ok {
		ff.learnerOverrides[learnerID] = make(map[string]bool)
	}
	ff.learnerOverrides[learnerID][featureName] = enabled
}

// ClearLearnerOverrides removes all overrides for a learner.
func (ff *FeatureFlags) ClearLearnerOverrides(learnerID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.learnerOverrides, learnerID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		// Return a copy
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Convenience methods for common checks ---

// AdaptationEnabled checks if any content adaptation features are enabled.
func (ff *FeatureFlags) AdaptationEnabled(ctx *FeatureContext) bool {
	return ff.IsEnabled(FeatureAdaptationContent, ctx) ||
		ff.IsEnabled(FeatureAdaptationTerminology, ctx) ||
		ff.IsEnabled(FeatureAdaptationChallenges, ctx)
}

// NotificationsEnabled checks if any notifications are enabled.
func (ff *FeatureFlags) NotificationsEnabled(ctx *FeatureContext) bool {
	return ff.IsEnabled(FeatureNotifyBadgeUnlocked, ctx) ||
		ff.IsEnabled(FeatureNotifyStageAdvance, ctx) ||
		ff.IsEnabled(FeatureNotifyStreakBroken, ctx)
}

// --- Errors ---

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
