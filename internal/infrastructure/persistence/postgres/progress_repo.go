package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/finsight-hub/finsight-progression/internal/domain/progress"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.Store for PostgreSQL.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// Metrics Operations
// ─────────────────────────────────────────────────────────────────────────────

// GetMetrics returns the cumulative metrics record of a learner.
func (r *ProgressRepository) GetMetrics(ctx context.Context, learnerID shared.LearnerID) (*progress.ProgressMetrics, error) {
	query := `
		SELECT learner_id, analysis_count,
			   pattern_recognition_score, research_engagement_score, community_contribution_score,
			   current_streak, best_streak, last_active_date,
			   total_session_time, stage_progression_points, skill_competencies,
			   created_at, updated_at
		FROM progress_metrics
		WHERE learner_id = $1
	`

	row := r.conn.QueryRow(ctx, query, learnerID.String())
	return r.scanMetrics(row)
}

// UpsertMetrics saves the whole record, last writer wins.
func (r *ProgressRepository) UpsertMetrics(ctx context.Context, metrics *progress.ProgressMetrics) error {
	query := `
		INSERT INTO progress_metrics (
			learner_id, analysis_count,
			pattern_recognition_score, research_engagement_score, community_contribution_score,
			current_streak, best_streak, last_active_date,
			total_session_time, stage_progression_points, skill_competencies,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (learner_id) DO UPDATE SET
			analysis_count = EXCLUDED.analysis_count,
			pattern_recognition_score = EXCLUDED.pattern_recognition_score,
			research_engagement_score = EXCLUDED.research_engagement_score,
			community_contribution_score = EXCLUDED.community_contribution_score,
			current_streak = EXCLUDED.current_streak,
			best_streak = EXCLUDED.best_streak,
			last_active_date = EXCLUDED.last_active_date,
			total_session_time = EXCLUDED.total_session_time,
			stage_progression_points = EXCLUDED.stage_progression_points,
			skill_competencies = EXCLUDED.skill_competencies,
			updated_at = NOW()
	`

	args, err := r.metricsArgs(metrics)
	if err != nil {
		return err
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert metrics: %w", err)
	}

	return nil
}

// CompareAndSwapMetrics saves the record only if it has not changed since it
// was read. Returns shared.ErrMetricsConflict when another writer got there
// first, including the case where the row appeared concurrently.
func (r *ProgressRepository) CompareAndSwapMetrics(ctx context.Context, metrics *progress.ProgressMetrics, expectedUpdatedAt time.Time) error {
	if expectedUpdatedAt.IsZero() {
		// Fresh record: insert must win the race for the row.
		query := `
			INSERT INTO progress_metrics (
				learner_id, analysis_count,
				pattern_recognition_score, research_engagement_score, community_contribution_score,
				current_streak, best_streak, last_active_date,
				total_session_time, stage_progression_points, skill_competencies,
				created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (learner_id) DO NOTHING
		`

		args, err := r.metricsArgs(metrics)
		if err != nil {
			return err
		}

		result, err := r.conn.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to insert metrics: %w", err)
		}
		if result.RowsAffected() == 0 {
			return shared.ErrMetricsConflict
		}
		return nil
	}

	query := `
		UPDATE progress_metrics SET
			analysis_count = $2,
			pattern_recognition_score = $3,
			research_engagement_score = $4,
			community_contribution_score = $5,
			current_streak = $6,
			best_streak = $7,
			last_active_date = $8,
			total_session_time = $9,
			stage_progression_points = $10,
			skill_competencies = $11,
			updated_at = NOW()
		WHERE learner_id = $1 AND updated_at = $12
	`

	skillsJSON, err := json.Marshal(metrics.SkillCompetencies)
	if err != nil {
		return fmt.Errorf("failed to marshal skill competencies: %w", err)
	}

	result, err := r.conn.Exec(ctx, query,
		metrics.LearnerID.String(),
		metrics.AnalysisCount,
		metrics.PatternRecognitionScore.Float64(),
		metrics.ResearchEngagementScore.Float64(),
		metrics.CommunityContributionScore.Float64(),
		metrics.Streak.Current,
		metrics.Streak.Best,
		nullableDate(metrics.Streak.LastActiveDate),
		metrics.TotalSessionTime,
		metrics.StageProgressionPoints.Float64(),
		skillsJSON,
		expectedUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update metrics: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrMetricsConflict
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Badge Operations
// ─────────────────────────────────────────────────────────────────────────────

// SaveBadge appends a badge to the ledger. Granting the same badge type
// twice is a no-op: inserted=false, no error.
func (r *ProgressRepository) SaveBadge(ctx context.Context, learnerID shared.LearnerID, badge progress.Badge) (bool, error) {
	query := `
		INSERT INTO badges (
			learner_id, badge_type, earned_at, context,
			display_name, description, achievement_value
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (learner_id, badge_type) DO NOTHING
	`

	contextJSON, err := json.Marshal(badge.Context)
	if err != nil {
		return false, fmt.Errorf("failed to marshal badge context: %w", err)
	}
	if badge.Context == nil {
		contextJSON = []byte(`{}`)
	}

	result, err := r.conn.Exec(ctx, query,
		learnerID.String(),
		string(badge.Type),
		badge.EarnedAt,
		contextJSON,
		badge.DisplayName,
		badge.Description,
		badge.AchievementValue,
	)
	if err != nil {
		return false, fmt.Errorf("failed to save badge: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// ListBadges returns the learner's badges, oldest first.
func (r *ProgressRepository) ListBadges(ctx context.Context, learnerID shared.LearnerID) ([]progress.Badge, error) {
	query := `
		SELECT badge_type, earned_at, context, display_name, description, achievement_value
		FROM badges
		WHERE learner_id = $1
		ORDER BY earned_at ASC, badge_type ASC
	`

	rows, err := r.conn.Query(ctx, query, learnerID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	defer rows.Close()

	badges := make([]progress.Badge, 0)
	for rows.Next() {
		var (
			badge       progress.Badge
			badgeType   string
			contextJSON []byte
		)

		if err := rows.Scan(
			&badgeType,
			&badge.EarnedAt,
			&contextJSON,
			&badge.DisplayName,
			&badge.Description,
			&badge.AchievementValue,
		); err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}

		badge.Type = progress.BadgeType(badgeType)
		if len(contextJSON) > 0 {
			if err := json.Unmarshal(contextJSON, &badge.Context); err != nil {
				return nil, fmt.Errorf("failed to unmarshal badge context: %w", err)
			}
		}

		badges = append(badges, badge)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate badges: %w", err)
	}

	return badges, nil
}

// HasBadge reports whether the learner already earned a badge of this type.
func (r *ProgressRepository) HasBadge(ctx context.Context, learnerID shared.LearnerID, badgeType progress.BadgeType) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM badges WHERE learner_id = $1 AND badge_type = $2
		)
	`

	var exists bool
	if err := r.conn.QueryRow(ctx, query, learnerID.String(), string(badgeType)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check badge: %w", err)
	}

	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// metricsArgs builds the positional arguments of the full-record insert.
func (r *ProgressRepository) metricsArgs(metrics *progress.ProgressMetrics) ([]interface{}, error) {
	skillsJSON, err := json.Marshal(metrics.SkillCompetencies)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal skill competencies: %w", err)
	}

	createdAt := metrics.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return []interface{}{
		metrics.LearnerID.String(),
		metrics.AnalysisCount,
		metrics.PatternRecognitionScore.Float64(),
		metrics.ResearchEngagementScore.Float64(),
		metrics.CommunityContributionScore.Float64(),
		metrics.Streak.Current,
		metrics.Streak.Best,
		nullableDate(metrics.Streak.LastActiveDate),
		metrics.TotalSessionTime,
		metrics.StageProgressionPoints.Float64(),
		skillsJSON,
		createdAt,
		time.Now().UTC(),
	}, nil
}

// scanMetrics reads a metrics row.
func (r *ProgressRepository) scanMetrics(row pgx.Row) (*progress.ProgressMetrics, error) {
	var (
		m              progress.ProgressMetrics
		learnerID      string
		patternScore   float64
		researchScore  float64
		communityScore float64
		lastActiveDate *time.Time
		points         float64
		skillsJSON     []byte
	)

	err := row.Scan(
		&learnerID,
		&m.AnalysisCount,
		&patternScore,
		&researchScore,
		&communityScore,
		&m.Streak.Current,
		&m.Streak.Best,
		&lastActiveDate,
		&m.TotalSessionTime,
		&points,
		&skillsJSON,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrMetricsNotFound
		}
		return nil, fmt.Errorf("failed to scan metrics: %w", err)
	}

	m.LearnerID = shared.LearnerID(learnerID)
	m.PatternRecognitionScore = shared.NewScore(patternScore)
	m.ResearchEngagementScore = shared.NewScore(researchScore)
	m.CommunityContributionScore = shared.NewScore(communityScore)
	m.StageProgressionPoints = shared.Points(points)
	if lastActiveDate != nil {
		m.Streak.LastActiveDate = lastActiveDate.UTC()
	}

	m.SkillCompetencies = make(map[string]float64)
	if len(skillsJSON) > 0 {
		if err := json.Unmarshal(skillsJSON, &m.SkillCompetencies); err != nil {
			return nil, fmt.Errorf("failed to unmarshal skill competencies: %w", err)
		}
	}

	return &m, nil
}

// nullableDate maps a zero time to SQL NULL.
func nullableDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}
