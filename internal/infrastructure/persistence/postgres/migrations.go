package postgres

// embeddedMigrations returns the full migration set in version order.
func embeddedMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_progress",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_notifications",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create progress metrics and badges tables
-- Version: 001

-- One cumulative row per learner. Created lazily on first activity,
-- updated via upsert, never deleted.
CREATE TABLE IF NOT EXISTS progress_metrics (
    learner_id VARCHAR(64) PRIMARY KEY,
    analysis_count INTEGER NOT NULL DEFAULT 0,
    pattern_recognition_score DECIMAL(5,4) NOT NULL DEFAULT 0,
    research_engagement_score DECIMAL(5,4) NOT NULL DEFAULT 0,
    community_contribution_score DECIMAL(5,4) NOT NULL DEFAULT 0,
    current_streak INTEGER NOT NULL DEFAULT 0,
    best_streak INTEGER NOT NULL DEFAULT 0,
    last_active_date DATE,
    total_session_time DOUBLE PRECISION NOT NULL DEFAULT 0,
    stage_progression_points DOUBLE PRECISION NOT NULL DEFAULT 0,
    skill_competencies JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- Constraints for data integrity
    CONSTRAINT valid_analysis_count CHECK (analysis_count >= 0),
    CONSTRAINT valid_pattern_score CHECK (pattern_recognition_score >= 0 AND pattern_recognition_score <= 1),
    CONSTRAINT valid_research_score CHECK (research_engagement_score >= 0 AND research_engagement_score <= 1),
    CONSTRAINT valid_community_score CHECK (community_contribution_score >= 0 AND community_contribution_score <= 1),
    CONSTRAINT valid_streaks CHECK (current_streak >= 0 AND best_streak >= current_streak),
    CONSTRAINT valid_session_time CHECK (total_session_time >= 0),
    CONSTRAINT valid_points CHECK (stage_progression_points >= 0)
);

CREATE INDEX IF NOT EXISTS idx_progress_metrics_updated_at ON progress_metrics(updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_progress_metrics_points ON progress_metrics(stage_progression_points DESC);

-- Append-only badge ledger. The unique pair makes a repeated grant of the
-- same badge type a no-op instead of a duplicate.
CREATE TABLE IF NOT EXISTS badges (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    learner_id VARCHAR(64) NOT NULL,
    badge_type VARCHAR(40) NOT NULL,
    earned_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    context JSONB NOT NULL DEFAULT '{}'::jsonb,
    display_name VARCHAR(100) NOT NULL,
    description VARCHAR(300) NOT NULL DEFAULT '',
    achievement_value INTEGER NOT NULL DEFAULT 0,

    CONSTRAINT valid_achievement_value CHECK (achievement_value >= 0),
    UNIQUE(learner_id, badge_type)
);

CREATE INDEX IF NOT EXISTS idx_badges_learner_earned ON badges(learner_id, earned_at);

-- Trigger keeping updated_at honest on direct writes
CREATE OR REPLACE FUNCTION update_progress_metrics_updated_at()
RETURNS TRIGGER AS $$
BEGIN
    NEW.updated_at = NOW();
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trigger_progress_metrics_updated_at ON progress_metrics;
CREATE TRIGGER trigger_progress_metrics_updated_at
    BEFORE UPDATE ON progress_metrics
    FOR EACH ROW
    EXECUTE FUNCTION update_progress_metrics_updated_at();
`

const migration001Down = `
DROP TRIGGER IF EXISTS trigger_progress_metrics_updated_at ON progress_metrics;
DROP FUNCTION IF EXISTS update_progress_metrics_updated_at();
DROP TABLE IF EXISTS badges;
DROP TABLE IF EXISTS progress_metrics;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE NOTIFICATIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create notification feed table
-- Version: 002

CREATE TABLE IF NOT EXISTS notifications (
    id UUID PRIMARY KEY,
    learner_id VARCHAR(64) NOT NULL,
    type VARCHAR(30) NOT NULL,
    title VARCHAR(200) NOT NULL,
    message TEXT NOT NULL,
    data JSONB NOT NULL DEFAULT '{}'::jsonb,
    read_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_notification_type CHECK (type IN (
        'badge_unlocked', 'streak_broken', 'streak_milestone', 'stage_advanced', 'welcome'
    ))
);

-- Feed reads are always newest-first per learner
CREATE INDEX IF NOT EXISTS idx_notifications_learner_created ON notifications(learner_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_notifications_unread ON notifications(learner_id) WHERE read_at IS NULL;
`

const migration002Down = `
DROP TABLE IF EXISTS notifications;
`
