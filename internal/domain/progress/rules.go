package progress

import (
	"time"

	"github.com/finsight-hub/finsight-progression/internal/domain/behavior"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
	"github.com/finsight-hub/finsight-progression/internal/domain/stage"
)

// ═══════════════════════════════════════════════════════════════════════════
// AchievementContext — эфемерный контекст одной проверки
// ═══════════════════════════════════════════════════════════════════════════

// AchievementContext собирается заново для каждой проверки наград и никогда
// не сохраняется.
type AchievementContext struct {
	SessionID         shared.SessionID
	LearnerID         shared.LearnerID
	CurrentStage      stage.Stage
	BehavioralData    map[string]float64
	SessionHistory    []behavior.BehavioralEvent
	InteractionCounts map[behavior.InteractionType]int
}

// NewAchievementContext строит контекст из журнала сессии и свежей оценки.
func NewAchievementContext(learnerID shared.LearnerID, sessionID shared.SessionID, assessment stage.AssessmentResult, log *behavior.EventLog) *AchievementContext {
	ctx := &AchievementContext{
		SessionID:         sessionID,
		LearnerID:         learnerID,
		CurrentStage:      assessment.CurrentStage,
		BehavioralData:    assessment.BehavioralScores.AsMap(),
		InteractionCounts: make(map[behavior.InteractionType]int),
	}
	if log != nil {
		ctx.SessionHistory = log.ValidEvents()
		ctx.InteractionCounts = log.CountsByType()
	}
	return ctx
}

// ═══════════════════════════════════════════════════════════════════════════
// RuleEngine — оценка каталога наград
// ═══════════════════════════════════════════════════════════════════════════

// RuleEngine оценивает декларативный каталог наград против метрик и
// контекста. Без состояния, безопасен для конкурентного использования.
type RuleEngine struct{}

// NewRuleEngine создаёт движок правил.
func NewRuleEngine() *RuleEngine {
	return &RuleEngine{}
}

// CheckAchievementConditions возвращает награды, которые ещё не выданы, но
// критерии которых теперь выполнены. Каталог оценивается по порядку, и
// награды, открытые в этом же проходе, сразу попадают в множество выданных:
// PATTERN_MASTER может открыться тем же вызовом, что и его предпосылки.
//
// Выдача монотонна: уже выданный тип никогда не оценивается повторно,
// поэтому повторный вызов без новых данных возвращает пустой список.
func (r *RuleEngine) CheckAchievementConditions(metrics *ProgressMetrics, earned map[BadgeType]bool, achCtx *AchievementContext) []BadgeType {
	union := make(map[BadgeType]bool, len(earned)+4)
	for t, ok := range earned {
		if ok {
			union[t] = true
		}
	}

	var newlyEarned []BadgeType
	for _, def := range badgeCatalogue {
		if union[def.Type] {
			continue
		}
		if def.Criteria == nil {
			continue
		}
		if def.Criteria(CriteriaInput{Metrics: metrics, Earned: union, Ctx: achCtx}) {
			newlyEarned = append(newlyEarned, def.Type)
			union[def.Type] = true
		}
	}
	return newlyEarned
}

// NewBadge конструирует неизменяемую награду по каталогу. Контекст награды
// фиксирует этап и сессию на момент выдачи.
func NewBadge(t BadgeType, achCtx *AchievementContext, earnedAt time.Time) (Badge, error) {
	def, ok := DefinitionFor(t)
	if !ok {
		return Badge{}, shared.ErrUnknownBadgeType
	}

	badgeCtx := make(map[string]interface{}, 2)
	if achCtx != nil {
		if achCtx.CurrentStage != "" {
			badgeCtx["stage"] = achCtx.CurrentStage.String()
		}
		if !achCtx.SessionID.IsEmpty() {
			badgeCtx["session_id"] = achCtx.SessionID.String()
		}
	}

	return Badge{
		Type:             def.Type,
		EarnedAt:         earnedAt,
		Context:          badgeCtx,
		DisplayName:      def.DisplayName,
		Description:      def.Description,
		AchievementValue: def.AchievementValue,
	}, nil
}

// EarnedSet сворачивает список выданных наград в множество по типу.
func EarnedSet(badges []Badge) map[BadgeType]bool {
	set := make(map[BadgeType]bool, len(badges))
	for _, b := range badges {
		set[b.Type] = true
	}
	return set
}
