package progress

import (
	"context"
	"time"

	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
)

// Store — персистентное хранилище прогресса, разделённое по ученикам.
// Все операции ограничены одним learner id; никакой компонент выше не
// обходит это хранилище.
//
// Реализации: postgres (продакшен) и in-memory (тесты, деградация).
type Store interface {
	// GetMetrics возвращает запись метрик ученика.
	// Возвращает shared.ErrMetricsNotFound, если активности ещё не было.
	GetMetrics(ctx context.Context, learnerID shared.LearnerID) (*ProgressMetrics, error)

	// UpsertMetrics сохраняет запись целиком (last-writer-wins).
	// Конкурирующие обновления одного ученика могут потерять запись —
	// известное ограничение, см. CompareAndSwapMetrics.
	UpsertMetrics(ctx context.Context, metrics *ProgressMetrics) error

	// CompareAndSwapMetrics — опциональный строгий upsert: запись
	// сохраняется только если она не менялась с момента чтения
	// (сравнение по UpdatedAt). При конфликте возвращает
	// shared.ErrMetricsConflict.
	CompareAndSwapMetrics(ctx context.Context, metrics *ProgressMetrics, expectedUpdatedAt time.Time) error

	// SaveBadge сохраняет награду append-only. Повторная выдача того же
	// типа тому же ученику — no-op: inserted=false, без ошибки.
	SaveBadge(ctx context.Context, learnerID shared.LearnerID, badge Badge) (inserted bool, err error)

	// ListBadges возвращает выданные награды ученика, старые первыми.
	ListBadges(ctx context.Context, learnerID shared.LearnerID) ([]Badge, error)

	// HasBadge проверяет, выдана ли награда данного типа.
	HasBadge(ctx context.Context, learnerID shared.LearnerID, badgeType BadgeType) (bool, error)
}
