// Package progress содержит накопительное состояние ученика: метрики
// прогресса, серии активных дней и систему наград. Это единственная часть
// системы с настоящим персистентным состоянием — всё остальное
// пересчитывается из журнала событий.
package progress

import (
	"time"

	"github.com/finsight-hub/finsight-progression/pkg/timeutil"
)

// ═══════════════════════════════════════════════════════════════════════════
// Streak — серия последовательных активных дней
// ═══════════════════════════════════════════════════════════════════════════

// Streak отслеживает серию последовательных дней активности ученика.
// День считается по календарю UTC.
type Streak struct {
	Current        int       `json:"current_streak"`
	Best           int       `json:"best_streak"`
	LastActiveDate time.Time `json:"last_active_date"`
}

// NewStreak создаёт пустую серию.
func NewStreak() Streak {
	return Streak{}
}

// StreakUpdate описывает результат учёта активного дня.
type StreakUpdate struct {
	// Changed — изменилось ли значение серии.
	Changed bool
	// Broken — серия прервалась (пропуск более одного дня).
	Broken bool
	// PreviousStreak — длина серии до сброса (для уведомлений).
	PreviousStreak int
	// DaysMissed — сколько дней было пропущено при сбросе.
	DaysMissed int
}

// RecordActivity учитывает день активности.
// Правила:
//   - первый активный день: серия = 1;
//   - тот же день: без изменений;
//   - ровно следующий день: серия +1;
//   - пропуск более одного дня: серия сбрасывается в 1 (не в 0).
func (s *Streak) RecordActivity(date time.Time) StreakUpdate {
	day := timeutil.StartOfDay(date)

	if s.LastActiveDate.IsZero() {
		s.Current = 1
		s.LastActiveDate = day
		s.raiseBest()
		return StreakUpdate{Changed: true}
	}

	daysDiff := timeutil.DaysBetween(s.LastActiveDate, day)
	switch {
	case daysDiff <= 0:
		// Тот же день или событие из прошлого — серия не меняется.
		return StreakUpdate{}

	case daysDiff == 1:
		s.Current++
		s.LastActiveDate = day
		s.raiseBest()
		return StreakUpdate{Changed: true}

	default:
		update := StreakUpdate{
			Changed:        true,
			Broken:         true,
			PreviousStreak: s.Current,
			DaysMissed:     daysDiff - 1,
		}
		s.Current = 1
		s.LastActiveDate = day
		s.raiseBest()
		return update
	}
}

// raiseBest поднимает рекорд, если текущая серия его превысила.
func (s *Streak) raiseBest() {
	if s.Current > s.Best {
		s.Best = s.Current
	}
}

// IsActive возвращает true, если серия не прервана на данный момент:
// последняя активность была сегодня или вчера.
func (s *Streak) IsActive(now time.Time) bool {
	if s.LastActiveDate.IsZero() {
		return false
	}
	return timeutil.DaysBetween(s.LastActiveDate, timeutil.StartOfDay(now)) <= 1
}
