package streak

import (
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/stats"
	"github.com/TEJ42000/ALLMS-sub004/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY CONSISTENCY
// ══════════════════════════════════════════════════════════════════════════════

// NormalizeWeek brings the weekly sub-document up to date for today:
// an expired bonus is switched off and, when today falls in a later week
// than the stored one, the category flags are cleared. It is idempotent and
// must run inside the same conditional write as the change it precedes.
// It reports whether the week was rolled over.
func (e *Engine) NormalizeWeek(s *stats.Streak, today timeutil.Day) bool {
	if s.BonusActive && today >= s.BonusUntil {
		s.BonusActive = false
		s.BonusMultiplier = 0
	}

	ws := e.cal.WeekStart(today)
	if ws <= s.WeekStart {
		return false
	}
	s.Weekly = stats.WeeklyConsistency{}
	s.WeekStart = ws
	return true
}

// MarkCategory flags category c for the week containing today and reports
// whether this completed the week and activated the bonus. Activities for
// an older week than the stored one are ignored.
func (e *Engine) MarkCategory(s *stats.Streak, c stats.Category, today timeutil.Day) bool {
	if !e.cfg.WeeklyBonusEnabled {
		return false
	}
	ws := e.cal.WeekStart(today)
	if ws != s.WeekStart {
		return false
	}
	s.Weekly.Mark(c)
	if !s.Weekly.Complete() {
		return false
	}

	until := ws.AddDays(7 * (1 + e.cfg.BonusWeeks))
	if s.BonusActive && s.BonusUntil >= until {
		return false
	}
	s.BonusActive = true
	s.BonusMultiplier = e.cfg.BonusMultiplier
	s.BonusUntil = until
	return true
}
