package attribute

import (
	"log/slog"

	"github.com/udisondev/ascension/internal/data"
	"github.com/udisondev/ascension/internal/model"
)

// AddCustomExp grants experience and levels the combatant up while the
// threshold is met and the rank's level cap allows it. At the cap the bar is
// kept full (exp == required). Returns true if at least one level was gained.
func (m *Model) AddCustomExp(id model.CombatantID, amount int) bool {
	s, ok := m.records[id]
	if !ok || amount <= 0 {
		return false
	}
	if s.Rank >= model.MaxRank {
		return false
	}
	levelCap := data.MaxLevelForRank(s.Rank)
	if s.DisplayLevel >= levelCap {
		return false
	}

	// work on locals so the record never holds a partial level
	level := s.DisplayLevel
	exp := s.CustomExp + amount
	required := s.CustomExpRequired
	if required <= 0 {
		required = data.ExpRequired(level)
	}

	level, exp, required, gained := advanceLevels(level, exp, required, levelCap)

	m.mutate(s, func(s *model.CombatantStats) {
		s.DisplayLevel = level
		s.CustomExp = exp
		s.CustomExpRequired = required
	})

	if gained > 0 {
		slog.Info("combatant leveled up", "combatant", id, "level", level, "gained", gained)
	}
	return gained > 0
}

// SetRank advances the rank by exactly one. Any other target is rejected.
func (m *Model) SetRank(id model.CombatantID, rank int) bool {
	s, ok := m.records[id]
	if !ok {
		return false
	}
	if rank != s.Rank+1 || rank > model.MaxRank {
		slog.Warn("rejected rank change", "combatant", id, "from", s.Rank, "to", rank)
		return false
	}
	exp := s.CustomExp
	switch {
	case s.DisplayLevel >= data.MaxLevelForRank(rank):
		exp = s.CustomExpRequired
	case exp >= s.CustomExpRequired:
		// the full bar kept at the old cap starts over
		exp = 0
	}
	m.mutate(s, func(s *model.CombatantStats) {
		s.Rank = rank
		s.CustomExp = exp
	})
	return true
}

// advanceLevels spends exp on levels until the threshold or the cap stops it.
// At the cap the bar is reported full.
func advanceLevels(level, exp, required, levelCap int) (int, int, int, int) {
	gained := 0
	for level < levelCap && exp >= required {
		exp -= required
		level++
		gained++
		required = data.ExpRequired(level)
	}
	if level >= levelCap {
		exp = required
	}
	return level, exp, required, gained
}

// RestoreProgress loads persisted progression into a freshly spawned record.
// Values that break the rank's caps are rejected, not clamped.
func (m *Model) RestoreProgress(id model.CombatantID, rank, level, exp int) bool {
	s, ok := m.records[id]
	if !ok {
		return false
	}
	if rank < 0 || rank > model.MaxRank || level < 1 || level > data.MaxLevelForRank(rank) {
		slog.Warn("rejected progress restore", "combatant", id, "rank", rank, "level", level)
		return false
	}
	required := data.ExpRequired(level)
	if exp < 0 || exp > required {
		slog.Warn("rejected progress restore", "combatant", id, "exp", exp, "required", required)
		return false
	}
	if level == data.MaxLevelForRank(rank) {
		exp = required
	} else if exp == required {
		// a full bar below the cap is never a resting state
		return false
	}

	m.mutate(s, func(s *model.CombatantStats) {
		s.Rank = rank
		s.DisplayLevel = level
		s.CustomExp = exp
		s.CustomExpRequired = required
	})
	return true
}
