package game

import "time"

// ScoringPolicy awards points for one answer given correctness and latency.
type ScoringPolicy struct {
	MaxPoints int
	MinPoints int
}

// DefaultScoring mirrors the familiar quiz-show curve: fast correct answers
// approach 1000, slow correct answers bottom out at 100.
func DefaultScoring() ScoringPolicy {
	return ScoringPolicy{MaxPoints: 1000, MinPoints: 100}
}

// Score returns zero for a wrong answer. Correct answers decay linearly from
// MaxPoints to MinPoints across the window and never drop below MinPoints, so
// a correct-but-late answer still beats a wrong one.
func (p ScoringPolicy) Score(correct bool, elapsed, window time.Duration) int {
	if !correct {
		return 0
	}
	if window <= 0 || elapsed <= 0 {
		return p.MaxPoints
	}
	if elapsed >= window {
		return p.MinPoints
	}
	span := int64(p.MaxPoints - p.MinPoints)
	remaining := int64(window - elapsed)
	return p.MinPoints + int(span*remaining/int64(window))
}
