package services

import (
	"math"
	"time"

	"github.com/studysprint/studysprint-backend/internal/domain"
)

// ScoreConfig holds every weight the scorer uses. The defaults mirror the
// tuning the product shipped with, but none of them are contracts; they can
// be overridden from the config file.
type ScoreConfig struct {
	ConsistencyBonus      float64 `yaml:"consistency_bonus"`
	ConsistencyMinGapSecs float64 `yaml:"consistency_min_gap_seconds"`
	ConsistencyMaxGapSecs float64 `yaml:"consistency_max_gap_seconds"`

	PomodoroBonusPerCycle float64 `yaml:"pomodoro_bonus_per_cycle"`
	PomodoroBonusCap      float64 `yaml:"pomodoro_bonus_cap"`

	LongBreakMinutes       float64 `yaml:"long_break_minutes"`
	ShortBreakMinutes      float64 `yaml:"short_break_minutes"`
	LongBreakPenaltyPerMin float64 `yaml:"long_break_penalty_per_minute"`
	ShortBreakPenalty      float64 `yaml:"short_break_penalty_per_break"`
	BreakPenaltyCap        float64 `yaml:"break_penalty_cap"`

	InterruptionPenalty    float64 `yaml:"interruption_penalty"`
	InterruptionPenaltyCap float64 `yaml:"interruption_penalty_cap"`

	PagesCap         float64 `yaml:"pages_cap"`
	EfficiencyWeight float64 `yaml:"efficiency_weight"`
	GoalsWeight      float64 `yaml:"goals_weight"`
	FocusWeight      float64 `yaml:"focus_weight"`
}

func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{
		ConsistencyBonus:      10,
		ConsistencyMinGapSecs: 30,
		ConsistencyMaxGapSecs: 300,

		PomodoroBonusPerCycle: 3,
		PomodoroBonusCap:      15,

		LongBreakMinutes:       15,
		ShortBreakMinutes:      2,
		LongBreakPenaltyPerMin: 2,
		ShortBreakPenalty:      5,
		BreakPenaltyCap:        20,

		InterruptionPenalty:    5,
		InterruptionPenaltyCap: 25,

		PagesCap:         50,
		EfficiencyWeight: 0.3,
		GoalsWeight:      20,
		FocusWeight:      0.2,
	}
}

// ScoreInput is everything the scorer reads: the session's attributed time
// partitions, its activity ledger, and its breaks. The scorer is pure and
// deterministic over this input.
type ScoreInput struct {
	ActiveSeconds float64
	IdleSeconds   float64
	BreakSeconds  float64
	TotalSeconds  float64

	Interruptions  int
	PomodoroCycles int
	PagesCompleted int
	GoalsSet       int
	GoalsAchieved  int

	Events []domain.ActivityEvent
	Breaks []domain.SessionBreak
}

// FocusScore derives the [0,100] focus metric: active-time ratio plus a
// consistency bonus and pomodoro bonus, minus break and interruption
// penalties.
func FocusScore(in ScoreInput, cfg ScoreConfig) float64 {
	activeMin := in.ActiveSeconds / 60
	totalMin := math.Max(in.TotalSeconds/60, 1)
	activeRatio := activeMin / totalMin

	score := activeRatio * 100
	score += consistencyBonus(in.Events, cfg)
	score += math.Min(float64(in.PomodoroCycles)*cfg.PomodoroBonusPerCycle, cfg.PomodoroBonusCap)
	score -= breakPenalty(in.Breaks, cfg)
	score -= math.Min(float64(in.Interruptions)*cfg.InterruptionPenalty, cfg.InterruptionPenaltyCap)

	return clampScore(score)
}

// ProductivityScore combines page progress, efficiency, goal attainment and
// the focus score into a [0,100] metric.
func ProductivityScore(in ScoreInput, cfg ScoreConfig) float64 {
	score := math.Min(float64(in.PagesCompleted), cfg.PagesCap)
	score += EfficiencyPercent(in) * cfg.EfficiencyWeight
	if in.GoalsSet > 0 {
		score += float64(in.GoalsAchieved) / float64(in.GoalsSet) * cfg.GoalsWeight
	}
	score += FocusScore(in, cfg) * cfg.FocusWeight
	return clampScore(score)
}

// EfficiencyPercent is active time over total time.
func EfficiencyPercent(in ScoreInput) float64 {
	if in.TotalSeconds <= 0 {
		return 0
	}
	return clampScore(in.ActiveSeconds / in.TotalSeconds * 100)
}

// consistencyBonus rewards steady engagement: the average gap between
// consecutive ledger events landing inside the configured window.
func consistencyBonus(events []domain.ActivityEvent, cfg ScoreConfig) float64 {
	if len(events) < 2 {
		return 0
	}
	var total time.Duration
	for i := 1; i < len(events); i++ {
		total += events[i].Timestamp.Sub(events[i-1].Timestamp)
	}
	avg := total.Seconds() / float64(len(events)-1)
	if avg >= cfg.ConsistencyMinGapSecs && avg <= cfg.ConsistencyMaxGapSecs {
		return cfg.ConsistencyBonus
	}
	return 0
}

// breakPenalty penalizes both over-long breaks and break-shortening
// behavior, based on the average duration of closed breaks. An open break
// has no duration yet and is not judged.
func breakPenalty(breaks []domain.SessionBreak, cfg ScoreConfig) float64 {
	var (
		totalSecs float64
		closed    int
	)
	for _, b := range breaks {
		switch {
		case b.DurationSeconds > 0:
			totalSecs += float64(b.DurationSeconds)
			closed++
		case b.BreakEnd != nil:
			totalSecs += b.BreakEnd.Sub(b.BreakStart).Seconds()
			closed++
		}
	}
	if closed == 0 {
		return 0
	}
	avgMin := totalSecs / float64(closed) / 60
	switch {
	case avgMin > cfg.LongBreakMinutes:
		return math.Min((avgMin-cfg.LongBreakMinutes)*cfg.LongBreakPenaltyPerMin, cfg.BreakPenaltyCap)
	case avgMin < cfg.ShortBreakMinutes:
		return math.Min(float64(closed)*cfg.ShortBreakPenalty, cfg.BreakPenaltyCap)
	default:
		return 0
	}
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
