package recorder

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type DrillType string

const (
	DrillConsistencyRun DrillType = "consistency_run"
	DrillPBQuali        DrillType = "pb_quali"
	DrillTargetLap      DrillType = "target_lap"
)

// drillSpec fixes the lap count and base reward for each drill type.
type drillSpec struct {
	targetLaps int
	baseReward int
}

var drillSpecs = map[DrillType]drillSpec{
	DrillConsistencyRun: {targetLaps: 5, baseReward: 50},
	DrillPBQuali:        {targetLaps: 3, baseReward: 40},
	DrillTargetLap:      {targetLaps: 1, baseReward: 25},
}

const participationXP = 10

type DrillStatus string

const (
	DrillPending   DrillStatus = "pending"
	DrillActive    DrillStatus = "active"
	DrillCompleted DrillStatus = "completed"
	DrillAbandoned DrillStatus = "abandoned"
)

// Drill is one goal-directed practice session. TargetTime is nil when the
// driver has no history for the track/car pairing.
type Drill struct {
	ID             string      `json:"id"`
	Type           DrillType   `json:"type"`
	TargetTime     *float64    `json:"targetTime"`
	TargetLaps     int         `json:"targetLaps"`
	BaseReward     int         `json:"baseReward"`
	Status         DrillStatus `json:"status"`
	StartLapNumber int         `json:"startLapNumber"`
	TrackID        string      `json:"trackId"`
	CarName        string      `json:"carName"`
}

// DrillProgress is mutated only while the drill is active.
type DrillProgress struct {
	LapsCompleted  int       `json:"lapsCompleted"`
	LapTimes       []float64 `json:"lapTimes"`
	TotalTime      float64   `json:"totalTime"`
	StartLapNumber int       `json:"startLapNumber"`
}

// DrillResult reports a finished drill: the delta against target (negative
// means the target was beaten) and the XP awarded.
type DrillResult struct {
	Drill       Drill   `json:"drill"`
	Delta       float64 `json:"delta"`
	Improvement float64 `json:"improvementPercent"`
	XP          int     `json:"xp"`
}

// History resolves the driver's best historical contiguous n-lap time sum
// for a track/car pairing. ok is false when no history exists.
type History interface {
	BestContiguousTime(trackID, carName string, laps int) (total float64, ok bool, err error)
}

var (
	ErrDrillAlreadyRunning = errors.New("recorder: a drill is already pending or active")
	ErrNoDrill             = errors.New("recorder: no drill in progress")
)

// DrillEngine manages at most one concurrent drill. All mutation happens on
// the recorder's command worker; the pacing-delta path only reads.
type DrillEngine struct {
	logger  Logger
	history History

	drill    *Drill
	progress DrillProgress
}

func NewDrillEngine(history History, logger Logger) *DrillEngine {
	return &DrillEngine{
		logger:  logger,
		history: history,
	}
}

func (de *DrillEngine) Drill() *Drill {
	return de.drill
}

func (de *DrillEngine) Progress() DrillProgress {
	return de.progress
}

// Start creates a drill. With no session bound yet it stays pending and
// activates later, once the recorder reports a concrete track and car.
func (de *DrillEngine) Start(drillType DrillType, session *SessionView, currentLapNumber int) (*Drill, error) {
	if de.drill != nil && (de.drill.Status == DrillPending || de.drill.Status == DrillActive) {
		return nil, ErrDrillAlreadyRunning
	}

	spec, ok := drillSpecs[drillType]

	if !ok {
		return nil, fmt.Errorf("recorder: unknown drill type: %s", drillType)
	}

	de.drill = &Drill{
		ID:         uuid.New().String(),
		Type:       drillType,
		TargetLaps: spec.targetLaps,
		BaseReward: spec.baseReward,
		Status:     DrillPending,
	}

	de.progress = DrillProgress{}

	if session != nil {
		de.Activate(*session, currentLapNumber)
	} else {
		de.logger.Infof("Drill %s created pending: waiting for an active session", drillType)
	}

	return de.drill, nil
}

// Activate binds a pending drill to a concrete track/car, computes its
// target pace from history and records the lap counting begins from.
func (de *DrillEngine) Activate(session SessionView, currentLapNumber int) {
	if de.drill == nil || de.drill.Status != DrillPending {
		return
	}

	de.drill.TrackID = session.TrackID
	de.drill.CarName = session.CarName
	de.drill.StartLapNumber = currentLapNumber + 1
	de.progress.StartLapNumber = de.drill.StartLapNumber

	total, ok, err := de.history.BestContiguousTime(session.TrackID, session.CarName, de.drill.TargetLaps)

	if err != nil {
		de.logger.WithError(err).Warnf("Could not scan session history for drill target. Drill will run without one")
	} else if ok {
		de.drill.TargetTime = &total
	}

	de.drill.Status = DrillActive

	if de.drill.TargetTime != nil {
		de.logger.Infof("Drill %s active on %s / %s: target %.3fs over %d laps from lap %d", de.drill.Type, session.TrackID, session.CarName, total, de.drill.TargetLaps, de.drill.StartLapNumber)
	} else {
		de.logger.Infof("Drill %s active on %s / %s with no historical target", de.drill.Type, session.TrackID, session.CarName)
	}
}

// OnLapCompleted feeds a finalized lap into the active drill. It returns a
// result when this lap completed the drill.
func (de *DrillEngine) OnLapCompleted(lap *Lap) *DrillResult {
	if de.drill == nil || de.drill.Status != DrillActive {
		return nil
	}

	if lap.LapNumber < de.drill.StartLapNumber || lap.IsSightingLap {
		return nil
	}

	if de.progress.LapsCompleted >= de.drill.TargetLaps {
		return nil
	}

	de.progress.LapsCompleted++
	de.progress.LapTimes = append(de.progress.LapTimes, lap.LapTime)
	de.progress.TotalTime += lap.LapTime

	if de.progress.LapsCompleted < de.drill.TargetLaps {
		return nil
	}

	return de.complete()
}

func (de *DrillEngine) complete() *DrillResult {
	de.drill.Status = DrillCompleted

	result := &DrillResult{
		Drill: *de.drill,
		XP:    participationXP,
	}

	if de.drill.TargetTime != nil {
		target := *de.drill.TargetTime
		result.Delta = de.progress.TotalTime - target

		if result.Delta <= 0 && target > 0 {
			result.Improvement = -result.Delta / target * 100
			result.XP = de.drill.BaseReward + bonusForImprovement(result.Improvement)
		}
	}

	de.logger.Infof("Drill %s completed: total %.3fs, delta %+.3fs, awarded %d XP", de.drill.Type, de.progress.TotalTime, result.Delta, result.XP)

	de.progress = DrillProgress{}

	return result
}

// bonusForImprovement maps percent improvement over target onto the bonus
// tiers: under 1% pays 25, under 3% pays 50, beyond that 100.
func bonusForImprovement(percent float64) int {
	switch {
	case percent >= 3:
		return 100
	case percent >= 1:
		return 50
	default:
		return 25
	}
}

// Abandon discards the current drill and its progress. No reward.
func (de *DrillEngine) Abandon() error {
	if de.drill == nil || (de.drill.Status != DrillPending && de.drill.Status != DrillActive) {
		return ErrNoDrill
	}

	de.logger.Infof("Drill %s abandoned after %d laps", de.drill.Type, de.progress.LapsCompleted)

	de.drill.Status = DrillAbandoned
	de.progress = DrillProgress{}

	return nil
}

// PacingDelta extrapolates a live delta against target mid-lap: the elapsed
// time of the in-progress lap plus completed-lap time, against the slice of
// target proportional to estimated completion. Returns ok=false when the
// drill has no target or isn't active.
func (de *DrillEngine) PacingDelta(currentLapElapsed float64) (float64, bool) {
	if de.drill == nil || de.drill.Status != DrillActive || de.drill.TargetTime == nil {
		return 0, false
	}

	target := *de.drill.TargetTime

	if target <= 0 || de.drill.TargetLaps == 0 {
		return 0, false
	}

	averageTargetLap := target / float64(de.drill.TargetLaps)

	fraction := currentLapElapsed / averageTargetLap

	if fraction > 1 {
		fraction = 1
	}

	expected := target * (float64(de.progress.LapsCompleted) + fraction) / float64(de.drill.TargetLaps)
	actual := de.progress.TotalTime + currentLapElapsed

	return actual - expected, true
}
