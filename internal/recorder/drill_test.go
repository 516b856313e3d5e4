package recorder

import (
	"errors"
	"math"
	"testing"
)

type stubHistory struct {
	total float64
	ok    bool
	err   error
}

func (s stubHistory) BestContiguousTime(trackID, carName string, laps int) (float64, bool, error) {
	return s.total, s.ok, s.err
}

func drillLap(lapNumber int, lapTime float64) *Lap {
	return &Lap{LapNumber: lapNumber, LapTime: lapTime}
}

func completeDrill(t *testing.T, engine *DrillEngine, drill *Drill, lapTimes []float64) *DrillResult {
	t.Helper()

	var result *DrillResult

	for i, lapTime := range lapTimes {
		result = engine.OnLapCompleted(drillLap(drill.StartLapNumber+i, lapTime))
	}

	if result == nil {
		t.Fatal("final lap should have completed the drill")
	}

	return result
}

func TestDrillBeatsTargetWithinThreePercent(t *testing.T) {
	engine := NewDrillEngine(stubHistory{total: 300.0, ok: true}, testLogger())

	drill, err := engine.Start(DrillConsistencyRun, &testView, 2)

	if err != nil {
		t.Fatalf("start drill failed: %v", err)
	}

	if drill.Status != DrillActive {
		t.Fatalf("drill with a live session should activate immediately, got %s", drill.Status)
	}

	if drill.StartLapNumber != 3 {
		t.Errorf("lap counting should begin on the next lap, got start lap %d", drill.StartLapNumber)
	}

	if drill.TargetTime == nil || *drill.TargetTime != 300.0 {
		t.Fatalf("target time should come from history, got %v", drill.TargetTime)
	}

	result := completeDrill(t, engine, drill, []float64{59.1, 59.1, 59.1, 59.1, 59.1})

	if math.Abs(result.Delta - -4.5) > 1e-9 {
		t.Errorf("delta = %v, expected -4.5", result.Delta)
	}

	if math.Abs(result.Improvement-1.5) > 1e-9 {
		t.Errorf("improvement = %v%%, expected 1.5%%", result.Improvement)
	}

	if result.XP != 100 {
		t.Errorf("XP = %d, expected base 50 + bonus 50", result.XP)
	}
}

func TestDrillBonusTiers(t *testing.T) {
	bonusTests := []struct {
		name       string
		totalTime  float64
		expectedXP int
	}{
		{name: "under one percent", totalTime: 299.0, expectedXP: 25 + 25},    // target_lap base 25
		{name: "under three percent", totalTime: 295.5, expectedXP: 25 + 50},  // 1.5%
		{name: "three percent and beyond", totalTime: 289.0, expectedXP: 125}, // base 25 + 100
		{name: "missed target", totalTime: 301.0, expectedXP: participationXP},
	}

	for _, test := range bonusTests {
		t.Run(test.name, func(t *testing.T) {
			engine := NewDrillEngine(stubHistory{total: 300.0, ok: true}, testLogger())

			drill, err := engine.Start(DrillTargetLap, &testView, 0)

			if err != nil {
				t.Fatalf("start drill failed: %v", err)
			}

			result := completeDrill(t, engine, drill, []float64{test.totalTime})

			if result.XP != test.expectedXP {
				t.Errorf("XP = %d, expected %d", result.XP, test.expectedXP)
			}
		})
	}
}

func TestDrillWithoutHistoryPaysParticipationOnly(t *testing.T) {
	engine := NewDrillEngine(stubHistory{}, testLogger())

	drill, err := engine.Start(DrillPBQuali, &testView, 0)

	if err != nil {
		t.Fatalf("start drill failed: %v", err)
	}

	if drill.TargetTime != nil {
		t.Fatalf("no history should leave target unset, got %v", *drill.TargetTime)
	}

	result := completeDrill(t, engine, drill, []float64{80, 81, 82})

	if result.XP != participationXP {
		t.Errorf("XP = %d, expected participation-only %d", result.XP, participationXP)
	}

	if result.Delta != 0 || result.Improvement != 0 {
		t.Errorf("no target means no delta, got delta %v improvement %v", result.Delta, result.Improvement)
	}
}

func TestDrillHistoryErrorDegradesToNoTarget(t *testing.T) {
	engine := NewDrillEngine(stubHistory{err: errors.New("store offline")}, testLogger())

	drill, err := engine.Start(DrillConsistencyRun, &testView, 0)

	if err != nil {
		t.Fatalf("start drill failed: %v", err)
	}

	if drill.Status != DrillActive {
		t.Errorf("a history failure must not block the drill, got %s", drill.Status)
	}

	if drill.TargetTime != nil {
		t.Error("a history failure should leave the drill targetless")
	}
}

func TestDrillIgnoresPriorAndSightingLaps(t *testing.T) {
	engine := NewDrillEngine(stubHistory{total: 180.0, ok: true}, testLogger())

	drill, err := engine.Start(DrillPBQuali, &testView, 4)

	if err != nil {
		t.Fatalf("start drill failed: %v", err)
	}

	// laps already underway when the drill started don't count
	if result := engine.OnLapCompleted(drillLap(4, 60)); result != nil {
		t.Error("a lap numbered before the drill start should not count")
	}

	if result := engine.OnLapCompleted(&Lap{LapNumber: 5, LapTime: 60, IsSightingLap: true}); result != nil {
		t.Error("a sighting lap should not count")
	}

	if engine.Progress().LapsCompleted != 0 {
		t.Fatalf("progress should still be zero, got %d", engine.Progress().LapsCompleted)
	}

	result := completeDrill(t, engine, drill, []float64{60, 60, 60})

	if result == nil || result.Drill.Status != DrillCompleted {
		t.Fatal("counted laps should run the drill to completion")
	}
}

func TestDrillPendingActivatesOnSession(t *testing.T) {
	engine := NewDrillEngine(stubHistory{total: 120.0, ok: true}, testLogger())

	drill, err := engine.Start(DrillTargetLap, nil, 0)

	if err != nil {
		t.Fatalf("start drill failed: %v", err)
	}

	if drill.Status != DrillPending {
		t.Fatalf("no session yet should leave the drill pending, got %s", drill.Status)
	}

	if result := engine.OnLapCompleted(drillLap(1, 60)); result != nil {
		t.Error("a pending drill must not count laps")
	}

	engine.Activate(testView, 6)

	if drill.Status != DrillActive {
		t.Fatalf("expected active after session bind, got %s", drill.Status)
	}

	if drill.StartLapNumber != 7 {
		t.Errorf("start lap should be recorded at activation, got %d", drill.StartLapNumber)
	}
}

func TestDrillExclusivityAndAbandon(t *testing.T) {
	engine := NewDrillEngine(stubHistory{total: 300.0, ok: true}, testLogger())

	if err := engine.Abandon(); err != ErrNoDrill {
		t.Errorf("abandoning with no drill should fail with ErrNoDrill, got: %v", err)
	}

	if _, err := engine.Start(DrillConsistencyRun, &testView, 0); err != nil {
		t.Fatalf("start drill failed: %v", err)
	}

	if _, err := engine.Start(DrillTargetLap, &testView, 0); err != ErrDrillAlreadyRunning {
		t.Errorf("a second drill should fail with ErrDrillAlreadyRunning, got: %v", err)
	}

	engine.OnLapCompleted(drillLap(1, 60))

	if err := engine.Abandon(); err != nil {
		t.Fatalf("abandon failed: %v", err)
	}

	if engine.Progress().LapsCompleted != 0 {
		t.Error("abandoning should reset progress")
	}

	// an abandoned drill frees the slot
	if _, err := engine.Start(DrillPBQuali, &testView, 0); err != nil {
		t.Errorf("start after abandon failed: %v", err)
	}
}

func TestDrillUnknownType(t *testing.T) {
	engine := NewDrillEngine(stubHistory{}, testLogger())

	if _, err := engine.Start(DrillType("hot_stint"), &testView, 0); err == nil {
		t.Error("an unknown drill type should be rejected")
	}
}

func TestPacingDelta(t *testing.T) {
	engine := NewDrillEngine(stubHistory{total: 300.0, ok: true}, testLogger())

	if _, ok := engine.PacingDelta(10); ok {
		t.Error("no drill should mean no pacing delta")
	}

	drill, err := engine.Start(DrillConsistencyRun, &testView, 0)

	if err != nil {
		t.Fatalf("start drill failed: %v", err)
	}

	// two laps down at 59.0 each against a 60.0 average target pace, 30s
	// into the third lap: expected = 300 * (2 + 0.5) / 5 = 150, actual = 148
	engine.OnLapCompleted(drillLap(drill.StartLapNumber, 59.0))
	engine.OnLapCompleted(drillLap(drill.StartLapNumber+1, 59.0))

	delta, ok := engine.PacingDelta(30.0)

	if !ok {
		t.Fatal("active drill with a target should report a pacing delta")
	}

	if math.Abs(delta - -2.0) > 1e-9 {
		t.Errorf("pacing delta = %v, expected -2.0", delta)
	}

	// elapsed beyond the average target lap clamps to one full lap
	delta, ok = engine.PacingDelta(90.0)

	if !ok {
		t.Fatal("expected a pacing delta")
	}

	// expected = 300 * 3 / 5 = 180, actual = 118 + 90 = 208
	if math.Abs(delta-28.0) > 1e-9 {
		t.Errorf("clamped pacing delta = %v, expected 28.0", delta)
	}
}
