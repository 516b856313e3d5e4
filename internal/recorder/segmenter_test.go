package recorder

import (
	"io/ioutil"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
)

func testLogger() Logger {
	logger := logrus.New()
	logger.SetOutput(ioutil.Discard)

	return logger
}

type segmenterTick struct {
	lapNumber   int
	onTrack     bool
	timestamp   int64
	lastLapTime float64
}

func feedTicks(ls *LapSegmenter, ticks []segmenterTick) []*Lap {
	var laps []*Lap

	for _, st := range ticks {
		tick := TelemetryTick{
			LapNumber: st.lapNumber,
			Timestamp: st.timestamp,
		}

		if lap := ls.Ingest(tick, st.onTrack, st.lastLapTime); lap != nil {
			laps = append(laps, lap)
		}
	}

	return laps
}

func TestSegmenterOneLapPerTransition(t *testing.T) {
	ls := NewLapSegmenter(testLogger())

	var ticks []segmenterTick

	// three full laps then part of a fourth
	timestamp := int64(0)
	onTrackTicks := 0

	for lapNumber := 0; lapNumber <= 3; lapNumber++ {
		for i := 0; i < 10; i++ {
			ticks = append(ticks, segmenterTick{lapNumber: lapNumber, onTrack: true, timestamp: timestamp, lastLapTime: 90})
			timestamp += 100
			onTrackTicks++
		}
	}

	laps := feedTicks(ls, ticks)

	if len(laps) != 3 {
		t.Fatalf("expected 3 finalized laps for 3 transitions, got %d", len(laps))
	}

	collected := ls.OpenLapTickCount()

	for _, lap := range laps {
		collected += len(lap.TelemetryPoints)
	}

	if collected != onTrackTicks {
		t.Errorf("tick conservation violated: %d collected vs %d received on-track", collected, onTrackTicks)
	}
}

func TestSegmenterDerivedLapTime(t *testing.T) {
	ls := NewLapSegmenter(testLogger())

	ticks := []segmenterTick{
		{lapNumber: 1, onTrack: true, timestamp: 10000},
		{lapNumber: 1, onTrack: true, timestamp: 55000},
		{lapNumber: 1, onTrack: true, timestamp: 101500},
		// source reports no last lap time on the transition tick
		{lapNumber: 2, onTrack: true, timestamp: 101600, lastLapTime: 0},
	}

	laps := feedTicks(ls, ticks)

	if len(laps) != 1 {
		t.Fatalf("expected 1 finalized lap, got %d", len(laps))
	}

	expected := (101500.0 - 10000.0) / 1000.0

	if math.Abs(laps[0].LapTime-expected) > 1e-9 {
		t.Errorf("derived lap time = %v, expected %v", laps[0].LapTime, expected)
	}
}

func TestSegmenterPrefersSourceLapTime(t *testing.T) {
	ls := NewLapSegmenter(testLogger())

	ticks := []segmenterTick{
		{lapNumber: 1, onTrack: true, timestamp: 0},
		{lapNumber: 1, onTrack: true, timestamp: 91000},
		{lapNumber: 2, onTrack: true, timestamp: 91100, lastLapTime: 90.742},
	}

	laps := feedTicks(ls, ticks)

	if len(laps) != 1 {
		t.Fatalf("expected 1 finalized lap, got %d", len(laps))
	}

	if laps[0].LapTime != 90.742 {
		t.Errorf("lap time = %v, expected the source-reported 90.742", laps[0].LapTime)
	}
}

func TestSegmenterSightingLap(t *testing.T) {
	ls := NewLapSegmenter(testLogger())

	ticks := []segmenterTick{
		{lapNumber: 0, onTrack: true, timestamp: 0},
		{lapNumber: 0, onTrack: true, timestamp: 60000},
		{lapNumber: 1, onTrack: true, timestamp: 60100},
	}

	laps := feedTicks(ls, ticks)

	if len(laps) != 1 {
		t.Fatalf("expected the sighting lap to finalize, got %d laps", len(laps))
	}

	if !laps[0].IsSightingLap {
		t.Error("lap 0 should be flagged as a sighting lap")
	}
}

func TestSegmenterDropsOffTrackTicks(t *testing.T) {
	ls := NewLapSegmenter(testLogger())

	ticks := []segmenterTick{
		{lapNumber: 1, onTrack: true, timestamp: 0},
		{lapNumber: 1, onTrack: false, timestamp: 100}, // in the pits
		{lapNumber: 1, onTrack: false, timestamp: 200},
		{lapNumber: 1, onTrack: true, timestamp: 300},
		{lapNumber: 2, onTrack: true, timestamp: 400},
	}

	laps := feedTicks(ls, ticks)

	if len(laps) != 1 {
		t.Fatalf("expected 1 finalized lap, got %d", len(laps))
	}

	if len(laps[0].TelemetryPoints) != 2 {
		t.Errorf("off-track ticks should be dropped: got %d points, expected 2", len(laps[0].TelemetryPoints))
	}
}

func TestSegmenterDiscardsEmptyLap(t *testing.T) {
	ls := NewLapSegmenter(testLogger())

	// lap 1 opens with an on-track tick, lap 2 passes entirely off-track
	ticks := []segmenterTick{
		{lapNumber: 1, onTrack: true, timestamp: 0},
		{lapNumber: 2, onTrack: false, timestamp: 100},
		{lapNumber: 3, onTrack: true, timestamp: 200},
	}

	laps := feedTicks(ls, ticks)

	if len(laps) != 1 {
		t.Fatalf("expected only the lap with ticks to finalize, got %d", len(laps))
	}

	if laps[0].LapNumber != 1 {
		t.Errorf("finalized lap number = %d, expected 1", laps[0].LapNumber)
	}
}

func TestSegmenterDrainIncludesPartialLap(t *testing.T) {
	ls := NewLapSegmenter(testLogger())

	feedTicks(ls, []segmenterTick{
		{lapNumber: 2, onTrack: true, timestamp: 5000},
		{lapNumber: 2, onTrack: true, timestamp: 12000},
	})

	lap := ls.Drain()

	if lap == nil {
		t.Fatal("drain should finalize the in-flight lap")
	}

	if len(lap.TelemetryPoints) != 2 {
		t.Errorf("partial lap should keep its ticks, got %d", len(lap.TelemetryPoints))
	}

	if lap.LapTime != 7 {
		t.Errorf("partial lap time = %v, expected 7 seconds from tick span", lap.LapTime)
	}

	if ls.Drain() != nil {
		t.Error("a second drain should return nothing")
	}
}

func TestSegmenterDrainIgnoresPreviousLapSourceTime(t *testing.T) {
	ls := NewLapSegmenter(testLogger())

	// lap 1 completes with a source-reported 92.5s; lap 2 then runs for
	// 30s of ticks before recording stops
	feedTicks(ls, []segmenterTick{
		{lapNumber: 1, onTrack: true, timestamp: 0},
		{lapNumber: 1, onTrack: true, timestamp: 90000},
	})

	full := ls.Ingest(TelemetryTick{LapNumber: 2, Timestamp: 92500}, true, 92.5)

	if full == nil || full.LapTime != 92.5 {
		t.Fatalf("completed lap should carry the source time, got %+v", full)
	}

	feedTicks(ls, []segmenterTick{
		{lapNumber: 2, onTrack: true, timestamp: 122500},
	})

	partial := ls.Drain()

	if partial == nil {
		t.Fatal("drain should finalize the in-flight lap")
	}

	// the source's lastLapTime still belongs to lap 1; the partial lap
	// must be timed from its own tick span
	if partial.LapTime != 30 {
		t.Errorf("partial lap time = %v, expected 30 from its own tick span", partial.LapTime)
	}
}
