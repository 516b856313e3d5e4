package recorder

// LapSegmenter converts the raw tick stream into finalized laps. It owns the
// ticks of the lap currently in progress and nothing else. All calls happen
// on the recorder's command worker, so no locking is needed here.
type LapSegmenter struct {
	logger Logger

	currentLapNumber int
	ticks            []TelemetryTick
	lastLapTime      float64
}

// noOpenLap marks that the segmenter has not yet seen an on-track tick.
const noOpenLap = -1

func NewLapSegmenter(logger Logger) *LapSegmenter {
	return &LapSegmenter{
		logger:           logger,
		currentLapNumber: noOpenLap,
	}
}

// Ingest processes one tick. When the tick's lap number differs from the open
// lap's, the open lap finalizes and is returned; the new lap context opens
// with this tick. Off-track ticks are dropped outright so garage and pit data
// never pollute the telemetry arrays.
func (ls *LapSegmenter) Ingest(tick TelemetryTick, onTrack bool, sourceLastLapTime float64) *Lap {
	var finalized *Lap

	if ls.currentLapNumber != noOpenLap && tick.LapNumber != ls.currentLapNumber {
		finalized = ls.finalize(sourceLastLapTime)
		ls.currentLapNumber = tick.LapNumber
		ls.ticks = nil
	}

	if !onTrack {
		return finalized
	}

	if ls.currentLapNumber == noOpenLap {
		ls.currentLapNumber = tick.LapNumber
	}

	ls.ticks = append(ls.ticks, tick)

	return finalized
}

// Drain finalizes whatever lap is in flight. Used when recording stops
// mid-lap so the emitted session still includes the partial lap. The source
// never reports a time for an unfinished lap (its lastLapTime still belongs
// to the previous lap), so the partial lap's time is always derived from its
// own tick span.
func (ls *LapSegmenter) Drain() *Lap {
	if ls.currentLapNumber == noOpenLap {
		return nil
	}

	lap := ls.finalize(0)
	ls.currentLapNumber = noOpenLap
	ls.ticks = nil

	return lap
}

// finalize closes the open lap. The lap time is the source-reported last lap
// time when present, otherwise it is derived from the wall-clock span of the
// collected ticks; that derived value is what every downstream fastest-lap
// comparison uses. Laps with no collected ticks are discarded.
func (ls *LapSegmenter) finalize(sourceLastLapTime float64) *Lap {
	if len(ls.ticks) == 0 {
		ls.logger.Debugf("Discarding lap %d: no on-track ticks collected", ls.currentLapNumber)
		return nil
	}

	lapTime := sourceLastLapTime

	if lapTime <= 0 {
		first := ls.ticks[0].Timestamp
		last := ls.ticks[len(ls.ticks)-1].Timestamp
		lapTime = float64(last-first) / 1000.0
	}

	ls.lastLapTime = lapTime

	lap := newLap(ls.currentLapNumber, lapTime, ls.ticks)

	ls.logger.Infof("Lap %d completed: %s (%d telemetry points)", lap.LapNumber, lap.LapTimeFormatted, len(lap.TelemetryPoints))

	return lap
}

// OpenLapTickCount reports how many ticks the in-progress lap holds.
func (ls *LapSegmenter) OpenLapTickCount() int {
	return len(ls.ticks)
}

// Reset clears all state ahead of a new recording.
func (ls *LapSegmenter) Reset() {
	ls.currentLapNumber = noOpenLap
	ls.ticks = nil
	ls.lastLapTime = 0
}
