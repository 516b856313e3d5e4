package recorder

import "sync"

// Snapshot is a read-only copy of recorder state for the HTTP API. Canonical
// state stays on the command worker; the worker publishes a fresh copy here
// after every mutation.
type Snapshot struct {
	Connected      bool           `json:"connected"`
	RecordingState string         `json:"recordingState"`
	TrackName      string         `json:"trackName,omitempty"`
	CarName        string         `json:"carName,omitempty"`
	LapCount       int            `json:"lapCount"`
	FastestLapTime float64        `json:"fastestLapTime"`
	Overlay        *OverlayUpdate `json:"overlay,omitempty"`
	Drill          *Drill         `json:"drill,omitempty"`
	DrillProgress  *DrillProgress `json:"drillProgress,omitempty"`
}

type snapshotHolder struct {
	mutex    sync.RWMutex
	snapshot Snapshot
}

func (sh *snapshotHolder) set(snapshot Snapshot) {
	sh.mutex.Lock()
	defer sh.mutex.Unlock()

	sh.snapshot = snapshot
}

func (sh *snapshotHolder) get() Snapshot {
	sh.mutex.RLock()
	defer sh.mutex.RUnlock()

	return sh.snapshot
}

// Snapshot returns the latest published state copy.
func (r *Recorder) Snapshot() Snapshot {
	return r.snapshot.get()
}

// updateSnapshot runs on the command worker only.
func (r *Recorder) updateSnapshot() {
	snapshot := Snapshot{
		Connected:      r.connected,
		RecordingState: r.session.State().String(),
	}

	if view := r.sessionView; view != nil {
		snapshot.TrackName = view.TrackName
		snapshot.CarName = view.CarName
	}

	if record := r.session.Record(); record != nil {
		snapshot.LapCount = len(record.Laps)
		snapshot.FastestLapTime = record.FastestLapTime
	}

	if telemetry := r.lastTelemetry; telemetry != nil {
		snapshot.Overlay = &OverlayUpdate{
			Speed:          telemetry.Speed,
			CurrentLapTime: telemetry.LapCurrentLapTime,
			FastestLapTime: snapshot.FastestLapTime,
			LapNumber:      telemetry.LapNumber,
			Gear:           telemetry.Gear,
			RPM:            telemetry.RPM,
		}
	}

	if drill := r.drills.Drill(); drill != nil {
		drillCopy := *drill
		progress := r.drills.Progress()

		snapshot.Drill = &drillCopy
		snapshot.DrillProgress = &progress
	}

	r.snapshot.set(snapshot)
}
