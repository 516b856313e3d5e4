package recorder

import (
	"errors"
	"time"
)

type SessionState int

const (
	StateIdle SessionState = iota
	StateArmed
	StateRecording
)

func (s SessionState) String() string {
	switch s {
	case StateArmed:
		return "armed"
	case StateRecording:
		return "recording"
	default:
		return "idle"
	}
}

var (
	ErrNotConnected        = errors.New("recorder: bridge is not connected")
	ErrRecordingInProgress = errors.New("recorder: a recording is already in progress")
	ErrNotRecording        = errors.New("recorder: no recording in progress")
	ErrRecordFlushPending  = errors.New("recorder: previous session record has not flushed yet")
	ErrRecorderStopped     = errors.New("recorder: recorder has shut down")
)

// Profile identifies the driver on whose behalf sessions are recorded. A
// profile with no UserID is unauthenticated and never auto-starts recordings.
type Profile struct {
	UserID     string `yaml:"user_id"`
	AutoRecord bool   `yaml:"auto_record"`
}

func (p Profile) Authenticated() bool {
	return p.UserID != ""
}

// RecordingSession owns the capture lifecycle: Idle -> Armed on a connected
// bridge, Armed -> Recording on command or auto-start, back to Idle on
// disconnect. All mutation happens on the recorder's command worker.
type RecordingSession struct {
	logger    Logger
	segmenter *LapSegmenter
	profile   Profile

	state  SessionState
	record *SessionRecord

	// autoStartLatch is one-shot per connection lifetime: once an
	// auto-start has succeeded it stays set until the bridge disconnects.
	// autoStartPending carries an unserved on-track edge across ticks.
	autoStartLatch   bool
	autoStartPending bool
	wasOnTrack       bool

	// flushPending blocks a new recording until the previous record has
	// been handed off.
	flushPending bool
}

func NewRecordingSession(profile Profile, logger Logger) *RecordingSession {
	return &RecordingSession{
		logger:    logger,
		profile:   profile,
		segmenter: NewLapSegmenter(logger),
	}
}

func (rs *RecordingSession) State() SessionState {
	return rs.state
}

func (rs *RecordingSession) Record() *SessionRecord {
	return rs.record
}

// OnConnected arms the session when the bridge comes up.
func (rs *RecordingSession) OnConnected() {
	if rs.state != StateIdle {
		return
	}

	rs.logger.Infof("Bridge connected. Recorder armed")
	rs.state = StateArmed
}

// OnDisconnected drops back to idle, auto-stopping any in-progress recording.
// The returned record is non-nil when a recording was cut short.
func (rs *RecordingSession) OnDisconnected() *SessionRecord {
	if rs.state == StateIdle {
		return nil
	}

	var record *SessionRecord

	if rs.state == StateRecording {
		rs.logger.Warnf("Bridge disconnected mid-recording. Stopping session")
		record = rs.stop()
	}

	rs.state = StateIdle
	rs.autoStartLatch = false
	rs.autoStartPending = false
	rs.wasOnTrack = false

	return record
}

// ShouldAutoStart reports whether an auto-start should be attempted for this
// tick. An off-track -> on-track edge raises the request; it stays raised
// while the driver remains on track, so an attempt the recorder could not act
// on (session info not fetched yet) is retried on the next tick instead of
// being lost. The latch is only burned by AutoStarted, once an attempt
// actually succeeds.
func (rs *RecordingSession) ShouldAutoStart(isOnTrack bool) bool {
	edge := isOnTrack && !rs.wasOnTrack
	rs.wasOnTrack = isOnTrack

	if !isOnTrack {
		rs.autoStartPending = false
		return false
	}

	if rs.autoStartLatch || rs.state != StateArmed || !rs.profile.AutoRecord || !rs.profile.Authenticated() {
		return false
	}

	if edge {
		rs.autoStartPending = true
	}

	return rs.autoStartPending
}

// AutoStarted burns the one-shot latch after a successful auto-start. It is
// not reset until the bridge disconnects.
func (rs *RecordingSession) AutoStarted() {
	rs.autoStartLatch = true
	rs.autoStartPending = false
}

// StartRecording opens a new session record. Fails as a no-op when the
// bridge isn't connected, a recording is active, or the previous record has
// not flushed.
func (rs *RecordingSession) StartRecording(session SessionView, now time.Time) error {
	switch {
	case rs.state == StateIdle:
		return ErrNotConnected
	case rs.state == StateRecording:
		return ErrRecordingInProgress
	case rs.flushPending:
		return ErrRecordFlushPending
	}

	rs.segmenter.Reset()

	rs.record = &SessionRecord{
		TrackName:        session.TrackName,
		TrackID:          session.TrackID,
		CarName:          session.CarName,
		StartTime:        now,
		TrackTemperature: session.TrackTemperature,
		AirTemperature:   session.AirTemperature,
		TrackCondition:   session.TrackCondition,
	}

	rs.state = StateRecording
	rs.autoStartPending = false
	rs.logger.Infof("Recording started: %s / %s", session.TrackName, session.CarName)

	return nil
}

// StopRecording finalizes the in-flight lap and closes out the record. The
// caller must flush the returned record (handoff) and then call Flushed.
func (rs *RecordingSession) StopRecording() (*SessionRecord, error) {
	if rs.state != StateRecording {
		return nil, ErrNotRecording
	}

	record := rs.stop()
	rs.state = StateArmed

	return record, nil
}

func (rs *RecordingSession) stop() *SessionRecord {
	if lap := rs.segmenter.Drain(); lap != nil {
		rs.appendLap(lap)
	}

	record := rs.record
	record.EndTime = time.Now()
	rs.record = nil
	rs.flushPending = true

	rs.logger.Infof("Recording stopped: %d laps, duration %s", len(record.Laps), record.EndTime.Sub(record.StartTime))

	return record
}

// Flushed marks the previous session record as fully handed off, permitting
// the next recording to start.
func (rs *RecordingSession) Flushed() {
	rs.flushPending = false
}

// IngestTick funnels one telemetry tick through the segmenter while
// recording. It returns a finalized lap if this tick closed one.
func (rs *RecordingSession) IngestTick(tick TelemetryTick, isOnTrack bool, sourceLastLapTime float64) *Lap {
	if rs.state != StateRecording {
		return nil
	}

	lap := rs.segmenter.Ingest(tick, isOnTrack, sourceLastLapTime)

	if lap != nil {
		rs.appendLap(lap)
	}

	return lap
}

// appendLap records a finalized lap, maintaining the fastest-lap invariant:
// monotonically non-increasing, sighting laps never counted.
func (rs *RecordingSession) appendLap(lap *Lap) {
	rs.record.Laps = append(rs.record.Laps, lap)

	if lap.IsSightingLap || lap.LapTime <= 0 {
		return
	}

	if rs.record.FastestLapTime == 0 || lap.LapTime < rs.record.FastestLapTime {
		rs.record.FastestLapTime = lap.LapTime
		lap.IsPersonalBest = true

		for _, previous := range rs.record.Laps[:len(rs.record.Laps)-1] {
			if previous != lap {
				previous.IsPersonalBest = false
			}
		}
	}
}

// SessionView is the subset of bridge session info the recorder captures at
// recording start.
type SessionView struct {
	TrackName        string
	TrackID          string
	CarName          string
	TrackTemperature float64
	AirTemperature   float64
	TrackCondition   string
}
