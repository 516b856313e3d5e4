package recorder

import (
	"context"
	"strings"
	"time"

	"github.com/daztec2025/forseti-recorder/internal/bridge"
)

const (
	DefaultStatusInterval     = time.Second * 3
	DefaultTelemetryInterval  = time.Millisecond * 100
	DefaultDrillDeltaInterval = time.Second * 5
)

// BridgeClient is the subset of the bridge HTTP client the recorder uses.
type BridgeClient interface {
	Status(ctx context.Context) (*bridge.StatusResponse, error)
	Telemetry(ctx context.Context) (*bridge.TelemetryResponse, error)
	Session(ctx context.Context) (*bridge.SessionResponse, error)
}

// SessionSink receives finished session documents and stages them for the
// rest of the application, returning an opaque reference.
type SessionSink interface {
	Finalize(doc *SessionDocument) (reference string, err error)
}

type Config struct {
	Client  BridgeClient
	History History
	Sink    SessionSink
	Profile Profile
	Logger  Logger

	// ResolveTrack maps a bridge-reported track name onto a canonical
	// track ID for history lookups. Nil falls back to the lowercased name.
	ResolveTrack func(name string) string

	StatusInterval     time.Duration
	TelemetryInterval  time.Duration
	DrillDeltaInterval time.Duration
}

// Recorder is the one logical capture instance per process. It owns the
// three polling loops, the session and drill state, and the event bus. All
// canonical state mutation runs on the scheduler's command worker.
type Recorder struct {
	logger    Logger
	client    BridgeClient
	sink      SessionSink
	session   *RecordingSession
	drills    *DrillEngine
	scheduler *scheduler
	events    *eventBus

	resolveTrack func(string) string

	// finalized carries handoff references to the persistence consumer.
	// Unlike the event stream it never drops: sends block the flush
	// goroutine (never the worker) until the consumer takes the reference.
	finalized chan string

	// all fields below are owned by the command worker.
	connected     bool
	sessionView   *SessionView
	lastTelemetry *bridge.TelemetryResponse

	snapshot snapshotHolder
}

func New(config Config) *Recorder {
	logger := config.Logger

	resolve := config.ResolveTrack

	if resolve == nil {
		resolve = func(name string) string {
			return strings.ToLower(strings.TrimSpace(name))
		}
	}

	r := &Recorder{
		logger:       logger,
		client:       config.Client,
		sink:         config.Sink,
		session:      NewRecordingSession(config.Profile, logger),
		drills:       NewDrillEngine(config.History, logger),
		scheduler:    newScheduler(logger),
		events:       newEventBus(),
		finalized:    make(chan string, 4),
		resolveTrack: resolve,
	}

	statusInterval := config.StatusInterval
	telemetryInterval := config.TelemetryInterval
	drillDeltaInterval := config.DrillDeltaInterval

	if statusInterval <= 0 {
		statusInterval = DefaultStatusInterval
	}

	if telemetryInterval <= 0 {
		telemetryInterval = DefaultTelemetryInterval
	}

	if drillDeltaInterval <= 0 {
		drillDeltaInterval = DefaultDrillDeltaInterval
	}

	r.scheduler.AddTask("status", statusInterval, r.pollStatus)
	r.scheduler.AddTask("telemetry", telemetryInterval, r.pollTelemetry)
	r.scheduler.AddTask("drill-delta", drillDeltaInterval, r.publishDrillDelta)

	return r
}

// Run starts the polling loops and blocks until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) error {
	r.logger.Infof("Telemetry recorder starting")

	r.scheduler.Start(ctx)
	r.scheduler.Wait()

	r.logger.Infof("Telemetry recorder stopped")

	return ctx.Err()
}

func (r *Recorder) Subscribe() chan Event {
	return r.events.Subscribe()
}

// Finalized delivers the handoff reference of every successfully flushed
// session, with guaranteed delivery while the recorder runs. The consumer
// must service this channel; the informational EventSessionFinalized on the
// event stream may be dropped like any other event.
func (r *Recorder) Finalized() <-chan string {
	return r.finalized
}

func (r *Recorder) Unsubscribe(ch chan Event) {
	r.events.Unsubscribe(ch)
}

// pollStatus runs on the status cadence: it flips the connection flag and
// refreshes session info while connected. A failed poll counts as
// disconnected; the error itself is swallowed and retried next cycle.
func (r *Recorder) pollStatus(ctx context.Context) {
	status, err := r.client.Status(ctx)
	metricPolls.WithLabelValues("status", pollOutcome(err)).Inc()

	connected := err == nil && status.Connected

	var session *bridge.SessionResponse

	if connected {
		session, err = r.client.Session(ctx)
		metricPolls.WithLabelValues("session", pollOutcome(err)).Inc()

		if err != nil {
			r.logger.WithError(err).Debugf("Could not fetch session info")
			session = nil
		}
	}

	r.scheduler.Enqueue(func() {
		r.applyConnectionState(connected, session)
	})
}

func (r *Recorder) applyConnectionState(connected bool, session *bridge.SessionResponse) {
	wasConnected := r.connected
	r.connected = connected

	if connected && !wasConnected {
		r.session.OnConnected()
		r.publishRecordingStatus()
	}

	if !connected && wasConnected {
		r.logger.Warnf("Lost connection to bridge")

		if record := r.session.OnDisconnected(); record != nil {
			r.flushRecord(record)
		}

		r.sessionView = nil
		r.lastTelemetry = nil
		r.publishRecordingStatus()
	}

	if session != nil {
		view := r.viewFromSession(session)

		r.sessionView = &view

		// a pending drill activates as soon as a concrete track/car
		// pairing is known.
		if drill := r.drills.Drill(); drill != nil && drill.Status == DrillPending {
			r.drills.Activate(view, r.currentLapNumber())
			r.publishDrillUpdate(nil)
		}
	}

	r.updateSnapshot()
}

func (r *Recorder) viewFromSession(session *bridge.SessionResponse) SessionView {
	return SessionView{
		TrackName:        session.TrackName,
		TrackID:          r.resolveTrack(session.TrackName),
		CarName:          session.CarName,
		TrackTemperature: session.TrackTemperature,
		AirTemperature:   session.AirTemperature,
		TrackCondition:   session.TrackCondition,
	}
}

// pollTelemetry runs at ~10Hz. The fetch happens out here on the poll
// goroutine; only the resulting mutation is funneled onto the worker.
func (r *Recorder) pollTelemetry(ctx context.Context) {
	telemetry, err := r.client.Telemetry(ctx)
	metricPolls.WithLabelValues("telemetry", pollOutcome(err)).Inc()

	if err != nil {
		// swallowed; the status loop notices a dead bridge separately.
		return
	}

	now := time.Now().UnixNano() / int64(time.Millisecond)

	r.scheduler.Enqueue(func() {
		r.processTelemetry(telemetry, now)
	})
}

func (r *Recorder) processTelemetry(telemetry *bridge.TelemetryResponse, receivedAt int64) {
	r.lastTelemetry = telemetry

	// the latch burns only on a successful start: an attempt that cannot
	// act yet (session info still unfetched) is retried on the next tick.
	if r.session.ShouldAutoStart(telemetry.IsOnTrack) {
		if view := r.sessionView; view != nil {
			r.logger.Infof("Driver on track. Auto-starting recording")

			if err := r.session.StartRecording(*view, time.Now()); err != nil {
				r.logger.WithError(err).Warnf("Auto-start recording failed")
			} else {
				r.session.AutoStarted()
				r.publishRecordingStatus()
			}
		}
	}

	tick := TelemetryTick{
		Speed:      telemetry.Speed,
		Throttle:   telemetry.Throttle,
		Brake:      telemetry.Brake,
		Steering:   telemetry.Steering,
		Gear:       telemetry.Gear,
		RPM:        telemetry.RPM,
		LapNumber:  telemetry.LapNumber,
		LapDistPct: telemetry.LapDistPct,
		LapTime:    telemetry.LapCurrentLapTime,
		Timestamp:  receivedAt,
	}

	if r.session.State() == StateRecording {
		if telemetry.IsOnTrack {
			metricTicksIngested.Inc()
		} else {
			metricTicksDropped.Inc()
		}
	}

	if lap := r.session.IngestTick(tick, telemetry.IsOnTrack, telemetry.LapLastLapTime); lap != nil {
		r.onLapCompleted(lap)
	}

	r.publishOverlay(telemetry)
	r.updateSnapshot()
}

func (r *Recorder) onLapCompleted(lap *Lap) {
	metricLapsFinalized.Inc()

	if !lap.IsSightingLap && lap.LapTime > 0 {
		metricLapTime.Observe(lap.LapTime)
	}

	// subscribers read events off the worker, so they get a copy; the
	// worker keeps mutating the canonical lap (IsPersonalBest reshuffles
	// when a faster lap lands).
	lapCopy := *lap

	r.events.Publish(Event{
		Type: EventLapCompleted,
		Lap:  &lapCopy,
	})

	if result := r.drills.OnLapCompleted(lap); result != nil {
		metricDrillsCompleted.WithLabelValues(string(result.Drill.Type)).Inc()

		r.events.Publish(Event{
			Type:        EventDrillComplete,
			DrillResult: result,
		})
	} else if drill := r.drills.Drill(); drill != nil && drill.Status == DrillActive {
		r.publishDrillUpdate(nil)
	}
}

// publishDrillDelta runs on the drill-delta cadence. It only reads state:
// the read is sequenced through the worker, the derived delta is published
// and never stored.
func (r *Recorder) publishDrillDelta(ctx context.Context) {
	r.scheduler.Enqueue(func() {
		telemetry := r.lastTelemetry

		if telemetry == nil || !telemetry.IsOnTrack {
			return
		}

		delta, ok := r.drills.PacingDelta(telemetry.LapCurrentLapTime)

		if !ok {
			return
		}

		r.publishDrillUpdate(&delta)
	})
}

// StartRecording begins a recording on explicit command.
func (r *Recorder) StartRecording() error {
	var err error

	ok := r.scheduler.Call(func() {
		view := r.sessionView

		if view == nil {
			err = ErrNotConnected
			return
		}

		err = r.session.StartRecording(*view, time.Now())

		if err == nil {
			r.publishRecordingStatus()
			r.updateSnapshot()
		}
	})

	if !ok {
		return ErrRecorderStopped
	}

	return err
}

// StopRecording stops the active recording. The in-flight lap is drained
// synchronously on the worker, so the emitted record always includes it.
func (r *Recorder) StopRecording() error {
	var err error

	ok := r.scheduler.Call(func() {
		var record *SessionRecord

		record, err = r.session.StopRecording()

		if err != nil {
			return
		}

		r.flushRecord(record)
		r.publishRecordingStatus()
		r.updateSnapshot()
	})

	if !ok {
		return ErrRecorderStopped
	}

	return err
}

// flushRecord hands a finished record to the sink off the worker. Until the
// flush lands, StartRecording refuses with ErrRecordFlushPending.
func (r *Recorder) flushRecord(record *SessionRecord) {
	doc := record.Document()

	go func() {
		reference, err := r.sink.Finalize(doc)

		r.scheduler.Enqueue(func() {
			r.session.Flushed()

			if err != nil {
				// the session is lost, but recorder state remains
				// consistent and a new recording may start.
				r.logger.WithError(err).Errorf("Could not hand off session record. Session discarded")
				return
			}

			r.events.Publish(Event{
				Type:      EventSessionFinalized,
				HandoffID: reference,
			})
		})

		if err != nil {
			return
		}

		select {
		case r.finalized <- reference:
		case <-r.scheduler.stopped:
		}
	}()
}

// StartDrill creates a drill of the given type. With no active session the
// drill stays pending until track and car are known.
func (r *Recorder) StartDrill(drillType DrillType) (*Drill, error) {
	var (
		drill *Drill
		err   error
	)

	ok := r.scheduler.Call(func() {
		var started *Drill

		started, err = r.drills.Start(drillType, r.sessionView, r.currentLapNumber())

		if err != nil {
			return
		}

		// the caller serializes the drill off the worker, so hand it a copy.
		drillCopy := *started
		drill = &drillCopy

		r.publishDrillUpdate(nil)
		r.updateSnapshot()
	})

	if !ok {
		return nil, ErrRecorderStopped
	}

	return drill, err
}

// AbandonDrill discards the current drill and its progress.
func (r *Recorder) AbandonDrill() error {
	var err error

	ok := r.scheduler.Call(func() {
		err = r.drills.Abandon()

		if err == nil {
			r.publishDrillUpdate(nil)
			r.updateSnapshot()
		}
	})

	if !ok {
		return ErrRecorderStopped
	}

	return err
}

func (r *Recorder) currentLapNumber() int {
	if r.lastTelemetry == nil {
		return 0
	}

	return r.lastTelemetry.LapNumber
}

func (r *Recorder) publishRecordingStatus() {
	r.events.Publish(Event{
		Type:           EventRecordingStatus,
		RecordingState: r.session.State().String(),
	})
}

func (r *Recorder) publishOverlay(telemetry *bridge.TelemetryResponse) {
	var fastest float64

	if record := r.session.Record(); record != nil {
		fastest = record.FastestLapTime
	}

	r.events.Publish(Event{
		Type: EventOverlayUpdate,
		Overlay: &OverlayUpdate{
			Speed:          telemetry.Speed,
			CurrentLapTime: telemetry.LapCurrentLapTime,
			FastestLapTime: fastest,
			LapNumber:      telemetry.LapNumber,
			Gear:           telemetry.Gear,
			RPM:            telemetry.RPM,
		},
	})
}

func (r *Recorder) publishDrillUpdate(pacingDelta *float64) {
	drill := r.drills.Drill()

	if drill == nil {
		return
	}

	// publish a copy, never the live drill the worker keeps mutating.
	drillCopy := *drill
	progress := r.drills.Progress()

	r.events.Publish(Event{
		Type:          EventDrillUpdate,
		Drill:         &drillCopy,
		DrillProgress: &progress,
		PacingDelta:   pacingDelta,
	})
}
