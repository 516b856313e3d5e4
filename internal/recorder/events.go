package recorder

import "sync"

type EventType string

const (
	EventRecordingStatus  EventType = "recording-status"
	EventOverlayUpdate    EventType = "overlay-update"
	EventLapCompleted     EventType = "lap-completed"
	EventDrillUpdate      EventType = "drill-update"
	EventDrillComplete    EventType = "drill-complete"
	EventSessionFinalized EventType = "session-finalized"
)

// Event is the tagged variant delivered to subscribers. Only the fields
// relevant to the event type are populated.
type Event struct {
	Type EventType `json:"type"`

	RecordingState string `json:"recordingState,omitempty"`

	Overlay *OverlayUpdate `json:"overlay,omitempty"`

	Lap *Lap `json:"lap,omitempty"`

	Drill         *Drill         `json:"drill,omitempty"`
	DrillProgress *DrillProgress `json:"drillProgress,omitempty"`
	PacingDelta   *float64       `json:"pacingDelta,omitempty"`
	DrillResult   *DrillResult   `json:"drillResult,omitempty"`

	HandoffID string `json:"handoffId,omitempty"`
}

// OverlayUpdate carries the per-tick values the overlay renders.
type OverlayUpdate struct {
	Speed          float64 `json:"speed"`
	CurrentLapTime float64 `json:"currentLapTime"`
	FastestLapTime float64 `json:"fastestLapTime"`
	LapNumber      int     `json:"lapNumber"`
	Gear           int     `json:"gear"`
	RPM            float64 `json:"rpm"`
}

const subscriberBuffer = 64

// eventBus fans events out to subscriber channels. Sends never block: a
// subscriber that falls behind misses events rather than stalling the
// telemetry worker.
type eventBus struct {
	mutex       sync.Mutex
	subscribers map[chan Event]struct{}
}

func newEventBus() *eventBus {
	return &eventBus{
		subscribers: make(map[chan Event]struct{}),
	}
}

func (eb *eventBus) Subscribe() chan Event {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	ch := make(chan Event, subscriberBuffer)
	eb.subscribers[ch] = struct{}{}

	return ch
}

func (eb *eventBus) Unsubscribe(ch chan Event) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	if _, ok := eb.subscribers[ch]; ok {
		delete(eb.subscribers, ch)
		close(ch)
	}
}

func (eb *eventBus) Publish(event Event) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	for ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
