// Package recorder implements the telemetry capture engine: it polls the
// bridge, segments the tick stream into laps, manages the recording session
// lifecycle and runs pace drills against the driver's own history.
package recorder

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/daztec2025/forseti-recorder/pkg/laptime"
)

type Logger = logrus.FieldLogger

// TelemetryTick is one sample from the bridge, ~100ms apart. Ticks are owned
// by the segmenter's open lap until that lap finalizes.
type TelemetryTick struct {
	Speed      float64 `json:"speed"`
	Throttle   float64 `json:"throttle"`
	Brake      float64 `json:"brake"`
	Steering   float64 `json:"steering"`
	Gear       int     `json:"gear"`
	RPM        float64 `json:"rpm"`
	LapNumber  int     `json:"lapNumber"`
	LapDistPct float64 `json:"lapDistPct"`
	LapTime    float64 `json:"lapTime"`
	Timestamp  int64   `json:"timestamp"`
}

// Lap is a finalized, immutable record of one circuit traversal.
type Lap struct {
	LapNumber        int             `json:"lapNumber"`
	LapTime          float64         `json:"lapTime"`
	LapTimeFormatted string          `json:"lapTimeFormatted"`
	TelemetryPoints  []TelemetryTick `json:"telemetryPoints"`
	IsSightingLap    bool            `json:"isSightingLap"`
	IsPersonalBest   bool            `json:"isPersonalBest"`
}

// SessionRecord accumulates a recording from start to stop. It is mutated
// only by the recorder's command worker and discarded after handoff.
type SessionRecord struct {
	TrackName        string    `json:"trackName"`
	TrackID          string    `json:"trackId"`
	CarName          string    `json:"carName"`
	StartTime        time.Time `json:"startTime"`
	EndTime          time.Time `json:"endTime"`
	Laps             []*Lap    `json:"laps"`
	FastestLapTime   float64   `json:"fastestLapTime"`
	TrackTemperature float64   `json:"trackTemperature"`
	AirTemperature   float64   `json:"airTemperature"`
	TrackCondition   string    `json:"trackCondition"`
}

// SessionData is the transport-facing summary of a finished session.
type SessionData struct {
	TrackName        string    `json:"trackName"`
	TrackID          string    `json:"trackId"`
	CarName          string    `json:"carName"`
	StartTime        time.Time `json:"startTime"`
	EndTime          time.Time `json:"endTime"`
	DurationSeconds  float64   `json:"durationSeconds"`
	FastestLapTime   float64   `json:"fastestLapTime"`
	TrackTemperature float64   `json:"trackTemperature"`
	AirTemperature   float64   `json:"airTemperature"`
	TrackCondition   string    `json:"trackCondition"`
}

// SessionDocument is the handoff shape consumed by the rest of the Forseti
// application once a recording stops.
type SessionDocument struct {
	SessionData  SessionData `json:"sessionData"`
	LapData      []*Lap      `json:"lapData"`
	ReferenceLap *Lap        `json:"referenceLap"`
}

// Document converts a finished SessionRecord into its handoff shape. The
// reference lap is the personal best, or nil if no timed lap completed.
func (sr *SessionRecord) Document() *SessionDocument {
	doc := &SessionDocument{
		SessionData: SessionData{
			TrackName:        sr.TrackName,
			TrackID:          sr.TrackID,
			CarName:          sr.CarName,
			StartTime:        sr.StartTime,
			EndTime:          sr.EndTime,
			DurationSeconds:  sr.EndTime.Sub(sr.StartTime).Seconds(),
			FastestLapTime:   sr.FastestLapTime,
			TrackTemperature: sr.TrackTemperature,
			AirTemperature:   sr.AirTemperature,
			TrackCondition:   sr.TrackCondition,
		},
		LapData: sr.Laps,
	}

	for _, lap := range sr.Laps {
		if lap.IsPersonalBest {
			doc.ReferenceLap = lap
			break
		}
	}

	return doc
}

func newLap(lapNumber int, lapTime float64, ticks []TelemetryTick) *Lap {
	return &Lap{
		LapNumber:        lapNumber,
		LapTime:          lapTime,
		LapTimeFormatted: laptime.Format(lapTime),
		TelemetryPoints:  ticks,
		IsSightingLap:    lapNumber == 0,
	}
}
