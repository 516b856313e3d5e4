package bridge

import "math"

// StatusResponse is the payload of the bridge's GET /status endpoint.
type StatusResponse struct {
	Connected   bool    `json:"connected"`
	Initialized bool    `json:"initialized"`
	Timestamp   float64 `json:"timestamp"`
	Error       string  `json:"error,omitempty"`
}

// TelemetryResponse is one sample from GET /telemetry. Speeds are m/s,
// steering is radians, lap times are seconds, trackLength is metres.
type TelemetryResponse struct {
	Speed             float64 `json:"speed"`
	RPM               float64 `json:"rpm"`
	Gear              int     `json:"gear"`
	Throttle          float64 `json:"throttle"`
	Brake             float64 `json:"brake"`
	Steering          float64 `json:"steering"`
	LapCurrentLapTime float64 `json:"lapCurrentLapTime"`
	LapLastLapTime    float64 `json:"lapLastLapTime"`
	LapNumber         int     `json:"lapNumber"`
	SessionTime       float64 `json:"sessionTime"`
	SessionTimeRemain float64 `json:"sessionTimeRemain"`
	IsOnTrack         bool    `json:"isOnTrack"`
	LapDistPct        float64 `json:"lapDistPct"`
	TrackLength       float64 `json:"trackLength"`
	Timestamp         float64 `json:"timestamp"`
}

// sanitize zeroes out NaN and infinite values so that a partially corrupt
// sample still produces index-aligned telemetry arrays downstream.
func (t *TelemetryResponse) sanitize() {
	for _, v := range []*float64{
		&t.Speed, &t.RPM, &t.Throttle, &t.Brake, &t.Steering,
		&t.LapCurrentLapTime, &t.LapLastLapTime, &t.SessionTime,
		&t.SessionTimeRemain, &t.LapDistPct, &t.TrackLength, &t.Timestamp,
	} {
		if math.IsNaN(*v) || math.IsInf(*v, 0) {
			*v = 0
		}
	}
}

// SessionResponse is the payload of GET /session.
type SessionResponse struct {
	TrackName        string  `json:"trackName"`
	TrackID          int     `json:"trackId"`
	SessionType      string  `json:"sessionType"`
	DriverName       string  `json:"driverName"`
	CarName          string  `json:"carName"`
	FastestLap       float64 `json:"fastestLap"`
	TrackLength      float64 `json:"trackLength"`
	TrackTemperature float64 `json:"trackTemperature"`
	AirTemperature   float64 `json:"airTemperature"`
	TrackCondition   string  `json:"trackCondition"`
	Timestamp        float64 `json:"timestamp"`
}
