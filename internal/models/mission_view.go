package models

import "erdemo.org/responder-simulator/internal/geo"

// MissionView is the public representation of a simulated mission.
type MissionView struct {
	MissionID      string  `json:"missionId"`
	ResponderID    string  `json:"responderId"`
	IncidentID     string  `json:"incidentId"`
	Status         Status  `json:"status"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	Human          bool    `json:"human"`
	Waiting        bool    `json:"waiting"`
	DistanceUnit   float64 `json:"distanceUnit"`
	RemainingSteps int     `json:"remainingSteps"`
	Version        uint64  `json:"version"`
	// Heading is the compass point towards the next step, empty once the queue is exhausted.
	Heading string `json:"heading,omitempty"`
	// RemainingRoute is an encoded polyline from the current position through every queued step.
	RemainingRoute string `json:"remainingRoute"`
}

func NewMissionView(rl *ResponderLocation) MissionView {
	route := append([]geo.Coordinate{rl.CurrentPosition}, rl.RemainingRoute()...)
	var heading string
	if len(route) > 1 {
		heading = geo.Compass(geo.Bearing(route[0], route[1]))
	}
	return MissionView{
		MissionID:      rl.MissionID,
		ResponderID:    rl.ResponderID,
		IncidentID:     rl.IncidentID,
		Status:         rl.Status,
		Lat:            rl.CurrentPosition.Lat,
		Lon:            rl.CurrentPosition.Lon,
		Human:          rl.Person,
		Waiting:        rl.Waiting,
		DistanceUnit:   rl.DistanceUnit,
		RemainingSteps: len(rl.Queue),
		Version:        rl.Version,
		Heading:        heading,
		RemainingRoute: geo.EncodePolyline(route),
	}
}
