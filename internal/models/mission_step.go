package models

import "erdemo.org/responder-simulator/internal/geo"

// MissionStep is one point on the planned route of a mission.
type MissionStep struct {
	Coordinates geo.Coordinate `json:"coordinates" msgpack:"coordinates"`
	WayPoint    bool           `json:"wayPoint" msgpack:"wayPoint"`
	Destination bool           `json:"destination" msgpack:"destination"`
}

func NewMissionStep(lat, lon float64, wayPoint, destination bool) MissionStep {
	return MissionStep{
		Coordinates: geo.Coordinate{Lat: lat, Lon: lon},
		WayPoint:    wayPoint,
		Destination: destination,
	}
}

// IsStop reports whether the responder has to halt at this step.
func (s MissionStep) IsStop() bool {
	return s.WayPoint || s.Destination
}
