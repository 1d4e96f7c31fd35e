package models

import "erdemo.org/responder-simulator/internal/geo"

// DefaultOvershoot is the tolerance factor applied to the distance unit before
// a hop towards the next step is split by a synthetic intermediate step.
const DefaultOvershoot = 1.3

// ResponderLocation is the simulated state of one mission, stored under its mission id.
type ResponderLocation struct {
	MissionID       string         `json:"missionId" msgpack:"missionId"`
	ResponderID     string         `json:"responderId" msgpack:"responderId"`
	IncidentID      string         `json:"incidentId" msgpack:"incidentId"`
	Queue           []MissionStep  `json:"queue" msgpack:"queue"`
	CurrentPosition geo.Coordinate `json:"currentPosition" msgpack:"currentPosition"`
	Person          bool           `json:"person" msgpack:"person"`
	Waiting         bool           `json:"waiting" msgpack:"waiting"`
	DistanceUnit    float64        `json:"distanceUnit" msgpack:"distanceUnit"`
	Status          Status         `json:"status" msgpack:"status"`
	Version         uint64         `json:"version" msgpack:"version"`
}

// NewResponderLocation builds a mission in the CREATED state. The steps are copied.
func NewResponderLocation(missionID, responderID, incidentID string, steps []MissionStep,
	currentPosition geo.Coordinate, person bool, distanceUnit float64) *ResponderLocation {
	queue := make([]MissionStep, len(steps))
	copy(queue, steps)

	return &ResponderLocation{
		MissionID:       missionID,
		ResponderID:     responderID,
		IncidentID:      incidentID,
		Queue:           queue,
		CurrentPosition: currentPosition,
		Person:          person,
		DistanceUnit:    distanceUnit,
		Status:          StatusCreated,
	}
}

func (rl *ResponderLocation) Key() string {
	return rl.MissionID
}

func (rl *ResponderLocation) isWaiting() bool {
	return rl.Person && rl.Waiting
}

// Plan describes what CalculateNextLocation did to the step queue.
type Plan struct {
	Skipped      bool            // mission is waiting for a pickup
	EmptyQueue   bool            // nothing left to plan
	Consumed     int             // plain steps passed through within this tick
	Distance     float64         // meters from the current position to the next queued step, through consumed steps
	Intermediate *geo.Coordinate // synthetic step prepended to the queue, if any
}

// CalculateNextLocation prepares the queue so that its front is the step to
// move to on this tick. Plain steps within reach of the distance unit are
// consumed; when the next stop is further than distanceUnit*overshoot, a
// synthetic step is prepended at the point reachable within this tick.
// Way-points and the destination are never removed here.
func (rl *ResponderLocation) CalculateNextLocation(overshoot float64) Plan {
	if rl.isWaiting() {
		return Plan{Skipped: true}
	}
	if len(rl.Queue) == 0 {
		return Plan{EmptyQueue: true}
	}
	if overshoot <= 0 {
		overshoot = DefaultOvershoot
	}

	var plan Plan
	current := rl.CurrentPosition
	destination := rl.Queue[0].Coordinates
	distance := geo.Distance(current, destination)
	intermediateDistance := 0.0

	for distance*overshoot < rl.DistanceUnit {
		step := rl.Queue[0]
		if step.IsStop() || len(rl.Queue) == 1 {
			break
		}
		rl.Queue = rl.Queue[1:]
		current = step.Coordinates
		intermediateDistance = distance
		plan.Consumed++

		destination = rl.Queue[0].Coordinates
		distance += geo.Distance(current, destination)
	}

	if distance > rl.DistanceUnit*overshoot {
		synthetic := MissionStep{
			Coordinates: geo.Interpolate(current, destination, rl.DistanceUnit-intermediateDistance),
		}
		rl.Queue = append([]MissionStep{synthetic}, rl.Queue...)
		plan.Intermediate = &synthetic.Coordinates
	}
	plan.Distance = distance

	return plan
}

// MoveToNextLocation pops the front of the queue, moves there and derives the
// new status. It returns false when the queue is empty.
func (rl *ResponderLocation) MoveToNextLocation() bool {
	if len(rl.Queue) == 0 {
		return false
	}
	step := rl.Queue[0]
	rl.Queue = rl.Queue[1:]

	rl.CurrentPosition = step.Coordinates
	switch {
	case rl.Person && step.WayPoint:
		rl.Waiting = true
		rl.Status = StatusWaiting
	case step.WayPoint:
		rl.Status = StatusPickedUp
	case step.Destination:
		rl.Status = StatusDropped
	default:
		rl.Status = StatusMoving
	}
	return true
}

// ContinueMoving ends a pickup pause. Missions that are not WAITING are left
// untouched and false is returned.
func (rl *ResponderLocation) ContinueMoving() bool {
	if rl.Status != StatusWaiting {
		return false
	}
	rl.Status = StatusPickedUp
	rl.Waiting = false
	return true
}

// RemainingRoute returns the coordinates still to be visited.
func (rl *ResponderLocation) RemainingRoute() []geo.Coordinate {
	route := make([]geo.Coordinate, 0, len(rl.Queue))
	for _, step := range rl.Queue {
		route = append(route, step.Coordinates)
	}
	return route
}
