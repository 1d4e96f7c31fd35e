package models

import "strings"

// Status is the life-cycle stage of a simulated mission.
type Status string

const (
	StatusCreated  Status = "CREATED"
	StatusMoving   Status = "MOVING"
	StatusWaiting  Status = "WAITING"
	StatusPickedUp Status = "PICKEDUP"
	StatusDropped  Status = "DROPPED"
)

var continuing = map[Status]bool{
	StatusMoving:   true,
	StatusPickedUp: true,
}

// IsContinuing reports whether a mission in this status keeps ticking on its own.
func (s Status) IsContinuing() bool {
	return continuing[s]
}

func (s Status) IsTerminal() bool {
	return s == StatusDropped
}

// ParseStatus maps a case-insensitive status name to a Status.
func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusCreated:
		return StatusCreated, true
	case StatusMoving:
		return StatusMoving, true
	case StatusWaiting:
		return StatusWaiting, true
	case StatusPickedUp:
		return StatusPickedUp, true
	case StatusDropped:
		return StatusDropped, true
	}
	return "", false
}
