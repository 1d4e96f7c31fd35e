package events

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"erdemo.org/responder-simulator/internal/geo"
	"erdemo.org/responder-simulator/internal/models"
	"erdemo.org/responder-simulator/internal/utils"
)

// ValidationError rejects an inbound message before it reaches the simulator.
type ValidationError struct {
	Fields utils.FieldErrors
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+strings.Join(e.Fields[field], ", "))
	}
	return "invalid message: " + strings.Join(parts, "; ")
}

func invalidJSON(err error) *ValidationError {
	fe := utils.FieldErrors{}
	fe.Add("body", "invalid JSON: "+err.Error())
	return &ValidationError{Fields: fe}
}

// MissionStarted is a validated mission ready to be simulated.
type MissionStarted struct {
	ID          string
	IncidentID  string
	ResponderID string
	Start       geo.Coordinate
	Steps       []models.MissionStep
}

type stepPayload struct {
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
	WayPoint    bool     `json:"wayPoint"`
	Destination bool     `json:"destination"`
}

// missionPayload is the MissionStartedEvent body. The route is either a list
// of steps or an encoded polyline whose last point is the destination and
// whose way-points are given by index.
type missionPayload struct {
	ID                 string        `json:"id"`
	IncidentID         string        `json:"incidentId"`
	ResponderID        string        `json:"responderId"`
	ResponderStartLat  *float64      `json:"responderStartLat"`
	ResponderStartLong *float64      `json:"responderStartLong"`
	Steps              []stepPayload `json:"steps"`
	Polyline           string        `json:"polyline,omitempty"`
	WayPoints          []int         `json:"wayPoints,omitempty"`
}

// ParseMissionStarted decodes and validates a mission. Every problem found is
// reported in the returned *ValidationError.
func ParseMissionStarted(data []byte) (MissionStarted, error) {
	var p missionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return MissionStarted{}, invalidJSON(err)
	}

	fe := utils.FieldErrors{}
	fe.Check("id", utils.ValidateID(p.ID))
	fe.Check("responderId", utils.ValidateID(p.ResponderID))
	if p.IncidentID != "" {
		fe.Check("incidentId", utils.ValidateID(p.IncidentID))
	}
	utils.ValidateCoordinate(fe, "responderStartLat", p.ResponderStartLat, "responderStartLong", p.ResponderStartLong)

	var steps []models.MissionStep
	switch {
	case p.Polyline != "" && len(p.Steps) > 0:
		fe.Add("steps", "steps and polyline are mutually exclusive")
	case p.Polyline != "":
		steps = polylineSteps(fe, p.Polyline, p.WayPoints)
	case len(p.Steps) > 0:
		steps = payloadSteps(fe, p.Steps)
	default:
		fe.Add("steps", "steps is required")
	}

	if !fe.Empty() {
		return MissionStarted{}, &ValidationError{Fields: fe}
	}

	return MissionStarted{
		ID:          p.ID,
		IncidentID:  p.IncidentID,
		ResponderID: p.ResponderID,
		Start:       geo.Coordinate{Lat: *p.ResponderStartLat, Lon: *p.ResponderStartLong},
		Steps:       steps,
	}, nil
}

func payloadSteps(fe utils.FieldErrors, payload []stepPayload) []models.MissionStep {
	steps := make([]models.MissionStep, 0, len(payload))
	for i, s := range payload {
		prefix := fmt.Sprintf("steps[%d].", i)
		utils.ValidateCoordinate(fe, prefix+"lat", s.Lat, prefix+"lon", s.Lon)
		if s.Lat == nil || s.Lon == nil {
			continue
		}
		steps = append(steps, models.NewMissionStep(*s.Lat, *s.Lon, s.WayPoint, s.Destination))
	}
	return steps
}

func polylineSteps(fe utils.FieldErrors, encoded string, wayPoints []int) []models.MissionStep {
	route, err := geo.DecodePolyline(encoded)
	if err != nil {
		fe.Add("polyline", "invalid polyline: "+err.Error())
		return nil
	}
	if len(route) == 0 {
		fe.Add("polyline", "polyline has no points")
		return nil
	}

	steps := make([]models.MissionStep, len(route))
	for i, c := range route {
		steps[i] = models.MissionStep{Coordinates: c}
	}
	last := len(steps) - 1
	steps[last].Destination = true

	for _, idx := range wayPoints {
		if idx < 0 || idx >= last {
			fe.Add("wayPoints", fmt.Sprintf("way-point index %d outside route", idx))
			continue
		}
		steps[idx].WayPoint = true
	}
	return steps
}

// MissionStatus reports a status change of a mission, typically a pickup
// confirmed by the responder.
type MissionStatus struct {
	MissionID string `json:"missionId"`
	Status    string `json:"status"`
}

// ParseMissionStatus decodes a status change; both fields are required. The
// status is stripped of markup before it is logged or compared.
func ParseMissionStatus(data []byte) (MissionStatus, error) {
	var ms MissionStatus
	if err := json.Unmarshal(data, &ms); err != nil {
		return MissionStatus{}, invalidJSON(err)
	}
	ms.Status = utils.SanitizeInput(ms.Status)
	if err := ms.Validate(); err != nil {
		return MissionStatus{}, err
	}
	return ms, nil
}

func (ms MissionStatus) Validate() error {
	fe := utils.FieldErrors{}
	if fe.Required("missionId", ms.MissionID != "") {
		fe.Check("missionId", utils.ValidateID(ms.MissionID))
	}
	fe.Required("status", ms.Status != "")
	if !fe.Empty() {
		return &ValidationError{Fields: fe}
	}
	return nil
}

// IsPickedUp reports whether the status confirms a pickup. The comparison is
// case-insensitive.
func (ms MissionStatus) IsPickedUp() bool {
	status, ok := models.ParseStatus(ms.Status)
	return ok && status == models.StatusPickedUp
}
