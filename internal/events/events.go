// Package events holds the facts exchanged with the rest of the emergency
// response system: missions that start, mission status changes coming in, and
// responder location updates going out.
package events

import (
	"context"
	"errors"
	"log/slog"

	"erdemo.org/responder-simulator/internal/models"
)

var (
	ErrNotCloudEvent    = errors.New("message is not a CloudEvent")
	ErrUnsupportedType  = errors.New("unsupported CloudEvent")
	ErrDispatcherClosed = errors.New("event dispatcher is closed")
)

// ResponderLocationUpdate is emitted once per tick and per resume.
type ResponderLocationUpdate struct {
	ResponderID string        `json:"responderId"`
	MissionID   string        `json:"missionId"`
	IncidentID  string        `json:"incidentId"`
	Status      models.Status `json:"status"`
	Lat         float64       `json:"lat"`
	Lon         float64       `json:"lon"`
	Human       bool          `json:"human"`
	Continue    bool          `json:"continue"`
}

// NewResponderLocationUpdate snapshots the public state of a mission.
func NewResponderLocationUpdate(rl *models.ResponderLocation) ResponderLocationUpdate {
	return ResponderLocationUpdate{
		ResponderID: rl.ResponderID,
		MissionID:   rl.MissionID,
		IncidentID:  rl.IncidentID,
		Status:      rl.Status,
		Lat:         rl.CurrentPosition.Lat,
		Lon:         rl.CurrentPosition.Lon,
		Human:       rl.Person,
		Continue:    rl.Status.IsContinuing(),
	}
}

// PartitionKey orders updates: all updates of one responder share it.
func (u ResponderLocationUpdate) PartitionKey() string {
	return u.ResponderID
}

func (u ResponderLocationUpdate) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("responder_id", u.ResponderID),
		slog.String("mission_id", u.MissionID),
		slog.String("status", string(u.Status)),
		slog.Float64("lat", u.Lat),
		slog.Float64("lon", u.Lon),
		slog.Bool("continue", u.Continue),
	)
}

// Publisher delivers updates to one downstream sink.
type Publisher interface {
	Publish(ctx context.Context, u ResponderLocationUpdate) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, u ResponderLocationUpdate) error

func (f PublisherFunc) Publish(ctx context.Context, u ResponderLocationUpdate) error {
	return f(ctx, u)
}

// LogPublisher writes every update to the log at debug level.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, u ResponderLocationUpdate) error {
	p.Logger.DebugContext(ctx, "responder location update",
		slog.String("key", u.PartitionKey()),
		slog.Any("update", u))
	return nil
}
