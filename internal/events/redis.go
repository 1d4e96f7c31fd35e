package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"erdemo.org/responder-simulator/internal/logging"
)

// RedisPublisher publishes update JSON on a pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, u ResponderLocationUpdate) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encoding update for %s: %w", u.PartitionKey(), err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", p.channel, err)
	}
	return nil
}

// MissionHandler receives the inbound facts. The simulator implements it.
type MissionHandler interface {
	MissionStarted(ctx context.Context, m MissionStarted) error
	StatusChanged(ctx context.Context, s MissionStatus) error
}

// RedisSubscriber feeds CloudEvents from the mission channel and status
// changes from the status channel into a MissionHandler.
type RedisSubscriber struct {
	client         *redis.Client
	missionChannel string
	statusChannel  string
	handler        MissionHandler
	logger         *slog.Logger
}

func NewRedisSubscriber(client *redis.Client, missionChannel, statusChannel string, handler MissionHandler, logger *slog.Logger) *RedisSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSubscriber{
		client:         client,
		missionChannel: missionChannel,
		statusChannel:  statusChannel,
		handler:        handler,
		logger:         logger.With(slog.String("component", "event_subscriber")),
	}
}

// Run subscribes and processes messages until ctx is cancelled. It returns an
// error only when the subscription cannot be established.
func (s *RedisSubscriber) Run(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, s.missionChannel, s.statusChannel)
	defer logging.SafeCloseWithLogging(pubsub, s.logger, "redis_subscription")

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s, %s: %w", s.missionChannel, s.statusChannel, err)
	}
	logging.LogOperation(s.logger, "subscribed_to_mission_channels",
		slog.String("mission_channel", s.missionChannel),
		slog.String("status_channel", s.statusChannel))

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			s.handle(ctx, msg.Channel, []byte(msg.Payload))
		}
	}
}

func (s *RedisSubscriber) handle(ctx context.Context, channel string, payload []byte) {
	switch channel {
	case s.missionChannel:
		s.handleMissionEvent(ctx, payload)
	case s.statusChannel:
		s.handleStatus(ctx, payload)
	default:
		s.logger.Debug("message on unexpected channel", slog.String("channel", channel))
	}
}

func (s *RedisSubscriber) handleMissionEvent(ctx context.Context, payload []byte) {
	ce, err := ParseCloudEvent(payload)
	if err != nil {
		s.logger.Warn("Incoming message is not a CloudEvent", slog.String("error", err.Error()))
		return
	}

	mission, err := ce.MissionStarted()
	var verr *ValidationError
	switch {
	case errors.Is(err, ErrUnsupportedType):
		s.logger.Debug("CloudEvent ignored", slog.String("type", ce.Type), slog.String("id", ce.ID))
		return
	case errors.As(err, &verr):
		s.logger.Warn("Invalid mission in CloudEvent", slog.String("id", ce.ID), slog.Any("field_errors", verr.Fields))
		return
	case err != nil:
		logging.LogError(s.logger, "Failed to read mission from CloudEvent", err, slog.String("id", ce.ID))
		return
	}

	if err := s.handler.MissionStarted(ctx, mission); err != nil {
		logging.LogError(s.logger, "Failed to start mission", err, slog.String("mission_id", mission.ID))
	}
}

func (s *RedisSubscriber) handleStatus(ctx context.Context, payload []byte) {
	status, err := ParseMissionStatus(payload)
	if err != nil {
		s.logger.Warn("Invalid mission status message", slog.String("error", err.Error()))
		return
	}
	if err := s.handler.StatusChanged(ctx, status); err != nil {
		logging.LogError(s.logger, "Failed to apply mission status", err, slog.String("mission_id", status.MissionID))
	}
}
