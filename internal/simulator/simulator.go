// Package simulator moves simulated responders along their mission routes.
// Every active mission is an independent chain of delayed ticks: each tick
// advances the mission one step and schedules the next one until the
// responder waits for a pickup or reaches the destination.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"erdemo.org/responder-simulator/internal/events"
	"erdemo.org/responder-simulator/internal/logging"
	"erdemo.org/responder-simulator/internal/models"
	"erdemo.org/responder-simulator/internal/responder"
	"erdemo.org/responder-simulator/internal/store"
)

// Config tunes the simulation.
type Config struct {
	Delay             time.Duration
	DistanceBase      float64
	DistanceVariation float64
	Overshoot         float64
	Workers           int
}

// Emitter accepts outbound updates. *events.Dispatcher implements it.
type Emitter interface {
	Emit(ctx context.Context, u events.ResponderLocationUpdate) error
}

type Simulator struct {
	cfg       Config
	store     store.Store
	lookup    responder.Lookup
	emitter   Emitter
	scheduler *Scheduler
	locks     keyLocks
	random    func() float64
	logger    *slog.Logger
}

type Option func(*Simulator)

// WithRandom replaces the source used to draw distance units. It must return
// values in [0, 1).
func WithRandom(f func() float64) Option {
	return func(s *Simulator) {
		s.random = f
	}
}

// New creates a simulator and starts its scheduler.
func New(cfg Config, st store.Store, lookup responder.Lookup, emitter Emitter, logger *slog.Logger, opts ...Option) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Overshoot <= 0 {
		cfg.Overshoot = models.DefaultOvershoot
	}

	s := &Simulator{
		cfg:     cfg,
		store:   st,
		lookup:  lookup,
		emitter: emitter,
		random:  rand.Float64,
		logger:  logger.With(slog.String("component", "simulator")),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.scheduler = NewScheduler(cfg.Workers, s.tick, logger)
	return s
}

// drawDistanceUnit returns a per-mission pace, uniform in
// [base*(1-variation), base*(1+variation)).
func (s *Simulator) drawDistanceUnit() float64 {
	low := s.cfg.DistanceBase * (1 - s.cfg.DistanceVariation)
	spread := 2 * s.cfg.DistanceBase * s.cfg.DistanceVariation
	return low + s.random()*spread
}

// MissionStarted creates the mission and schedules its first tick. A mission
// that is already simulated is left untouched, so a redelivered event never
// sends a responder back to its start position.
func (s *Simulator) MissionStarted(ctx context.Context, m events.MissionStarted) error {
	person := s.lookup.IsPerson(ctx, m.ResponderID)
	rl := models.NewResponderLocation(m.ID, m.ResponderID, m.IncidentID, m.Steps, m.Start, person, s.drawDistanceUnit())

	unlock := s.locks.lock(rl.Key())
	defer unlock()

	existing, err := s.store.Get(ctx, rl.Key())
	switch {
	case err == nil:
		s.logger.Info("mission already simulated, start ignored",
			slog.String("mission_id", rl.Key()), slog.String("status", string(existing.Status)))
		return nil
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("loading mission %s: %w", rl.Key(), err)
	}

	key, err := s.store.Put(ctx, rl)
	if err != nil {
		return fmt.Errorf("storing mission %s: %w", rl.Key(), err)
	}

	s.scheduler.Schedule(key, s.cfg.Delay)
	logging.LogOperation(s.logger, "mission_started",
		slog.String("mission_id", key),
		slog.String("responder_id", rl.ResponderID),
		slog.Bool("person", person),
		slog.Float64("distance_unit", rl.DistanceUnit),
		slog.Int("steps", len(rl.Queue)))
	return nil
}

// StatusChanged applies a mission status reported from outside. Only a
// pickup confirmation has an effect: a WAITING mission resumes at once.
// Late or duplicate confirmations are ignored.
func (s *Simulator) StatusChanged(ctx context.Context, ms events.MissionStatus) error {
	if !ms.IsPickedUp() {
		s.logger.Debug("mission status ignored", slog.String("mission_id", ms.MissionID), slog.String("status", ms.Status))
		return nil
	}

	key := ms.MissionID
	unlock := s.locks.lock(key)
	defer unlock()

	rl, err := s.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("ResponderLocation not found", slog.String("mission_id", key))
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading mission %s: %w", key, err)
	}

	if !rl.ContinueMoving() {
		s.logger.Debug("pickup ignored, mission is not waiting",
			slog.String("mission_id", key), slog.String("status", string(rl.Status)))
		return nil
	}
	rl.Version++
	if _, err := s.store.Put(ctx, rl); err != nil {
		return fmt.Errorf("storing mission %s: %w", key, err)
	}

	s.emit(ctx, rl)
	s.scheduler.Schedule(key, 0)
	return nil
}

func (s *Simulator) tick(ctx context.Context, key string) {
	unlock := s.locks.lock(key)
	defer unlock()

	rl, err := s.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Debug("ResponderLocation not found, simulation stopped", slog.String("mission_id", key))
		return
	}
	if err != nil {
		logging.LogError(s.logger, "Failed to load mission", err, slog.String("mission_id", key))
		return
	}

	plan := rl.CalculateNextLocation(s.cfg.Overshoot)
	if plan.Skipped {
		s.logger.Debug("mission is waiting for pickup", slog.String("mission_id", key))
		return
	}
	if plan.EmptyQueue || !rl.MoveToNextLocation() {
		s.logger.Warn("mission has no steps left", slog.String("mission_id", key), slog.String("status", string(rl.Status)))
		return
	}
	rl.Version++

	if rl.Status.IsTerminal() {
		err = s.store.Remove(ctx, key)
	} else {
		_, err = s.store.Put(ctx, rl)
	}
	if err != nil {
		logging.LogError(s.logger, "Failed to store mission", err,
			slog.String("mission_id", key), slog.String("status", string(rl.Status)))
		return
	}

	s.logger.Debug("mission advanced",
		slog.String("mission_id", key),
		slog.String("status", string(rl.Status)),
		slog.String("position", rl.CurrentPosition.String()),
		slog.Int("consumed", plan.Consumed),
		slog.Bool("intermediate", plan.Intermediate != nil))

	s.emit(ctx, rl)
	if rl.Status.IsContinuing() {
		s.scheduler.Schedule(key, s.cfg.Delay)
	}
}

func (s *Simulator) emit(ctx context.Context, rl *models.ResponderLocation) {
	if err := s.emitter.Emit(ctx, events.NewResponderLocationUpdate(rl)); err != nil {
		logging.LogError(s.logger, "Failed to emit responder location update", err,
			slog.String("mission_id", rl.MissionID))
	}
}

// Get returns the current state of a mission.
func (s *Simulator) Get(ctx context.Context, missionID string) (*models.ResponderLocation, error) {
	return s.store.Get(ctx, missionID)
}

// Missions returns every mission currently simulated.
func (s *Simulator) Missions(ctx context.Context) ([]*models.ResponderLocation, error) {
	keys, err := s.store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	missions := make([]*models.ResponderLocation, 0, len(keys))
	for _, key := range keys {
		rl, err := s.store.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		missions = append(missions, rl)
	}
	return missions, nil
}

// Pending returns the number of missions with a scheduled tick.
func (s *Simulator) Pending() int {
	return s.scheduler.Pending()
}

// Stop ends the simulation of one mission: its pending tick is cancelled and
// it is removed from the store. It returns store.ErrNotFound for unknown
// missions.
func (s *Simulator) Stop(ctx context.Context, missionID string) error {
	unlock := s.locks.lock(missionID)
	defer unlock()

	if _, err := s.store.Get(ctx, missionID); err != nil {
		return err
	}
	cancelled := s.scheduler.Cancel(missionID)
	if err := s.store.Remove(ctx, missionID); err != nil {
		return fmt.Errorf("removing mission %s: %w", missionID, err)
	}
	logging.LogOperation(s.logger, "mission_stopped",
		slog.String("mission_id", missionID),
		slog.Bool("tick_cancelled", cancelled))
	return nil
}

// NextTick reports when the mission is due to advance. It is false for
// missions that are waiting or finished.
func (s *Simulator) NextTick(missionID string) (time.Time, bool) {
	return s.scheduler.Due(missionID)
}

// Clear stops every simulation and empties the store.
func (s *Simulator) Clear(ctx context.Context) error {
	unlock := s.locks.lockAll()
	defer unlock()

	dropped := s.scheduler.Clear()
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clearing store: %w", err)
	}
	logging.LogOperation(s.logger, "simulation_cleared", slog.Int("pending_ticks_dropped", dropped))
	return nil
}

// Shutdown stops the scheduler. Running ticks complete first.
func (s *Simulator) Shutdown() {
	s.scheduler.Shutdown()
}
