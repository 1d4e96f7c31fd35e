package app

import (
	"log/slog"

	"erdemo.org/responder-simulator/internal/appconf"
	"erdemo.org/responder-simulator/internal/events"
	"erdemo.org/responder-simulator/internal/simulator"
)

// Application holds the dependencies for our HTTP handlers, helpers,
// and middleware.
type Application struct {
	Config     appconf.Config
	Logger     *slog.Logger
	Simulator  *simulator.Simulator
	Dispatcher *events.Dispatcher
	Hub        *events.Hub
}
