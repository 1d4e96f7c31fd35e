package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"erdemo.org/responder-simulator/internal/app"
	"erdemo.org/responder-simulator/internal/appconf"
	"erdemo.org/responder-simulator/internal/events"
	"erdemo.org/responder-simulator/internal/logging"
	"erdemo.org/responder-simulator/internal/responder"
	"erdemo.org/responder-simulator/internal/restapi"
	"erdemo.org/responder-simulator/internal/simulator"
	"erdemo.org/responder-simulator/internal/store"
	"erdemo.org/responder-simulator/internal/webui"
)

const (
	eventSource     = "responder-simulator"
	shutdownTimeout = 10 * time.Second
	pingTimeout     = 5 * time.Second
)

// service owns every long-lived component of the process.
type service struct {
	app          *app.Application
	store        store.Store
	eventsClient *redis.Client
	subscriber   *events.RedisSubscriber

	closeOnce sync.Once
}

func splitAPIKeys(s string) []string {
	keys := strings.Split(s, ",")
	out := keys[:0]
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// newLogger builds a text logger in development and a JSON logger otherwise.
// When log.file is set, output is also written to a rotated file, which the
// caller must close.
func newLogger(cfg appconf.Config, stdout io.Writer) (*slog.Logger, io.Closer) {
	level := logging.ParseLevel(cfg.Log.Level)

	var w io.Writer = stdout
	var file io.WriteCloser
	if cfg.Log.File != "" {
		file = logging.NewFileWriter(cfg.Log.File, cfg.Log.MaxSizeMB)
		w = io.MultiWriter(stdout, file)
	}

	var logger *slog.Logger
	if cfg.Env == appconf.Development {
		logger = logging.NewTextLogger(w, level)
	} else {
		logger = logging.NewStructuredLogger(w, level)
	}

	if file == nil {
		return logger, nil
	}
	return logger, file
}

func openStore(cfg appconf.StoreConfig, logger *slog.Logger) (store.Store, error) {
	switch cfg.Kind {
	case "redis":
		s := store.NewRedisStore(store.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword), cfg.RedisPrefix)
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("connecting to redis store at %s: %w", cfg.RedisAddr, err)
		}
		return s, nil
	case "sqlite":
		return store.NewSQLiteStore(cfg.SQLitePath, logger)
	default:
		return store.NewMemoryStore(), nil
	}
}

func newLookup(cfg appconf.ResponderConfig, logger *slog.Logger) (responder.Lookup, error) {
	if cfg.URL == "" {
		return responder.StaticLookup(cfg.DefaultPerson), nil
	}
	return responder.NewHTTPLookup(cfg.URL, cfg.RequestURI, cfg.Timeout, cfg.CacheSize, logger)
}

// buildService wires the store, responder lookup, event publishers and the
// simulator according to cfg.
func buildService(cfg appconf.Config, logger *slog.Logger) (*service, error) {
	policy, err := events.ParsePolicy(cfg.Events.Policy)
	if err != nil {
		return nil, err
	}

	lookup, err := newLookup(cfg.Responder, logger)
	if err != nil {
		return nil, fmt.Errorf("creating responder lookup: %w", err)
	}

	st, err := openStore(cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	svc := &service{store: st}

	hub := events.NewHub(eventSource, logger)
	publishers := []events.Publisher{events.LogPublisher{Logger: logger}, hub}
	if cfg.Events.RedisAddr != "" {
		svc.eventsClient = store.NewRedisClient(cfg.Events.RedisAddr, cfg.Events.RedisPassword)
		publishers = append(publishers, events.NewRedisPublisher(svc.eventsClient, cfg.Events.UpdateChannel))
	}

	dispatcher := events.NewDispatcher(cfg.Events.Buffer, policy, logger, publishers...)
	sim := simulator.New(simulator.Config{
		Delay:             cfg.Simulator.Delay,
		DistanceBase:      cfg.Simulator.DistanceBase,
		DistanceVariation: cfg.Simulator.DistanceVariation,
		Overshoot:         cfg.Simulator.Overshoot,
		Workers:           cfg.Simulator.Workers,
	}, st, lookup, dispatcher, logger)

	if svc.eventsClient != nil {
		svc.subscriber = events.NewRedisSubscriber(svc.eventsClient,
			cfg.Events.MissionChannel, cfg.Events.StatusChannel, sim, logger)
	}

	svc.app = &app.Application{
		Config:     cfg,
		Logger:     logger,
		Simulator:  sim,
		Dispatcher: dispatcher,
		Hub:        hub,
	}

	logging.LogOperation(logger, "simulator_initialized",
		slog.String("store", cfg.Store.Kind),
		slog.String("event_policy", string(policy)),
		slog.Bool("redis_events", svc.eventsClient != nil),
		slog.Bool("responder_service", cfg.Responder.URL != ""))

	return svc, nil
}

func (svc *service) handler() http.Handler {
	router := httprouter.New()

	api := restapi.NewRestAPI(svc.app)
	api.SetRoutes(router)

	webUI := &webui.WebUI{Application: svc.app}
	webUI.SetWebUIRoutes(router)

	return api.Handler(router)
}

// run serves HTTP and consumes the redis channels until ctx is cancelled,
// then shuts the server down gracefully.
func run(ctx context.Context, svc *service) error {
	logger := svc.app.Logger

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", svc.app.Config.Port),
		Handler:      svc.handler(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", "addr", srv.Addr, "env", svc.app.Config.Env.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if svc.subscriber != nil {
		g.Go(func() error {
			return svc.subscriber.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close stops the simulator before the dispatcher so that no tick emits into
// a closed dispatcher, then releases the store and redis connections.
func (svc *service) Close() {
	svc.closeOnce.Do(func() {
		logger := svc.app.Logger
		svc.app.Simulator.Shutdown()
		svc.app.Dispatcher.Close()
		logging.SafeCloseWithLogging(svc.store, logger, "store")
		if svc.eventsClient != nil {
			logging.SafeCloseWithLogging(svc.eventsClient, logger, "redis_events_client")
		}
	})
}
