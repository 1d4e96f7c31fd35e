package appconf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all the configuration settings for the simulator service.
type Config struct {
	Port      int
	Env       Environment
	ApiKeys   []string
	RateLimit int

	Log       LogConfig
	Simulator SimulatorConfig
	Store     StoreConfig
	Responder ResponderConfig
	Events    EventsConfig
}

type LogConfig struct {
	Level     string
	File      string
	MaxSizeMB int
}

// SimulatorConfig tunes the movement simulation.
type SimulatorConfig struct {
	Delay             time.Duration
	DistanceBase      float64 // meters per tick before variation
	DistanceVariation float64 // fraction, 0.3 means +/-30%
	Overshoot         float64
	Workers           int
}

type StoreConfig struct {
	Kind          string // memory, redis or sqlite
	RedisAddr     string
	RedisPassword string
	RedisPrefix   string
	SQLitePath    string
}

type ResponderConfig struct {
	URL        string
	RequestURI string
	Timeout    time.Duration
	CacheSize  int
	// DefaultPerson is returned when no responder service is configured.
	DefaultPerson bool
}

type EventsConfig struct {
	Buffer         int
	Policy         string // block or drop
	RedisAddr      string
	RedisPassword  string
	UpdateChannel  string
	MissionChannel string
	StatusChannel  string
}

// Default returns the configuration used when nothing else is supplied.
func Default() Config {
	return Config{
		Port:      8080,
		Env:       Development,
		RateLimit: 100,
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 64,
		},
		Simulator: SimulatorConfig{
			Delay:             5 * time.Second,
			DistanceBase:      1000,
			DistanceVariation: 0.3,
			Overshoot:         1.3,
			Workers:           8,
		},
		Store: StoreConfig{
			Kind:        "memory",
			RedisPrefix: "responder-simulator:",
			SQLitePath:  "responder-simulator.db",
		},
		Responder: ResponderConfig{
			RequestURI: "/responder/",
			Timeout:    5 * time.Second,
			CacheSize:  1024,
		},
		Events: EventsConfig{
			Buffer:         1024,
			Policy:         "block",
			UpdateChannel:  "responder-location-update",
			MissionChannel: "mission-event",
			StatusChannel:  "mission-status",
		},
	}
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("port", cfg.Port)
	v.SetDefault("env", cfg.Env.String())
	v.SetDefault("api-keys", strings.Join(cfg.ApiKeys, ","))
	v.SetDefault("rate-limit", cfg.RateLimit)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("log.max-size-mb", cfg.Log.MaxSizeMB)
	v.SetDefault("simulator.delay", cfg.Simulator.Delay)
	v.SetDefault("simulator.distance.base", cfg.Simulator.DistanceBase)
	v.SetDefault("simulator.distance.variation", cfg.Simulator.DistanceVariation)
	v.SetDefault("simulator.overshoot", cfg.Simulator.Overshoot)
	v.SetDefault("simulator.workers", cfg.Simulator.Workers)
	v.SetDefault("store.kind", cfg.Store.Kind)
	v.SetDefault("store.redis.addr", cfg.Store.RedisAddr)
	v.SetDefault("store.redis.password", cfg.Store.RedisPassword)
	v.SetDefault("store.redis.prefix", cfg.Store.RedisPrefix)
	v.SetDefault("store.sqlite.path", cfg.Store.SQLitePath)
	v.SetDefault("responder.url", cfg.Responder.URL)
	v.SetDefault("responder.request-uri", cfg.Responder.RequestURI)
	v.SetDefault("responder.timeout", cfg.Responder.Timeout)
	v.SetDefault("responder.cache-size", cfg.Responder.CacheSize)
	v.SetDefault("responder.default-person", cfg.Responder.DefaultPerson)
	v.SetDefault("events.buffer", cfg.Events.Buffer)
	v.SetDefault("events.policy", cfg.Events.Policy)
	v.SetDefault("events.redis.addr", cfg.Events.RedisAddr)
	v.SetDefault("events.redis.password", cfg.Events.RedisPassword)
	v.SetDefault("events.redis.channel", cfg.Events.UpdateChannel)
	v.SetDefault("events.redis.mission-channel", cfg.Events.MissionChannel)
	v.SetDefault("events.redis.status-channel", cfg.Events.StatusChannel)
}

// Load overlays base (usually built from command-line flags) with an optional
// config file and environment variables. Keys map to variables by upper-casing
// and replacing '.' and '-' with '_', e.g. simulator.distance.base is read from
// SIMULATOR_DISTANCE_BASE and store.redis.addr from STORE_REDIS_ADDR.
func Load(base Config, configFile string) (Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v, base)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
	}

	cfg := Config{
		Port:      v.GetInt("port"),
		Env:       EnvFlagToEnvironment(v.GetString("env")),
		ApiKeys:   splitList(v.GetString("api-keys")),
		RateLimit: v.GetInt("rate-limit"),
		Log: LogConfig{
			Level:     v.GetString("log.level"),
			File:      v.GetString("log.file"),
			MaxSizeMB: v.GetInt("log.max-size-mb"),
		},
		Simulator: SimulatorConfig{
			Delay:             v.GetDuration("simulator.delay"),
			DistanceBase:      v.GetFloat64("simulator.distance.base"),
			DistanceVariation: v.GetFloat64("simulator.distance.variation"),
			Overshoot:         v.GetFloat64("simulator.overshoot"),
			Workers:           v.GetInt("simulator.workers"),
		},
		Store: StoreConfig{
			Kind:          strings.ToLower(v.GetString("store.kind")),
			RedisAddr:     v.GetString("store.redis.addr"),
			RedisPassword: v.GetString("store.redis.password"),
			RedisPrefix:   v.GetString("store.redis.prefix"),
			SQLitePath:    v.GetString("store.sqlite.path"),
		},
		Responder: ResponderConfig{
			URL:           v.GetString("responder.url"),
			RequestURI:    v.GetString("responder.request-uri"),
			Timeout:       v.GetDuration("responder.timeout"),
			CacheSize:     v.GetInt("responder.cache-size"),
			DefaultPerson: v.GetBool("responder.default-person"),
		},
		Events: EventsConfig{
			Buffer:         v.GetInt("events.buffer"),
			Policy:         strings.ToLower(v.GetString("events.policy")),
			RedisAddr:      v.GetString("events.redis.addr"),
			RedisPassword:  v.GetString("events.redis.password"),
			UpdateChannel:  v.GetString("events.redis.channel"),
			MissionChannel: v.GetString("events.redis.mission-channel"),
			StatusChannel:  v.GetString("events.redis.status-channel"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first configuration value that cannot work.
func (c Config) Validate() error {
	switch {
	case c.Port < 0 || c.Port > 65535:
		return fmt.Errorf("invalid port %d", c.Port)
	case c.Simulator.Delay < 0:
		return fmt.Errorf("simulator.delay must not be negative")
	case c.Simulator.DistanceBase <= 0:
		return fmt.Errorf("simulator.distance.base must be positive")
	case c.Simulator.DistanceVariation < 0 || c.Simulator.DistanceVariation >= 1:
		return fmt.Errorf("simulator.distance.variation must be in [0, 1)")
	case c.Simulator.Overshoot < 1:
		return fmt.Errorf("simulator.overshoot must be at least 1")
	case c.Simulator.Workers <= 0:
		return fmt.Errorf("simulator.workers must be positive")
	}

	switch c.Store.Kind {
	case "memory":
	case "redis":
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("store.redis.addr is required for the redis store")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite.path is required for the sqlite store")
		}
	default:
		return fmt.Errorf("unknown store.kind %q", c.Store.Kind)
	}

	if c.Events.Policy != "block" && c.Events.Policy != "drop" {
		return fmt.Errorf("events.policy must be block or drop, got %q", c.Events.Policy)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
