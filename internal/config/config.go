package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/yegors/skylanes/internal/assets"
	"github.com/yegors/skylanes/internal/flight"
	"github.com/yegors/skylanes/internal/geodesic"
	"github.com/yegors/skylanes/internal/ports"
	"github.com/yegors/skylanes/internal/route"
	"github.com/yegors/skylanes/internal/simulation"
	"github.com/yegors/skylanes/internal/stream"
	"github.com/yegors/skylanes/pkg/logger"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server     ServerConfig     `toml:"server"`     // HTTP and websocket settings
	Logging    LoggingConfig    `toml:"logging"`    // Application logging settings
	Storage    StorageConfig    `toml:"storage"`    // Data persistence settings
	Ports      PortsConfig      `toml:"ports"`      // Airport catalogue settings
	Simulation SimulationConfig `toml:"simulation"` // Flight population and motion tuning
	Assets     AssetsConfig     `toml:"assets"`     // Flight model files
	Kafka      KafkaConfig      `toml:"kafka"`      // Lifecycle event publishing
	Navigation NavigationConfig `toml:"navigation"` // Telemetry units and headings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port                int    `toml:"port"`                     // HTTP port for the server
	Host                string `toml:"host"`                     // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	ReadTimeoutSecs     int    `toml:"read_timeout_seconds"`     // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs    int    `toml:"write_timeout_seconds"`    // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs     int    `toml:"idle_timeout_seconds"`     // Maximum duration to wait for the next request when keep-alives are enabled
	FrameIntervalMs     int    `toml:"frame_interval_ms"`        // How often poses are pushed to websocket clients
	ShutdownTimeoutSecs int    `toml:"shutdown_timeout_seconds"` // Grace period for in-flight requests on shutdown
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level      string `toml:"level"`        // Log level: "debug", "info", "warn", or "error"
	Format     string `toml:"format"`       // Log format: "json" (structured) or "console" (human-readable)
	File       string `toml:"file"`         // Optional log file, rotated by size
	MaxSizeMB  int    `toml:"max_size_mb"`  // Rotate the log file after this many megabytes
	MaxBackups int    `toml:"max_backups"`  // Rotated files to keep
	MaxAgeDays int    `toml:"max_age_days"` // Days to keep rotated files
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	SQLitePath       string `toml:"sqlite_path"`        // SQLite database file for the port catalogue and flight log
	HistoryQueueSize int    `toml:"history_queue_size"` // Flight events buffered for the flight log writer
}

// PortsConfig selects the airport catalogue
type PortsConfig struct {
	CSVPath string   `toml:"csv_path"` // OurAirports-format CSV; empty uses the built-in catalogue
	Types   []string `toml:"types"`    // Airport types to keep (e.g., "large_airport")
}

// maxCallsigns is the size of the SKY001-SKY999 callsign range
const maxCallsigns = 999

// SimulationConfig contains flight population and motion tuning
type SimulationConfig struct {
	MaxActive           int      `toml:"max_active"`            // Cap on concurrently active flights, at most 999
	TickRateHz          int      `toml:"tick_rate_hz"`          // Frames per second of the simulation loop
	SpawnIntervalMs     int      `toml:"spawn_interval_ms"`     // Time between spawn attempts
	DisableAutoSpawn    bool     `toml:"disable_auto_spawn"`    // Start with the spawn scheduler stopped
	MultiLegProbability *float64 `toml:"multi_leg_probability"` // Chance a spawned flight visits several ports; unset uses the default
	MinRouteStops       int      `toml:"min_route_stops"`       // Fewest ports on a spawned multi-leg route
	MaxRouteStops       int      `toml:"max_route_stops"`       // Most ports on a spawned multi-leg route
	MinLegDistance      *float64 `toml:"min_leg_distance"`      // Shortest spawned single leg, in sphere radii; unset uses the default
	Seed                int64    `toml:"seed"`                  // Random seed; 0 picks one at startup

	SphereRadius       float64 `toml:"sphere_radius"`        // World sphere radius
	MinAltitude        float64 `toml:"min_altitude"`         // Cruise altitude of the shortest legs, in radii
	MaxAltitude        float64 `toml:"max_altitude"`         // Cruise altitude of the longest legs, in radii
	CurveSegments      int     `toml:"curve_segments"`       // Path segments per leg
	ShortLegSpeed      float64 `toml:"short_leg_speed"`      // Progress per tick on short legs
	LongLegSpeed       float64 `toml:"long_leg_speed"`       // Progress per tick on long legs
	ArcProfile         string  `toml:"arc_profile"`          // "main" or "minor"
	LandingTicks       int     `toml:"landing_ticks"`        // Ticks a landed flight stays before removal
	MaxBankAngleDeg    float64 `toml:"max_bank_angle_deg"`   // Largest cosmetic bank angle
	TrailIntervalTicks int     `toml:"trail_interval_ticks"` // Base ticks between trail segments
}

// AssetsConfig lists the flight model files served to the browser
type AssetsConfig struct {
	Dir       string   `toml:"dir"`        // Directory holding model files
	Models    []string `toml:"models"`     // File names under dir; each flight is given one
	CacheSize int      `toml:"cache_size"` // Models kept in memory
}

// KafkaConfig contains lifecycle event publishing settings
type KafkaConfig struct {
	Enabled           bool     `toml:"enabled"`
	Brokers           []string `toml:"brokers"`
	Topic             string   `toml:"topic"`
	QueueSize         int      `toml:"queue_size"` // Events buffered before dropping
	BatchSize         int      `toml:"batch_size"` // Events per write
	WriteTimeoutMs    int      `toml:"write_timeout_ms"`
	CreateTopic       bool     `toml:"create_topic"`       // Create the topic on startup if missing
	Partitions        int      `toml:"partitions"`         // Used when creating the topic
	ReplicationFactor int      `toml:"replication_factor"` // Used when creating the topic
}

// NavigationConfig contains telemetry settings
type NavigationConfig struct {
	MagneticHeadings bool    `toml:"magnetic_headings"` // Add WMM magnetic heading to flight snapshots
	FeetPerUnit      float64 `toml:"feet_per_unit"`     // Converts world altitude to feet
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // Default location in configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate fills defaults and validates the configuration
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.FrameIntervalMs == 0 {
		c.Server.FrameIntervalMs = 100
	}
	if c.Server.FrameIntervalMs < 0 {
		return fmt.Errorf("invalid frame_interval_ms: %d", c.Server.FrameIntervalMs)
	}
	if c.Server.ShutdownTimeoutSecs <= 0 {
		c.Server.ShutdownTimeoutSecs = 10
	}

	// Validate logging config
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be 'debug', 'info', 'warn', or 'error')", c.Logging.Level)
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'console' or 'json')", c.Logging.Format)
	}

	// Validate storage config
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "data/skylanes.db"
	}
	if c.Storage.HistoryQueueSize <= 0 {
		c.Storage.HistoryQueueSize = 256
	}

	if len(c.Ports.Types) == 0 {
		c.Ports.Types = []string{"large_airport"}
	}

	if err := c.ValidateSimulation(); err != nil {
		return err
	}

	if c.Assets.CacheSize <= 0 {
		c.Assets.CacheSize = 16
	}
	if len(c.Assets.Models) > 0 && c.Assets.Dir == "" {
		return fmt.Errorf("assets.dir is required when models are configured")
	}

	if err := c.ValidateKafka(); err != nil {
		return err
	}

	if c.Navigation.FeetPerUnit == 0 {
		c.Navigation.FeetPerUnit = 500000
	}
	if c.Navigation.FeetPerUnit < 0 {
		return fmt.Errorf("invalid feet_per_unit: %f", c.Navigation.FeetPerUnit)
	}

	return nil
}

// ValidateSimulation fills simulation defaults from the reference tuning and
// checks the result
func (c *Config) ValidateSimulation() error {
	s := &c.Simulation
	simDefaults := simulation.DefaultConfig()
	routeDefaults := route.DefaultParams()
	flightDefaults := flight.DefaultParams()

	if s.MaxActive == 0 {
		s.MaxActive = simDefaults.MaxActive
	}
	if s.TickRateHz == 0 {
		s.TickRateHz = 60
	}
	if s.SpawnIntervalMs == 0 {
		s.SpawnIntervalMs = int(simDefaults.SpawnInterval / time.Millisecond)
	}
	if s.MultiLegProbability == nil {
		s.MultiLegProbability = &simDefaults.MultiLegProbability
	}
	if s.MinRouteStops == 0 {
		s.MinRouteStops = simDefaults.MinRouteStops
	}
	if s.MaxRouteStops == 0 {
		s.MaxRouteStops = simDefaults.MaxRouteStops
	}
	if s.MinLegDistance == nil {
		s.MinLegDistance = &simDefaults.MinLegDistance
	}
	if s.SphereRadius == 0 {
		s.SphereRadius = routeDefaults.Radius
	}
	if s.MinAltitude == 0 {
		s.MinAltitude = routeDefaults.MinAltitude
	}
	if s.MaxAltitude == 0 {
		s.MaxAltitude = routeDefaults.MaxAltitude
	}
	if s.CurveSegments == 0 {
		s.CurveSegments = routeDefaults.Segments
	}
	if s.ShortLegSpeed == 0 {
		s.ShortLegSpeed = routeDefaults.ShortLegSpeed
	}
	if s.LongLegSpeed == 0 {
		s.LongLegSpeed = routeDefaults.LongLegSpeed
	}
	if s.ArcProfile == "" {
		s.ArcProfile = "main"
	}
	if s.LandingTicks == 0 {
		s.LandingTicks = flightDefaults.LandingTicks
	}
	if s.MaxBankAngleDeg == 0 {
		s.MaxBankAngleDeg = flightDefaults.MaxBankAngle * 180 / math.Pi
	}
	if s.TrailIntervalTicks == 0 {
		s.TrailIntervalTicks = flightDefaults.TrailIntervalTicks
	}

	if s.MaxActive < 0 || s.MaxActive > maxCallsigns {
		return fmt.Errorf("invalid max_active: %d (must be 1-%d)", s.MaxActive, maxCallsigns)
	}
	if s.TickRateHz < 0 || s.TickRateHz > 1000 {
		return fmt.Errorf("invalid tick_rate_hz: %d (must be 1-1000)", s.TickRateHz)
	}
	if s.SpawnIntervalMs < 0 {
		return fmt.Errorf("invalid spawn_interval_ms: %d", s.SpawnIntervalMs)
	}
	if p := *s.MultiLegProbability; p < 0 || p > 1 {
		return fmt.Errorf("invalid multi_leg_probability: %f (must be 0-1)", p)
	}
	if s.MinRouteStops < 2 || s.MaxRouteStops < s.MinRouteStops {
		return fmt.Errorf("invalid route stops: min=%d max=%d (need 2 <= min <= max)", s.MinRouteStops, s.MaxRouteStops)
	}
	if d := *s.MinLegDistance; d < 0 || d > 2 {
		return fmt.Errorf("invalid min_leg_distance: %f (must be 0-2 radii)", d)
	}
	if s.SphereRadius < 0 || math.IsInf(s.SphereRadius, 0) || math.IsNaN(s.SphereRadius) {
		return fmt.Errorf("invalid sphere_radius: %f", s.SphereRadius)
	}
	if s.MinAltitude < 0 || s.MaxAltitude < s.MinAltitude {
		return fmt.Errorf("invalid cruise altitudes: min=%f max=%f", s.MinAltitude, s.MaxAltitude)
	}
	if s.CurveSegments < 2 {
		return fmt.Errorf("invalid curve_segments: %d (must be >= 2)", s.CurveSegments)
	}
	if s.ShortLegSpeed <= 0 || s.LongLegSpeed <= 0 || s.ShortLegSpeed > 1 || s.LongLegSpeed > 1 {
		return fmt.Errorf("invalid leg speeds: short=%f long=%f (must be in (0, 1])", s.ShortLegSpeed, s.LongLegSpeed)
	}
	if s.ArcProfile != "main" && s.ArcProfile != "minor" {
		return fmt.Errorf("invalid arc_profile: %s (must be 'main' or 'minor')", s.ArcProfile)
	}
	if s.LandingTicks < 0 {
		return fmt.Errorf("invalid landing_ticks: %d", s.LandingTicks)
	}
	if s.MaxBankAngleDeg < 0 || s.MaxBankAngleDeg >= 90 {
		return fmt.Errorf("invalid max_bank_angle_deg: %f (must be 0-90)", s.MaxBankAngleDeg)
	}
	if s.TrailIntervalTicks < 1 {
		return fmt.Errorf("invalid trail_interval_ticks: %d", s.TrailIntervalTicks)
	}

	return nil
}

// ValidateKafka validates the Kafka configuration when publishing is enabled
func (c *Config) ValidateKafka() error {
	if !c.Kafka.Enabled {
		return nil
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "flight-events"
	}
	if c.Kafka.QueueSize <= 0 {
		c.Kafka.QueueSize = 1024
	}
	if c.Kafka.BatchSize <= 0 {
		c.Kafka.BatchSize = 50
	}
	if c.Kafka.WriteTimeoutMs <= 0 {
		c.Kafka.WriteTimeoutMs = 5000
	}
	if c.Kafka.Partitions <= 0 {
		c.Kafka.Partitions = 1
	}
	if c.Kafka.ReplicationFactor <= 0 {
		c.Kafka.ReplicationFactor = 1
	}
	return nil
}

// LoggerConfig converts the logging section for pkg/logger
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:      c.Logging.Level,
		Format:     c.Logging.Format,
		File:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
	}
}

// PortProviderConfig converts the ports section for the port provider
func (c *Config) PortProviderConfig() ports.Config {
	return ports.Config{
		CSVPath: c.Ports.CSVPath,
		Types:   c.Ports.Types,
	}
}

// ServiceConfig converts the simulation and navigation sections for the
// simulation service. Validate must have been called.
func (c *Config) ServiceConfig() simulation.Config {
	s := c.Simulation
	cfg := simulation.DefaultConfig()

	cfg.MaxActive = s.MaxActive
	cfg.TickInterval = time.Second / time.Duration(s.TickRateHz)
	cfg.SpawnInterval = time.Duration(s.SpawnIntervalMs) * time.Millisecond
	cfg.MultiLegProbability = *s.MultiLegProbability
	cfg.MinRouteStops = s.MinRouteStops
	cfg.MaxRouteStops = s.MaxRouteStops
	cfg.MinLegDistance = *s.MinLegDistance
	cfg.AutoSpawn = !s.DisableAutoSpawn
	cfg.FeetPerUnit = c.Navigation.FeetPerUnit
	cfg.MagneticHeadings = c.Navigation.MagneticHeadings

	cfg.Route.Radius = s.SphereRadius
	cfg.Route.MinAltitude = s.MinAltitude
	cfg.Route.MaxAltitude = s.MaxAltitude
	cfg.Route.Segments = s.CurveSegments
	cfg.Route.ShortLegSpeed = s.ShortLegSpeed
	cfg.Route.LongLegSpeed = s.LongLegSpeed
	cfg.Route.Arc = geodesic.MainArc
	if s.ArcProfile == "minor" {
		cfg.Route.Arc = geodesic.MinorArc
	}

	cfg.Flight.LandingTicks = s.LandingTicks
	cfg.Flight.MaxBankAngle = s.MaxBankAngleDeg * math.Pi / 180
	cfg.Flight.TrailIntervalTicks = s.TrailIntervalTicks
	if cfg.Flight.TrailMaxIntervalTicks < s.TrailIntervalTicks {
		cfg.Flight.TrailMaxIntervalTicks = s.TrailIntervalTicks
	}

	return cfg
}

// LoaderConfig converts the assets section for the model loader
func (c *Config) LoaderConfig() assets.Config {
	return assets.Config{
		Dir:       c.Assets.Dir,
		Models:    c.Assets.Models,
		CacheSize: c.Assets.CacheSize,
	}
}

// PublisherConfig converts the kafka section for the event publisher
func (c *Config) PublisherConfig() stream.Config {
	return stream.Config{
		Brokers:      c.Kafka.Brokers,
		Topic:        c.Kafka.Topic,
		QueueSize:    c.Kafka.QueueSize,
		BatchSize:    c.Kafka.BatchSize,
		WriteTimeout: time.Duration(c.Kafka.WriteTimeoutMs) * time.Millisecond,
	}
}
