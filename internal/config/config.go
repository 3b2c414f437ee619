package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/OCAP2/locationmarker/internal/marker"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory
const FileName = "markerd.cfg.json"

// EnvPrefix prefixes environment overrides, e.g. MARKERD_STORAGE_TYPE
const EnvPrefix = "MARKERD"

var validate = validator.New()

// StorageConfig selects and configures the session recorder
type StorageConfig struct {
	Type          string         `json:"type" mapstructure:"type" validate:"omitempty,oneof=memory sqlite postgres"`
	FlushInterval time.Duration  `json:"flushInterval" mapstructure:"flushInterval" validate:"gte=0"`
	QueueLimit    int            `json:"queueLimit" mapstructure:"queueLimit" validate:"gte=0"`
	Memory        MemoryConfig   `json:"memory" mapstructure:"memory"`
	SQLite        SQLiteConfig   `json:"sqlite" mapstructure:"sqlite"`
	Postgres      PostgresConfig `json:"postgres" mapstructure:"postgres"`
}

// MemoryConfig holds memory storage backend settings
type MemoryConfig struct {
	OutputDir string `json:"outputDir" mapstructure:"outputDir"` // session JSON export, empty disables
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// PostgresConfig holds Postgres storage backend settings
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
	SSLMode  string `json:"sslMode" mapstructure:"sslMode"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// ProviderConfig selects where location fixes come from
type ProviderConfig struct {
	Source         string        `validate:"omitempty,oneof=replay websocket"`
	URL            string        `validate:"omitempty,url"` // websocket device feed
	Track          string        // replay track, JSON [[lon,lat],...]
	Accuracy       float64       `validate:"gte=0"` // replay horizontal accuracy in meters
	Interval       time.Duration `validate:"gte=0"` // replay step interval
	Loop           bool
	DistanceFilter float64 `validate:"gte=0"`
	Grant          string  `validate:"oneof=notDetermined restricted denied always whenInUse"`
}

// ViewportConfig is the initial map state
type ViewportConfig struct {
	TileSize float64 `validate:"gte=0"`
	Zoom     float64 `validate:"gte=0,lte=24"`
	Bearing  float64
	Attached bool
}

// DispatcherConfig sizes the event queue in front of the marker
type DispatcherConfig struct {
	BufferSize int `validate:"gte=0"`
	Blocking   bool
}

// RedisConfig publishes committed geometry on a Redis channel
type RedisConfig struct {
	Addr     string // empty disables publishing
	Password string
	DB       int    `validate:"gte=0"`
	Channel  string `validate:"required_with=Addr"`
}

// MonitorConfig controls the periodic status report
type MonitorConfig struct {
	Enabled    bool
	Interval   time.Duration
	StatusFile string // relative to logsDir
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	// a .env next to the config file may carry MARKERD_* overrides
	_ = godotenv.Load(filepath.Join(configDir, ".env"))
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logFormat", "text")
	viper.SetDefault("logsDir", "./markerlogs")
	viper.SetDefault("listenAddr", ":8080")
	viper.SetDefault("sessionName", "")

	d := marker.DefaultParams()
	viper.SetDefault("marker.canvasSize", d.CanvasSize)
	viper.SetDefault("marker.lineWidth", d.LineWidth)
	viper.SetDefault("marker.minDotSize", d.MinDotSize)
	viper.SetDefault("marker.minDotMeters", d.MinDotMeters)
	viper.SetDefault("marker.arrowMeters", d.ArrowMeters)
	viper.SetDefault("marker.minArrowSize", d.MinArrowSize)
	viper.SetDefault("marker.maxArrowSize", d.MaxArrowSize)
	viper.SetDefault("marker.opacityFloor", d.OpacityFloor)
	viper.SetDefault("marker.dotThreshold", d.DotThreshold)
	viper.SetDefault("marker.hitTestSize", d.HitTestSize)
	viper.SetDefault("marker.recenterDuration", d.RecenterDuration.String())

	viper.SetDefault("provider.source", "replay")
	viper.SetDefault("provider.url", "ws://localhost:8081/feed")
	viper.SetDefault("provider.track", "")
	viper.SetDefault("provider.accuracy", 10.0)
	viper.SetDefault("provider.interval", "1s")
	viper.SetDefault("provider.loop", true)
	viper.SetDefault("provider.distanceFilter", 50.0)
	viper.SetDefault("provider.grant", "whenInUse")

	viper.SetDefault("viewport.tileSize", 512.0)
	viper.SetDefault("viewport.zoom", 16.0)
	viper.SetDefault("viewport.bearing", 0.0)
	viper.SetDefault("viewport.attached", true)

	viper.SetDefault("dispatcher.bufferSize", 256)
	viper.SetDefault("dispatcher.blocking", false)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.flushInterval", "1s")
	viper.SetDefault("storage.queueLimit", 10000)
	viper.SetDefault("storage.memory.outputDir", "")
	viper.SetDefault("storage.sqlite.path", "./sessions.db")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.database", "markerd")
	viper.SetDefault("storage.postgres.sslMode", "disable")

	viper.SetDefault("render.redis.addr", "")
	viper.SetDefault("render.redis.password", "")
	viper.SetDefault("render.redis.db", 0)
	viper.SetDefault("render.redis.channel", "markerd:geometry")

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.interval", "5s")
	viper.SetDefault("monitor.statusFile", "status.json")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "markerd")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetMarkerParams returns the marker tuning
func GetMarkerParams() marker.Params {
	return marker.Params{
		CanvasSize:       viper.GetFloat64("marker.canvasSize"),
		LineWidth:        viper.GetFloat64("marker.lineWidth"),
		MinDotSize:       viper.GetFloat64("marker.minDotSize"),
		MinDotMeters:     viper.GetFloat64("marker.minDotMeters"),
		ArrowMeters:      viper.GetFloat64("marker.arrowMeters"),
		MinArrowSize:     viper.GetFloat64("marker.minArrowSize"),
		MaxArrowSize:     viper.GetFloat64("marker.maxArrowSize"),
		OpacityFloor:     viper.GetFloat64("marker.opacityFloor"),
		DotThreshold:     viper.GetFloat64("marker.dotThreshold"),
		HitTestSize:      viper.GetFloat64("marker.hitTestSize"),
		RecenterDuration: viper.GetDuration("marker.recenterDuration"),
	}
}

// GetStorageConfig returns the session recorder settings
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:          viper.GetString("storage.type"),
		FlushInterval: viper.GetDuration("storage.flushInterval"),
		QueueLimit:    viper.GetInt("storage.queueLimit"),
		Memory: MemoryConfig{
			OutputDir: viper.GetString("storage.memory.outputDir"),
		},
		SQLite: SQLiteConfig{
			Path: viper.GetString("storage.sqlite.path"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("storage.postgres.host"),
			Port:     viper.GetString("storage.postgres.port"),
			Username: viper.GetString("storage.postgres.username"),
			Password: viper.GetString("storage.postgres.password"),
			Database: viper.GetString("storage.postgres.database"),
			SSLMode:  viper.GetString("storage.postgres.sslMode"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry settings
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetProviderConfig returns the location source settings
func GetProviderConfig() ProviderConfig {
	return ProviderConfig{
		Source:         viper.GetString("provider.source"),
		URL:            viper.GetString("provider.url"),
		Track:          viper.GetString("provider.track"),
		Accuracy:       viper.GetFloat64("provider.accuracy"),
		Interval:       viper.GetDuration("provider.interval"),
		Loop:           viper.GetBool("provider.loop"),
		DistanceFilter: viper.GetFloat64("provider.distanceFilter"),
		Grant:          viper.GetString("provider.grant"),
	}
}

// GetViewportConfig returns the initial map state
func GetViewportConfig() ViewportConfig {
	return ViewportConfig{
		TileSize: viper.GetFloat64("viewport.tileSize"),
		Zoom:     viper.GetFloat64("viewport.zoom"),
		Bearing:  viper.GetFloat64("viewport.bearing"),
		Attached: viper.GetBool("viewport.attached"),
	}
}

// GetDispatcherConfig returns the event queue settings
func GetDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		BufferSize: viper.GetInt("dispatcher.bufferSize"),
		Blocking:   viper.GetBool("dispatcher.blocking"),
	}
}

// GetMonitorConfig returns the status report settings
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:    viper.GetBool("monitor.enabled"),
		Interval:   viper.GetDuration("monitor.interval"),
		StatusFile: viper.GetString("monitor.statusFile"),
	}
}

// GetRedisConfig returns the geometry publisher settings
func GetRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     viper.GetString("render.redis.addr"),
		Password: viper.GetString("render.redis.password"),
		DB:       viper.GetInt("render.redis.db"),
		Channel:  viper.GetString("render.redis.channel"),
	}
}

// Validate checks the loaded settings that have no safe fallback
func Validate() error {
	sections := []struct {
		name string
		cfg  any
	}{
		{"storage", GetStorageConfig()},
		{"provider", GetProviderConfig()},
		{"viewport", GetViewportConfig()},
		{"dispatcher", GetDispatcherConfig()},
		{"render.redis", GetRedisConfig()},
	}
	for _, s := range sections {
		if err := validate.Struct(s.cfg); err != nil {
			return fmt.Errorf("invalid %s config: %w", s.name, err)
		}
	}
	if err := GetMarkerParams().Validate(); err != nil {
		return fmt.Errorf("invalid marker config: %w", err)
	}
	return nil
}
