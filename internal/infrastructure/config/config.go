package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// NoID marks a pre-declared device without a configured identity.
const NoID = -1

// Config is the root configuration structure for the XDTK controller.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Loop      LoopConfig      `yaml:"loop"`
	Registry  RegistryConfig  `yaml:"registry"`
	Devices   []DeviceConfig  `yaml:"devices"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	OSC       OSCConfig       `yaml:"osc"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// TransportConfig contains the UDP socket settings.
type TransportConfig struct {
	// ListenPort receives device→controller datagrams.
	ListenPort int `yaml:"listen_port"`

	// SenderPort is the port devices listen on for controller→device traffic.
	SenderPort int `yaml:"sender_port"`

	// ReceiveBufferSize is the largest datagram accepted, in bytes.
	ReceiveBufferSize int `yaml:"receive_buffer_size"`

	// CreationQueueSize bounds the number of first-contact devices
	// waiting for the next tick.
	CreationQueueSize int `yaml:"creation_queue_size"`

	// SendTimeout bounds each outbound write (WHOAREYOU, HEARTBEAT, HAPTICS).
	SendTimeout time.Duration `yaml:"send_timeout"`
}

// LoopConfig contains tick loop settings.
type LoopConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
}

// RegistryConfig contains device registry settings.
type RegistryConfig struct {
	// IdleTimeout marks a device stale once nothing has been heard from it
	// for this long. Zero disables staleness tracking. Stale devices are
	// never removed.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// DeviceConfig pre-declares a device before any traffic arrives.
type DeviceConfig struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	ID      *int   `yaml:"id"`
}

// DeviceID returns the configured id or NoID.
func (d DeviceConfig) DeviceID() int {
	if d.ID == nil {
		return NoID
	}
	return *d.ID
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled       bool                `yaml:"enabled"`
	Broker        MQTTBrokerConfig    `yaml:"broker"`
	Auth          MQTTAuthConfig      `yaml:"auth"`
	QoS           int                 `yaml:"qos"`
	Reconnect     MQTTReconnectConfig `yaml:"reconnect"`
	PayloadFormat string              `yaml:"payload_format"`
	QueueSize     int                 `yaml:"queue_size"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket event stream settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled        bool          `yaml:"enabled"`
	URL            string        `yaml:"url"`
	Token          string        `yaml:"token"`
	Org            string        `yaml:"org"`
	Bucket         string        `yaml:"bucket"`
	BatchSize      int           `yaml:"batch_size"`
	FlushInterval  int           `yaml:"flush_interval"`
	SampleInterval time.Duration `yaml:"sample_interval"`
}

// OSCConfig contains settings for the OSC event forwarder.
type OSCConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Prefix  string `yaml:"prefix"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: XDTK_SECTION_KEY
// For example: XDTK_LISTEN_PORT, XDTK_DATABASE_PATH
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration, used when no file is given.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Transport: TransportConfig{
			ListenPort:        5555,
			SenderPort:        5556,
			ReceiveBufferSize: 120000,
			CreationQueueSize: 16,
			SendTimeout:       time.Second,
		},
		Loop: LoopConfig{
			TickInterval: 16 * time.Millisecond,
		},
		Database: DatabaseConfig{
			Path:        "./data/xdtk.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "xdtkd",
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			PayloadFormat: "json",
			QueueSize:     1024,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:      500,
			FlushInterval:  1,
			SampleInterval: time.Second,
		},
		OSC: OSCConfig{
			Host:   "127.0.0.1",
			Port:   9000,
			Prefix: "/xdtk",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("XDTK_LISTEN_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("XDTK_LISTEN_PORT: %w", err)
		}
		cfg.Transport.ListenPort = port
	}
	if v := os.Getenv("XDTK_SENDER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("XDTK_SENDER_PORT: %w", err)
		}
		cfg.Transport.SenderPort = port
	}

	if v := os.Getenv("XDTK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("XDTK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("XDTK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("XDTK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("XDTK_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("XDTK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	return nil
}

// Validate checks the configuration for errors.
//
// Pre-declared devices are not validated here. Bad addresses and
// duplicate identities are sanitised by the transceiver at startup so a
// single typo does not stop the controller.
func (c *Config) Validate() error {
	var errs []string

	if !validPort(c.Transport.ListenPort) {
		errs = append(errs, "transport.listen_port must be between 1 and 65535")
	}
	if !validPort(c.Transport.SenderPort) {
		errs = append(errs, "transport.sender_port must be between 1 and 65535")
	}
	if c.Transport.ListenPort == c.Transport.SenderPort {
		errs = append(errs, "transport.listen_port and transport.sender_port must differ")
	}
	if c.Transport.ReceiveBufferSize < 64 {
		errs = append(errs, "transport.receive_buffer_size must be at least 64")
	}
	if c.Transport.CreationQueueSize < 1 {
		errs = append(errs, "transport.creation_queue_size must be positive")
	}

	if c.Loop.TickInterval <= 0 {
		errs = append(errs, "loop.tick_interval must be positive")
	}
	if c.Registry.IdleTimeout < 0 {
		errs = append(errs, "registry.idle_timeout must not be negative")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	switch c.MQTT.PayloadFormat {
	case "json", "cbor":
	default:
		errs = append(errs, "mqtt.payload_format must be json or cbor")
	}

	if c.API.Enabled && !validPort(c.API.Port) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required")
		}
		if c.InfluxDB.SampleInterval <= 0 {
			errs = append(errs, "influxdb.sample_interval must be positive")
		}
	}

	if c.OSC.Enabled && !validPort(c.OSC.Port) {
		errs = append(errs, "osc.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}

// ReadTimeout returns the read timeout as a Duration.
func (t APITimeoutConfig) ReadTimeout() time.Duration {
	return time.Duration(t.Read) * time.Second
}

// WriteTimeout returns the write timeout as a Duration.
func (t APITimeoutConfig) WriteTimeout() time.Duration {
	return time.Duration(t.Write) * time.Second
}

// IdleTimeout returns the idle timeout as a Duration.
func (t APITimeoutConfig) IdleTimeout() time.Duration {
	return time.Duration(t.Idle) * time.Second
}
