package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type GRPC struct {
	Addr string `yaml:"addr"`
}

type HTTP struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // realtime-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Postgres struct {
	DSN               string        `yaml:"dsn"`
	MaxConns          int32         `yaml:"maxConns"`
	MinConns          int32         `yaml:"minConns"`
	MaxConnLifetime   time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime   time.Duration `yaml:"maxConnIdleTime"`
	HealthCheckPeriod time.Duration `yaml:"healthCheckPeriod"`
	ApplicationName   string        `yaml:"applicationName"`
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Storage struct {
	Driver string `yaml:"driver"` // postgres|memory
	Seed   string `yaml:"seed"`   // yaml с users/conversations для memory
}

type JWT struct {
	Alg           string        `yaml:"alg"`           // RS256|HS256
	PublicKeyPath string        `yaml:"publicKeyPath"` // для RS256
	Secret        string        `yaml:"secret"`        // для HS256, можно через JWT_SECRET
	Issuer        string        `yaml:"issuer"`
	Audience      string        `yaml:"audience"`
	ClockSkew     time.Duration `yaml:"clockSkew"`
}

func (j JWT) Validate() error {
	switch j.Alg {
	case "RS256":
		if j.PublicKeyPath == "" {
			return errors.New("security.jwt.publicKeyPath is required for RS256")
		}
	case "HS256":
		if j.Secret == "" {
			return errors.New("security.jwt.secret (or JWT_SECRET) is required for HS256")
		}
	default:
		return fmt.Errorf("security.jwt.alg %q is not supported", j.Alg)
	}
	if j.ClockSkew < 0 || j.ClockSkew > time.Minute {
		return errors.New("security.jwt.clockSkew must be in [0..1m]")
	}
	return nil
}

type Security struct {
	JWT JWT `yaml:"jwt"`
}

type WS struct {
	PingPeriod      time.Duration `yaml:"pingPeriod"`
	WriteWait       time.Duration `yaml:"writeWait"`
	MaxMessageBytes int64         `yaml:"maxMessageBytes"`
	SendBuffer      int           `yaml:"sendBuffer"`
	InboundBuffer   int           `yaml:"inboundBuffer"`
	EventsPerSecond float64       `yaml:"eventsPerSecond"`
	EventBurst      int           `yaml:"eventBurst"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"` // пусто: любые
}

type Meetings struct {
	// Сколько помнить завершённые встречи, чтобы глушить запоздалый signaling.
	EndedRetention time.Duration `yaml:"endedRetention"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	GRPC     GRPC     `yaml:"grpc"`
	Logging  Logging  `yaml:"logging"`
	Postgres Postgres `yaml:"postgres"`
	Storage  Storage  `yaml:"storage"`
	Security Security `yaml:"security"`
	WS       WS       `yaml:"ws"`
	WebRTC   WebRTC   `yaml:"webrtc"`
	Meetings Meetings `yaml:"meetings"`
	CORS     CORS     `yaml:"cors"`
}

func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if s := strings.TrimSpace(os.Getenv("JWT_SECRET")); s != "" && cfg.Security.JWT.Secret == "" {
		cfg.Security.JWT.Secret = s
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.GRPC.Addr == "" {
		return errors.New("grpc.addr is required")
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverPostgres
	}
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver)
	}

	if c.Security.JWT.Alg == "" {
		c.Security.JWT.Alg = "HS256"
	}
	if err := c.Security.JWT.Validate(); err != nil {
		return err
	}
	if err := c.WebRTC.Validate(); err != nil {
		return err
	}

	// установка дефолтов, если значения не указаны
	if c.Logging.Service == "" {
		c.Logging.Service = "realtime-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.HTTP.ReadHeaderTimeout <= 0 {
		c.HTTP.ReadHeaderTimeout = 5 * time.Second
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.Postgres.ApplicationName == "" {
		c.Postgres.ApplicationName = c.Logging.Service
	}

	if c.WS.PingPeriod <= 0 {
		c.WS.PingPeriod = 15 * time.Second
	}
	if c.WS.WriteWait <= 0 {
		c.WS.WriteWait = 5 * time.Second
	}
	if c.WS.MaxMessageBytes <= 0 {
		c.WS.MaxMessageBytes = 1 << 20
	}
	if c.WS.SendBuffer <= 0 {
		c.WS.SendBuffer = 256
	}
	if c.WS.InboundBuffer <= 0 {
		c.WS.InboundBuffer = 64
	}
	if c.WS.EventsPerSecond <= 0 {
		c.WS.EventsPerSecond = 50
	}
	if c.WS.EventBurst <= 0 {
		c.WS.EventBurst = 100
	}
	if c.Meetings.EndedRetention <= 0 {
		c.Meetings.EndedRetention = 24 * time.Hour
	}
	if len(c.WebRTC.ICEServers) == 0 {
		c.WebRTC.ICEServers = DefaultICEServers()
	}
	return nil
}
