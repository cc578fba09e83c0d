package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/forceviz/forceviz/internal/core/colorgrad"
	"github.com/forceviz/forceviz/internal/core/observability/log"
	"github.com/forceviz/forceviz/internal/core/sensorfield"
	"gopkg.in/yaml.v3"
)

// Config is the whole application configuration as read from YAML.
type Config struct {
	Ramp    RampConfig    `yaml:"ramp"`
	Field   FieldConfig   `yaml:"field"`
	Sliders SlidersConfig `yaml:"sliders"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
}

// RampConfig holds the arrow gradient. Colors are six digit hex strings.
type RampConfig struct {
	Low       string  `yaml:"low"`
	High      string  `yaml:"high"`
	Alpha     float64 `yaml:"alpha"`
	Threshold float64 `yaml:"threshold"`
}

type FieldConfig struct {
	StalePolicy string `yaml:"stale_policy"`
	TickRate    int    `yaml:"tick_rate"`
}

type RangeConfig struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

type SlidersConfig struct {
	Force     RangeConfig `yaml:"force"`
	Threshold RangeConfig `yaml:"threshold"`
}

// ServerConfig holds the HTTP/websocket listener and the optional QUIC frame
// feed. QUICAddr empty disables the feed. Without a certificate pair the feed
// uses a generated self-signed certificate.
type ServerConfig struct {
	ListenAddr   string        `yaml:"listen_addr"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	ClientBuffer int           `yaml:"client_buffer"`
	QUICAddr     string        `yaml:"quic_addr"`
	TLSCertFile  string        `yaml:"tls_cert_file"`
	TLSKeyFile   string        `yaml:"tls_key_file"`
}

// LogConfig selects the log level and format. OutputPaths defaults to
// stderr; entries are file paths or "stdout"/"stderr".
type LogConfig struct {
	Level       string   `yaml:"level"`
	Encoding    string   `yaml:"encoding"`
	OutputPaths []string `yaml:"output_paths"`
	Development bool     `yaml:"development"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	ramp := colorgrad.DefaultRamp()
	return Config{
		Ramp: RampConfig{
			Low:       colorgrad.RGBToHex(ramp.Low),
			High:      colorgrad.RGBToHex(ramp.High),
			Alpha:     ramp.Alpha,
			Threshold: ramp.Threshold,
		},
		Field: FieldConfig{
			StalePolicy: sensorfield.StaleKeep.String(),
			TickRate:    60,
		},
		Sliders: SlidersConfig{
			Force:     RangeConfig{Min: -50, Max: 50},
			Threshold: RangeConfig{Min: 1, Max: 100},
		},
		Server: ServerConfig{
			ListenAddr:   "127.0.0.1:8080",
			WriteTimeout: 5 * time.Second,
			ClientBuffer: 16,
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "json",
		},
	}
}

// Load decodes YAML over the defaults, so a document only needs the keys it
// changes. Unknown keys are rejected. The result is validated.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile reads path with Load. An empty path yields Default.
func LoadFile(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Load(bytes.NewReader(data))
}

// Validate checks every section and joins the problems found.
func (c Config) Validate() error {
	var errs []error
	if _, err := c.Ramp.Build(); err != nil {
		errs = append(errs, err)
	}
	if _, err := sensorfield.ParseStalePolicy(c.Field.StalePolicy); err != nil {
		errs = append(errs, fmt.Errorf("field: %w", err))
	}
	if c.Field.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("field: tick_rate must be positive, got %d", c.Field.TickRate))
	}
	if c.Sliders.Force.Min > c.Sliders.Force.Max {
		errs = append(errs, fmt.Errorf("sliders: force min %v above max %v", c.Sliders.Force.Min, c.Sliders.Force.Max))
	}
	if c.Sliders.Threshold.Min > c.Sliders.Threshold.Max {
		errs = append(errs, fmt.Errorf("sliders: threshold min %v above max %v", c.Sliders.Threshold.Min, c.Sliders.Threshold.Max))
	}
	if c.Sliders.Threshold.Min <= 0 {
		errs = append(errs, fmt.Errorf("sliders: threshold min must be positive, got %v", c.Sliders.Threshold.Min))
	}
	if c.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server: listen_addr is empty"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server: write_timeout must be positive, got %s", c.Server.WriteTimeout))
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		errs = append(errs, errors.New("server: tls_cert_file and tls_key_file must be set together"))
	}
	if c.Server.ClientBuffer <= 0 {
		errs = append(errs, fmt.Errorf("server: client_buffer must be positive, got %d", c.Server.ClientBuffer))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}
	if c.Log.Encoding != "json" && c.Log.Encoding != "console" {
		errs = append(errs, fmt.Errorf("log: unknown encoding %q", c.Log.Encoding))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// Build converts the section into a validated ramp.
func (r RampConfig) Build() (colorgrad.Ramp, error) {
	low, err := colorgrad.HexToRGB(r.Low)
	if err != nil {
		return colorgrad.Ramp{}, fmt.Errorf("ramp low: %w", err)
	}
	high, err := colorgrad.HexToRGB(r.High)
	if err != nil {
		return colorgrad.Ramp{}, fmt.Errorf("ramp high: %w", err)
	}
	ramp := colorgrad.Ramp{Low: low, High: high, Alpha: r.Alpha, Threshold: r.Threshold}
	if err := ramp.Validate(); err != nil {
		return colorgrad.Ramp{}, fmt.Errorf("ramp: %w", err)
	}
	return ramp, nil
}

// FieldOptions turns the ramp, field and slider sections into sensorfield options.
func (c Config) FieldOptions() ([]sensorfield.Option, error) {
	ramp, err := c.Ramp.Build()
	if err != nil {
		return nil, err
	}
	policy, err := sensorfield.ParseStalePolicy(c.Field.StalePolicy)
	if err != nil {
		return nil, err
	}
	return []sensorfield.Option{
		sensorfield.WithRamp(ramp),
		sensorfield.WithStalePolicy(policy),
		sensorfield.WithSliderRanges(
			sensorfield.Range(c.Sliders.Force),
			sensorfield.Range(c.Sliders.Threshold),
		),
	}, nil
}

// TickInterval is the frame period implied by TickRate.
func (c FieldConfig) TickInterval() time.Duration {
	if c.TickRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.TickRate)
}

// Logger builds the logger described by the log section.
func (c LogConfig) Logger() (*log.Logger, error) {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	return log.New(level,
		log.WithEncoding(c.Encoding),
		log.WithOutputPaths(c.OutputPaths...),
		log.WithDevelopment(c.Development))
}
