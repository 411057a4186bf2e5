// Package config loads the irremote YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/seagrayinc/irremote/internal/logging"
	"github.com/seagrayinc/irremote/pkg/dispatch"
	"github.com/seagrayinc/irremote/pkg/session"
	"github.com/seagrayinc/irremote/pkg/waveform"
)

// Config is the top-level YAML configuration.
//
// Defaults live in Default so the rest of the code can assume a
// well-formed config once Validate has passed.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	Transmit TransmitConfig `yaml:"transmit"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Input    InputConfig    `yaml:"input"`
	IPC      IPCConfig      `yaml:"ipc"`
	HTTP     HTTPConfig     `yaml:"http"`
	NATS     NATSConfig     `yaml:"nats"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type DeviceConfig struct {
	VendorID     uint16 `yaml:"vendor_id"`
	ProductTag   string `yaml:"product_tag"`
	ReportID     uint8  `yaml:"report_id"`
	ReportLength int    `yaml:"report_length"`
}

type TransmitConfig struct {
	FrequencyHz     uint16 `yaml:"frequency_hz"`
	Repeats         uint8  `yaml:"repeats"`
	QueueSize       int    `yaml:"queue_size"`
	SlowThresholdMS int    `yaml:"slow_threshold_ms"`
}

type CatalogConfig struct {
	Variant string `yaml:"variant"` // "full" or "compact"
	File    string `yaml:"file,omitempty"`
}

// InputConfig maps physical gestures from Linux input devices to actions.
type InputConfig struct {
	Devices     []string          `yaml:"devices,omitempty"`
	WheelUp     string            `yaml:"wheel_up"`
	WheelDown   string            `yaml:"wheel_down"`
	MiddleClick string            `yaml:"middle_click"`
	Keys        map[uint16]string `yaml:"keys,omitempty"` // evdev key code -> action
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	Listen         string   `yaml:"listen"` // empty disables the HTTP surface
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
	JWTSecret      string   `yaml:"jwt_secret,omitempty"` // empty disables auth
}

type NATSConfig struct {
	URL           string `yaml:"url"` // empty disables NATS
	ActionSubject string `yaml:"action_subject"`
	ResultSubject string `yaml:"result_subject"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns a fully-populated Config.
func Default() Config {
	return Config{
		Device: DeviceConfig{
			VendorID:     session.FlircVID,
			ProductTag:   session.FlircProductTag,
			ReportID:     session.DefaultReportID,
			ReportLength: session.DefaultReportLength,
		},
		Transmit: TransmitConfig{
			FrequencyHz:     dispatch.DefaultFrequencyHz,
			Repeats:         0,
			QueueSize:       dispatch.DefaultQueueSize,
			SlowThresholdMS: int(dispatch.DefaultSlowThreshold / time.Millisecond),
		},
		Catalog: CatalogConfig{
			Variant: string(waveform.VariantFull),
		},
		Input: InputConfig{
			WheelUp:     waveform.Up.String(),
			WheelDown:   waveform.Down.String(),
			MiddleClick: waveform.Select.String(),
		},
		IPC: IPCConfig{
			SocketPath: "/tmp/irremote.sock",
		},
		NATS: NATSConfig{
			ActionSubject: "irremote.actions",
			ResultSubject: "irremote.transmissions",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFile reads a YAML config file on top of the defaults. Unknown fields
// are rejected.
func LoadFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes on top of the defaults.
func Parse(b []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace and comments may follow the document.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides carries values from command-line flags. A nil pointer
// means the flag was not set.
type FlagOverrides struct {
	LogLevel       *string
	Repeats        *uint
	FrequencyHz    *uint
	CatalogVariant *string
	CatalogFile    *string
	InputDevice    *string
	SocketPath     *string
	HTTPListen     *string
	NATSURL        *string
}

// Apply merges the overrides into cfg. Numeric flags outside the range
// of their config field are rejected.
func (o FlagOverrides) Apply(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.Repeats != nil {
		if *o.Repeats > math.MaxUint8 {
			return fmt.Errorf("-repeats %d out of range 0..%d", *o.Repeats, math.MaxUint8)
		}
		cfg.Transmit.Repeats = uint8(*o.Repeats)
	}
	if o.FrequencyHz != nil {
		if *o.FrequencyHz == 0 || *o.FrequencyHz > math.MaxUint16 {
			return fmt.Errorf("-frequency %d out of range 1..%d", *o.FrequencyHz, math.MaxUint16)
		}
		cfg.Transmit.FrequencyHz = uint16(*o.FrequencyHz)
	}
	if o.CatalogVariant != nil {
		cfg.Catalog.Variant = *o.CatalogVariant
	}
	if o.CatalogFile != nil {
		cfg.Catalog.File = *o.CatalogFile
	}
	if o.InputDevice != nil {
		cfg.Input.Devices = []string{*o.InputDevice}
	}
	if o.SocketPath != nil {
		cfg.IPC.SocketPath = *o.SocketPath
	}
	if o.HTTPListen != nil {
		cfg.HTTP.Listen = *o.HTTPListen
	}
	if o.NATSURL != nil {
		cfg.NATS.URL = *o.NATSURL
	}
	return nil
}

// Validate checks config invariants and returns a user-friendly error.
func (c *Config) Validate() error {
	if c.Device.VendorID == 0 {
		return errors.New("device.vendor_id must not be zero")
	}
	if c.Device.ReportLength <= 0 || c.Device.ReportLength > 1024 {
		return errors.New("device.report_length must be between 1 and 1024")
	}

	if c.Transmit.FrequencyHz == 0 {
		return errors.New("transmit.frequency_hz must be > 0")
	}
	if c.Transmit.QueueSize <= 0 {
		return errors.New("transmit.queue_size must be > 0")
	}
	if c.Transmit.SlowThresholdMS <= 0 {
		return errors.New("transmit.slow_threshold_ms must be > 0")
	}

	switch waveform.Variant(c.Catalog.Variant) {
	case waveform.VariantFull, waveform.VariantCompact:
	default:
		return fmt.Errorf("catalog.variant must be %q or %q", waveform.VariantFull, waveform.VariantCompact)
	}

	table, err := c.LoadTable()
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	known := make(map[waveform.Action]bool, table.Len())
	for _, a := range table.Actions() {
		known[a] = true
	}
	mapped := func(name string) error {
		a, err := waveform.ParseAction(name)
		if err != nil {
			return err
		}
		if !known[a] {
			return fmt.Errorf("action %q is not in the catalog", name)
		}
		return nil
	}

	for field, name := range map[string]string{
		"input.wheel_up":     c.Input.WheelUp,
		"input.wheel_down":   c.Input.WheelDown,
		"input.middle_click": c.Input.MiddleClick,
	} {
		if name == "" {
			continue
		}
		if err := mapped(name); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}
	for code, name := range c.Input.Keys {
		if err := mapped(name); err != nil {
			return fmt.Errorf("input.keys[%d]: %w", code, err)
		}
	}
	for i, dev := range c.Input.Devices {
		if dev == "" {
			return fmt.Errorf("input.devices[%d] is empty", i)
		}
	}

	if c.NATS.URL != "" && (c.NATS.ActionSubject == "" || c.NATS.ResultSubject == "") {
		return errors.New("nats.action_subject and nats.result_subject must be set when nats.url is set")
	}

	if c.IPC.SocketPath == "" && c.HTTP.Listen == "" && c.NATS.URL == "" && len(c.Input.Devices) == 0 {
		return errors.New("no input surface configured: set ipc.socket_path, http.listen, nats.url or input.devices")
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// SlowThreshold converts the millisecond setting.
func (c *Config) SlowThreshold() time.Duration {
	return time.Duration(c.Transmit.SlowThresholdMS) * time.Millisecond
}

// LoadTable builds the waveform table: the catalog file when set,
// otherwise the built-in variant.
func (c *Config) LoadTable() (*waveform.Table, error) {
	if c.Catalog.File != "" {
		return waveform.LoadCatalogFile(ExpandPath(c.Catalog.File))
	}
	return waveform.BuiltinTable(waveform.Variant(c.Catalog.Variant))
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
