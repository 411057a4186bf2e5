package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/seagrayinc/irremote/pkg/waveform"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Transmit.FrequencyHz != 2300 {
		t.Fatalf("default frequency %d", cfg.Transmit.FrequencyHz)
	}
	if cfg.Device.VendorID != 0x20A0 || cfg.Device.ProductTag != "flirc.tv" {
		t.Fatalf("default device %+v", cfg.Device)
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
device:
  vendor_id: 0x20A0
transmit:
  repeats: 3
catalog:
  variant: compact
input:
  devices: [/dev/input/event4]
  keys:
    28: Select
    1: Power
logging:
  level: debug
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Transmit.Repeats != 3 {
		t.Errorf("repeats = %d", cfg.Transmit.Repeats)
	}
	if cfg.Transmit.FrequencyHz != 2300 {
		t.Errorf("frequency default lost: %d", cfg.Transmit.FrequencyHz)
	}
	if cfg.Input.Keys[28] != "Select" || cfg.Input.Keys[1] != "Power" {
		t.Errorf("keys = %v", cfg.Input.Keys)
	}
	if cfg.Input.WheelUp != "Up" {
		t.Errorf("wheel_up default lost: %q", cfg.Input.WheelUp)
	}

	table, err := cfg.LoadTable()
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if _, err := table.Lookup(waveform.Record); err == nil {
		t.Errorf("compact table should not contain Record")
	}
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse([]byte("# nothing set\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Transmit.FrequencyHz != 2300 || cfg.IPC.SocketPath == "" {
		t.Fatalf("defaults not kept: %+v", cfg)
	}
}

func TestParseRejects(t *testing.T) {
	tests := map[string]string{
		"unknown field":    "transmit:\n  carrier: 38000\n",
		"trailing doc":     "logging:\n  level: info\n---\nlogging:\n  level: debug\n",
		"repeats overflow": "transmit:\n  repeats: 300\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(in)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"vendor", func(c *Config) { c.Device.VendorID = 0 }, "vendor_id"},
		{"report length", func(c *Config) { c.Device.ReportLength = 0 }, "report_length"},
		{"frequency", func(c *Config) { c.Transmit.FrequencyHz = 0 }, "frequency_hz"},
		{"queue", func(c *Config) { c.Transmit.QueueSize = 0 }, "queue_size"},
		{"variant", func(c *Config) { c.Catalog.Variant = "tiny" }, "catalog.variant"},
		{"wheel action", func(c *Config) { c.Input.WheelUp = "Scroll" }, "input.wheel_up"},
		{"key action", func(c *Config) { c.Input.Keys = map[uint16]string{30: "Eject"} }, "input.keys[30]"},
		{"slow threshold zero", func(c *Config) { c.Transmit.SlowThresholdMS = 0 }, "slow_threshold_ms"},
		{"key outside compact", func(c *Config) {
			c.Catalog.Variant = string(waveform.VariantCompact)
			c.Input.Keys = map[uint16]string{28: "Record"}
		}, "input.keys[28]"},
		{"wheel outside compact", func(c *Config) {
			c.Catalog.Variant = string(waveform.VariantCompact)
			c.Input.WheelUp = "Record"
		}, "input.wheel_up"},
		{"missing catalog file", func(c *Config) { c.Catalog.File = filepath.Join(t.TempDir(), "none.yml") }, "catalog"},
		{"empty device", func(c *Config) { c.Input.Devices = []string{""} }, "input.devices[0]"},
		{"nats subjects", func(c *Config) { c.NATS.URL = "nats://localhost:4222"; c.NATS.ResultSubject = "" }, "nats"},
		{"no surface", func(c *Config) { c.IPC.SocketPath = "" }, "no input surface"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestFlagOverrides(t *testing.T) {
	cfg := Default()
	repeats := uint(3)
	freq := uint(38000)
	level := "debug"
	dev := "/dev/input/event9"

	if err := (FlagOverrides{Repeats: &repeats, FrequencyHz: &freq, LogLevel: &level, InputDevice: &dev}).Apply(&cfg); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if cfg.Transmit.Repeats != 3 || cfg.Transmit.FrequencyHz != 38000 || cfg.Logging.Level != "debug" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.Input.Devices) != 1 || cfg.Input.Devices[0] != dev {
		t.Fatalf("devices = %v", cfg.Input.Devices)
	}

	maxRepeats := uint(255)
	maxFreq := uint(65535)
	if err := (FlagOverrides{Repeats: &maxRepeats, FrequencyHz: &maxFreq}).Apply(&cfg); err != nil {
		t.Fatalf("Apply at upper bounds: %v", err)
	}
	if cfg.Transmit.Repeats != 255 || cfg.Transmit.FrequencyHz != 65535 {
		t.Fatalf("upper bounds not applied: %+v", cfg.Transmit)
	}
}

func TestFlagOverridesRange(t *testing.T) {
	u := func(v uint) *uint { return &v }
	tests := []struct {
		name string
		o    FlagOverrides
		want string
	}{
		{"repeats", FlagOverrides{Repeats: u(300)}, "-repeats"},
		{"frequency high", FlagOverrides{FrequencyHz: u(70000)}, "-frequency"},
		{"frequency zero", FlagOverrides{FrequencyHz: u(0)}, "-frequency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			err := tt.o.Apply(&cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
			if cfg.Transmit != Default().Transmit {
				t.Fatalf("transmit changed on error: %+v", cfg.Transmit)
			}
		})
	}
}

func TestLoadFileWithCatalog(t *testing.T) {
	dir := t.TempDir()
	catalog := filepath.Join(dir, "codes.yml")
	if err := os.WriteFile(catalog, []byte("actions:\n  - name: Power\n    primary: [1, 2]\n    alternate: [3, 4]\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "irremote.yml")
	if err := os.WriteFile(path, []byte("catalog:\n  file: "+catalog+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	table, err := cfg.LoadTable()
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if table.Len() != 1 {
		t.Fatalf("table has %d actions", table.Len())
	}
	// The default wheel mappings are not in a Power-only catalog.
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "not in the catalog") {
		t.Fatalf("Validate = %v, want catalog mapping error", err)
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.yml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
