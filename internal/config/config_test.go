package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/xtxerr/aprs2influxdb/internal/errors"
)

func TestParseBool(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"t", true},
		{"T", true},
		{"true", true},
		{"TRUE", true},
		{" True ", true},
		{"1", true},
		{"", false},
		{"yes", false},
		{"0", false},
		{"false", false},
		{"on", false},
	}
	for _, tt := range tests {
		if got := ParseBool(tt.in); got != tt.want {
			t.Errorf("ParseBool(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30", 30 * time.Second, false},
		{"10:00", 10 * time.Minute, false},
		{"01:02:03", time.Hour + 2*time.Minute + 3*time.Second, false},
		{"1:2:3", time.Hour + 2*time.Minute + 3*time.Second, false},
		{"5.5", 5*time.Second + 500*time.Millisecond, false},
		{"00:01.000250", time.Second + 250*time.Microsecond, false},
		{"1:2:3:4", 0, true},
		{"", 0, true},
		{"abc", 0, true},
		{"24:00:00", 0, true},
		{"60:00", 0, true},
		{"100", 0, true},
		{"5.1234567", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseInterval(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseInterval(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			if !errors.Is(err, errors.ErrInvalidInterval) {
				t.Errorf("ParseInterval(%q) error %v is not ErrInvalidInterval", tt.in, err)
			}
			continue
		}
		if got != tt.want {
			t.Errorf("ParseInterval(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatInterval(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{10 * time.Minute, "0:10:00"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
		{1500 * time.Millisecond, "0:00:01.5"},
	}
	for _, tt := range tests {
		if got := FormatInterval(tt.in); got != tt.want {
			t.Errorf("FormatInterval(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(NewMapEnvSource(nil))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.APRS.Server != "rotate.aprs.net" {
		t.Errorf("Server = %q", cfg.APRS.Server)
	}
	if cfg.APRS.Port != 14580 {
		t.Errorf("Port = %d", cfg.APRS.Port)
	}
	if cfg.APRS.Callsign != "N0CALL" {
		t.Errorf("Callsign = %q", cfg.APRS.Callsign)
	}
	if cfg.APRS.HeartbeatInterval != 10*time.Minute {
		t.Errorf("HeartbeatInterval = %v", cfg.APRS.HeartbeatInterval)
	}
	if cfg.Storage.URL != "http://influxdb:8086" {
		t.Errorf("URL = %q", cfg.Storage.URL)
	}
	if cfg.Storage.Org != "aprs2influxdb" || cfg.Storage.Bucket != "aprs2influxdb" {
		t.Errorf("Org/Bucket = %q/%q", cfg.Storage.Org, cfg.Storage.Bucket)
	}
	if cfg.Log.SlogLevel() != slog.LevelDebug {
		t.Errorf("log level = %v", cfg.Log.SlogLevel())
	}
}

func TestLoadEnvironment(t *testing.T) {
	env := NewMapEnvSource(map[string]string{
		KeyAPRSServer:            "euro.aprs2.net",
		KeyAPRSPort:              "10152",
		KeyAPRSCallsign:          "DL1ABC-10",
		KeyAPRSFilter:            "r/50.0/8.0/100",
		KeyAPRSHeartbeatInterval: "00:05:00",
		KeyInfluxToken:           "secret",
		KeyLogLevel:              "WARNING",
		KeyLogJSON:               "T",
	})

	cfg, err := Load(env)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APRS.Addr() != "euro.aprs2.net:10152" {
		t.Errorf("Addr = %q", cfg.APRS.Addr())
	}
	if cfg.APRS.Filter != "r/50.0/8.0/100" {
		t.Errorf("Filter = %q", cfg.APRS.Filter)
	}
	if cfg.APRS.HeartbeatInterval != 5*time.Minute {
		t.Errorf("HeartbeatInterval = %v", cfg.APRS.HeartbeatInterval)
	}
	if cfg.Storage.Token != "secret" {
		t.Errorf("Token = %q", cfg.Storage.Token)
	}
	if !cfg.Log.JSON {
		t.Error("JSON = false, want true")
	}
	if cfg.Log.SlogLevel() != slog.LevelWarn {
		t.Errorf("log level = %v", cfg.Log.SlogLevel())
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aprs2influxdb.yaml")
	data := []byte("aprs:\n  server: file.example\n  port: 20000\n  callsign: FILE\ninfluxdb_bucket: from-file\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	file, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	env := NewMapEnvSource(map[string]string{
		KeyAPRSServer: "env.example",
		KeyAPRSPort:   "30000",
	})

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags := BindFlags(fs)
	if err := fs.Parse([]string{"--aprs-server", "flag.example"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cfg, err := Load(flags, env, file)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.APRS.Server != "flag.example" {
		t.Errorf("Server = %q, want flag value", cfg.APRS.Server)
	}
	if cfg.APRS.Port != 30000 {
		t.Errorf("Port = %d, want env value", cfg.APRS.Port)
	}
	if cfg.APRS.Callsign != "FILE" {
		t.Errorf("Callsign = %q, want file value", cfg.APRS.Callsign)
	}
	if cfg.Storage.Bucket != "from-file" {
		t.Errorf("Bucket = %q, want file value", cfg.Storage.Bucket)
	}
	if cfg.Storage.Org != "aprs2influxdb" {
		t.Errorf("Org = %q, want default", cfg.Storage.Org)
	}
}

func TestLogJSONFlagWithoutValue(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags := BindFlags(fs)
	if err := fs.Parse([]string{"--log-json"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg, err := Load(flags, NewMapEnvSource(nil))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Log.JSON {
		t.Error("JSON = false, want true")
	}
}

func TestLoadFileExpandsEnv(t *testing.T) {
	t.Setenv("APRS_TEST_TOKEN", "expanded")

	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, []byte("influxdb_token: ${APRS_TEST_TOKEN}\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	file, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if v, ok := file.Lookup(KeyInfluxToken); !ok || v != "expanded" {
		t.Errorf("token = %q, %v", v, ok)
	}
}

func TestLoadCollectsErrors(t *testing.T) {
	file, err := ParseFile("bad.yaml", []byte("aprs_server: x\nnot_a_key: 1\n"))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	env := NewMapEnvSource(map[string]string{
		KeyAPRSPort:              "many",
		KeyAPRSHeartbeatInterval: "1:2:3:4",
		KeyStorageBackend:        "sqlite",
		KeyLogLevel:              "LOUD",
	})

	_, err = Load(env, file)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.IsValidation(err) {
		t.Errorf("error %v is not a validation error", err)
	}
	if !errors.Is(err, errors.ErrInvalidInterval) {
		t.Errorf("error %v does not carry ErrInvalidInterval", err)
	}
	for _, want := range []string{"APRS_PORT", "APRS_HEARTBEAT_INTERVAL", "STORAGE_BACKEND", "LOG_LEVEL", "NOT_A_KEY"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %s:\n%v", want, err)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"duckdb without url", func(c *Config) { c.Storage.Backend = BackendDuckDB; c.Storage.URL = "" }, true},
		{"port zero", func(c *Config) { c.APRS.Port = 0 }, false},
		{"empty callsign", func(c *Config) { c.APRS.Callsign = "" }, false},
		{"auto passcode", func(c *Config) { c.APRS.Passcode = PasscodeAuto }, true},
		{"bad passcode", func(c *Config) { c.APRS.Passcode = "letmein" }, false},
		{"zero heartbeat", func(c *Config) { c.APRS.HeartbeatInterval = 0 }, false},
		{"max below initial", func(c *Config) { c.APRS.Reconnect.Max = time.Millisecond }, false},
		{"jitter above one", func(c *Config) { c.APRS.Reconnect.Jitter = 1.5 }, false},
		{"relative url", func(c *Config) { c.Storage.URL = "influxdb:8086" }, false},
		{"empty bucket", func(c *Config) { c.Storage.Bucket = "" }, false},
		{"metrics address", func(c *Config) { c.MetricsListen = ":9108" }, true},
		{"bad metrics address", func(c *Config) { c.MetricsListen = "9108" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestPrintRedactsToken(t *testing.T) {
	cfg := Default()
	cfg.Storage.Token = "super-secret-token"

	var buf bytes.Buffer
	cfg.Print(slog.New(slog.NewTextHandler(&buf, nil)))

	out := buf.String()
	if strings.Contains(out, "super-secret-token") {
		t.Fatalf("token leaked:\n%s", out)
	}
	for _, want := range []string{"INFLUXDB_TOKEN: ********", "APRS_HEARTBEAT_INTERVAL: 0:10:00", "APRS_SERVER: rotate.aprs.net"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}
