package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// setup wraps Setup and restores the process default logger after the test.
func setup(t *testing.T, cfg Config) (*slog.Logger, error) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	return Setup(cfg)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"ERROR", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run("level "+tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"", FormatJSON, false},
		{"text", FormatText, false},
		{"TEXT", FormatText, false},
		{"yaml", FormatJSON, true},
	}

	for _, tt := range tests {
		t.Run("format "+tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSetup_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := setup(t, Config{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	logger.Info("gate opened", "route", "/api/widgets")

	var record map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if record["msg"] != "gate opened" {
		t.Errorf("msg = %q, want %q", record["msg"], "gate opened")
	}
	if record["route"] != "/api/widgets" {
		t.Errorf("route = %q, want %q", record["route"], "/api/widgets")
	}
}

func TestSetup_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := setup(t, Config{Format: "text", Writer: &buf})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	logger.Info("gate opened", "route", "/api/widgets")

	out := buf.String()
	if !strings.Contains(out, "msg=") {
		t.Errorf("text output missing msg key: %s", out)
	}
	if !strings.Contains(out, "route=/api/widgets") {
		t.Errorf("text output missing route field: %s", out)
	}
}

func TestSetup_LevelFiltersRecords(t *testing.T) {
	var buf bytes.Buffer
	logger, err := setup(t, Config{Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	logger.Info("quiet")
	if buf.Len() != 0 {
		t.Errorf("info record emitted at warn level: %s", buf.String())
	}

	logger.Warn("loud")
	if buf.Len() == 0 {
		t.Error("warn record suppressed at warn level")
	}
}

func TestSetup_InstallsDefault(t *testing.T) {
	var buf bytes.Buffer
	if _, err := setup(t, Config{Writer: &buf}); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	slog.Info("via default")
	if !strings.Contains(buf.String(), "via default") {
		t.Errorf("default logger not installed: %s", buf.String())
	}
}

func TestSetup_RejectsBadConfig(t *testing.T) {
	if _, err := setup(t, Config{Level: "shout"}); err == nil {
		t.Error("expected error for bad level")
	}
	if _, err := setup(t, Config{Format: "xml"}); err == nil {
		t.Error("expected error for bad format")
	}
}
