package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func decode(t *testing.T, line []byte) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("parse log line %q: %v", line, err)
	}
	return entry
}

func TestNew_Formats(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"json", `"msg":"region written"`},
		{"", `"msg":"region written"`},
		{"text", "msg=\"region written\""},
		{"console", "region=pending_queries"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			l, err := New(Config{Level: "info", Format: tt.format, Output: &buf})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			l.Info("region written", "region", "pending_queries")
			if !strings.Contains(buf.String(), tt.want) {
				t.Fatalf("output = %q, want it to contain %q", buf.String(), tt.want)
			}
		})
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "warn", Format: "json", Output: &buf})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { SetLevel("info") })

	l.Debug("debug")
	l.Info("info")
	l.Warn("warn")
	l.Error("error")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), buf.String())
	}
	if decode(t, []byte(lines[0]))["level"] != "WARN" {
		t.Fatalf("first line = %s", lines[0])
	}

	buf.Reset()
	SetLevel("debug")
	if GetLevel() != "debug" {
		t.Fatalf("GetLevel() = %q", GetLevel())
	}
	l.Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Fatalf("debug line missing after SetLevel: %q", buf.String())
	}
}

func TestLevels(t *testing.T) {
	tests := []struct {
		in    string
		want  slog.Level
		valid bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if got := ValidLevel(tt.in); got != tt.valid {
			t.Errorf("ValidLevel(%q) = %v, want %v", tt.in, got, tt.valid)
		}
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatal(err)
	}
	l.With("generation", "01J").WithContext(context.Background()).Info("snapshot")
	if got := decode(t, buf.Bytes())["generation"]; got != "01J" {
		t.Fatalf("generation = %v", got)
	}
}

func TestLogger_BytesAsHex(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatal(err)
	}
	l.Slog().Info("header", "raw", []byte{0x52, 0x5a, 0x01, 0x00})
	if got := decode(t, buf.Bytes())["raw"]; got != "525a0100" {
		t.Fatalf("raw = %v, want 525a0100", got)
	}
}

func TestSetDefault(t *testing.T) {
	prev, prevSlog := Default(), slog.Default()
	t.Cleanup(func() {
		SetDefault(prev)
		slog.SetDefault(prevSlog)
	})

	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatal(err)
	}
	SetDefault(l)
	if Default() != l {
		t.Fatal("Default() did not return the new logger")
	}
	slog.Info("via slog default")
	if !strings.Contains(buf.String(), "via slog default") {
		t.Fatalf("slog default not redirected: %q", buf.String())
	}
}
