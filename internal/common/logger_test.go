package common

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LogLevelDebug, false},
		{"WARN", LogLevelWarn, false},
		{"warning", LogLevelWarn, false},
		{"", LogLevelInfo, false},
		{" error ", LogLevelError, false},
		{"verbose", LogLevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLogLevel(%q) err=%v, wantErr=%v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("ParseLogLevel(%q)=%v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLogLevelToSlog(t *testing.T) {
	if LogLevelDebug.ToSlogLevel() != slog.LevelDebug {
		t.Fatal("debug level mismatch")
	}
	if LogLevel(42).ToSlogLevel() != slog.LevelInfo {
		t.Fatal("unknown level should map to info")
	}
	if LogLevel(42).String() != "info" {
		t.Fatal("unknown level should print as info")
	}
}

func TestTextLoggerMasksPassword(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, LogLevelDebug, LogFormatText)

	logger.WithBackend("postgres").Info("connecting",
		"dsn", "postgres://shop:s3cr3t@db:5432/catalog",
		"password", "s3cr3t",
		"error", errors.New("auth failed: password=s3cr3t"),
	)

	out := buf.String()
	if strings.Contains(out, "s3cr3t") {
		t.Fatalf("log output leaked the password: %s", out)
	}
	if !strings.Contains(out, "backend=postgres") {
		t.Fatalf("expected backend attribute, got %s", out)
	}
}

func TestJSONLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, LogLevelWarn, LogFormatJSON)

	logger.Info("hidden")
	logger.WithMigration("001_create_users").Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record should be filtered: %s", out)
	}
	if !strings.Contains(out, `"migration":"001_create_users"`) {
		t.Fatalf("expected migration attribute, got %s", out)
	}
}

func TestDefaultLogger(t *testing.T) {
	orig := GetLogger()
	t.Cleanup(func() { SetDefaultLogger(orig) })

	var buf bytes.Buffer
	SetDefaultLogger(NewLoggerWithWriter(&buf, LogLevelDebug, LogFormatText))
	SetDefaultLogger(nil)

	GetLogger().Info("hello", "k", "v")
	GetLogger().WithComponent("main").Debug("dbg")
	LogError("boom", errors.New("bad"), "attempt", 2)

	out := buf.String()
	for _, want := range []string{"hello", "dbg", "component=main", "boom", "error=bad", "attempt=2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %s", want, out)
		}
	}
}
