// Watchdeck - Personal Media Dashboard Session and Sync Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdeck

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestInitAndLevels(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf, Timestamp: false})
	defer Init(DefaultConfig())

	Debug().Str("k", "v").Msg("debug message")
	Info().Msg("info message")

	out := buf.String()
	if !strings.Contains(out, "debug message") {
		t.Errorf("output missing debug message: %s", out)
	}
	if !strings.Contains(out, "info message") {
		t.Errorf("output missing info message: %s", out)
	}
	if !strings.Contains(out, `"k":"v"`) {
		t.Errorf("output missing structured field: %s", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Format: "json", Output: &buf, Timestamp: false})
	defer Init(DefaultConfig())

	Info().Msg("filtered")
	Warn().Msg("kept")

	out := buf.String()
	if strings.Contains(out, "filtered") {
		t.Errorf("info message emitted at warn level: %s", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn message missing: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSetLogger(t *testing.T) {
	orig := Logger()
	defer SetLogger(orig)

	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))

	Info().Msg("replaced")
	if !strings.Contains(buf.String(), "replaced") {
		t.Errorf("replaced logger did not capture output: %s", buf.String())
	}
}

func TestRequestIDContext(t *testing.T) {
	id := GenerateRequestID()
	if id == "" {
		t.Fatal("GenerateRequestID returned empty string")
	}

	ctx := ContextWithRequestID(context.Background(), id)
	if got := RequestIDFromContext(ctx); got != id {
		t.Errorf("RequestIDFromContext = %q, want %q", got, id)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("RequestIDFromContext on empty ctx = %q, want empty", got)
	}
}

func TestCtxAddsRequestID(t *testing.T) {
	orig := Logger()
	defer SetLogger(orig)

	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))

	ctx := ContextWithRequestID(context.Background(), "req-123")
	Ctx(ctx).Info().Msg("with id")

	if !strings.Contains(buf.String(), "req-123") {
		t.Errorf("output missing request id: %s", buf.String())
	}
}

func TestSlogHandlerWritesThroughZerolog(t *testing.T) {
	orig := Logger()
	defer SetLogger(orig)

	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))

	slogger := slog.New(NewSlogHandler())
	slogger.Info("supervisor event", slog.String("service", "hub"))

	out := buf.String()
	if !strings.Contains(out, "supervisor event") {
		t.Errorf("output missing slog message: %s", out)
	}
	if !strings.Contains(out, `"service":"hub"`) {
		t.Errorf("output missing slog attr: %s", out)
	}
}

func TestSlogHandlerGroups(t *testing.T) {
	orig := Logger()
	defer SetLogger(orig)

	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))

	slogger := slog.New(NewSlogHandler()).WithGroup("suture")
	slogger.Warn("backoff", slog.Int("failures", 3))

	if !strings.Contains(buf.String(), `"suture.failures":3`) {
		t.Errorf("output missing grouped attr: %s", buf.String())
	}
}

func TestWithComponent(t *testing.T) {
	orig := Logger()
	defer SetLogger(orig)

	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))

	l := WithComponent("cache")
	l.Info().Msg("sweep done")

	if !strings.Contains(buf.String(), `"component":"cache"`) {
		t.Errorf("output missing component field: %s", buf.String())
	}
}
