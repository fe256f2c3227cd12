package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"json":  FormatJSON,
		"JSON":  FormatJSON,
		"text":  FormatText,
		"tint":  FormatText,
		"human": FormatText,
		"":      FormatAuto,
		"xml":   FormatAuto,
	}
	for in, want := range tests {
		if got := ParseFormat(in); got != want {
			t.Errorf("ParseFormat(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveLevel(t *testing.T) {
	tests := []struct {
		name  string
		debug bool
		level string
		want  slog.Level
	}{
		{"default", false, "", slog.LevelError},
		{"explicit", false, "warn", slog.LevelWarn},
		{"debug wins", true, "error", slog.LevelDebug},
		{"garbage", false, "loud", DefaultLevel},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolveLevel(tc.debug, tc.level); got != tc.want {
				t.Fatalf("ResolveLevel(%v, %q) = %v, want %v", tc.debug, tc.level, got, tc.want)
			}
		})
	}
}

func TestNewHandlerJSONWhenNotTTY(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, FormatAuto, slog.LevelInfo))
	log.Debug("hidden")
	log.Info("shown", "k", "v")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not a single JSON record: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "shown" || rec["k"] != "v" {
		t.Fatalf("record = %v", rec)
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil).Enabled(context.Background(), slog.LevelError) {
		t.Fatal("discard logger reports enabled")
	}
	l := slog.Default()
	if OrDiscard(l) != l {
		t.Fatal("non-nil logger replaced")
	}
}
