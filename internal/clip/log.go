package clip

import (
	"context"
	"log/slog"
)

const previewRunes = 120

// LogRead logs a completed read at INFO (backend, types) and, when DEBUG is
// enabled, a preview of the text.
func LogRead(ctx context.Context, log *slog.Logger, backend string, types []string, text string) {
	log.InfoContext(ctx, "clipboard read", "backend", backend, "types", types)

	if !log.Enabled(ctx, slog.LevelDebug) {
		return
	}
	log.DebugContext(ctx, "clipboard text", "preview", preview(text), "size_bytes", len(text))
}

func preview(s string) string {
	n := 0
	for i := range s {
		if n == previewRunes {
			return s[:i] + "…"
		}
		n++
	}
	return s
}
