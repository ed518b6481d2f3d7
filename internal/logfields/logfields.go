package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyDocID      = "doc_id"
	KeyTitle      = "title"
	KeyPath       = "path"
	KeyURL        = "url"
	KeyFormat     = "format"
	KeySource     = "source"
	KeyBackend    = "backend"
	KeyOrder      = "order"
	KeyStage      = "stage"
	KeyStatus     = "status"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func DocID(id string) slog.Attr       { return slog.String(KeyDocID, id) }
func Title(t string) slog.Attr        { return slog.String(KeyTitle, t) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Format(f string) slog.Attr       { return slog.String(KeyFormat, f) }
func Source(s string) slog.Attr       { return slog.String(KeySource, s) }
func Backend(b string) slog.Attr      { return slog.String(KeyBackend, b) }
func Order(o int) slog.Attr           { return slog.Int(KeyOrder, o) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
