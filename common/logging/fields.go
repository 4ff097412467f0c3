package logging

import "log/slog"

// Common field names for consistent logging across the engine's components.
const (
	FieldService   = "service"
	FieldComponent = "component"
	FieldClass     = "class"
	FieldCategory  = "category"
	FieldEpoch     = "epoch"
	FieldSubject   = "subject"
	FieldSequence  = "sequence_id"
	FieldTransport = "transport"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// Component returns a slog attribute for an engine component name.
func Component(name string) slog.Attr {
	return slog.String(FieldComponent, name)
}

// Class returns a slog attribute for a resource class.
func Class(class string) slog.Attr {
	return slog.String(FieldClass, class)
}

// Category returns a slog attribute for an event category.
func Category(cat string) slog.Attr {
	return slog.String(FieldCategory, cat)
}

// Epoch returns a slog attribute for a session epoch.
func Epoch(epoch uint64) slog.Attr {
	return slog.Uint64(FieldEpoch, epoch)
}

// Subject returns a slog attribute for an event subject key.
func Subject(key string) slog.Attr {
	return slog.String(FieldSubject, key)
}

// Sequence returns a slog attribute for an event sequence id.
func Sequence(seq uint64) slog.Attr {
	return slog.Uint64(FieldSequence, seq)
}

// Transport returns a slog attribute for a channel transport name.
func Transport(name string) slog.Attr {
	return slog.String(FieldTransport, name)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}
