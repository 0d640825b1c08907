package framesocket

import "log/slog"

// Logger is the interface for structured logging.
// *slog.Logger satisfies it; so does any adapter with the same method set.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

func defaultLogger() Logger {
	return slog.Default()
}

// withAttrs returns a Logger that adds attrs to every record.
// A *slog.Logger is extended with With so handlers see the attributes as
// preformatted; other implementations get the pairs prepended per call.
func withAttrs(l Logger, attrs ...any) Logger {
	if len(attrs) == 0 {
		return l
	}
	if sl, ok := l.(*slog.Logger); ok {
		return sl.With(attrs...)
	}
	return attrLogger{next: l, attrs: attrs}
}

type attrLogger struct {
	next  Logger
	attrs []any
}

func (l attrLogger) with(args []any) []any {
	out := make([]any, 0, len(l.attrs)+len(args))
	return append(append(out, l.attrs...), args...)
}

func (l attrLogger) Debug(msg string, args ...any) { l.next.Debug(msg, l.with(args)...) }
func (l attrLogger) Info(msg string, args ...any)  { l.next.Info(msg, l.with(args)...) }
func (l attrLogger) Warn(msg string, args ...any)  { l.next.Warn(msg, l.with(args)...) }
func (l attrLogger) Error(msg string, args ...any) { l.next.Error(msg, l.with(args)...) }
