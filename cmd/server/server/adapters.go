package server

import (
	"github.com/rs/zerolog"

	"github.com/quillhq/quill/pkg/services"
)

// loggerAdapter adapts zerolog.Logger to the services.Logger interface.
type loggerAdapter struct {
	logger zerolog.Logger
}

func newLoggerAdapter(logger zerolog.Logger) services.Logger {
	return &loggerAdapter{logger: logger}
}

func (l *loggerAdapter) Debug(msg string, keysAndValues ...interface{}) {
	l.withFields(l.logger.Debug(), keysAndValues).Msg(msg)
}

func (l *loggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	l.withFields(l.logger.Info(), keysAndValues).Msg(msg)
}

func (l *loggerAdapter) Warn(msg string, keysAndValues ...interface{}) {
	l.withFields(l.logger.Warn(), keysAndValues).Msg(msg)
}

func (l *loggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	l.withFields(l.logger.Error(), keysAndValues).Msg(msg)
}

func (l *loggerAdapter) withFields(evt *zerolog.Event, keysAndValues []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		switch v := keysAndValues[i+1].(type) {
		case string:
			evt = evt.Str(key, v)
		case int:
			evt = evt.Int(key, v)
		case int64:
			evt = evt.Int64(key, v)
		case float64:
			evt = evt.Float64(key, v)
		case bool:
			evt = evt.Bool(key, v)
		case error:
			evt = evt.AnErr(key, v)
		default:
			evt = evt.Interface(key, v)
		}
	}
	return evt
}
