package logging

import "github.com/rs/zerolog"

// ComponentLogger adapts zerolog.Logger to the narrow leveled key-value
// Logger interfaces the hub and client components accept.
type ComponentLogger struct {
	logger zerolog.Logger
}

// NewComponentLogger wraps a zerolog.Logger.
func NewComponentLogger(logger zerolog.Logger) *ComponentLogger {
	return &ComponentLogger{logger: logger}
}

// Debug logs a debug message with optional key-value pairs.
func (l *ComponentLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(toFields(keysAndValues)).Msg(msg)
}

// Info logs an info message with optional key-value pairs.
func (l *ComponentLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info().Fields(toFields(keysAndValues)).Msg(msg)
}

// Warn logs a warning with optional key-value pairs.
func (l *ComponentLogger) Warn(msg string, keysAndValues ...any) {
	l.logger.Warn().Fields(toFields(keysAndValues)).Msg(msg)
}

// Error logs an error message with optional key-value pairs.
func (l *ComponentLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error().Fields(toFields(keysAndValues)).Msg(msg)
}

// toFields converts key-value pairs to a map for zerolog.
func toFields(keysAndValues []any) map[string]any {
	fields := make(map[string]any, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields[key] = keysAndValues[i+1]
		}
	}
	return fields
}
