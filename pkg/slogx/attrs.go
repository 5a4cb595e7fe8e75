package slogx

import (
	"fmt"
	"log/slog"
)

// Error returns a slog.Attr representing the provided error.
// The attribute key is "error" and the value is the error's message.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// ByteString creates a slog.Attr with the given key and the byte slice rendered as a string.
// Raw envelopes are logged this way.
func ByteString(key string, value []byte) slog.Attr {
	return slog.String(key, string(value))
}

// Stringer creates a slog.Attr with the provided key and the string representation
// of the given fmt.Stringer value.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

const (
	// KeyLoggerName is the key for the component logger name.
	KeyLoggerName = "logger"
	// KeyTopic is the key for a pub/sub topic.
	KeyTopic = "topic"
	// KeyWindow is the key for a window (browsing context) identifier.
	KeyWindow = "window"
)

// LoggerName creates a slog.Attr with the provided logger name.
// The attribute key is defined by KeyLoggerName.
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}

// Topic creates a slog.Attr for a pub/sub topic.
func Topic(topic string) slog.Attr {
	return slog.String(KeyTopic, topic)
}

// Window creates a slog.Attr for a window identifier.
func Window(id string) slog.Attr {
	return slog.String(KeyWindow, id)
}

// Named returns the default logger tagged with the given component name, or
// the provided logger when it is not nil.
func Named(lg *slog.Logger, name string) *slog.Logger {
	if lg != nil {
		return lg
	}
	return slog.Default().With(LoggerName(name))
}
