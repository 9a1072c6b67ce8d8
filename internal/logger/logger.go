// Package logger wraps logrus with a process-wide configured logger.
package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// InitializeAndConfigure sets up the logger with the appropriate configuration
// and log level from environment variables
func InitializeAndConfigure() {

	// Set default formatter
	log.SetFormatter(&logrus.JSONFormatter{})

	// Set output to stdout
	log.SetOutput(os.Stdout)

	// Try to read log level from environment
	configureLogLevel()

}

func configureLogLevel() {
	log.SetLevel(logrus.InfoLevel)

	levelStr := os.Getenv("LOG_LEVEL")
	if levelStr == "" {
		// Defaults to InfoLevel set above
		return
	}

	// Parse the log level string
	level, err := logrus.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		// If parsing fails, log a warning and keep the default
		log.Warnf("Invalid log level '%s', defaulting to 'info'", levelStr)
		return
	}

	log.SetLevel(level)
	log.Infof("Log level set to '%s'", level)

}

// Debug logs a message at the debug level
func Debug(args ...interface{}) {
	log.Debug(args...)
}

// Info logs a message at the Info level
func Info(args ...interface{}) {
	log.Info(args...)
}

// Warn logs a message at the Warn level
func Warn(args ...interface{}) {
	log.Warn(args...)
}

// Error logs a message at the Error level
func Error(args ...interface{}) {
	log.Error(args...)
}

// Fatal logs a message at the Fatal level
func Fatal(args ...interface{}) {
	log.Fatal(args...)
}

// Formatted Logs
//

// Debugf logs a message at the Debugf level
func Debugf(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

// Infof logs a message at the Infof level
func Infof(format string, args ...interface{}) {
	log.Infof(format, args...)
}

// Warnf logs a message at the Warnf level
func Warnf(format string, args ...interface{}) {
	log.Warnf(format, args...)
}

// Errorf logs a message at the Errorf level
func Errorf(format string, args ...interface{}) {
	log.Errorf(format, args...)
}

// Fatalf logs a message at the Fatalf level
func Fatalf(format string, args ...interface{}) {
	log.Fatalf(format, args...)
}

// Log levels with fields

// InfoWithFields logs a message at the info level with additional fields
func InfoWithFields(msg string, fields map[string]interface{}) {
	log.WithFields(logrus.Fields(fields)).Info(msg)
}

// WarnWithFields logs a message at the warn level with additional fields
func WarnWithFields(msg string, fields map[string]interface{}) {
	log.WithFields(logrus.Fields(fields)).Warn(msg)
}

// ErrorWithFields logs a message at the error level with additional fields
func ErrorWithFields(msg string, fields map[string]interface{}) {
	log.WithFields(logrus.Fields(fields)).Error(msg)
}
