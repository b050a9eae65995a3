// Package logger wraps a zap sugared logger for the device.
//
// Loggers travel in the context: each loop names its own with WithName and
// tags per-alert lines with WithKV, so every line says which loop wrote it.
// Contexts without a logger fall back to the process-wide one, whose level
// is set once at startup.
package logger
