// Package logger provides structured logging for picoretain: an slog-based
// logger with JSON and text output whose level can be changed at runtime.
// Byte slices are rendered as hex.
//
// Components that only need a *slog.Logger take one directly; Logger.Slog
// bridges the two.
package logger
