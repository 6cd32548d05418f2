// Package log provides the logging port used by batchship dispatchers.
//
// Dispatchers never write to a process-wide logger. Every engine receives a
// Logger at construction and reports sends, partial rejections, retry
// attempts and dropped items through it. This is the only channel through
// which a caller learns that a record was not delivered.
//
// # Usage
//
// Wrap a zerolog logger:
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//
// Or discard everything:
//
//	logger := log.NewNoopLogger()
//
// Tests that need to assert on what was reported can use MemoryLogger:
//
//	logger := log.NewMemoryLogger()
//	...
//	drops := logger.Count(log.LevelError)
//
// # Custom Loggers
//
// Implement the Logger interface to integrate with your existing
// logging infrastructure:
//
//	type MyLogger struct { ... }
//
//	func (l *MyLogger) Debug(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Info(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Warn(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Error(msg string, fields ...log.Field) { ... }
package log
