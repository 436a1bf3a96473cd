// Package log is the logging seam used by every instrumental component.
//
// The delivery engine runs on a background goroutine inside the host
// application, so it never writes to stderr on its own. Callers inject a
// [Logger]; the default is [NoopLogger].
//
// # Usage
//
// Wrap zerolog:
//
//	logger := log.NewZerologAdapter(os.Stderr, zerolog.InfoLevel)
//
// Or wrap an existing zerolog.Logger:
//
//	logger := log.NewZerologAdapterWithLogger(zl)
//
// Any other logging library can be used by implementing the four methods of
// [Logger]. Fields are passed as key/value pairs built with the helpers in
// this package ([String], [Int], [Err], ...).
package log
