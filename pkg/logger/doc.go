// Package logger provides the structured logging interface used across xhsdl.
//
// It wraps zerolog. Console output is colored and written to stderr; a file
// sink can be added through config.LoggingConfig.File.
//
//	logger.Initialize(&cfg.Logging)
//	logger.WithField("run_id", id).Info("Collection started")
//
// Components take a Logger in their constructors. Tests pass NewNopLogger or
// a TestLogger to assert on what was logged.
package logger
