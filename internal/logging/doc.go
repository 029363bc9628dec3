// Package logging provides a simple leveled logging interface for the
// framepick pipeline.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the process
//
// The log level is configured via the LOG_LEVEL environment variable
// (or DEBUG=1 as a shortcut) and can be overridden at runtime with
// SetLevel.
package logging
