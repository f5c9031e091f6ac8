// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - convenience functions (Infof, WarnKV, ErrorKV, etc.).
//
// The builder passes a context through every packaging step and extracts the
// logger from it, so per-profile fields follow each archive build.
package logger
