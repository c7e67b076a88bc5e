// Package logx wraps zerolog behind a small, slog-like API.
//
// Components hold a Logger by value; loggers created from a Service keep
// working across Apply() reconfigurations (level changes, sink changes).
package logx
