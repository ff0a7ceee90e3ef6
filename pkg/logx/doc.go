// Package logx is a thin structured-logging layer over zerolog.
//
// It exists so the rest of the codebase can log with typed Field helpers
// without importing zerolog directly, and so sinks (console, file) can be
// reconfigured at runtime from a single place.
package logx
