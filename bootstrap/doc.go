// Package bootstrap runs a service through a uniform lifecycle: validated
// typed config, ordered component start, configure callbacks, a ready check,
// then a block on SIGINT or SIGTERM followed by graceful shutdown with
// OnStop hooks.
package bootstrap
