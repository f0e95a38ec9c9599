// Package component defines the lifecycle contract shared by the registry,
// the breaker registry, the resilient client and the introspection server,
// and a Registry that starts them in order and stops them in reverse.
package component
