// Package sse streams registry events to HTTP clients as server-sent
// events.
//
// A Hub routes frames to clients by glob-matching their ids. Streams watching
// every service use ids "all:<unique>"; streams watching one service use
// "service:<name>:<unique>". ForwardRegistryEvents turns a discovery
// subscription into hub publications.
package sse
