// Package server implements the core HTTP and WebSocket server functionality for Huddle.
//
// The implementation is organized into specialized files for configuration,
// the room store, the session registry, the hub, clients, the protocol
// dispatcher, routing, and HTTP handlers to keep the codebase maintainable
// and testable as the project grows.
package server
