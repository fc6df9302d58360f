// Package ws holds shared websocket connection-state primitives.
package ws

import "sync/atomic"

// ConnState represents the lifecycle state of a websocket connection.
type ConnState int32

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected ConnState = iota
	// StateConnecting indicates a connection attempt is in progress.
	StateConnecting
	// StateConnected indicates an established connection.
	StateConnected
	// StateReconnecting indicates the client is retrying after a drop.
	StateReconnecting
	// StateClosed indicates the client was shut down for good.
	StateClosed
)

// String returns the lowercase name of the state.
func (s ConnState) String() string {
	return [...]string{
		"disconnected",
		"connecting",
		"connected",
		"reconnecting",
		"closed",
	}[s]
}

// Writable reports whether frames may be sent in this state.
func (s ConnState) Writable() bool {
	return s == StateConnected
}

// State is an atomically updated ConnState.
type State struct {
	v atomic.Int32
}

// Load returns the current state.
func (s *State) Load() ConnState {
	return ConnState(s.v.Load())
}

// Store replaces the current state.
func (s *State) Store(state ConnState) {
	s.v.Store(int32(state))
}

// CompareAndSwap transitions from old to new, reporting whether it happened.
func (s *State) CompareAndSwap(old, new ConnState) bool {
	return s.v.CompareAndSwap(int32(old), int32(new))
}
