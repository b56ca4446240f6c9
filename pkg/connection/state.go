// Package connection implements connection lifecycle state tracking
// and bounded-exponential-backoff reconnection control.
package connection

import (
	"fmt"
	"sync"
)

// Status discriminates the kind of ConnectionState currently held.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusFailed
)

// ConnectionState is a sum type over the connection lifecycle.
// Reconnecting carries the attempt number; Failed carries a reason.
type ConnectionState struct {
	Status  Status
	Attempt uint32
	Reason  string
}

func Disconnected() ConnectionState { return ConnectionState{Status: StatusDisconnected} }
func Connecting() ConnectionState   { return ConnectionState{Status: StatusConnecting} }
func Connected() ConnectionState    { return ConnectionState{Status: StatusConnected} }
func Reconnecting(attempt uint32) ConnectionState {
	return ConnectionState{Status: StatusReconnecting, Attempt: attempt}
}
func Failed(reason string) ConnectionState {
	return ConnectionState{Status: StatusFailed, Reason: reason}
}

// IsConnected reports whether the state is Connected.
func (s ConnectionState) IsConnected() bool { return s.Status == StatusConnected }

// IsConnecting reports whether the state is Connecting or Reconnecting.
func (s ConnectionState) IsConnecting() bool {
	return s.Status == StatusConnecting || s.Status == StatusReconnecting
}

// String renders the state the way operators and logs expect it.
func (s ConnectionState) String() string {
	switch s.Status {
	case StatusDisconnected:
		return "Disconnected"
	case StatusConnecting:
		return "Connecting"
	case StatusConnected:
		return "Connected"
	case StatusReconnecting:
		return fmt.Sprintf("Reconnecting (attempt %d)", s.Attempt)
	case StatusFailed:
		return fmt.Sprintf("Failed: %s", s.Reason)
	default:
		return "Unknown"
	}
}

// canTransitionTo reports whether moving from s to next is a legal
// transition in the connection lifecycle.
func (s ConnectionState) canTransitionTo(next ConnectionState) bool {
	// Same-status transitions are always valid no-ops (or, for
	// Reconnecting, an attempt-count update).
	if s.Status == next.Status {
		return true
	}
	switch s.Status {
	case StatusDisconnected:
		return next.Status == StatusConnecting || next.Status == StatusFailed
	case StatusConnecting:
		return next.Status == StatusConnected || next.Status == StatusFailed || next.Status == StatusDisconnected
	case StatusConnected:
		return next.Status == StatusDisconnected || next.Status == StatusReconnecting || next.Status == StatusFailed
	case StatusReconnecting:
		return next.Status == StatusConnected || next.Status == StatusReconnecting || next.Status == StatusFailed || next.Status == StatusDisconnected
	case StatusFailed:
		return next.Status == StatusConnecting || next.Status == StatusDisconnected
	default:
		return false
	}
}

// StateChangeEvent is broadcast on every successful transition.
type StateChangeEvent struct {
	Old ConnectionState
	New ConnectionState
}

// InvalidTransitionError reports an illegal state transition attempt.
type InvalidTransitionError struct {
	From ConnectionState
	To   ConnectionState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

// stateChannelCapacity bounds each subscriber's event channel. A
// subscriber that falls this far behind has its oldest pending event
// dropped rather than blocking the publisher.
const stateChannelCapacity = 16

// StateManager holds the current ConnectionState and broadcasts every
// transition to subscribers. The mutex guards only reads and writes of
// the state and subscriber list; broadcasting happens after it is
// released, so no subscriber code runs under the lock.
type StateManager struct {
	mu          sync.Mutex
	state       ConnectionState
	subscribers []chan StateChangeEvent
}

// NewStateManager creates a manager starting in Disconnected.
func NewStateManager() *StateManager {
	return &StateManager{state: Disconnected()}
}

// State returns the current state.
func (m *StateManager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe returns a channel that receives every subsequent state
// transition. The channel is buffered to stateChannelCapacity; if a
// subscriber doesn't keep up, the oldest buffered event is discarded
// to make room rather than blocking SetState/TryTransition.
func (m *StateManager) Subscribe() <-chan StateChangeEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan StateChangeEvent, stateChannelCapacity)
	m.subscribers = append(m.subscribers, ch)
	return ch
}

// SetState force-sets the state without checking legality, broadcasting
// the change unless the new state equals the old one.
func (m *StateManager) SetState(next ConnectionState) {
	m.mu.Lock()
	old := m.state
	m.state = next
	subs := append([]chan StateChangeEvent(nil), m.subscribers...)
	m.mu.Unlock()

	if old == next {
		return
	}
	m.broadcast(subs, StateChangeEvent{Old: old, New: next})
}

// TryTransition applies next only if it is a legal transition from the
// current state, returning InvalidTransitionError otherwise.
func (m *StateManager) TryTransition(next ConnectionState) error {
	m.mu.Lock()
	old := m.state
	if !old.canTransitionTo(next) {
		m.mu.Unlock()
		return &InvalidTransitionError{From: old, To: next}
	}
	m.state = next
	subs := append([]chan StateChangeEvent(nil), m.subscribers...)
	m.mu.Unlock()

	if old == next {
		return nil
	}
	m.broadcast(subs, StateChangeEvent{Old: old, New: next})
	return nil
}

func (m *StateManager) broadcast(subs []chan StateChangeEvent, ev StateChangeEvent) {
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			// Subscriber is lagging: drop the oldest event to make
			// room rather than block the publisher.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}
