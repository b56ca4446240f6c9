package connection

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"
)

// ConnectionErrorKind discriminates the connection failure taxonomy.
type ConnectionErrorKind int

const (
	ErrTimeout ConnectionErrorKind = iota
	ErrDnsResolution
	ErrConnectionRefused
	ErrNetworkUnreachable
	ErrTlsHandshake
	ErrIo
	ErrConnectionClosed
	ErrInvalidConfig
)

// ConnectionError carries enough context to diagnose a failed dial
// without inspecting manager state: the failure kind plus the host,
// port, timeout, or reason relevant to it.
type ConnectionError struct {
	Kind    ConnectionErrorKind
	Host    string
	Port    uint16
	Timeout time.Duration
	Reason  string
	Cause   error
}

func (e *ConnectionError) Error() string {
	switch e.Kind {
	case ErrTimeout:
		return fmt.Sprintf("connection timeout after %v", e.Timeout)
	case ErrDnsResolution:
		return fmt.Sprintf("DNS resolution failed for host %q: %s", e.Host, e.Reason)
	case ErrConnectionRefused:
		return fmt.Sprintf("connection refused by %s:%d", e.Host, e.Port)
	case ErrNetworkUnreachable:
		return fmt.Sprintf("network unreachable: %s", e.Reason)
	case ErrTlsHandshake:
		return fmt.Sprintf("TLS handshake failed: %s", e.Reason)
	case ErrConnectionClosed:
		return fmt.Sprintf("connection closed unexpectedly: %s", e.Reason)
	case ErrInvalidConfig:
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	default:
		return fmt.Sprintf("connection IO error: %s", e.Reason)
	}
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// IsConnectionError reports whether err is a *ConnectionError of the
// given kind.
func IsConnectionError(err error, kind ConnectionErrorKind) bool {
	var ce *ConnectionError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Kind == kind
}

// ConnectionConfig describes one dial target and its timing knobs.
type ConnectionConfig struct {
	Host              string
	Port              uint16
	Timeout           time.Duration
	KeepaliveInterval time.Duration
	Reconnection      ReconnectionStrategy
}

// DefaultConnectionConfig returns the dial defaults: 10 second
// connect timeout, 30 second keepalive, and the default reconnection
// strategy.
func DefaultConnectionConfig(host string, port uint16) ConnectionConfig {
	return ConnectionConfig{
		Host:              host,
		Port:              port,
		Timeout:           10 * time.Second,
		KeepaliveInterval: 30 * time.Second,
		Reconnection:      DefaultReconnectionStrategy(),
	}
}

// Validate rejects configurations that can never dial.
func (c ConnectionConfig) Validate() error {
	if c.Host == "" {
		return &ConnectionError{Kind: ErrInvalidConfig, Reason: "host must not be empty"}
	}
	if c.Port == 0 {
		return &ConnectionError{Kind: ErrInvalidConfig, Reason: "port must not be zero"}
	}
	if c.Timeout <= 0 {
		return &ConnectionError{Kind: ErrInvalidConfig, Reason: "timeout must be positive"}
	}
	return nil
}

// ManagedConnection wraps an established net.Conn with the metadata
// the manager tracked while dialing it.
type ManagedConnection struct {
	conn        net.Conn
	remoteAddr  string
	connectedAt time.Time
}

// Conn returns the underlying connection.
func (m *ManagedConnection) Conn() net.Conn { return m.conn }

// RemoteAddr returns the resolved address this connection dialed.
func (m *ManagedConnection) RemoteAddr() string { return m.remoteAddr }

// Uptime returns how long the connection has been established.
func (m *ManagedConnection) Uptime() time.Duration { return time.Since(m.connectedAt) }

// Close closes the underlying connection.
func (m *ManagedConnection) Close() error { return m.conn.Close() }

// ConnectionManager ties the pieces of the connection subsystem
// together: it dials TCP with a timeout, tracks lifecycle through a
// StateManager, and retries through a ReconnectionController.
type ConnectionManager struct {
	config       ConnectionConfig
	stateManager *StateManager
	controller   *ReconnectionController
}

// NewConnectionManager builds a manager for the given target.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		config:       config,
		stateManager: NewStateManager(),
		controller:   NewReconnectionController(config.Reconnection),
	}
}

// Config returns the manager's configuration.
func (m *ConnectionManager) Config() ConnectionConfig { return m.config }

// State returns the current connection state.
func (m *ConnectionManager) State() ConnectionState { return m.stateManager.State() }

// StateManager exposes the state manager for external monitoring.
func (m *ConnectionManager) StateManager() *StateManager { return m.stateManager }

// SubscribeStateChanges returns a channel of state transitions.
func (m *ConnectionManager) SubscribeStateChanges() <-chan StateChangeEvent {
	return m.stateManager.Subscribe()
}

// IsConnected reports whether the manager currently holds a live state.
func (m *ConnectionManager) IsConnected() bool { return m.stateManager.State().IsConnected() }

// Connect establishes a new connection, moving the state machine
// through Connecting to Connected or Failed.
func (m *ConnectionManager) Connect(ctx context.Context) (*ManagedConnection, error) {
	if err := m.config.Validate(); err != nil {
		return nil, err
	}
	m.stateManager.SetState(Connecting())

	conn, err := m.connectInternal(ctx)
	if err != nil {
		m.stateManager.SetState(Failed(err.Error()))
		return nil, err
	}
	m.stateManager.SetState(Connected())
	return conn, nil
}

// connectInternal dials the configured target with the configured
// timeout and keepalive, translating dial failures into the
// connection error taxonomy.
func (m *ConnectionManager) connectInternal(ctx context.Context) (*ManagedConnection, error) {
	addr := net.JoinHostPort(m.config.Host, strconv.Itoa(int(m.config.Port)))

	dialer := net.Dialer{
		Timeout:   m.config.Timeout,
		KeepAlive: m.config.KeepaliveInterval,
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, m.classifyDialError(err)
	}
	return &ManagedConnection{
		conn:        conn,
		remoteAddr:  conn.RemoteAddr().String(),
		connectedAt: time.Now(),
	}, nil
}

// classifyDialError maps a net dial failure onto the connection error
// taxonomy so callers get a descriptive kind rather than a bare
// OS error string.
func (m *ConnectionManager) classifyDialError(err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &ConnectionError{Kind: ErrDnsResolution, Host: m.config.Host, Reason: dnsErr.Error(), Cause: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ConnectionError{Kind: ErrTimeout, Timeout: m.config.Timeout, Cause: err}
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return &ConnectionError{Kind: ErrConnectionRefused, Host: m.config.Host, Port: m.config.Port, Cause: err}
	case errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.EHOSTUNREACH):
		return &ConnectionError{Kind: ErrNetworkUnreachable, Reason: err.Error(), Cause: err}
	case errors.Is(err, syscall.ETIMEDOUT):
		return &ConnectionError{Kind: ErrTimeout, Timeout: m.config.Timeout, Cause: err}
	}
	return &ConnectionError{Kind: ErrIo, Reason: err.Error(), Cause: err}
}

// Reconnect retries the connection with the configured strategy,
// walking the state machine through Reconnecting on each attempt and
// settling on Connected or Failed.
func (m *ConnectionManager) Reconnect(ctx context.Context) (*ManagedConnection, error) {
	var conn *ManagedConnection
	err := m.controller.Reconnect(ctx, func(ctx context.Context) error {
		m.stateManager.SetState(Reconnecting(m.controller.CurrentAttempt()))
		c, dialErr := m.connectInternal(ctx)
		if dialErr != nil {
			return dialErr
		}
		conn = c
		return nil
	})
	if err != nil {
		m.stateManager.SetState(Failed(err.Error()))
		return nil, err
	}
	m.stateManager.SetState(Connected())
	return conn, nil
}

// CancelReconnection stops any in-flight Reconnect call.
func (m *ConnectionManager) CancelReconnection() {
	m.controller.CancelReconnection()
}

// Disconnect marks the connection as cleanly closed.
func (m *ConnectionManager) Disconnect() {
	m.stateManager.SetState(Disconnected())
}
