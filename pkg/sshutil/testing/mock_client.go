// Package testing provides a mock SSH client for exercising the connection
// pool and command executor without a network.
package testing

import (
	"context"
	"errors"
	"sync"
	"time"
)

// CommandResponse defines a canned response for a specific command.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Err      error

	// Delay simulates a slow remote command; ExecContext honors the
	// context deadline while waiting.
	Delay time.Duration
}

// MockClient simulates an authenticated SSH connection.
// Commands without a canned response succeed with empty output, so a pool
// liveness probe passes against a fresh mock by default.
type MockClient struct {
	mu        sync.Mutex
	name      string
	closed    bool
	alive     bool
	responses map[string]CommandResponse
	execLog   []string
}

// NewMockClient creates a live mock client for the named server.
func NewMockClient(name string) *MockClient {
	return &MockClient{
		name:      name,
		alive:     true,
		responses: make(map[string]CommandResponse),
	}
}

// Respond registers a canned response for an exact command string.
func (m *MockClient) Respond(cmd string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[cmd] = resp
}

// KillTransport makes every subsequent command fail, simulating a dead
// connection that has not been closed yet (e.g. an unnoticed TCP reset).
func (m *MockClient) KillTransport() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alive = false
}

// Exec runs a command against the canned responses.
func (m *MockClient) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	return m.ExecContext(context.Background(), cmd)
}

// ExecContext runs a command, honoring any configured Delay against the
// context deadline.
func (m *MockClient) ExecContext(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, nil, -1, errors.New("connection closed")
	}
	if !m.alive {
		m.mu.Unlock()
		return nil, nil, -1, errors.New("broken pipe")
	}
	m.execLog = append(m.execLog, cmd)
	resp, ok := m.responses[cmd]
	m.mu.Unlock()

	if !ok {
		return nil, nil, 0, nil
	}

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-ctx.Done():
			return nil, nil, -1, ctx.Err()
		}
	}

	return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Err
}

// Close marks the connection closed. Idempotent.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *MockClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Commands returns every command executed so far, in order.
func (m *MockClient) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.execLog))
	copy(out, m.execLog)
	return out
}

// Name returns the server name this client was created for.
func (m *MockClient) Name() string {
	return m.name
}

// Addr returns a fake resolved address.
func (m *MockClient) Addr() string {
	return m.name + ":22"
}
