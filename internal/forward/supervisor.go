// Package forward supervises local-to-remote port tunnels: one child
// process per active tunnel, one worker goroutine watching it, and a
// race-free allocator for the local ports they claim.
package forward

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fleetdash/fleetdash/internal/config"
	"github.com/fleetdash/fleetdash/internal/errors"
	"github.com/fleetdash/fleetdash/internal/logger"
)

// DefaultStopGrace is how long a tunnel child gets to exit after SIGTERM
// before the worker escalates to SIGKILL.
const DefaultStopGrace = 5 * time.Second

// tunnel pairs a descriptor with its worker plumbing. The descriptor is
// mutated only under the supervisor lock, by the owning worker and by
// StopForward.
type tunnel struct {
	fwd      Forward
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Supervisor owns the tunnel descriptor map and the port reservation set
// (via its Allocator). Locks are never held across a process spawn or wait.
type Supervisor struct {
	store      config.Store
	ports      *Allocator
	log        logger.Logger
	newCommand CommandBuilder
	stopGrace  time.Duration

	mu      sync.Mutex
	tunnels map[string]*tunnel
	counter uint64
}

// Options tune supervisor behavior. Zero values get defaults.
type Options struct {
	// Ports overrides the allocator, e.g. with a test range.
	Ports *Allocator

	// Command overrides the bridge process builder. Default is the
	// system ssh client (with sshpass for password auth).
	Command CommandBuilder

	// StopGrace bounds graceful termination. Default 5s.
	StopGrace time.Duration

	// Log receives tunnel lifecycle events.
	Log logger.Logger
}

// NewSupervisor creates a supervisor reading credentials from store.
func NewSupervisor(store config.Store, opts Options) *Supervisor {
	if opts.Ports == nil {
		opts.Ports = NewAllocator()
	}
	if opts.Command == nil {
		opts.Command = buildSSHCommand
	}
	if opts.StopGrace == 0 {
		opts.StopGrace = DefaultStopGrace
	}
	if opts.Log == nil {
		opts.Log = logger.NewEnvLogger("[forward]")
	}
	return &Supervisor{
		store:      store,
		ports:      opts.Ports,
		log:        opts.Log,
		newCommand: opts.Command,
		stopGrace:  opts.StopGrace,
		tunnels:    make(map[string]*tunnel),
	}
}

// CreateForward starts a new tunnel from a local port to remotePort on the
// named server. localPort 0 means auto-assign. Credential problems and port
// exhaustion fail synchronously, before anything is reserved or spawned;
// everything after that is reported through the descriptor.
func (s *Supervisor) CreateForward(serverName, name string, remotePort, localPort int, toolType string) (*Forward, error) {
	// Resolve credentials first: never reserve a port you cannot use.
	srv, ok := s.store.GetServer(serverName)
	if !ok {
		return nil, errors.New(errors.ErrTunnel,
			fmt.Sprintf("Server '%s' is not registered", serverName),
			"List known servers with: fleetdash servers")
	}
	if srv.Auth() == config.AuthNone {
		return nil, errors.New(errors.ErrTunnel,
			fmt.Sprintf("Server '%s' has no credentials configured", serverName),
			"Set either password or key_file in servers.yaml")
	}
	if remotePort < 1 || remotePort > 65535 {
		return nil, errors.New(errors.ErrTunnel,
			fmt.Sprintf("Invalid remote port %d", remotePort),
			"Ports must be between 1 and 65535")
	}

	var (
		port int
		err  error
	)
	if localPort > 0 {
		port, err = s.ports.Reserve(localPort)
	} else {
		port, err = s.ports.ReserveAny()
	}
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.counter++
	t := &tunnel{
		fwd: Forward{
			ID:         fmt.Sprintf("fwd_%d_%d", s.counter, time.Now().Unix()),
			ServerName: serverName,
			Name:       name,
			RemotePort: remotePort,
			LocalPort:  port,
			ToolType:   toolType,
			Status:     StatusStarting,
			CreatedAt:  time.Now(),
		},
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	s.tunnels[t.fwd.ID] = t
	// Snapshot before the worker exists: once run starts, the descriptor
	// may only be read under the lock.
	snap := t.fwd
	s.mu.Unlock()

	go s.run(t, srv)

	return &snap, nil
}

// StopForward asks a tunnel to shut down. The worker performs the
// terminate-grace-kill sequence; callers observe progress through the
// descriptor. Returns false for an unknown id; stopping an already-stopped
// tunnel is a no-op.
func (s *Supervisor) StopForward(id string) bool {
	s.mu.Lock()
	t, ok := s.tunnels[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if t.fwd.Status == StatusStarting || t.fwd.Status == StatusRunning {
		t.fwd.Status = StatusStopping
	}
	s.mu.Unlock()

	t.stopOnce.Do(func() { close(t.stop) })
	return true
}

// DeleteForward stops a tunnel if needed and removes its descriptor.
// Returns false for an unknown id.
func (s *Supervisor) DeleteForward(id string) bool {
	s.mu.Lock()
	t, ok := s.tunnels[id]
	s.mu.Unlock()
	if !ok {
		return false
	}

	s.StopForward(id)

	// Wait for the worker's terminal transition so the port is released
	// before the descriptor disappears. Bounded: grace plus kill overhead.
	select {
	case <-t.done:
	case <-time.After(s.stopGrace + 5*time.Second):
		s.log.Warn("tunnel %s worker did not finish in time, removing descriptor anyway", id)
	}

	s.mu.Lock()
	delete(s.tunnels, id)
	s.mu.Unlock()
	return true
}

// GetForward returns a snapshot of one descriptor, or nil if unknown.
func (s *Supervisor) GetForward(id string) *Forward {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tunnels[id]
	if !ok {
		return nil
	}
	snap := t.fwd
	return &snap
}

// ListForwards returns descriptor snapshots, optionally filtered by server,
// ordered by creation.
func (s *Supervisor) ListForwards(serverName string) []*Forward {
	s.mu.Lock()
	out := make([]*Forward, 0, len(s.tunnels))
	for _, t := range s.tunnels {
		if serverName != "" && t.fwd.ServerName != serverName {
			continue
		}
		snap := t.fwd
		out = append(out, &snap)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Close stops every tunnel and waits for the workers to finish.
func (s *Supervisor) Close() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.tunnels))
	for id := range s.tunnels {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.StopForward(id)
	}
	for _, id := range ids {
		s.mu.Lock()
		t, ok := s.tunnels[id]
		s.mu.Unlock()
		if ok {
			<-t.done
		}
	}
}

// run is the per-tunnel worker. It owns the child process from spawn to
// reap and performs the descriptor's terminal transition exactly once; the
// port reservation is released on every exit path.
func (s *Supervisor) run(t *tunnel, srv *config.Server) {
	defer close(t.done)
	defer s.ports.Release(t.fwd.LocalPort)

	var stderr bytes.Buffer
	cmd := s.newCommand(srv, t.fwd.LocalPort, t.fwd.RemotePort)
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		s.finish(t, StatusError, fmt.Sprintf("failed to start tunnel process: %v", err))
		return
	}

	s.mu.Lock()
	// A stop may already have been requested while we were spawning;
	// don't walk the state machine backwards.
	if t.fwd.Status == StatusStarting {
		t.fwd.Status = StatusRunning
	}
	s.mu.Unlock()
	s.log.Info("tunnel %s up: localhost:%d -> %s:%d", t.fwd.ID, t.fwd.LocalPort, t.fwd.ServerName, t.fwd.RemotePort)

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	select {
	case err := <-waitCh:
		// Unexpected exit. Consumers learn about it from the descriptor,
		// not from an exception.
		msg := strings.TrimSpace(stderr.String())
		if msg == "" && err != nil {
			msg = err.Error()
		}
		if msg == "" {
			msg = "tunnel process exited unexpectedly"
		}
		s.finish(t, StatusError, msg)
		s.log.Error("tunnel %s died: %s", t.fwd.ID, msg)

	case <-t.stop:
		_ = cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-waitCh:
		case <-time.After(s.stopGrace):
			// Grace exceeded: escalate. The stop still succeeds.
			s.log.Warn("tunnel %s ignored SIGTERM for %s, killing", t.fwd.ID, s.stopGrace)
			_ = cmd.Process.Kill()
			<-waitCh
		}
		s.finish(t, StatusStopped, "")
		s.log.Info("tunnel %s stopped", t.fwd.ID)
	}
}

// finish performs the terminal transition.
func (s *Supervisor) finish(t *tunnel, status Status, errMsg string) {
	now := time.Now()
	s.mu.Lock()
	t.fwd.Status = status
	t.fwd.StoppedAt = &now
	t.fwd.Error = errMsg
	s.mu.Unlock()
}
