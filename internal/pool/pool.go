// Package pool owns the reusable SSH session handles, at most one per
// registered server. Handles are created lazily, health-checked on every
// checkout, and evicted synchronously when the probe fails. Standalone
// handles for exclusive use (e.g. an interactive shell) are created through
// the same path but owned by the caller; the pool only tracks them so the
// sweeper can reclaim leaks.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fleetdash/fleetdash/internal/config"
	"github.com/fleetdash/fleetdash/internal/errors"
	"github.com/fleetdash/fleetdash/internal/logger"
	"github.com/fleetdash/fleetdash/pkg/sshutil"
)

// probeCommand is the no-op run to check a cached handle before reuse.
// ExecContext drains both streams fully, so a probe never leaves unread
// buffer data behind on the transport.
const probeCommand = "true"

// Dialer creates an authenticated connection for a descriptor.
// Injected so tests can count creations without a network.
type Dialer func(srv *config.Server, timeout time.Duration) (sshutil.SSHClient, error)

// Options tune pool behavior. Zero values get defaults.
type Options struct {
	// DialTimeout bounds TCP dial plus SSH handshake. Default 10s.
	DialTimeout time.Duration

	// ProbeTimeout bounds the liveness probe. Must stay cheap; a
	// half-dead transport otherwise stalls every caller. Default 2s.
	ProbeTimeout time.Duration

	// SweepInterval is how often the background sweeper scans for dead
	// handles. Default 60s.
	SweepInterval time.Duration

	// Dial overrides the connection factory. Default is sshutil.Dial.
	Dial Dialer

	// Log receives pool lifecycle events. Default is the env logger.
	Log logger.Logger
}

// entry is one pooled handle with its lifecycle metadata.
type entry struct {
	client        sshutil.SSHClient
	createdAt     time.Time
	lastHealthyAt time.Time
	evicted       bool
}

// ReleaseFunc returns a standalone handle to the pool's tracking set and
// closes it. Safe to call more than once; only the first call does work.
type ReleaseFunc func()

// Pool owns the connection map and the standalone tracking set.
// Locks are held only for map mutation, never across a network call.
type Pool struct {
	store config.Store
	dial  Dialer
	log   logger.Logger

	dialTimeout   time.Duration
	probeTimeout  time.Duration
	sweepInterval time.Duration

	mu         sync.Mutex
	conns      map[string]*entry
	nameLocks  map[string]*sync.Mutex
	standalone map[uint64]sshutil.SSHClient
	nextToken  uint64
	closed     bool

	stopSweep chan struct{}
	sweepDone chan struct{}
}

// New creates a pool reading descriptors from store and starts the sweeper.
func New(store config.Store, opts Options) *Pool {
	if opts.DialTimeout == 0 {
		opts.DialTimeout = sshutil.DefaultDialTimeout
	}
	if opts.ProbeTimeout == 0 {
		opts.ProbeTimeout = 2 * time.Second
	}
	if opts.SweepInterval == 0 {
		opts.SweepInterval = 60 * time.Second
	}
	if opts.Dial == nil {
		opts.Dial = func(srv *config.Server, timeout time.Duration) (sshutil.SSHClient, error) {
			return sshutil.Dial(srv, timeout)
		}
	}
	if opts.Log == nil {
		opts.Log = logger.NewEnvLogger("[pool]")
	}

	p := &Pool{
		store:         store,
		dial:          opts.Dial,
		log:           opts.Log,
		dialTimeout:   opts.DialTimeout,
		probeTimeout:  opts.ProbeTimeout,
		sweepInterval: opts.SweepInterval,
		conns:         make(map[string]*entry),
		nameLocks:     make(map[string]*sync.Mutex),
		standalone:    make(map[uint64]sshutil.SSHClient),
		stopSweep:     make(chan struct{}),
		sweepDone:     make(chan struct{}),
	}

	go p.sweepLoop()
	return p
}

// Get returns a live handle for name, reusing the cached one when its
// liveness probe passes and rebuilding it otherwise. Creation failures are
// returned as typed errors without internal retries; retrying is the
// caller's decision.
func (p *Pool) Get(name string) (sshutil.SSHClient, error) {
	// Serialize per name so concurrent calls race to create at most one
	// handle. Different names proceed fully in parallel.
	nl := p.nameLock(name)
	if nl == nil {
		return nil, errors.New(errors.ErrConn, "Connection pool is shut down", "")
	}
	nl.Lock()
	defer nl.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errors.New(errors.ErrConn, "Connection pool is shut down", "")
	}
	e := p.conns[name]
	p.mu.Unlock()

	if e != nil {
		if p.probe(e.client) {
			p.mu.Lock()
			e.lastHealthyAt = time.Now()
			p.mu.Unlock()
			return e.client, nil
		}
		// Stale handle: evict under the lock, close outside it.
		p.mu.Lock()
		e.evicted = true
		delete(p.conns, name)
		p.mu.Unlock()
		_ = e.client.Close()
		p.log.Debug("evicted stale connection to %s", name)
	}

	client, err := p.connect(name)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = client.Close()
		return nil, errors.New(errors.ErrConn, "Connection pool is shut down", "")
	}
	p.conns[name] = &entry{client: client, createdAt: now, lastHealthyAt: now}
	p.mu.Unlock()

	return client, nil
}

// CreateStandalone builds a handle outside the pool for exclusive use.
// The caller owns it and must call the returned release func on every exit
// path; the sweeper reclaims it as a safety net if the caller forgets.
func (p *Pool) CreateStandalone(name string) (sshutil.SSHClient, ReleaseFunc, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, nil, errors.New(errors.ErrConn, "Connection pool is shut down", "")
	}
	p.mu.Unlock()

	client, err := p.connect(name)
	if err != nil {
		return nil, nil, err
	}

	p.mu.Lock()
	p.nextToken++
	token := p.nextToken
	p.standalone[token] = client
	p.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.standalone, token)
			p.mu.Unlock()
			_ = client.Close()
		})
	}
	return client, release, nil
}

// CloseAll stops the sweeper, closes every pooled and tracked standalone
// transport, and clears state. Idempotent.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.stopSweep)

	clients := make([]sshutil.SSHClient, 0, len(p.conns)+len(p.standalone))
	for _, e := range p.conns {
		e.evicted = true
		clients = append(clients, e.client)
	}
	for _, c := range p.standalone {
		clients = append(clients, c)
	}
	p.conns = make(map[string]*entry)
	p.standalone = make(map[uint64]sshutil.SSHClient)
	p.mu.Unlock()

	for _, c := range clients {
		_ = c.Close()
	}
	<-p.sweepDone
}

// Size returns the number of pooled connections.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// StandaloneCount returns the number of tracked standalone handles.
func (p *Pool) StandaloneCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.standalone)
}

// connect resolves the descriptor and dials. One attempt, no caching of
// credentials past the call.
func (p *Pool) connect(name string) (sshutil.SSHClient, error) {
	srv, ok := p.store.GetServer(name)
	if !ok {
		return nil, errors.New(errors.ErrConn,
			fmt.Sprintf("Server '%s' is not registered", name),
			"List known servers with: fleetdash servers")
	}

	client, err := p.dial(srv, p.dialTimeout)
	if err != nil {
		return nil, err
	}
	p.log.Debug("connected to %s (%s)", name, client.Addr())
	return client, nil
}

// probe checks a handle with a short no-op command, draining both streams.
func (p *Pool) probe(client sshutil.SSHClient) bool {
	ctx, cancel := context.WithTimeout(context.Background(), p.probeTimeout)
	defer cancel()

	_, _, exitCode, err := client.ExecContext(ctx, probeCommand)
	return err == nil && exitCode == 0
}

// nameLock returns the per-name creation lock, or nil after shutdown.
func (p *Pool) nameLock(name string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	nl, ok := p.nameLocks[name]
	if !ok {
		nl = &sync.Mutex{}
		p.nameLocks[name] = nl
	}
	return nl
}
