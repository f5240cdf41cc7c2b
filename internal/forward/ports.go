package forward

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/fleetdash/fleetdash/internal/errors"
)

const (
	// BasePort is where the auto-pick scan starts.
	BasePort = 16006
	// MaxPort caps the scan.
	MaxPort = 20000

	// scanAttempts and scanBackoff bound the auto-pick retry loop under
	// transient contention (another process grabbing ports mid-scan).
	scanAttempts = 3
	scanBackoff  = 50 * time.Millisecond
)

// Allocator hands out local TCP ports race-free. A port stays in the
// reservation set from allocation until the owning tunnel worker's terminal
// transition releases it; there is no window in which two callers can
// observe the same port as free.
type Allocator struct {
	mu       sync.Mutex
	reserved map[int]struct{}
	base     int
	max      int
}

// NewAllocator creates an allocator over [BasePort, MaxPort].
func NewAllocator() *Allocator {
	return NewAllocatorRange(BasePort, MaxPort)
}

// NewAllocatorRange creates an allocator over an explicit range.
func NewAllocatorRange(base, max int) *Allocator {
	return &Allocator{
		reserved: make(map[int]struct{}),
		base:     base,
		max:      max,
	}
}

// Reserve claims an explicit port: not already reserved and bindable right
// now. The whole check-then-reserve runs under the allocator lock.
func (a *Allocator) Reserve(port int) (int, error) {
	if port < 1 || port > 65535 {
		return 0, errors.New(errors.ErrPort,
			fmt.Sprintf("Invalid local port %d", port),
			"Ports must be between 1 and 65535")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, taken := a.reserved[port]; taken {
		return 0, errors.New(errors.ErrPort,
			fmt.Sprintf("Local port %d is already claimed by another forward", port),
			"Pick a different port or omit it to auto-assign")
	}
	if !bindable(port) {
		return 0, errors.New(errors.ErrPort,
			fmt.Sprintf("Local port %d is in use by another process", port),
			"Pick a different port or omit it to auto-assign")
	}

	a.reserved[port] = struct{}{}
	return port, nil
}

// ReserveAny scans upward from the base port and claims the first port that
// is neither reserved nor OS-bound. The scan retries with a short backoff to
// ride out transient contention before giving up.
func (a *Allocator) ReserveAny() (int, error) {
	for attempt := 0; attempt < scanAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(scanBackoff)
		}

		a.mu.Lock()
		for port := a.base; port <= a.max; port++ {
			if _, taken := a.reserved[port]; taken {
				continue
			}
			if !bindable(port) {
				continue
			}
			a.reserved[port] = struct{}{}
			a.mu.Unlock()
			return port, nil
		}
		a.mu.Unlock()
	}

	return 0, errors.New(errors.ErrPort,
		fmt.Sprintf("No free local port between %d and %d", a.base, a.max),
		"Stop unused forwards: fleetdash forward list")
}

// Release returns a port to the free set. Called exactly once by the owning
// tunnel worker on its terminal transition.
func (a *Allocator) Release(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.reserved, port)
}

// Reserved returns the current reservation count.
func (a *Allocator) Reserved() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.reserved)
}

// bindable checks with the OS that the port can actually be listened on.
// The in-memory set doesn't know about other processes on the machine.
func bindable(port int) bool {
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}
