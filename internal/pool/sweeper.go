package pool

import (
	"time"

	"github.com/fleetdash/fleetdash/pkg/sshutil"
)

// sweepLoop periodically reclaims dead handles: pooled entries whose probe
// fails, and standalone handles whose owner forgot to release them. It is a
// safety net, not the primary ownership mechanism.
func (p *Pool) sweepLoop() {
	defer close(p.sweepDone)

	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopSweep:
			return
		case <-ticker.C:
			p.sweep()
		}
	}
}

// sweep probes every tracked handle outside the pool lock and evicts the
// dead ones. An entry is only closed after being marked evicted under the
// same lock Get uses, so the two never close a handle twice.
func (p *Pool) sweep() {
	type pooled struct {
		name string
		e    *entry
	}

	p.mu.Lock()
	pooledSnap := make([]pooled, 0, len(p.conns))
	for name, e := range p.conns {
		pooledSnap = append(pooledSnap, pooled{name, e})
	}
	soloSnap := make(map[uint64]sshutil.SSHClient, len(p.standalone))
	for token, c := range p.standalone {
		soloSnap[token] = c
	}
	p.mu.Unlock()

	for _, pe := range pooledSnap {
		if p.probe(pe.e.client) {
			continue
		}
		p.mu.Lock()
		// Re-check: Get may have replaced or evicted it while we probed.
		cur, ok := p.conns[pe.name]
		if !ok || cur != pe.e || pe.e.evicted {
			p.mu.Unlock()
			continue
		}
		pe.e.evicted = true
		delete(p.conns, pe.name)
		p.mu.Unlock()

		_ = pe.e.client.Close()
		p.log.Info("sweeper evicted dead connection to %s", pe.name)
	}

	for token, c := range soloSnap {
		if p.probe(c) {
			continue
		}
		p.mu.Lock()
		if _, ok := p.standalone[token]; !ok {
			p.mu.Unlock()
			continue
		}
		delete(p.standalone, token)
		p.mu.Unlock()

		_ = c.Close()
		p.log.Info("sweeper reclaimed leaked standalone session (token %d)", token)
	}
}
