package exec

import (
	"testing"
	"time"

	"github.com/fleetdash/fleetdash/internal/config"
	"github.com/fleetdash/fleetdash/internal/errors"
	"github.com/fleetdash/fleetdash/internal/logger"
	"github.com/fleetdash/fleetdash/internal/pool"
	"github.com/fleetdash/fleetdash/pkg/sshutil"
	sshtesting "github.com/fleetdash/fleetdash/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	servers map[string]*config.Server
}

func newMemStore(names ...string) *memStore {
	s := &memStore{servers: make(map[string]*config.Server)}
	for _, name := range names {
		s.servers[name] = &config.Server{Name: name, Host: "10.0.0.1", Username: "u", Password: "p"}
	}
	return s
}

func (s *memStore) GetServer(name string) (*config.Server, bool) {
	srv, ok := s.servers[name]
	return srv, ok
}

func (s *memStore) ListServers() []*config.Server {
	out := make([]*config.Server, 0, len(s.servers))
	for _, srv := range s.servers {
		out = append(out, srv)
	}
	return out
}

// testEnv wires an executor to a pool that dials mock clients, then performs
// one warmup call so the mock exists and can take canned responses.
func testEnv(t *testing.T, names ...string) (*Executor, *sshtesting.MockClient) {
	t.Helper()

	var mock *sshtesting.MockClient
	p := pool.New(newMemStore(names...), pool.Options{
		Dial: func(srv *config.Server, _ time.Duration) (sshutil.SSHClient, error) {
			mock = sshtesting.NewMockClient(srv.Name)
			return mock, nil
		},
		SweepInterval: time.Hour,
		Log:           logger.Noop(),
	})
	t.Cleanup(p.CloseAll)

	e := New(p, logger.Noop())
	res := e.Execute(names[0], "true", time.Second)
	require.True(t, res.Success)
	require.NotNil(t, mock)
	return e, mock
}

func TestExecute_ExitCodes(t *testing.T) {
	e, mock := testEnv(t, "gpu-01")

	mock.Respond("ls /data", sshtesting.CommandResponse{
		Stdout:   []byte("model.ckpt\n"),
		ExitCode: 0,
	})
	mock.Respond("ls /missing", sshtesting.CommandResponse{
		Stderr:   []byte("ls: cannot access '/missing'\n"),
		ExitCode: 2,
	})

	res := e.Execute("gpu-01", "ls /data", 5*time.Second)
	assert.True(t, res.Success)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "model.ckpt\n", res.Stdout)
	assert.Empty(t, res.Stderr)

	res = e.Execute("gpu-01", "ls /missing", 5*time.Second)
	assert.False(t, res.Success, "non-zero exit is a failed command, not an error")
	assert.Equal(t, 2, res.ExitCode)
	assert.Contains(t, res.Stderr, "cannot access")
}

func TestExecute_UnknownServer(t *testing.T) {
	e, _ := testEnv(t, "gpu-01")

	res := e.Execute("unreachable-host", "echo ok", 5*time.Second)
	assert.False(t, res.Success)
	assert.Equal(t, -1, res.ExitCode)
	assert.NotEmpty(t, res.Stderr)
	assert.Contains(t, res.Stderr, "not registered")
}

func TestExecute_Timeout(t *testing.T) {
	e, mock := testEnv(t, "gpu-01")

	mock.Respond("sleep 60", sshtesting.CommandResponse{Delay: time.Minute})

	start := time.Now()
	res := e.Execute("gpu-01", "sleep 60", 50*time.Millisecond)
	elapsed := time.Since(start)

	assert.False(t, res.Success)
	assert.Equal(t, -1, res.ExitCode)
	assert.NotEmpty(t, res.Stderr)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond, "not instant")
	assert.Less(t, elapsed, 5*time.Second, "not hung")
}

func TestExecute_ReusesHandle(t *testing.T) {
	creations := 0
	p := pool.New(newMemStore("gpu-01"), pool.Options{
		Dial: func(srv *config.Server, _ time.Duration) (sshutil.SSHClient, error) {
			creations++
			return sshtesting.NewMockClient(srv.Name), nil
		},
		SweepInterval: time.Hour,
		Log:           logger.Noop(),
	})
	t.Cleanup(p.CloseAll)
	e := New(p, logger.Noop())

	res := e.Execute("gpu-01", "uptime", time.Second)
	require.True(t, res.Success)
	res = e.Execute("gpu-01", "uptime", time.Second)
	require.True(t, res.Success)

	assert.Equal(t, 1, creations, "back-to-back executes share one handle")
}

func TestExecute_RecreatesAfterTransportDeath(t *testing.T) {
	creations := 0
	var latest *sshtesting.MockClient
	p := pool.New(newMemStore("gpu-01"), pool.Options{
		Dial: func(srv *config.Server, _ time.Duration) (sshutil.SSHClient, error) {
			creations++
			latest = sshtesting.NewMockClient(srv.Name)
			return latest, nil
		},
		SweepInterval: time.Hour,
		Log:           logger.Noop(),
	})
	t.Cleanup(p.CloseAll)
	e := New(p, logger.Noop())

	res := e.Execute("gpu-01", "uptime", time.Second)
	require.True(t, res.Success)
	require.Equal(t, 1, creations)

	latest.KillTransport()

	res = e.Execute("gpu-01", "uptime", time.Second)
	assert.True(t, res.Success, "executor should get a fresh handle after probe failure")
	assert.Equal(t, 2, creations)
}

func TestExecute_DefaultTimeout(t *testing.T) {
	e, _ := testEnv(t, "gpu-01")

	// Zero timeout must not mean "no deadline"; the call completes because
	// the mock responds immediately.
	res := e.Execute("gpu-01", "true", 0)
	assert.True(t, res.Success)
}

func TestExecute_AuthErrorShape(t *testing.T) {
	p := pool.New(newMemStore("gpu-01"), pool.Options{
		Dial: func(srv *config.Server, _ time.Duration) (sshutil.SSHClient, error) {
			return nil, errors.New(errors.ErrAuth, "Server 'gpu-01' rejected the credentials", "")
		},
		SweepInterval: time.Hour,
		Log:           logger.Noop(),
	})
	t.Cleanup(p.CloseAll)
	e := New(p, logger.Noop())

	res := e.Execute("gpu-01", "true", time.Second)
	assert.False(t, res.Success)
	assert.Equal(t, -1, res.ExitCode)
	assert.Contains(t, res.Stderr, "rejected the credentials")
}
