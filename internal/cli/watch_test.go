package cli

import (
	"os/exec"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetdash/fleetdash/internal/config"
	"github.com/fleetdash/fleetdash/internal/forward"
	"github.com/fleetdash/fleetdash/internal/logger"
)

type watchStore struct{ servers map[string]*config.Server }

func (s *watchStore) GetServer(name string) (*config.Server, bool) {
	srv, ok := s.servers[name]
	return srv, ok
}

func (s *watchStore) ListServers() []*config.Server {
	out := make([]*config.Server, 0, len(s.servers))
	for _, srv := range s.servers {
		out = append(out, srv)
	}
	return out
}

func watchSupervisor(t *testing.T) *forward.Supervisor {
	t.Helper()
	store := &watchStore{servers: map[string]*config.Server{
		"gpu-01": {Name: "gpu-01", Host: "10.0.0.1", Username: "ops", Password: "pw"},
	}}
	s := forward.NewSupervisor(store, forward.Options{
		Ports: forward.NewAllocatorRange(23000, 23050),
		Command: func(_ *config.Server, _, _ int) *exec.Cmd {
			return exec.Command("sleep", "30")
		},
		Log: logger.Noop(),
	})
	t.Cleanup(s.Close)
	return s
}

func TestWatchModel_EmptyView(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	m := newWatchModel(watchSupervisor(t))
	view := m.View()
	assert.Contains(t, view, "Port Forwards")
	assert.Contains(t, view, "No active forwards")
}

func TestWatchModel_ShowsForwards(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	s := watchSupervisor(t)
	fwd, err := s.CreateForward("gpu-01", "tb", 6006, 0, "tensorboard")
	require.NoError(t, err)

	m := newWatchModel(s)
	view := m.View()
	assert.Contains(t, view, fwd.ID)
	assert.Contains(t, view, "gpu-01")
	assert.Contains(t, view, "6006")
}

func TestWatchModel_QuitKey(t *testing.T) {
	m := newWatchModel(watchSupervisor(t))

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Empty(t, updated.(*watchModel).View())
}

func TestWatchModel_StopKey(t *testing.T) {
	s := watchSupervisor(t)
	fwd, err := s.CreateForward("gpu-01", "", 6006, 0, "")
	require.NoError(t, err)

	m := newWatchModel(s)
	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})

	require.Eventually(t, func() bool {
		f := s.GetForward(fwd.ID)
		return f != nil && f.Status == forward.StatusStopped
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatchModel_TickRefreshes(t *testing.T) {
	s := watchSupervisor(t)
	m := newWatchModel(s)

	_, err := s.CreateForward("gpu-01", "", 6006, 0, "")
	require.NoError(t, err)

	updated, cmd := m.Update(watchTickMsg(time.Now()))
	assert.NotNil(t, cmd, "tick must reschedule itself")
	assert.Len(t, updated.(*watchModel).forwards, 1)
}
