package cli

import (
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/fleetdash/fleetdash/internal/forward"
	"github.com/fleetdash/fleetdash/internal/ui"
)

var forwardWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard of active forwards",
	Long: `Watch active forwards in a live dashboard and keep them open.

Forwards are child processes of this command; quitting the dashboard stops
them.

Keys:
  up/down  select forward
  s        stop selected forward
  q        quit (stops all forwards)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return forwardWatch()
	},
}

func forwardWatch() error {
	app, err := getApp()
	if err != nil {
		return err
	}

	m := newWatchModel(app.supervisor)
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// watchTickMsg drives the periodic descriptor refresh.
type watchTickMsg time.Time

const watchInterval = time.Second

// watchModel is the Bubble Tea model for the forward dashboard.
type watchModel struct {
	supervisor *forward.Supervisor
	table      table.Model
	forwards   []*forward.Forward
	width      int
	quitting   bool
}

func newWatchModel(s *forward.Supervisor) *watchModel {
	m := &watchModel{supervisor: s}
	m.refresh()
	return m
}

func watchTick() tea.Cmd {
	return tea.Tick(watchInterval, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

func (m *watchModel) Init() tea.Cmd {
	return watchTick()
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case watchTickMsg:
		m.refresh()
		return m, watchTick()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "s":
			if fwd := m.selected(); fwd != nil {
				m.supervisor.StopForward(fwd.ID)
				m.refresh()
			}
			return m, nil
		case "r":
			m.refresh()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// refresh rebuilds the table from current descriptors, preserving the
// cursor position.
func (m *watchModel) refresh() {
	m.forwards = m.supervisor.ListForwards("")

	cursor := m.table.Cursor()
	rows := make([]table.Row, 0, len(m.forwards))
	for _, f := range m.forwards {
		detail := f.Name
		if f.Status == forward.StatusError {
			detail = f.Error
		}
		rows = append(rows, table.Row{
			f.ID,
			f.ServerName,
			strconv.Itoa(f.LocalPort),
			strconv.Itoa(f.RemotePort),
			string(f.Status),
			detail,
		})
	}

	m.table = ui.NewTable([]ui.TableColumn{
		{Title: "ID", Width: 20},
		{Title: "SERVER", Width: 14},
		{Title: "LOCAL", Width: 7},
		{Title: "REMOTE", Width: 7},
		{Title: "STATUS", Width: 10},
		{Title: "DETAIL", Width: 28},
	}, rows)
	m.table.Focus()
	if cursor < len(rows) {
		m.table.SetCursor(cursor)
	}
}

func (m *watchModel) selected() *forward.Forward {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.forwards) {
		return nil
	}
	return m.forwards[i]
}

var (
	watchTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(ui.ColorInfo)
	watchHelpStyle  = lipgloss.NewStyle().Foreground(ui.ColorMuted)
)

func (m *watchModel) View() string {
	if m.quitting {
		return ""
	}

	header := watchTitleStyle.Render("Port Forwards")
	if len(m.forwards) == 0 {
		return header + "\n\nNo active forwards.\n\n" +
			watchHelpStyle.Render("q: quit") + "\n"
	}

	return header + "\n\n" + m.table.View() + "\n\n" +
		watchHelpStyle.Render("up/down: select  s: stop  q: quit") + "\n"
}
