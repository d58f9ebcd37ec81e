package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/danferreira/gannounce/internal/config"
	"github.com/danferreira/gannounce/internal/torrent"
	"github.com/danferreira/gannounce/internal/tracker"
)

var (
	tableStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder())
	infoBoxStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1).Width(87)
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render
)

type mode int

const (
	modeMain mode = iota
	modePickFile
)

type model struct {
	table      table.Model
	help       help.Model
	keyMap     keyMap
	filepicker filepicker.Model
	uiMode     mode
	quitting   bool

	err    error
	client *torrent.Client

	torrents []*torrent.Torrent
}

type keyMap struct {
	open  key.Binding
	start key.Binding
	stop  key.Binding
	quit  key.Binding
}

type newTorrentMsg struct {
	t *torrent.Torrent
}

type torrentStoppedMsg struct{}

type errMsg struct {
	err error
}

type tickMsg time.Time

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if wm, ok := msg.(tea.WindowSizeMsg); ok {
		m.help.Width = wm.Width
		m.filepicker, _ = m.filepicker.Update(msg)
	}

	switch m.uiMode {
	case modePickFile:
		return m.updatePicker(msg)
	default:
		return m.updateMain(msg)
	}
}

func (m model) updateMain(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keyMap.quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keyMap.start):
			if t := m.selectedTorrent(); t != nil {
				return m, m.startTorrent(t)
			}
			return m, nil

		case key.Matches(msg, m.keyMap.stop):
			if t := m.selectedTorrent(); t != nil {
				return m, m.stopTorrent(t)
			}
			return m, nil

		case key.Matches(msg, m.keyMap.open):
			m.uiMode = modePickFile
			return m, m.filepicker.Init()
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd

	case newTorrentMsg:
		m.err = nil
		m.torrents = append(m.torrents, msg.t)
		m.updateRows()
		m.table.SetCursor(len(m.table.Rows()) - 1)
		return m, nil

	case torrentStoppedMsg:
		m.updateRows()
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil

	case tickMsg:
		m.updateRows()
		return m, tickCmd()
	}

	return m, nil
}

func (m model) updatePicker(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if key.Matches(msg, m.keyMap.quit) {
			m.uiMode = modeMain
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.filepicker, cmd = m.filepicker.Update(msg)

	if didSelect, path := m.filepicker.DidSelectFile(msg); didSelect {
		m.uiMode = modeMain

		return m, tea.Batch(cmd, m.addTorrent(path), tickCmd())
	}

	return m, cmd
}

func (m model) addTorrent(path string) tea.Cmd {
	return func() tea.Msg {
		t, err := m.client.AddFile(path)
		if err != nil {
			return errMsg{err}
		}

		err = m.client.StartTorrent(t.Metadata.Hash)
		if err != nil {
			return errMsg{err}
		}

		return newTorrentMsg{t}
	}
}

func (m model) startTorrent(t *torrent.Torrent) tea.Cmd {
	return func() tea.Msg {
		if err := m.client.StartTorrent(t.Metadata.Hash); err != nil && !errors.Is(err, torrent.ErrRunning) {
			return errMsg{err}
		}

		return nil
	}
}

func (m model) stopTorrent(t *torrent.Torrent) tea.Cmd {
	return func() tea.Msg {
		if err := m.client.StopTorrent(t.Metadata.Hash); err != nil {
			return errMsg{err}
		}

		return torrentStoppedMsg{}
	}
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	if m.uiMode == modePickFile {
		return "Open torrent:" + " " + m.filepicker.CurrentDirectory + "\n\n" + m.filepicker.View() + "\n"
	}

	helpView := helpStyle(m.help.ShortHelpView([]key.Binding{
		m.keyMap.open,
		m.keyMap.start,
		m.keyMap.stop,
		m.keyMap.quit,
	}))

	return lipgloss.JoinVertical(lipgloss.Left, tableStyle.Render(m.table.View()), m.infoBox(), helpView)
}

func (m *model) updateRows() {
	rows := make([]table.Row, 0, len(m.torrents))
	for i, t := range m.torrents {
		info := t.Info()
		rows = append(rows, table.Row{
			fmt.Sprint(i + 1),
			info.Name,
			formatSize(info.Size),
			formatCount(info.Seeders),
			formatCount(info.Leechers),
			fmt.Sprint(info.Peers),
			info.Status.String(),
		})
	}
	m.table.SetRows(rows)
}

func (m model) infoBox() string {
	if m.err != nil {
		return infoBoxStyle.Render(failureStyle.Render(m.err.Error()))
	}

	t := m.selectedTorrent()
	if t == nil {
		return infoBoxStyle.Render("No torrent")
	}

	info := t.Info()

	var b strings.Builder

	fmt.Fprintf(&b, "Hash: %s\n", info.Hash)
	fmt.Fprintf(&b, "Tracker: %s", info.Announce)

	if info.Running {
		b.WriteString("\nAnnouncing: yes")
	} else {
		b.WriteString("\nAnnouncing: no")
	}

	if info.Interval > 0 {
		fmt.Fprintf(&b, "\nInterval: %s", info.Interval)
	}
	if info.Warning != "" {
		fmt.Fprintf(&b, "\nWarning: %s", info.Warning)
	}

	if info.Err != nil {
		var failure *tracker.FailureError
		if errors.As(info.Err, &failure) {
			fmt.Fprintf(&b, "\n%s", failureStyle.Render("Rejected: "+failure.Reason))
		} else {
			fmt.Fprintf(&b, "\n%s", failureStyle.Render("Error: "+info.Err.Error()))
		}
	}

	return infoBoxStyle.Render(b.String())
}

func (m model) selectedTorrent() *torrent.Torrent {
	cursor := m.table.Cursor()
	if cursor < 0 || cursor >= len(m.torrents) {
		return nil
	}

	return m.torrents[cursor]
}

func formatCount(n *int64) string {
	if n == nil {
		return "-"
	}

	return fmt.Sprint(*n)
}

func formatSize(n int64) string {
	const bytesInMB = 1024 * 1024

	return fmt.Sprintf("%.2fMB", float64(n)/bytesInMB)
}

func configurePicker() filepicker.Model {
	fp := filepicker.New()
	fp.AllowedTypes = []string{".torrent"}

	return fp
}

func configureTable() table.Model {
	columns := []table.Column{
		{Title: "#", Width: 2},
		{Title: "Name", Width: 30},
		{Title: "Size", Width: 10},
		{Title: "Seeders", Width: 8},
		{Title: "Leechers", Width: 8},
		{Title: "Peers", Width: 6},
		{Title: "Status", Width: 10},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(7),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return t
}

func newKeyMap() keyMap {
	return keyMap{
		open: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open"),
		),
		start: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "resume"),
		),
		stop: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "stop"),
		),
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func newModel(client *torrent.Client) model {
	return model{
		filepicker: configurePicker(),
		table:      configureTable(),
		keyMap:     newKeyMap(),
		help:       help.New(),
		client:     client,
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func main() {
	zap.ReplaceGlobals(zap.NewNop())

	cfg, err := config.Load(config.FromEnv(os.Environ()))
	if err != nil {
		fmt.Println("Invalid configuration:", err)
		os.Exit(1)
	}

	client, err := torrent.NewClient(cfg)
	if err != nil {
		fmt.Println("Error creating client:", err)
		os.Exit(1)
	}

	_, err = tea.NewProgram(newModel(client), tea.WithAltScreen()).Run()
	client.Close()
	if err != nil {
		fmt.Println("Error running program:", err)
		os.Exit(1)
	}
}
