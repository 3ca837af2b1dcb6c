// Package tui is a terminal front end for chart search. It drives a
// search.Controller with bubbletea key events and renders its results into a
// scrollable viewport.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/starford/atlas/internal/search"
	"github.com/starford/atlas/internal/site"
)

// Loader fetches the dataset.
type Loader func(ctx context.Context) (*site.Dataset, error)

// DatasetLoadedMsg carries the outcome of the dataset load.
type DatasetLoadedMsg struct {
	Dataset *site.Dataset
	Err     error
}

// Options configure a Model.
type Options struct {
	Layout search.Layout
	// Fragment is the initial query in fragment form, e.g. "search=deploy".
	Fragment string
	Loader   Loader
	Logger   *slog.Logger
	// LoadTimeout bounds the dataset load. Zero means 15 seconds.
	LoadTimeout time.Duration
}

const (
	focusFind = iota
	focusSearch
)

// Model is the bubbletea model of the search screen. It is also the
// search.View and search.Navigator of its controller.
type Model struct {
	opts   Options
	ctrl   *search.Controller
	logger *slog.Logger

	find     textinput.Model
	grep     textinput.Model
	focus    int
	viewport viewport.Model
	width    int

	enabled bool
	status  string
	chosen  string
}

// New creates a Model in the not-loaded state.
func New(opts Options) *Model {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 15 * time.Second
	}

	find := textinput.New()
	find.Prompt = "find: "
	find.Placeholder = "chart name pattern"
	find.CharLimit = 256

	grep := textinput.New()
	grep.Prompt = "search: "
	grep.Placeholder = "text pattern, or . to list"
	grep.CharLimit = 256

	m := &Model{
		opts:     opts,
		logger:   opts.Logger,
		find:     find,
		grep:     grep,
		focus:    focusSearch,
		viewport: viewport.New(80, 20),
		width:    80,
		status:   "loading charts...",
	}
	m.ctrl = search.NewController(opts.Layout, m, m)
	m.ctrl.OnFragmentChanged(opts.Fragment)
	return m
}

// Controller returns the search controller the model drives.
func (m *Model) Controller() *search.Controller { return m.ctrl }

// Chosen returns the chart href submitted with Enter, if any.
func (m *Model) Chosen() string { return m.chosen }

// Init starts the dataset load.
func (m *Model) Init() tea.Cmd {
	return m.load()
}

func (m *Model) load() tea.Cmd {
	loader, timeout := m.opts.Loader, m.opts.LoadTimeout
	return func() tea.Msg {
		if loader == nil {
			return DatasetLoadedMsg{Err: fmt.Errorf("tui: no dataset loader")}
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		ds, err := loader(ctx)
		return DatasetLoadedMsg{Dataset: ds, Err: err}
	}
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case DatasetLoadedMsg:
		if msg.Err != nil {
			m.logger.Warn("tui: dataset load failed", slog.String("error", msg.Err.Error()))
			m.status = "charts unavailable: " + msg.Err.Error()
			return m, nil
		}
		m.ctrl.OnDatasetLoaded(msg.Dataset)
		m.status = ""
		return m, textinput.Blink

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.find.Width = msg.Width - 16
		m.grep.Width = msg.Width - 16
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-m.chromeHeight(), 3)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	}
	if !m.enabled {
		return m, nil
	}

	switch msg.String() {
	case "enter":
		m.ctrl.OnKeyUp(search.KeyEnter, m.inputQuery())
		if m.chosen != "" {
			return m, tea.Quit
		}
		return m, nil
	case "tab", "shift+tab":
		if m.opts.Layout == search.LayoutSplit {
			m.setFocus(1 - m.focus)
		}
		return m, nil
	case "up", "down", "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	if m.focus == focusFind {
		m.find, cmd = m.find.Update(msg)
	} else {
		m.grep, cmd = m.grep.Update(msg)
	}
	m.ctrl.OnKeyUp(search.KeyOther, m.inputQuery())
	return m, cmd
}

func (m *Model) inputQuery() search.Query {
	q := search.Query{Search: m.grep.Value()}
	if m.opts.Layout == search.LayoutSplit {
		q.Find = m.find.Value()
	}
	return q
}

func (m *Model) setFocus(f int) {
	m.focus = f
	if f == focusFind {
		m.find.Focus()
		m.grep.Blur()
		return
	}
	m.grep.Focus()
	m.find.Blur()
}

func (m *Model) chromeHeight() int {
	h := 1 + 3 + 1 // header, search input, status
	if m.opts.Layout == search.LayoutSplit {
		h += 3
	}
	return h
}

// SetEnabled implements search.View.
func (m *Model) SetEnabled(enabled bool) {
	m.enabled = enabled
	if enabled {
		m.setFocus(m.focus)
		return
	}
	m.find.Blur()
	m.grep.Blur()
}

// SetQuery implements search.View.
func (m *Model) SetQuery(q search.Query) {
	m.find.SetValue(q.Find)
	m.grep.SetValue(q.Search)
}

// Render implements search.View.
func (m *Model) Render(prefix *search.Link, matches []search.Match) {
	m.viewport.SetContent(renderResults(prefix, matches))
}

// Clear implements search.View.
func (m *Model) Clear() {
	m.viewport.SetContent("")
}

// ScrollTop implements search.View.
func (m *Model) ScrollTop() {
	m.viewport.GotoTop()
}

// Navigate implements search.Navigator.
func (m *Model) Navigate(href string) {
	m.chosen = href
}

func renderResults(prefix *search.Link, matches []search.Match) string {
	var b strings.Builder
	if prefix != nil {
		fmt.Fprintf(&b, "(Alternately, shall we %s for that? %s)\n\n",
			prefix.Text, styleMuted.Render(prefix.Href))
	}
	b.WriteString(styleHeading.Render("Matching Charts") + "\n")
	if len(matches) == 0 {
		b.WriteString("  None\n")
		return b.String()
	}
	for _, mt := range matches {
		fmt.Fprintf(&b, "  %s  %s\n", styleTitle.Render(mt.Title), styleMuted.Render(mt.Href))
		for _, sn := range mt.Snippets {
			fmt.Fprintf(&b, "      ...%s%s%s\n", sn.Prefix, styleHit.Render(sn.Hit), sn.Suffix)
		}
	}
	return b.String()
}

// View renders the screen.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(styleHeader.Width(m.width).Render("Atlas chart search") + "\n")

	if !m.enabled {
		b.WriteString(styleWarning.Render(m.status) + "\n")
		return b.String()
	}

	if m.opts.Layout == search.LayoutSplit {
		b.WriteString(inputStyle(m.focus == focusFind).Render(m.find.View()) + "\n")
	}
	b.WriteString(inputStyle(m.focus == focusSearch).Render(m.grep.View()) + "\n")
	b.WriteString(m.viewport.View() + "\n")

	status := "enter: open first  tab: switch field  esc: quit"
	if f := m.ctrl.Fragment(); f != "" {
		status = "#" + f + "  " + status
	}
	b.WriteString(styleMuted.Render(status))
	return b.String()
}

func inputStyle(focused bool) lipgloss.Style {
	if focused {
		return styleInputFocused
	}
	return styleInput
}

// Run shows the search screen until the user quits or submits, and returns
// the submitted chart href ("" when none).
func Run(ctx context.Context, opts Options) (string, error) {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return "", fmt.Errorf("tui: %w", err)
	}
	return m.Chosen(), nil
}
