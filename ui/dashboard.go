// Package ui implements a terminal dashboard for the scanner: current
// state, frequency, bookmark, signal/noise levels and a compact spectrum
// bar, refreshed on a tick (§4.13).
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chzchzchz/sdrscan/scanner"
)

var (
	styleState   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	styleFreq    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleWarning = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Snapshot is the data the dashboard renders for one tick. Source holds
// whatever produces it (cmd/scanner's adapter over the Scanner, or a test
// fixture).
type Snapshot struct {
	State        scanner.State
	FrequencyHz  float64
	Bookmark     string
	PeakDB       float64
	NoiseFloorDB float64
	Spectrum     []float64 // normalized [0,1], left-to-right across the band
}

// Source supplies the dashboard's next snapshot each tick.
type Source interface {
	Snapshot() Snapshot
}

type tickMsg time.Time

// Model is the bubbletea model driving the dashboard.
type Model struct {
	source Source
	width  int
	last   Snapshot
}

func NewModel(source Source) Model {
	return Model{source: source, width: 64}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil
	case tickMsg:
		m.last = m.source.Snapshot()
		return m, tick()
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	s := m.last

	fmt.Fprintf(&b, "%s  %s\n", styleState.Render(s.State.String()), styleFreq.Render(formatMHz(s.FrequencyHz)))
	if s.Bookmark != "" {
		fmt.Fprintf(&b, "%s\n", styleDim.Render(s.Bookmark))
	}
	fmt.Fprintf(&b, "peak %s   noise %s\n",
		levelStyle(s.PeakDB).Render(fmt.Sprintf("%.1f dB", s.PeakDB)),
		styleDim.Render(fmt.Sprintf("%.1f dB", s.NoiseFloorDB)))
	b.WriteString(renderSpectrum(s.Spectrum, m.width))
	b.WriteString("\n")
	b.WriteString(styleDim.Render("q to quit"))
	return b.String()
}

func levelStyle(db float64) lipgloss.Style {
	switch {
	case db > -40:
		return styleError
	case db > -60:
		return styleWarning
	default:
		return styleSuccess
	}
}

func formatMHz(hz float64) string {
	return fmt.Sprintf("%.4f MHz", hz/1e6)
}

// renderSpectrum draws a single-line bar graph, bucketing data down to w
// columns by simple stride sampling (matches the dashboard's "compact"
// rendering style: one line, four intensity levels).
func renderSpectrum(data []float64, w int) string {
	if w <= 0 {
		w = 64
	}
	var sb strings.Builder
	n := len(data)
	for col := 0; col < w; col++ {
		v := 0.0
		if n > 0 {
			idx := col * n / w
			if idx >= n {
				idx = n - 1
			}
			v = data[idx]
		}
		switch {
		case v > 0.8:
			sb.WriteString(styleError.Render("█"))
		case v > 0.5:
			sb.WriteString(styleWarning.Render("▄"))
		case v > 0.2:
			sb.WriteString(styleSuccess.Render("▁"))
		default:
			sb.WriteString(styleDim.Render("▁"))
		}
	}
	return sb.String()
}
