// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"

	"voicedsp/internal/analysis"
	"voicedsp/internal/audio"
	"voicedsp/internal/transport"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Controller is the part of the engine the spectrum view drives.
type Controller interface {
	Start() error
	Stop() error
	Done() <-chan struct{}
	Wait() error
	State() audio.State
	Stats() audio.Stats
}

var _ Controller = (*audio.Engine)(nil)

// Display range of the bars, relative to the loudest recent bin.
const (
	floorDB   = -60.0
	refDecay  = 0.97 // Per-frame decay of the reference level.
	minHeight = 4
)

var (
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
	peakStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F25D94")).Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#767676"))
)

var blocks = []rune(" ▁▂▃▄▅▆▇█")

type spectrumKeyMap struct {
	Toggle key.Binding
	Quit   key.Binding
}

func (k spectrumKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Quit}
}

func (k spectrumKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var spectrumKeys = spectrumKeyMap{
	Toggle: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "start/stop")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// frameMsg carries one spectrum from the engine's delivery goroutine.
type frameMsg struct {
	frame transport.Frame
}

// startedMsg reports a successful Start; gen identifies the run.
type startedMsg struct {
	gen  int
	done <-chan struct{}
}

// runEndedMsg reports the end of run gen, by Stop or by the capture.
type runEndedMsg struct {
	gen int
	err error
}

// SpectrumModel renders the live spectrum and toggles capture. Engine
// calls that block run inside commands so the delivery goroutine can
// always hand frames to the program.
type SpectrumModel struct {
	engine   Controller
	analyzer *analysis.Analyzer
	title    string

	width, height int
	help          help.Model

	gen      int
	running  bool
	busy     bool // A start or stop command is in flight.
	quitting bool
	err      error

	frame   transport.Frame
	summary analysis.Summary
	ref     float64 // Decaying maximum magnitude, the top of the scale.
}

// NewSpectrumModel creates the view. The engine must be idle; the model
// starts it from Init.
func NewSpectrumModel(engine Controller, analyzer *analysis.Analyzer, title string) SpectrumModel {
	return SpectrumModel{
		engine:   engine,
		analyzer: analyzer,
		title:    title,
		help:     help.New(),
		width:    80,
		height:   24,
	}
}

// Init starts the engine.
func (m SpectrumModel) Init() tea.Cmd {
	return startCmd(m.engine, m.gen+1)
}

func startCmd(engine Controller, gen int) tea.Cmd {
	return func() tea.Msg {
		if err := engine.Start(); err != nil {
			return runEndedMsg{gen: gen, err: err}
		}
		return startedMsg{gen: gen, done: engine.Done()}
	}
}

func stopCmd(engine Controller, gen int) tea.Cmd {
	return func() tea.Msg {
		return runEndedMsg{gen: gen, err: engine.Stop()}
	}
}

func waitCmd(engine Controller, gen int, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done
		return runEndedMsg{gen: gen, err: engine.Wait()}
	}
}

// Update handles frames, engine transitions and keys.
func (m SpectrumModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width

	case frameMsg:
		m.frame = msg.frame
		m.summary = m.analyzer.Summarize(msg.frame)
		m.ref = max(m.ref*refDecay, float64(m.summary.PeakValue))

	case startedMsg:
		m.gen = msg.gen
		m.busy = false
		m.running = true
		m.err = nil
		return m, waitCmd(m.engine, msg.gen, msg.done)

	case runEndedMsg:
		if msg.gen < m.gen {
			// A late report from an earlier run.
			return m, nil
		}
		m.gen = msg.gen
		m.busy = false
		m.running = false
		if msg.err != nil {
			m.err = msg.err
		}
		if m.quitting {
			return m, tea.Quit
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, spectrumKeys.Quit):
			if m.running || m.busy {
				m.quitting = true
				return m, stopCmd(m.engine, m.gen)
			}
			return m, tea.Quit

		case key.Matches(msg, spectrumKeys.Toggle):
			if m.busy {
				return m, nil
			}
			m.busy = true
			if m.running {
				return m, stopCmd(m.engine, m.gen)
			}
			return m, startCmd(m.engine, m.gen+1)
		}
	}
	return m, nil
}

// View renders the bars, the summary line and the help.
func (m SpectrumModel) View() string {
	var sb strings.Builder

	status := dimStyle.Render("stopped")
	if m.running {
		status = barStyle.Render("running")
	}
	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteString(" ")
	sb.WriteString(status)
	sb.WriteString("\n\n")

	// Title, blank, summary, bands, stats, error, help.
	rows := max(minHeight, m.height-9)
	sb.WriteString(m.renderBars(max(1, m.width), rows))
	sb.WriteString("\n")
	sb.WriteString(m.renderSummary())
	sb.WriteString("\n")

	stats := m.engine.Stats()
	sb.WriteString(dimStyle.Render(fmt.Sprintf("blocks %d  delivered %d  dropped %d  overflows %d  input %3.0f%%",
		stats.Blocks, stats.Delivered, stats.Dropped, stats.Overflows, stats.InputPeak*100)))
	sb.WriteString("\n")

	if m.err != nil {
		sb.WriteString(errorStyle.Render("Error: " + m.err.Error()))
	}
	sb.WriteString("\n")
	sb.WriteString(m.help.View(spectrumKeys))
	return sb.String()
}

// renderSummary shows the dominant frequency and the band shares.
func (m SpectrumModel) renderSummary() string {
	if len(m.frame.Magnitudes) == 0 {
		return dimStyle.Render("waiting for audio...") + "\n"
	}

	var sb strings.Builder
	voice := ""
	if m.summary.Voice {
		voice = "  " + peakStyle.Render("VOICE")
	}
	sb.WriteString(fmt.Sprintf("frame %d  peak %s  (bin %d)%s\n",
		m.summary.Sequence, peakStyle.Render(fmt.Sprintf("%7.1f Hz", m.summary.PeakHz)), m.summary.PeakBin, voice))

	parts := make([]string, 0, len(m.summary.Bands))
	for _, b := range m.summary.Bands {
		parts = append(parts, fmt.Sprintf("%s %3.0f%%", b.Name, b.Share*100))
	}
	sb.WriteString(strings.Join(parts, "  "))
	return sb.String()
}

// renderBars draws one column per group of bins, log scaled against the
// decaying reference level.
func (m SpectrumModel) renderBars(width, rows int) string {
	levels := columnLevels(m.frame.Magnitudes, width, m.ref)
	peakCol := -1
	if n := len(m.frame.Magnitudes); n > 0 && len(levels) > 0 {
		peakCol = m.summary.PeakBin * len(levels) / n
	}

	var sb strings.Builder
	for row := rows - 1; row >= 0; row-- {
		line := make([]rune, len(levels))
		for col, level := range levels {
			fill := level*float64(rows) - float64(row)
			switch {
			case fill >= 1:
				line[col] = blocks[len(blocks)-1]
			case fill <= 0:
				line[col] = blocks[0]
			default:
				line[col] = blocks[int(fill*float64(len(blocks)-1))]
			}
		}
		if peakCol >= 0 && peakCol < len(line) {
			sb.WriteString(barStyle.Render(string(line[:peakCol])))
			sb.WriteString(peakStyle.Render(string(line[peakCol])))
			sb.WriteString(barStyle.Render(string(line[peakCol+1:])))
		} else {
			sb.WriteString(barStyle.Render(string(line)))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// columnLevels reduces mags to at most width columns, each the loudest of
// its bins, mapped to [0, 1] over floorDB..0 dB relative to ref.
func columnLevels(mags []float32, width int, ref float64) []float64 {
	if len(mags) == 0 || width <= 0 {
		return nil
	}
	cols := min(width, len(mags))
	levels := make([]float64, cols)
	if ref <= 0 {
		return levels
	}
	for col := range levels {
		lo := col * len(mags) / cols
		hi := (col + 1) * len(mags) / cols
		var loudest float32
		for _, v := range mags[lo:hi] {
			loudest = max(loudest, v)
		}
		if loudest <= 0 {
			continue
		}
		db := 20 * math.Log10(float64(loudest)/ref)
		levels[col] = min(1, max(0, (db-floorDB)/-floorDB))
	}
	return levels
}

// Sink forwards frames to the program attached to it. Frames arriving
// while no program is attached are dropped.
type Sink struct {
	program atomic.Pointer[tea.Program]
}

// NewSink returns a detached sink. The engine is built with it before the
// program that displays the engine exists.
func NewSink() *Sink {
	return &Sink{}
}

// Attach directs frames to program; nil detaches.
func (s *Sink) Attach(program *tea.Program) {
	s.program.Store(program)
}

// OnSpectrumReady implements transport.Sink. Send blocks until the
// program takes the message and returns at once after it exits.
func (s *Sink) OnSpectrumReady(frame transport.Frame) {
	if p := s.program.Load(); p != nil {
		p.Send(frameMsg{frame: frame})
	}
}

var _ transport.Sink = (*Sink)(nil)

// RunSpectrum shows the spectrum of engine full screen until the user
// quits. sink must be part of the engine's sink. The engine may still be
// running when RunSpectrum returns.
func RunSpectrum(engine Controller, analyzer *analysis.Analyzer, title string, sink *Sink) error {
	program := tea.NewProgram(NewSpectrumModel(engine, analyzer, title), tea.WithAltScreen())
	sink.Attach(program)
	defer sink.Attach(nil)

	_, err := program.Run()
	return err
}
