// Package ui renders batch resolution progress in the terminal.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"trainplan/internal/pipeline"
)

const (
	labelQueued   = "queued"
	labelAccepted = "accepted"
	labelRejected = "rejected"
	labelCached   = "cached"
)

type progressModel struct {
	title   string
	events  <-chan pipeline.Event
	spinner spinner.Model
	prog    progress.Model
	items   []candidate
	index   map[string]int
	width   int
	done    bool
}

type candidate struct {
	name   string
	status string
	// доля пройденных стадий, 0..1
	frac float64
}

func (c candidate) finished() bool {
	return c.status == labelAccepted || c.status == labelRejected || c.status == labelCached
}

type eventMsg pipeline.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model showing the stage of every
// candidate. The model quits when events is closed.
func NewProgressModel(title string, candidates []string, events <-chan pipeline.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]candidate, 0, len(candidates))
	index := make(map[string]int, len(candidates))
	for i, name := range candidates {
		items = append(items, candidate{name: name, status: labelQueued})
		index[name] = i
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		index:   index,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(pipeline.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = max(msg.Width-4, 10)
		}
		return m, nil
	case progress.FrameMsg:
		pm, cmd := m.prog.Update(msg)
		m.prog = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	finished := 0
	for _, it := range m.items {
		if it.finished() {
			finished++
		}
	}
	header := fmt.Sprintf("%s (%d/%d)", m.title, finished, len(m.items))
	if m.done {
		header = "done: " + header
	} else {
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	const statusWidth = 14
	nameWidth := max(m.width-statusWidth-4, 20)
	for _, it := range m.items {
		status := styleStatus(it.status).Render(fmt.Sprintf("%*s", statusWidth, it.status))
		fmt.Fprintf(&b, "  %s %s\n", status, truncate(it.name, nameWidth))
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev pipeline.Event) tea.Cmd {
	idx, ok := m.index[ev.Request]
	if !ok {
		return nil
	}
	it := &m.items[idx]
	if it.finished() {
		return nil
	}
	switch ev.Status {
	case pipeline.StatusQueued:
		return nil
	case pipeline.StatusWorking:
		it.status = stageLabel(ev.Stage)
		it.frac = stageFraction(ev.Stage, false)
	case pipeline.StatusDone:
		it.frac = stageFraction(ev.Stage, true)
		if ev.Stage == pipeline.StageEmit {
			it.status = labelAccepted
		}
	case pipeline.StatusCached:
		it.status, it.frac = labelCached, 1
	case pipeline.StatusError:
		it.status, it.frac = labelRejected, 1
	}
	return m.prog.SetPercent(m.percent())
}

func (m *progressModel) percent() float64 {
	total := 0.0
	for _, it := range m.items {
		total += it.frac
	}
	return total / float64(len(m.items))
}

func stageFraction(stage pipeline.Stage, done bool) float64 {
	for i, s := range pipeline.Stages {
		if s == stage {
			if done {
				i++
			}
			return float64(i) / float64(len(pipeline.Stages))
		}
	}
	return 0
}

func stageLabel(stage pipeline.Stage) string {
	switch stage {
	case pipeline.StageLoad:
		return "loading"
	case pipeline.StageMerge:
		return "merging"
	case pipeline.StageSchema:
		return "validating"
	case pipeline.StageRules:
		return "checking"
	case pipeline.StageDerive:
		return "deriving"
	case pipeline.StageEmit:
		return "emitting"
	default:
		return string(stage)
	}
}

func styleStatus(status string) lipgloss.Style {
	switch status {
	case labelAccepted, labelCached:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case labelRejected:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case labelQueued:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}
