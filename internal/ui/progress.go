package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"uitest/internal/runner"
)

// maxVisible caps the case list; long suites show the cases in flight and
// the most recent failures.
const maxVisible = 20

type progressModel struct {
	title   string
	events  <-chan runner.Event
	spinner spinner.Model
	prog    progress.Model
	items   []caseItem
	index   map[string]int
	summary string
	width   int
	done    bool

	finished, failed int
}

type caseItem struct {
	id     string
	status string
	stage  runner.Stage
	final  bool
	err    error
}

type eventMsg runner.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders run progress from
// runner events. The model quits when events is closed.
func NewProgressModel(title string, cases []string, events <-chan runner.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]caseItem, 0, len(cases))
	index := make(map[string]int, len(cases))
	for i, id := range cases {
		items = append(items, caseItem{id: id, status: "queued"})
		index[id] = i
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
		cmd := m.applyEvent(runner.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		// прерывание обрабатывает вызывающий через контекст
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
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		progressModel, cmd := m.prog.Update(msg)
		m.prog = progressModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := fmt.Sprintf("%s %d/%d", m.title, m.finished, len(m.items))
	if m.failed > 0 {
		header = fmt.Sprintf("%s, %d failed", header, m.failed)
	}
	if m.done {
		header = "done: " + header
	} else {
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	statusWidth := 12
	nameWidth := max(m.width-statusWidth-4, 20)
	for _, item := range m.visible() {
		statusStyled := styleStatus(item.status).Render(fmt.Sprintf("%12s", item.status))
		fmt.Fprintf(&b, "  %s %s\n", statusStyled, truncate(item.id, nameWidth))
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	if m.summary != "" {
		b.WriteString(m.summary)
		b.WriteString("\n")
	}
	return b.String()
}

// visible picks running cases first, then failures.
func (m *progressModel) visible() []caseItem {
	if len(m.items) <= maxVisible {
		return m.items
	}
	out := make([]caseItem, 0, maxVisible)
	for _, pass := range []func(caseItem) bool{
		func(it caseItem) bool { return !it.final && it.status != "queued" },
		func(it caseItem) bool { return it.status == "failed" },
	} {
		for _, it := range m.items {
			if len(out) == maxVisible {
				return out
			}
			if pass(it) {
				out = append(out, it)
			}
		}
	}
	return out
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

func (m *progressModel) applyEvent(ev runner.Event) tea.Cmd {
	if ev.Case == "" {
		// итог всего прогона
		if ev.Status == runner.StatusDone || ev.Status == runner.StatusError {
			m.summary = fmt.Sprintf("finished in %.2fs", ev.Elapsed.Seconds())
		}
		return nil
	}
	idx, ok := m.index[ev.Case]
	if !ok {
		return nil
	}
	item := &m.items[idx]
	if item.final {
		return nil
	}
	if ev.Stage == runner.StageCase {
		switch ev.Status {
		case runner.StatusDone, runner.StatusError, runner.StatusSkipped:
			item.final = true
			item.status = finalLabel(ev.Status)
			m.finished++
			if ev.Status == runner.StatusError {
				m.failed++
			}
		case runner.StatusWorking:
			item.status = "started"
		}
	} else if ev.Status == runner.StatusWorking {
		item.stage = ev.Stage
		item.status = stageLabel(ev.Stage)
	} else if ev.Status == runner.StatusError && item.err == nil {
		item.err = ev.Err
	}

	if len(m.items) == 0 {
		return nil
	}
	total := 0.0
	for _, it := range m.items {
		if it.final {
			total += 1.0
		} else {
			total += progressFromStage(it.stage)
		}
	}
	return m.prog.SetPercent(total / float64(len(m.items)))
}

func finalLabel(status runner.Status) string {
	switch status {
	case runner.StatusError:
		return "failed"
	case runner.StatusSkipped:
		return "skipped"
	default:
		return "ok"
	}
}

func progressFromStage(stage runner.Stage) float64 {
	switch stage {
	case runner.StageCompile:
		return 0.2
	case runner.StageAnnotations:
		return 0.5
	case runner.StageSnapshot:
		return 0.6
	case runner.StageFix:
		return 0.75
	case runner.StageCoverage:
		return 0.9
	default:
		return 0.0
	}
}

func stageLabel(stage runner.Stage) string {
	switch stage {
	case runner.StageCompile:
		return "compiling"
	case runner.StageAnnotations:
		return "matching"
	case runner.StageSnapshot:
		return "comparing"
	case runner.StageFix:
		return "fixing"
	case runner.StageCoverage:
		return "coverage"
	default:
		return ""
	}
}

func styleStatus(status string) lipgloss.Style {
	switch status {
	case "ok":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case "failed":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case "skipped":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	case "compiling", "matching", "comparing", "fixing", "coverage", "started":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
