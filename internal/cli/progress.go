package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/Dirstral/ragmcp/internal/build"
)

type progressMsg build.Event

type progressModel struct {
	spinner spinner.Model
	tool    string
	stage   build.Stage
	done    int
	total   int
}

func newProgressModel() progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(clrBrand)
	return progressModel{spinner: s}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		if msg.Tool != "" {
			m.tool = msg.Tool
		}
		m.stage = msg.Stage
		m.done = msg.Done
		m.total = msg.Total
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.tool == "" {
		return ""
	}
	line := fmt.Sprintf("%s %s: %s", m.spinner.View(), m.tool, m.stage)
	if m.stage == build.StageEmbedding && m.total > 0 {
		line += fmt.Sprintf(" %d/%d chunks", m.done, m.total)
	}
	return line + "\n"
}

// buildProgress shows a spinner on a terminal while a build runs. Log lines
// are printed above the spinner until Stop restores the logger output.
type buildProgress struct {
	out    io.Writer
	logger *logrus.Logger

	mu      sync.Mutex
	program *tea.Program
	exited  chan struct{}
	prevOut io.Writer
}

func newBuildProgress(out io.Writer, logger *logrus.Logger) *buildProgress {
	return &buildProgress{out: out, logger: logger}
}

// Handle starts the spinner on the first event and forwards every event
// to it.
func (p *buildProgress) Handle(ev build.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.program == nil {
		p.program = tea.NewProgram(newProgressModel(),
			tea.WithOutput(p.out),
			tea.WithInput(nil),
			tea.WithoutSignalHandler(),
		)
		p.exited = make(chan struct{})
		p.prevOut = p.logger.Out
		p.logger.SetOutput(programWriter{program: p.program})
		go func(program *tea.Program, exited chan struct{}) {
			_, _ = program.Run()
			close(exited)
		}(p.program, p.exited)
	}
	p.program.Send(progressMsg(ev))
}

func (p *buildProgress) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.program == nil {
		return
	}
	p.program.Quit()
	<-p.exited
	p.logger.SetOutput(p.prevOut)
	p.program = nil
}

type programWriter struct {
	program *tea.Program
}

func (w programWriter) Write(b []byte) (int, error) {
	w.program.Println(strings.TrimRight(string(b), "\n"))
	return len(b), nil
}
