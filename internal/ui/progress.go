package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/linuxmatters/framecast/internal/cli"
)

// Phase represents the current processing phase
type Phase int

const (
	PhaseEncoding Phase = iota
	PhaseComplete
)

// Progress is sent after every encoded frame
type Progress struct {
	Frame     int
	Total     int
	Packets   int
	Bytes     int64
	Elapsed   time.Duration
	FrameRate float64
	Preview   [][]uint8 // optional, from DownsampleLuma
}

// Complete signals the end of the run
type Complete struct {
	OutputFile     string
	EncoderName    string
	Frames         int
	Requested      int
	Packets        int
	Bytes          int64
	EncodeFailures int
	ShortWrites    int
	TotalTime      time.Duration
	FrameRate      float64
	Err            error
}

// quitMsg is sent when it's time to quit after showing completion
type quitMsg struct{}

// Model is the Bubbletea model for a transcode run
type Model struct {
	progressBar progress.Model
	phase       Phase

	title   string
	state   Progress
	preview string

	complete *Complete

	startTime       time.Time
	width           int
	noPreview       bool
	completionDelay time.Duration
}

// NewModel creates a progress UI model. title is shown above the bar,
// typically the source and output geometry.
func NewModel(title string, noPreview bool) *Model {
	p := progress.New(
		progress.WithGradient(string(cli.SignalIndigo), string(cli.SignalCyan)),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return &Model{
		progressBar:     p,
		phase:           PhaseEncoding,
		title:           title,
		startTime:       time.Now(),
		noPreview:       noPreview,
		completionDelay: time.Second,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progressBar.Width = max(10, min(msg.Width-30, 50))
		return m, nil

	case Progress:
		m.state = msg
		if !m.noPreview && msg.Preview != nil {
			m.preview = RenderPreview(msg.Preview)
		}
		return m, nil

	case Complete:
		m.complete = &msg
		m.phase = PhaseComplete
		return m, tea.Tick(m.completionDelay, func(time.Time) tea.Msg {
			return quitMsg{}
		})

	case quitMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		if m.complete != nil || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}

	return m, nil
}

// View renders the UI
func (m *Model) View() string {
	if m.phase == PhaseComplete {
		return m.renderComplete()
	}
	return m.renderProgress()
}

// CompletionSummary returns the final summary for printing after the
// program exits. Empty until Complete has been received.
func (m *Model) CompletionSummary() string {
	if m.complete == nil {
		return ""
	}
	return m.renderComplete()
}

func (m *Model) renderHeader(s *strings.Builder) {
	s.WriteString(lipgloss.NewStyle().Bold(true).Foreground(cli.SignalCyan).Render("Framecast 📡"))
	s.WriteString("\n")
	if m.title != "" {
		s.WriteString(lipgloss.NewStyle().Foreground(cli.SignalTeal).Render(m.title))
		s.WriteString("\n")
	}
	s.WriteString("\n")
}

func (m *Model) renderProgress() string {
	var s strings.Builder
	m.renderHeader(&s)

	st := m.state
	if st.Total == 0 {
		s.WriteString(lipgloss.NewStyle().Faint(true).Render("Starting encoder..."))
	} else {
		percent := float64(st.Frame) / float64(st.Total)
		s.WriteString("Progress: ")
		s.WriteString(m.progressBar.ViewAs(percent))
		s.WriteString(fmt.Sprintf("  %d%%", int(percent*100)))
		s.WriteString("\n\n")

		elapsed := st.Elapsed
		if elapsed == 0 {
			elapsed = time.Since(m.startTime)
		}
		var eta time.Duration
		if percent > 0 {
			eta = time.Duration(float64(elapsed)/percent) - elapsed
		}

		timing := fmt.Sprintf("Time: %s  │  Speed: %s  │  ETA: %s",
			cli.FormatDuration(elapsed),
			cli.FormatSpeed(speed(st.Frame, st.FrameRate, elapsed)),
			cli.FormatDuration(eta))
		s.WriteString(lipgloss.NewStyle().Faint(true).Render(timing))
		s.WriteString("\n")

		label := lipgloss.NewStyle().Foreground(cli.SlateGray)
		s.WriteString(lipgloss.NewStyle().Faint(true).Italic(true).Render(
			fmt.Sprintf("Frame %d of %d", st.Frame, st.Total)))
		s.WriteString("\n")
		s.WriteString(label.Render("Packets: "))
		s.WriteString(fmt.Sprintf("%d", st.Packets))
		s.WriteString(label.Render("  Size: "))
		s.WriteString(cli.FormatBytes(st.Bytes))
	}

	if m.preview != "" {
		s.WriteString("\n\n")
		s.WriteString(m.preview)
	}

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(cli.SignalBlue).
		Padding(1, 2).
		Render(s.String())
}

func (m *Model) renderComplete() string {
	c := m.complete
	var s strings.Builder

	if c.Err != nil {
		s.WriteString(cli.ErrorStyle.Render("✗ Encoding Failed"))
		s.WriteString("\n")
		s.WriteString(c.Err.Error())
		s.WriteString("\n\n")
	} else {
		s.WriteString(lipgloss.NewStyle().Bold(true).Foreground(cli.SignalCyan).Render("✓ Encoding Complete!"))
		s.WriteString("\n\n")
	}

	dimLabel := lipgloss.NewStyle().Faint(true)
	line := func(key, value string) {
		s.WriteString(fmt.Sprintf("%s%s\n", dimLabel.Render(fmt.Sprintf("%-10s", key+":")), value))
	}

	line("Output", c.OutputFile)
	if c.EncoderName != "" {
		line("Encoder", c.EncoderName)
	}
	frames := fmt.Sprintf("%d", c.Frames)
	if c.Requested != c.Frames {
		frames = fmt.Sprintf("%d of %d requested", c.Frames, c.Requested)
	}
	line("Frames", frames)
	line("Packets", fmt.Sprintf("%d", c.Packets))
	line("Size", cli.FormatBytes(c.Bytes))
	line("Time", fmt.Sprintf("%s (%s)", cli.FormatDuration(c.TotalTime),
		cli.FormatSpeed(speed(c.Frames, c.FrameRate, c.TotalTime))))
	if c.EncodeFailures > 0 {
		line("Rejected", fmt.Sprintf("%d frames", c.EncodeFailures))
	}
	if c.ShortWrites > 0 {
		line("Short", fmt.Sprintf("%d writes", c.ShortWrites))
	}

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(cli.SignalTeal).
		Padding(1, 1).
		Render(strings.TrimSuffix(s.String(), "\n")) + "\n"
}

// speed is media time encoded per wall-clock second
func speed(frames int, fps float64, elapsed time.Duration) float64 {
	if fps <= 0 || elapsed <= 0 {
		return 0
	}
	return float64(frames) / fps / elapsed.Seconds()
}
