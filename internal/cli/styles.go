package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	primaryColor   = lipgloss.Color("#1E90FF") // Framecast blue
	accentColor    = lipgloss.Color("#40E0D0") // Turquoise
	successColor   = lipgloss.Color("#00AA00") // Green
	errorColor     = lipgloss.Color("#CC0000") // Red
	mutedColor     = lipgloss.Color("#888888") // Gray
	highlightColor = lipgloss.Color("#FFFF00") // Yellow
	textColor      = lipgloss.Color("#FFFFFF") // White
)

// Styles
var (
	// Title style - bold blue
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	// Subtitle style - muted gray
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	// Section header style
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor).
			MarginTop(1).
			MarginBottom(1)

	// Success message style
	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(successColor)

	// Error message style
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor)

	// Highlight style for important values
	HighlightStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(highlightColor)

	// Key-value pair styles
	KeyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	ValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor)

	// Box style for framed content
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)
)

// PrintBanner prints the application banner
func PrintBanner() {
	banner := TitleStyle.Render("Framecast 📡")
	subtitle := SubtitleStyle.Render("Convert raw frames to YUV and encode them into an H.264 or HEVC elementary stream.")
	fmt.Println(banner)
	fmt.Println(subtitle)
	fmt.Println()
}

// PrintVersion prints version information
func PrintVersion(version string) {
	fmt.Println(TitleStyle.Render("Framecast 📡"))
	fmt.Printf("%s %s\n", KeyStyle.Render("Version:"), ValueStyle.Render(version))
	fmt.Println()
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), message)
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("%s %s\n", HighlightStyle.Render("Warning:"), message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("%s %s\n", SuccessStyle.Render("✓"), message)
}

// PrintInfo prints an informational message
func PrintInfo(key, value string) {
	fmt.Printf("%s %s\n", KeyStyle.Render(key+":"), ValueStyle.Render(value))
}

// PrintSection prints a section header
func PrintSection(title string) {
	fmt.Println(HeaderStyle.Render(title))
}

// FormatDuration formats a duration nicely
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.0fms", d.Seconds()*1000)
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// FormatSpeed formats encoding speed
func FormatSpeed(speed float64) string {
	return fmt.Sprintf("%.1fx realtime", speed)
}

// FormatBytes formats bytes into human-readable format
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// PrintBox prints content in a styled box
func PrintBox(content string) {
	fmt.Println(BoxStyle.Render(content))
}

// Summary is the plain-output report printed after a run
type Summary struct {
	Output      string
	Encoder     string
	Frames      int
	Requested   int
	Packets     int
	Bytes       int64
	ShortWrites int
	Failures    int
	Duration    time.Duration
	FrameRate   float64
}

// PrintSummary prints a run summary in a box
func PrintSummary(s Summary) {
	fmt.Println(RenderSummary(s))
}

// RenderSummary formats a run summary in a box
func RenderSummary(s Summary) string {
	var b strings.Builder

	b.WriteString(SuccessStyle.Render("✓ Encoding Complete!"))
	b.WriteString("\n\n")

	row := func(key, value string) {
		b.WriteString(KeyStyle.Render(fmt.Sprintf("%-10s ", key+":")))
		b.WriteString(ValueStyle.Render(value))
		b.WriteString("\n")
	}

	row("Output", s.Output)
	if s.Encoder != "" {
		row("Encoder", s.Encoder)
	}
	frames := fmt.Sprintf("%d", s.Frames)
	if s.Requested != s.Frames {
		frames = fmt.Sprintf("%d of %d requested", s.Frames, s.Requested)
	}
	row("Frames", frames)
	row("Packets", fmt.Sprintf("%d", s.Packets))
	row("File Size", FormatBytes(s.Bytes))
	row("Time", FormatDuration(s.Duration))
	if s.FrameRate > 0 && s.Duration > 0 {
		media := float64(s.Frames) / s.FrameRate
		row("Speed", FormatSpeed(media/s.Duration.Seconds()))
	}
	if s.ShortWrites > 0 {
		row("Short", fmt.Sprintf("%d writes", s.ShortWrites))
	}
	if s.Failures > 0 {
		row("Rejected", fmt.Sprintf("%d frames", s.Failures))
	}

	return BoxStyle.Render(strings.TrimSuffix(b.String(), "\n"))
}
