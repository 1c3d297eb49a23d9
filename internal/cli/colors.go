package cli

import "github.com/charmbracelet/lipgloss"

// Signal colour palette 📡
// Shared colours for consistent branding across CLI and TUI
var (
	// Core colours (deep to bright)
	SignalIndigo = lipgloss.Color("#4B0082") // Indigo
	SignalBlue   = lipgloss.Color("#1E90FF") // Dodger blue
	SignalTeal   = lipgloss.Color("#00CED1") // Dark turquoise
	SignalCyan   = lipgloss.Color("#40E0D0") // Turquoise

	// Accent colours
	SlateGray = lipgloss.Color("#708090") // Subtle text
)
