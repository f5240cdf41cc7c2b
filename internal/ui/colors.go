package ui

import "github.com/charmbracelet/lipgloss"

// Color palette using ANSI color codes for terminal compatibility.

// Semantic colors for status indication
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
)

// Text colors for content hierarchy
const (
	ColorPrimary   lipgloss.Color = "7" // White/default
	ColorSecondary lipgloss.Color = "4" // Blue
	ColorMuted     lipgloss.Color = "8" // Gray (bright black)
)

// Status symbols
const (
	SymbolSuccess = "✓"
	SymbolFail    = "✗"
	SymbolPending = "○"
	SymbolActive  = "●"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	errorStyle   = lipgloss.NewStyle().Foreground(ColorError)
	warningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	mutedStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
)

// Success renders s in the success color.
func Success(s string) string { return successStyle.Render(s) }

// Error renders s in the error color.
func Error(s string) string { return errorStyle.Render(s) }

// Warning renders s in the warning color.
func Warning(s string) string { return warningStyle.Render(s) }

// Muted renders s in the muted color.
func Muted(s string) string { return mutedStyle.Render(s) }
