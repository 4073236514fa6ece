package output

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color palette, lime accent.
const (
	ColorLime     = "154"
	ColorLimeDim  = "106"
	ColorGray     = "245"
	ColorDarkGray = "238"
	ColorRed      = "196"
	ColorYellow   = "220"
)

// Styles holds the styles used for text rendering.
type Styles struct {
	Path    lipgloss.Style
	Lines   lipgloss.Style
	Score   lipgloss.Style
	Kind    lipgloss.Style
	Binding lipgloss.Style
	Gutter  lipgloss.Style
	Summary lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

// DefaultStyles returns the colored styles.
func DefaultStyles() Styles {
	return Styles{
		Path:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
		Lines:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLimeDim)),
		Score:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Kind:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Binding: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Gutter:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Summary: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
	}
}

// NoColorStyles returns unstyled components for plain mode.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Path:    plain,
		Lines:   plain,
		Score:   plain,
		Kind:    plain,
		Binding: plain,
		Gutter:  plain,
		Summary: plain,
		Success: plain,
		Warning: plain,
		Error:   plain,
	}
}

// GetStyles returns the appropriate styles based on color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}
