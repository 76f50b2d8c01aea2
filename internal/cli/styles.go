// Package cli provides styled terminal output using lipgloss.
package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/sortdesk/mailtriage/internal/model"
)

var (
	// HighColor marks high-priority messages.
	HighColor = lipgloss.Color("#FF6B6B")
	// MediumColor marks medium-priority messages.
	MediumColor = lipgloss.Color("#FFE66D")
	// LowColor marks low-priority messages.
	LowColor = lipgloss.Color("#95E1D3")
	// SuccessColor indicates successful operations.
	SuccessColor = lipgloss.Color("#4ECDC4")
	// ErrorColor indicates errors or failure messages.
	ErrorColor = lipgloss.Color("#FF6B6B")
	// SubtleColor indicates less prominent UI elements.
	SubtleColor = lipgloss.Color("#666666")

	// TitleStyle is used for section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(HighColor).
			MarginBottom(1)

	// SuccessStyle formats success messages.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor)

	// ErrorStyle formats error messages.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor)

	// SubtleStyle formats less prominent text.
	SubtleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	highStyle   = lipgloss.NewStyle().Bold(true).Foreground(HighColor)
	mediumStyle = lipgloss.NewStyle().Foreground(MediumColor)
	lowStyle    = lipgloss.NewStyle().Foreground(LowColor)
)

// LabelStyle returns the style for a priority label.
func LabelStyle(l model.Label) lipgloss.Style {
	switch l {
	case model.LabelHigh:
		return highStyle
	case model.LabelMedium:
		return mediumStyle
	default:
		return lowStyle
	}
}
