package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/GappelSolutions/lazyops/pkg/config"
)

// Styles holds the lipgloss styles derived from the configured theme.
type Styles struct {
	Panel        lipgloss.Style
	FocusedPanel lipgloss.Style
	Title        lipgloss.Style
	Selected     lipgloss.Style
	Text         lipgloss.Style
	Muted        lipgloss.Style
	Highlight    lipgloss.Style
	StatusBar    lipgloss.Style
	StatusError  lipgloss.Style
	Pin          lipgloss.Style
	Help         lipgloss.Style
}

// NewStyles builds the style set from theme colors.
func NewStyles(theme config.Theme) Styles {
	return Styles{
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(theme.Border)),
		FocusedPanel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(theme.BorderFocus)),
		Title: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Highlight)).
			Bold(true),
		Selected: lipgloss.NewStyle().
			Background(lipgloss.Color(theme.SelectedBg)).
			Bold(true),
		Text:      lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Text)),
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color(theme.TextMuted)),
		Highlight: lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Highlight)),
		StatusBar: lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Text)),
		StatusError: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true),
		Pin:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB86C")),
		Help: lipgloss.NewStyle().Foreground(lipgloss.Color(theme.TextMuted)),
	}
}

// stateColors maps board states to foreground colors.
var stateColors = map[string]lipgloss.Color{
	"New":               lipgloss.Color("#8c8c8c"),
	"To Do":             lipgloss.Color("#8c8c8c"),
	"In Progress":       lipgloss.Color("#c8b43c"),
	"Done In Stage":     lipgloss.Color("#b464c8"),
	"Done Not Released": lipgloss.Color("#e68c32"),
	"Done":              lipgloss.Color("#50c878"),
	"Tested w/Bugs":     lipgloss.Color("#dc5050"),
	"Removed":           lipgloss.Color("#646464"),
}

// typeColors maps work item types to foreground colors.
var typeColors = map[string]lipgloss.Color{
	"Bug":                  lipgloss.Color("#e06c75"),
	"User Story":           lipgloss.Color("#c678dd"),
	"Product Backlog Item": lipgloss.Color("#c678dd"),
	"Task":                 lipgloss.Color("#61afef"),
	"Feature":              lipgloss.Color("#56b6c2"),
	"Epic":                 lipgloss.Color("#d19a66"),
}

// StateStyle returns a style colored for the given work item state.
func StateStyle(state string) lipgloss.Style {
	if c, ok := stateColors[state]; ok {
		return lipgloss.NewStyle().Foreground(c)
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("#8c8c8c"))
}

// TypeStyle returns a style colored for the given work item type.
func TypeStyle(itemType string) lipgloss.Style {
	if c, ok := typeColors[itemType]; ok {
		return lipgloss.NewStyle().Foreground(c)
	}
	return lipgloss.NewStyle()
}

// typeIcon returns a short glyph for the work item type.
func typeIcon(itemType string) string {
	switch itemType {
	case "Bug":
		return "B"
	case "User Story", "Product Backlog Item":
		return "S"
	case "Task":
		return "T"
	case "Feature":
		return "F"
	case "Epic":
		return "E"
	default:
		return "•"
	}
}
