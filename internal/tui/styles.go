package tui

import "github.com/charmbracelet/lipgloss"

// Palette
var (
	colorAccent  = lipgloss.Color("#8BC34A")
	colorMuted   = lipgloss.Color("#6B7280")
	colorError   = lipgloss.Color("#E53935")
	colorInfo    = lipgloss.Color("#2196F3")
	colorOwn     = lipgloss.Color("#FFC107")
	colorBorder  = lipgloss.Color("#2A3850")
	colorSystem  = lipgloss.Color("#FF8A65")
	colorSticker = lipgloss.Color("#F2F2F2")
)

// Styles holds every style the view uses.
type Styles struct {
	Title      lipgloss.Style
	Status     lipgloss.Style
	Label      lipgloss.Style
	Hint       lipgloss.Style
	Time       lipgloss.Style
	Sender     lipgloss.Style
	OwnSender  lipgloss.Style
	System     lipgloss.Style
	Sticker    lipgloss.Style
	Image      lipgloss.Style
	Roster     lipgloss.Style
	RosterHead lipgloss.Style
	Typing     lipgloss.Style
	NoticeInfo lipgloss.Style
	NoticeErr  lipgloss.Style
	Form       lipgloss.Style
}

// DefaultStyles returns the standard look.
func DefaultStyles() Styles {
	return Styles{
		Title:      lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
		Status:     lipgloss.NewStyle().Foreground(colorMuted),
		Label:      lipgloss.NewStyle().Bold(true),
		Hint:       lipgloss.NewStyle().Foreground(colorMuted).Italic(true),
		Time:       lipgloss.NewStyle().Foreground(colorMuted),
		Sender:     lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
		OwnSender:  lipgloss.NewStyle().Bold(true).Foreground(colorOwn),
		System:     lipgloss.NewStyle().Foreground(colorSystem).Italic(true),
		Sticker:    lipgloss.NewStyle().Foreground(colorSticker).Padding(0, 1),
		Image:      lipgloss.NewStyle().Foreground(colorInfo).Underline(true),
		Roster:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorBorder).Padding(0, 1),
		RosterHead: lipgloss.NewStyle().Bold(true).Foreground(colorMuted),
		Typing:     lipgloss.NewStyle().Foreground(colorMuted).Italic(true),
		NoticeInfo: lipgloss.NewStyle().Foreground(colorInfo),
		NoticeErr:  lipgloss.NewStyle().Foreground(colorError).Bold(true),
		Form:       lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorBorder).Padding(1, 2),
	}
}
