package cmd

import "github.com/charmbracelet/lipgloss"

// styles holds the lipgloss styles used for command output.
type styles struct {
	// Workspace markers
	Current string
	Pending string

	CurrentStyle lipgloss.Style
	PendingStyle lipgloss.Style
	IdleStyle    lipgloss.Style

	Header  lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Current: "●",
		Pending: "◐",

		CurrentStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")). // green
			Bold(true),

		PendingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")). // yellow
			Bold(true),

		IdleStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")), // gray

		Header: lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")). // cyan
			Bold(true),

		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")),

		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),

		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")),

		Info: lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")), // blue
	}
}
