package theme

import "github.com/charmbracelet/lipgloss"

// Theme is a reader colour scheme.
type Theme struct {
	Slug string
	Name string

	Text    lipgloss.Color // translation text
	Source  lipgloss.Color // original-language text
	Verse   lipgloss.Color // verse numbers
	Heading lipgloss.Color // chapter headings
	Muted   lipgloss.Color
	Accent  lipgloss.Color
	Error   lipgloss.Color
	Border  lipgloss.Color
}

var themes = []Theme{
	{
		Slug: "catppuccin-mocha", Name: "Catppuccin Mocha",
		Text: "#cdd6f4", Source: "#f9e2af", Verse: "#89b4fa", Heading: "#f5c2e7",
		Muted: "#6c7086", Accent: "#a6e3a1", Error: "#f38ba8", Border: "#45475a",
	},
	{
		Slug: "catppuccin-latte", Name: "Catppuccin Latte",
		Text: "#4c4f69", Source: "#df8e1d", Verse: "#1e66f5", Heading: "#ea76cb",
		Muted: "#9ca0b0", Accent: "#40a02b", Error: "#d20f39", Border: "#dce0e8",
	},
	{
		Slug: "dracula", Name: "Dracula",
		Text: "#f8f8f2", Source: "#f1fa8c", Verse: "#bd93f9", Heading: "#ff79c6",
		Muted: "#6272a4", Accent: "#50fa7b", Error: "#ff5555", Border: "#44475a",
	},
	{
		Slug: "rosepine-dawn", Name: "Rosé Pine Dawn",
		Text: "#575279", Source: "#ea9d34", Verse: "#907aa9", Heading: "#d7827e",
		Muted: "#9893a5", Accent: "#56949f", Error: "#b4637a", Border: "#f2e9e1",
	},
	{
		Slug: "solarized-dark", Name: "Solarized Dark",
		Text: "#839496", Source: "#b58900", Verse: "#268bd2", Heading: "#d33682",
		Muted: "#586e75", Accent: "#859900", Error: "#dc322f", Border: "#073642",
	},
}

// All returns every theme in cycling order.
func All() []Theme {
	return append([]Theme(nil), themes...)
}

// Get returns the theme with the given slug, or the first theme.
func Get(slug string) Theme {
	for _, t := range themes {
		if t.Slug == slug {
			return t
		}
	}
	return themes[0]
}

// Next returns the theme after slug, wrapping around.
func Next(slug string) Theme {
	for i, t := range themes {
		if t.Slug == slug {
			return themes[(i+1)%len(themes)]
		}
	}
	return themes[0]
}

// Styles are the lipgloss styles the reader renders with.
type Styles struct {
	Heading lipgloss.Style
	Verse   lipgloss.Style
	Source  lipgloss.Style
	Text    lipgloss.Style
	Status  lipgloss.Style
	Help    lipgloss.Style
	Error   lipgloss.Style
	Spinner lipgloss.Style
	Header  lipgloss.Style
}

// Styles builds the styles for t with text wrapped to width columns.
func (t Theme) Styles(width int) Styles {
	wrap := max(width-6, 20)
	return Styles{
		Heading: lipgloss.NewStyle().Bold(true).Foreground(t.Heading).MarginTop(1),
		Verse:   lipgloss.NewStyle().Foreground(t.Verse).Width(4).Align(lipgloss.Right),
		Source:  lipgloss.NewStyle().Foreground(t.Source).Width(wrap),
		Text:    lipgloss.NewStyle().Foreground(t.Text).Width(wrap),
		Status:  lipgloss.NewStyle().Foreground(t.Accent),
		Help:    lipgloss.NewStyle().Foreground(t.Muted),
		Error:   lipgloss.NewStyle().Foreground(t.Error).Bold(true),
		Spinner: lipgloss.NewStyle().Foreground(t.Accent),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(t.Heading).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(t.Border),
	}
}
