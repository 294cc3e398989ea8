package viz

import (
	"image/color"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the palette used for graph elements and the side panel.
type Theme struct {
	Name      string
	Points    color.RGBA
	Edges     color.RGBA
	Midpoints color.RGBA
	Text      lipgloss.Color
	Muted     lipgloss.Color
	Accent    lipgloss.Color
}

var (
	ThemeNight = Theme{
		Name:      "night",
		Points:    color.RGBA{255, 102, 102, 255},
		Edges:     color.RGBA{86, 95, 137, 255},
		Midpoints: color.RGBA{125, 207, 255, 255},
		Text:      lipgloss.Color("#c0caf5"),
		Muted:     lipgloss.Color("#565f89"),
		Accent:    lipgloss.Color("#bb9af7"),
	}

	ThemeRetro = Theme{
		Name:      "retro",
		Points:    color.RGBA{136, 255, 136, 255},
		Edges:     color.RGBA{0, 119, 0, 255},
		Midpoints: color.RGBA{0, 204, 0, 255},
		Text:      lipgloss.Color("#00ff00"),
		Muted:     lipgloss.Color("#005500"),
		Accent:    lipgloss.Color("#88ff88"),
	}

	ThemeMinimal = Theme{
		Name:      "minimal",
		Points:    color.RGBA{255, 255, 255, 255},
		Edges:     color.RGBA{136, 136, 136, 255},
		Midpoints: color.RGBA{0, 136, 255, 255},
		Text:      lipgloss.Color("#ffffff"),
		Muted:     lipgloss.Color("#888888"),
		Accent:    lipgloss.Color("#0088ff"),
	}

	ThemeOcean = Theme{
		Name:      "ocean",
		Points:    color.RGBA{255, 215, 0, 255},
		Edges:     color.RGBA{0, 119, 190, 255},
		Midpoints: color.RGBA{0, 168, 204, 255},
		Text:      lipgloss.Color("#e0f0ff"),
		Muted:     lipgloss.Color("#4488aa"),
		Accent:    lipgloss.Color("#ffd700"),
	}

	Themes = []Theme{ThemeNight, ThemeRetro, ThemeMinimal, ThemeOcean}
)

// GetTheme returns a theme by name, falling back to ThemeNight.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeNight
}

// NextTheme returns the theme after name in Themes.
func NextTheme(name string) Theme {
	for i, t := range Themes {
		if t.Name == name {
			return Themes[(i+1)%len(Themes)]
		}
	}
	return Themes[0]
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}
