package ui

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Theme holds the resolved color palette as hex strings.
type Theme struct {
	Foreground  string
	Background  string
	Accent      string
	Dim         string
	Red         string
	Green       string
	Yellow      string
	Blue        string
	Cyan        string
	Border      string
	BrightWhite string
}

// themeFile matches theme.toml next to the client config.
type themeFile struct {
	Foreground  string `toml:"foreground"`
	Background  string `toml:"background"`
	Accent      string `toml:"accent"`
	Dim         string `toml:"dim"`
	Red         string `toml:"red"`
	Green       string `toml:"green"`
	Yellow      string `toml:"yellow"`
	Blue        string `toml:"blue"`
	Cyan        string `toml:"cyan"`
	Border      string `toml:"border"`
	BrightWhite string `toml:"bright_white"`
}

// T is the active theme.
var T = LoadTheme()

// defaultTheme returns the built-in fallback theme.
func defaultTheme() Theme {
	return Theme{
		Foreground:  "#e5e7eb",
		Background:  "#1a1b26",
		Accent:      "#8b5cf6",
		Dim:         "#6b7280",
		Red:         "#ef4444",
		Green:       "#22c55e",
		Yellow:      "#eab308",
		Blue:        "#3b82f6",
		Cyan:        "#06b6d4",
		Border:      "#374151",
		BrightWhite: "#f9fafb",
	}
}

// ThemePath returns where the theme file is looked up.
func ThemePath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "talentvibe", "theme.toml")
}

// LoadTheme reads the theme file, falling back to defaults.
func LoadTheme() Theme {
	t, err := LoadThemeFile(ThemePath())
	if err != nil {
		return defaultTheme()
	}
	return t
}

// LoadThemeFile overlays the colors set in path onto the default theme.
func LoadThemeFile(path string) (Theme, error) {
	var tf themeFile
	if _, err := toml.DecodeFile(path, &tf); err != nil {
		return Theme{}, err
	}

	t := defaultTheme()
	overlay := []struct {
		dst *string
		src string
	}{
		{&t.Foreground, tf.Foreground},
		{&t.Background, tf.Background},
		{&t.Accent, tf.Accent},
		{&t.Dim, tf.Dim},
		{&t.Red, tf.Red},
		{&t.Green, tf.Green},
		{&t.Yellow, tf.Yellow},
		{&t.Blue, tf.Blue},
		{&t.Cyan, tf.Cyan},
		{&t.Border, tf.Border},
		{&t.BrightWhite, tf.BrightWhite},
	}
	for _, o := range overlay {
		if o.src != "" {
			*o.dst = o.src
		}
	}
	return t, nil
}
