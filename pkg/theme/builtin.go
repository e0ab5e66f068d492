package theme

// thRegisterBuiltins registers all built-in themes in the registry.
func thRegisterBuiltins() {
	for _, t := range []Theme{
		thDefaultTheme(),
		thGruvboxTheme(),
		thNordTheme(),
		thCatppuccinTheme(),
		thDraculaTheme(),
		thTokyoNightTheme(),
	} {
		thRegister(t)
	}
}

// thDefaultTheme returns the plain theme: no backgrounds, state shown by
// foreground colour only.
func thDefaultTheme() Theme {
	return Theme{
		Name: "default",

		InfoFG:     "#7C3AED",
		GoodFG:     "#4ec970",
		WarningFG:  "#e5c07b",
		CriticalFG: "#e06c75",
	}
}

// thBlockTheme builds a theme with solid block backgrounds from a base
// palette. Non-idle states use the base background as text colour.
func thBlockTheme(name, bg, fg, accent, ok, warn, crit string) Theme {
	return Theme{
		Name: name,

		IdleFG: fg,
		IdleBG: bg,

		InfoFG: bg,
		InfoBG: accent,

		GoodFG: bg,
		GoodBG: ok,

		WarningFG: bg,
		WarningBG: warn,

		CriticalFG: bg,
		CriticalBG: crit,
	}
}

// thGruvboxTheme returns the warm retro Gruvbox theme.
func thGruvboxTheme() Theme {
	return thBlockTheme("gruvbox", "#282828", "#ebdbb2", "#fe8019", "#b8bb26", "#fabd2f", "#fb4934")
}

// thNordTheme returns the arctic blue Nord theme.
func thNordTheme() Theme {
	return thBlockTheme("nord", "#2e3440", "#eceff4", "#88c0d0", "#a3be8c", "#ebcb8b", "#bf616a")
}

// thCatppuccinTheme returns the pastel Catppuccin Mocha theme.
func thCatppuccinTheme() Theme {
	return thBlockTheme("catppuccin", "#1e1e2e", "#cdd6f4", "#cba6f7", "#a6e3a1", "#f9e2af", "#f38ba8")
}

// thDraculaTheme returns the Dracula theme.
func thDraculaTheme() Theme {
	return thBlockTheme("dracula", "#282a36", "#f8f8f2", "#bd93f9", "#50fa7b", "#f1fa8c", "#ff5555")
}

// thTokyoNightTheme returns the Tokyo Night theme.
func thTokyoNightTheme() Theme {
	return thBlockTheme("tokyo-night", "#1a1b26", "#c0caf5", "#7aa2f7", "#9ece6a", "#e0af68", "#f7768e")
}
