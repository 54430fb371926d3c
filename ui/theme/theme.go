package theme

// Palette and ttk styles for the scanner window. InitStyles must run on the
// Tk thread before widgets using the style names are built.

import (
	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// Palette defines core semantic colors used across widgets.
const (
	ColorBg        = "#f4f8f2" // app background
	ColorSurface   = "#ffffff" // panels, preview frame
	ColorBorder    = "#c8d6c1"
	ColorPrimary   = "#2f7d32" // leaf green
	ColorPrimaryHi = "#1b5e20"
	ColorDanger    = "#c62828"
	ColorWarn      = "#ef8f00"
	ColorText      = "#1f2a1c"
	ColorTextMuted = "#5f6f5a"
)

// Style names used with Style(...).
const (
	StylePrimaryButton = "primary.TButton"
	StyleDangerButton  = "danger.TButton"
	StyleStateLabel    = "state.TLabel"
	StyleStatusLabel   = "status.TLabel"
	StyleHealthyLabel  = "healthy.TLabel"
	StyleDiseaseLabel  = "disease.TLabel"
)

// InitStyles activates the base theme and configures the semantic styles.
func InitStyles() {
	_ = ActivateTheme("azure light")
	App.Configure(Background(ColorBg))

	button := func(name, bg string) {
		StyleConfigure(name,
			Background(bg),
			Foreground("white"),
			Padding("4p 3p"),
			Borderwidth(1),
			Relief("ridge"),
		)
	}
	button(StylePrimaryButton, ColorPrimary)
	button(StyleDangerButton, ColorDanger)

	StyleConfigure(StyleStateLabel,
		Foreground("white"),
		Background(ColorPrimaryHi),
		Padding("4p 2p"),
		Borderwidth(1),
		Relief("groove"),
	)
	StyleConfigure(StyleStatusLabel, Foreground(ColorTextMuted), Background(ColorBg), Padding("2p 1p"))
	StyleConfigure(StyleHealthyLabel, Foreground(ColorPrimary), Background(ColorSurface), Padding("2p 1p"))
	StyleConfigure(StyleDiseaseLabel, Foreground(ColorWarn), Background(ColorSurface), Padding("2p 1p"))
}

// DiagnosisStyle picks the label style for a diagnosis.
func DiagnosisStyle(healthy bool) string {
	if healthy {
		return StyleHealthyLabel
	}
	return StyleDiseaseLabel
}
