// Package theme centralizes the palette and ttk styles of the scanner UI.
package theme

import (
	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

const (
	ColorBg        = "#f7f9fb"
	ColorSurface   = "#ffffff"
	ColorPrimary   = "#2563eb"
	ColorDanger    = "#dc2626"
	ColorAccent    = "#10b981"
	ColorText      = "#1e293b"
	ColorTextMuted = "#64748b"
)

// Style names used with Style(...) on ttk widgets.
const (
	StylePrimaryButton = "primary.TButton"
	StyleDangerButton  = "danger.TButton"
	StyleStateLabel    = "state.TLabel"
)

// InitStyles activates the base theme and configures the semantic styles.
func InitStyles() {
	_ = ActivateTheme("azure light")
	App.Configure(Background(ColorBg))
	StyleConfigure(StylePrimaryButton, Background(ColorPrimary), Foreground("white"), Padding("4p 3p"))
	StyleConfigure(StyleDangerButton, Background(ColorDanger), Foreground("white"), Padding("4p 3p"))
	StyleConfigure(StyleStateLabel, Foreground("white"), Background(ColorAccent), Padding("4p 2p"), Relief("groove"))
}
