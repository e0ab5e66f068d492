package theme

import "strings"

// StateColors returns the foreground and background colours for a block
// state. Recognized states: "idle", "info", "good", "warning", "critical",
// plus the aliases "ok", "warn" and "error". Unknown states use idle.
func (t Theme) StateColors(state string) (fg, bg string) {
	switch strings.ToLower(state) {
	case "info":
		return t.InfoFG, t.InfoBG
	case "good", "ok":
		return t.GoodFG, t.GoodBG
	case "warning", "warn":
		return t.WarningFG, t.WarningBG
	case "critical", "error":
		return t.CriticalFG, t.CriticalBG
	default:
		return t.IdleFG, t.IdleBG
	}
}
