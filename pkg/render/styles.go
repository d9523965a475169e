package render

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/ragchat/pkg/session"
)

var (
	scoreHigh   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	scoreMedium = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	scoreLow    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	scorePoor   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))

	flowStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFDF5"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AFAFAF")).Italic(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#AFAFAF"))
)

// ScoreBand buckets a similarity score: 0.8 and up is high, 0.6 medium,
// 0.4 low, anything below poor.
func ScoreBand(score float64) string {
	switch {
	case score >= 0.8:
		return "high"
	case score >= 0.6:
		return "medium"
	case score >= 0.4:
		return "low"
	default:
		return "poor"
	}
}

// Score renders a colored percentage for score.
func Score(score float64) string {
	style := scorePoor
	switch ScoreBand(score) {
	case "high":
		style = scoreHigh
	case "medium":
		style = scoreMedium
	case "low":
		style = scoreLow
	}
	return style.Render(FormatScore(score))
}

// StatusLine renders "flow: status" for one flow.
func StatusLine(f session.Flow, st session.Status) string {
	var s string
	switch st.Phase {
	case session.Pending:
		s = pendingStyle.Render("working…")
	case session.Succeeded:
		s = okStyle.Render("done")
	case session.Failed:
		s = failedStyle.Render(st.Reason)
	default:
		s = hintStyle.Render("idle")
	}
	return flowStyle.Render(string(f)+":") + " " + s
}

// Hint renders secondary text such as prompts and counters.
func Hint(s string) string {
	return hintStyle.Render(s)
}
