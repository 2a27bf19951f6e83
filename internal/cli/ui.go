package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/whatschanged/whatschanged/pkg/releases"
)

var (
	colorAccent = lipgloss.Color("36")
	colorOK     = lipgloss.Color("35")
	colorWarn   = lipgloss.Color("220")
	colorLink   = lipgloss.Color("75")
	colorLabel  = lipgloss.Color("245")
	colorMuted  = lipgloss.Color("240")
	colorBright = lipgloss.Color("255")
)

var (
	styleName    = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	styleTag     = lipgloss.NewStyle().Bold(true).Foreground(colorBright)
	styleLink    = lipgloss.NewStyle().Foreground(colorLink).Underline(true)
	styleMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	styleNumber  = lipgloss.NewStyle().Foreground(colorAccent)
	styleOK      = lipgloss.NewStyle().Foreground(colorOK)
	styleWarn    = lipgloss.NewStyle().Foreground(colorWarn)
	styleLabel   = lipgloss.NewStyle().Foreground(colorLabel).Width(10)
	styleSpinner = lipgloss.NewStyle().Foreground(colorAccent)
)

const (
	markOK    = "✓"
	markWarn  = "!"
	markInfo  = "›"
	markArrow = "→"
)

func successLine(msg string) string { return styleOK.Render(markOK) + " " + msg }
func warningLine(msg string) string { return styleWarn.Render(markWarn) + " " + styleWarn.Render(msg) }

func printSuccess(format string, args ...any) { fmt.Println(successLine(fmt.Sprintf(format, args...))) }
func printWarning(format string, args ...any) { fmt.Println(warningLine(fmt.Sprintf(format, args...))) }

func printInfo(format string, args ...any) {
	fmt.Println(styleMuted.Render(markInfo) + " " + fmt.Sprintf(format, args...))
}

// printDetail prints an indented secondary line.
func printDetail(format string, args ...any) {
	fmt.Println("  " + styleMuted.Render(fmt.Sprintf(format, args...)))
}

func printKeyValue(key, value string) {
	fmt.Println(styleLabel.Render(key) + " " + value)
}

// =============================================================================
// Release Report
// =============================================================================

// renderReport formats a resolution result: dependencies with updates first,
// then up-to-date ones, then those that could not be found, each group
// sorted by name.
func renderReport(m releases.ReleaseMap) string {
	var updates, current, missing strings.Builder

	for _, name := range m.Names() {
		rs := m[name]
		notes := releases.Notes(rs)
		if len(notes) > 0 {
			writeUpdates(&updates, name, notes)
			continue
		}
		for _, r := range rs {
			releases.Visit(r, releases.Visitor{
				WithoutReleaseNote: func(releases.WithoutReleaseNote) {
					current.WriteString(successLine(name+" "+styleMuted.Render("up to date")) + "\n")
				},
				PackageNotFound: func(releases.PackageNotFound) {
					missing.WriteString(warningLine(name+": no GitHub releases found") + "\n")
				},
			})
		}
	}

	var b strings.Builder
	b.WriteString(updates.String())
	b.WriteString(current.String())
	b.WriteString(missing.String())
	b.WriteString(styleMuted.Render(fmt.Sprintf("%d of %d dependencies have updates", m.Updates(), len(m))) + "\n")
	return b.String()
}

func writeUpdates(b *strings.Builder, name string, notes []releases.WithReleaseNote) {
	count := fmt.Sprintf("%d new release", len(notes))
	if len(notes) != 1 {
		count += "s"
	}
	b.WriteString(styleName.Render(name) + " " + styleNumber.Render(count) + "\n")
	for _, n := range notes {
		line := "  " + styleMuted.Render(markArrow) + " " + styleTag.Render(n.TagName)
		if date, _, ok := strings.Cut(n.CreatedAt, "T"); ok {
			line += "  " + styleMuted.Render(date)
		}
		if n.URL != "" {
			line += "  " + styleLink.Render(n.URL)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")
}
