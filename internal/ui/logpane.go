package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/pumpwatch/internal/logger"
	"github.com/rovshanmuradov/pumpwatch/internal/ui/style"
)

const logPaneEntries = 50

// LogPane renders the tail of the in-memory log buffer.
type LogPane struct {
	buffer    *logger.LogBuffer
	viewport  viewport.Model
	visible   bool
	showDebug bool

	container lipgloss.Style
	title     lipgloss.Style
	timestamp lipgloss.Style
	component lipgloss.Style
	levels    map[string]lipgloss.Style
}

func NewLogPane(buffer *logger.LogBuffer) *LogPane {
	palette := style.DefaultPalette()

	return &LogPane{
		buffer:   buffer,
		viewport: viewport.New(60, 6),
		visible:  true,

		container: style.Panel(palette.Info),
		title:     lipgloss.NewStyle().Foreground(palette.Info).Bold(true),
		timestamp: lipgloss.NewStyle().Foreground(palette.TextMuted),
		component: lipgloss.NewStyle().Foreground(palette.TextSecondary),
		levels: map[string]lipgloss.Style{
			"error": lipgloss.NewStyle().Foreground(palette.Error).Bold(true),
			"warn":  lipgloss.NewStyle().Foreground(palette.Warning).Bold(true),
			"info":  lipgloss.NewStyle().Foreground(palette.Text),
			"debug": lipgloss.NewStyle().Foreground(palette.TextMuted),
		},
	}
}

func (p *LogPane) SetSize(width, height int) {
	// рамка и заголовок
	p.viewport.Width = max(width-4, 10)
	p.viewport.Height = max(height-3, 2)
}

func (p *LogPane) Toggle() {
	p.visible = !p.visible
}

func (p *LogPane) Visible() bool {
	return p.visible
}

// Refresh reloads entries from the buffer and scrolls to the newest one.
func (p *LogPane) Refresh() {
	p.viewport.SetContent(p.render())
	p.viewport.GotoBottom()
}

func (p *LogPane) render() string {
	if p.buffer == nil {
		return "No log buffer available"
	}

	var lines []string
	for _, entry := range p.buffer.Recent(logPaneEntries) {
		level := normalizeLevel(entry.Level)
		if level == "debug" && !p.showDebug {
			continue
		}
		lines = append(lines, p.format(entry, level))
	}
	if len(lines) == 0 {
		return "No logs yet"
	}
	return strings.Join(lines, "\n")
}

func (p *LogPane) format(entry logger.LogEntry, level string) string {
	msgStyle, ok := p.levels[level]
	if !ok {
		msgStyle = p.levels["info"]
	}
	line := fmt.Sprintf("%s %s", p.timestamp.Render(entry.Timestamp.Format("15:04:05")), msgStyle.Render(entry.Message))
	if entry.Logger != "" {
		line += " " + p.component.Render("("+entry.Logger+")")
	}
	return line
}

func normalizeLevel(level string) string {
	switch strings.ToLower(level) {
	case "warning", "warn":
		return "warn"
	case "error", "dpanic", "panic", "fatal":
		return "error"
	default:
		return strings.ToLower(level)
	}
}

func (p *LogPane) View() string {
	if !p.visible {
		return ""
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		p.title.Render("Recent Logs [l] toggle"),
		p.viewport.View(),
	)
	return p.container.Render(content)
}
