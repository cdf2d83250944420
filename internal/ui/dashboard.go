package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpwatch/internal/analysis"
	"github.com/rovshanmuradov/pumpwatch/internal/domain"
	"github.com/rovshanmuradov/pumpwatch/internal/events"
	"github.com/rovshanmuradov/pumpwatch/internal/ui/style"
)

// Fetcher is the orchestrator as the dashboard sees it.
type Fetcher interface {
	FetchAggregatedTokens(ctx context.Context, limit int) (*domain.AggregatedResult, error)
}

type Config struct {
	RefreshInterval time.Duration
	FetchTimeout    time.Duration
	Limit           int
	MaxDetections   int
}

func (c *Config) applyDefaults() {
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = 30 * time.Second
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 45 * time.Second
	}
	if c.Limit <= 0 {
		c.Limit = 20
	}
	if c.MaxDetections <= 0 {
		c.MaxDetections = 8
	}
}

const logRefreshInterval = time.Second

// Dashboard is the root bubbletea model: aggregated tokens in a table,
// live chain detections and a log tail.
type Dashboard struct {
	fetcher Fetcher
	sender  *UpdateSender
	logs    *LogPane
	config  Config
	keys    KeyMap
	logger  *zap.Logger
	now     func() time.Time

	help    help.Model
	table   table.Model
	spinner spinner.Model

	loading     bool
	tickGen     int
	result      *domain.AggregatedResult
	lastErr     error
	lastUpdated time.Time
	detections  []events.TokenDetectedEvent
	monitorNote string
	width       int
	height      int
}

// NewDashboard builds the model. sender and logs may be nil.
func NewDashboard(fetcher Fetcher, sender *UpdateSender, logs *LogPane, cfg Config, logger *zap.Logger) *Dashboard {
	cfg.applyDefaults()
	palette := style.DefaultPalette()

	t := table.New(
		table.WithColumns(tokenColumns()),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	ts := table.DefaultStyles()
	ts.Header = ts.Header.Foreground(palette.Secondary).Bold(true).
		BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(palette.TextMuted)
	ts.Selected = ts.Selected.Foreground(palette.Background).Background(palette.Primary)
	t.SetStyles(ts)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(palette.Primary)

	return &Dashboard{
		fetcher: fetcher,
		sender:  sender,
		logs:    logs,
		config:  cfg,
		keys:    DefaultKeyMap(),
		logger:  logger.Named("tui"),
		now:     time.Now,
		help:    help.New(),
		table:   t,
		spinner: sp,
		loading: true,
	}
}

func tokenColumns() []table.Column {
	return []table.Column{
		{Title: "Symbol", Width: 10},
		{Title: "Name", Width: 22},
		{Title: "Mkt Cap", Width: 9},
		{Title: "Liquidity", Width: 9},
		{Title: "Age", Width: 5},
		{Title: "Source", Width: 13},
		{Title: "Score", Width: 5},
	}
}

func (d *Dashboard) Init() tea.Cmd {
	cmds := []tea.Cmd{d.spinner.Tick, d.fetchCmd(), logTick()}
	if d.sender != nil {
		cmds = append(cmds, d.sender.Listen())
	}
	return tea.Batch(cmds...)
}

func (d *Dashboard) fetchCmd() tea.Cmd {
	fetcher, limit, timeout := d.fetcher, d.config.Limit, d.config.FetchTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		res, err := fetcher.FetchAggregatedTokens(ctx, limit)
		return TokensLoadedMsg{Result: res, Err: err}
	}
}

// scheduleRefresh starts a new tick chain; ticks from older chains are ignored.
func (d *Dashboard) scheduleRefresh() tea.Cmd {
	d.tickGen++
	gen := d.tickGen
	return tea.Tick(d.config.RefreshInterval, func(t time.Time) tea.Msg {
		return RefreshTickMsg{At: t, gen: gen}
	})
}

func logTick() tea.Cmd {
	return tea.Tick(logRefreshInterval, func(time.Time) tea.Msg { return LogTickMsg{} })
}

func (d *Dashboard) startFetch() tea.Cmd {
	if d.loading {
		return nil
	}
	d.loading = true
	return tea.Batch(d.fetchCmd(), d.spinner.Tick)
}

func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.resize(msg.Width, msg.Height)
		return d, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, d.keys.Quit):
			return d, tea.Quit
		case key.Matches(msg, d.keys.Refresh):
			return d, d.startFetch()
		case key.Matches(msg, d.keys.ToggleLogs):
			if d.logs != nil {
				d.logs.Toggle()
			}
			return d, nil
		case key.Matches(msg, d.keys.Help):
			d.help.ShowAll = !d.help.ShowAll
			return d, nil
		}
		var cmd tea.Cmd
		d.table, cmd = d.table.Update(msg)
		return d, cmd

	case TokensLoadedMsg:
		d.loading = false
		if msg.Err != nil {
			d.lastErr = msg.Err
			d.logger.Warn("⚠️ Dashboard refresh failed", zap.Error(msg.Err))
		} else {
			d.lastErr = nil
			d.result = msg.Result
			d.lastUpdated = d.now()
			d.table.SetRows(d.rows())
		}
		return d, d.scheduleRefresh()

	case RefreshTickMsg:
		if msg.gen != d.tickGen {
			return d, nil
		}
		return d, d.startFetch()

	case DetectionMsg:
		d.detections = append([]events.TokenDetectedEvent{msg.Event}, d.detections...)
		if len(d.detections) > d.config.MaxDetections {
			d.detections = d.detections[:d.config.MaxDetections]
		}
		return d, d.listen()

	case MonitorEventMsg:
		d.monitorNote = describeMonitorEvent(msg.Event)
		return d, d.listen()

	case LogTickMsg:
		if d.logs != nil && d.logs.Visible() {
			d.logs.Refresh()
		}
		return d, logTick()

	case spinner.TickMsg:
		if !d.loading {
			return d, nil
		}
		var cmd tea.Cmd
		d.spinner, cmd = d.spinner.Update(msg)
		return d, cmd
	}
	return d, nil
}

func (d *Dashboard) listen() tea.Cmd {
	if d.sender == nil {
		return nil
	}
	return d.sender.Listen()
}

func (d *Dashboard) resize(width, height int) {
	d.width, d.height = width, height
	d.help.Width = width

	logHeight := 0
	if d.logs != nil {
		logHeight = 8
		d.logs.SetSize(width, logHeight)
	}
	// заголовок, панель обнаружений и подсказки
	tableHeight := height - logHeight - d.config.MaxDetections - 8
	d.table.SetHeight(max(tableHeight, 5))
}

func (d *Dashboard) rows() []table.Row {
	if d.result == nil {
		return nil
	}
	now := d.now()
	rows := make([]table.Row, 0, len(d.result.Tokens))
	for _, tok := range d.result.Tokens {
		score := analysis.Score(tok, now)
		rows = append(rows, table.Row{
			truncateText(tok.Symbol, 10),
			truncateText(tok.Name, 22),
			formatUSD(tok.MarketCapUSD),
			formatUSD(tok.Liquidity),
			formatAge(tok.Age(now)),
			tok.SourceTag,
			fmt.Sprintf("%.2f", score.Total),
		})
	}
	return rows
}

func describeMonitorEvent(e events.Event) string {
	switch ev := e.(type) {
	case events.MonitorStateEvent:
		return fmt.Sprintf("%s %s", ev.Monitor, strings.TrimPrefix(string(ev.Type()), "monitor."))
	case events.MonitorFailedEvent:
		return fmt.Sprintf("%s failed: %s", ev.Monitor, ev.Error)
	default:
		return string(e.Type())
	}
}

func (d *Dashboard) View() string {
	palette := style.DefaultPalette()
	var b strings.Builder

	b.WriteString(d.header())
	b.WriteString("\n")
	b.WriteString(d.table.View())
	b.WriteString("\n")
	b.WriteString(style.Panel(palette.Detection).Render(d.detectionsView()))
	b.WriteString("\n")
	if d.logs != nil {
		if logs := d.logs.View(); logs != "" {
			b.WriteString(logs)
			b.WriteString("\n")
		}
	}
	b.WriteString(d.help.View(d.keys))
	return b.String()
}

func (d *Dashboard) header() string {
	parts := []string{style.Title().Render("pumpwatch")}

	switch {
	case d.result != nil:
		parts = append(parts,
			style.Badge(d.result.IsReal),
			style.Muted().Render(fmt.Sprintf("%d tokens from %s", len(d.result.Tokens), strings.Join(d.result.Sources, ", "))),
		)
	default:
		parts = append(parts, style.Muted().Render("no data yet"))
	}

	if d.loading {
		parts = append(parts, d.spinner.View()+" fetching")
	} else if !d.lastUpdated.IsZero() {
		parts = append(parts, style.Muted().Render("updated "+d.lastUpdated.Format("15:04:05")))
	}
	if d.lastErr != nil {
		parts = append(parts, lipgloss.NewStyle().Foreground(style.Red).Render("error: "+d.lastErr.Error()))
	}
	if d.monitorNote != "" {
		parts = append(parts, style.Muted().Render("["+d.monitorNote+"]"))
	}
	return strings.Join(parts, "  ")
}

func (d *Dashboard) detectionsView() string {
	title := lipgloss.NewStyle().Foreground(style.Purple).Bold(true).Render("Live detections")
	if len(d.detections) == 0 {
		return title + "\n" + style.Muted().Render("waiting for chain monitors…")
	}
	lines := []string{title}
	now := d.now()
	for _, ev := range d.detections {
		lines = append(lines, fmt.Sprintf("%-10s %-22s %-6s %s",
			truncateText(ev.Token.Symbol, 10),
			truncateText(ev.Token.Name, 22),
			formatAge(now.Sub(ev.Timestamp())),
			style.Muted().Render(ev.Monitor)))
	}
	return strings.Join(lines, "\n")
}
