package views

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"tui/db"
	"tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type dashboardDataMsg struct {
	modes        []db.ModeStats
	runs         []db.CrawlRun
	recordCount  int
	failureCount int
	pendingCmds  int
}

type logTailMsg struct {
	lines        []string
	modTime      time.Time
	daemonActive bool
}

type Dashboard struct {
	db            *db.Client
	width, height int
	modes         []db.ModeStats
	runs          []db.CrawlRun
	recordCount   int
	failureCount  int
	pendingCmds   int
	logLines      []string
	logPath       string
	service       string
	logScroll     int // 0 = newest
	logViewport   int
	logBuffer     int
	logModTime    time.Time
	daemonActive  bool
}

func NewDashboard(dbClient *db.Client, logPath, service string) Dashboard {
	if logPath == "" {
		logPath = "crawler.log"
	}
	return Dashboard{
		db:          dbClient,
		logPath:     logPath,
		service:     service,
		logViewport: 20,
		logBuffer:   200,
	}
}

func (d Dashboard) Init() tea.Cmd {
	return tea.Batch(d.Refresh(), d.RefreshLog())
}

func (d Dashboard) Refresh() tea.Cmd {
	return func() tea.Msg {
		modes, _ := d.db.GetModeStats()
		runs, _ := d.db.GetRecentRuns(10)
		records, _ := d.db.GetRecordCount()
		failures, _ := d.db.GetFailureCount()
		pending, _ := d.db.GetPendingCommandCount()
		return dashboardDataMsg{modes, runs, records, failures, pending}
	}
}

func (d Dashboard) RefreshLog() tea.Cmd {
	return func() tea.Msg {
		lines, modTime := readLastLines(d.logPath, d.logBuffer)
		return logTailMsg{lines, modTime, isDaemonActive(d.service)}
	}
}

func isDaemonActive(service string) bool {
	if service == "" {
		return true
	}
	out, err := exec.Command("systemctl", "is-active", service).Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "active"
}

func readLastLines(path string, n int) ([]string, time.Time) {
	info, err := os.Stat(path)
	if err != nil {
		return []string{"(no log file)"}, time.Time{}
	}
	modTime := info.ModTime()

	f, err := os.Open(path)
	if err != nil {
		return []string{"(no log file)"}, time.Time{}
	}
	defer f.Close()

	var allLines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		allLines = append(allLines, scanner.Text())
		if len(allLines) > 4*n {
			allLines = allLines[len(allLines)-n:]
		}
	}

	if len(allLines) == 0 {
		return []string{"(empty log)"}, modTime
	}

	start := len(allLines) - n
	if start < 0 {
		start = 0
	}
	return allLines[start:], modTime
}

func (d Dashboard) SetSize(w, h int) Dashboard {
	d.width = w
	d.height = h
	return d
}

func (d Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		d.modes = msg.modes
		d.runs = msg.runs
		d.recordCount = msg.recordCount
		d.failureCount = msg.failureCount
		d.pendingCmds = msg.pendingCmds
	case logTailMsg:
		d.logLines = msg.lines
		d.logModTime = msg.modTime
		d.daemonActive = msg.daemonActive
	case tea.KeyMsg:
		maxScroll := len(d.logLines) - d.logViewport
		if maxScroll < 0 {
			maxScroll = 0
		}
		switch msg.String() {
		case "up", "k":
			d.logScroll = min(d.logScroll+1, maxScroll)
		case "down", "j":
			d.logScroll = max(d.logScroll-1, 0)
		case "pgup":
			d.logScroll = min(d.logScroll+10, maxScroll)
		case "pgdown":
			d.logScroll = max(d.logScroll-10, 0)
		case "home":
			d.logScroll = maxScroll
		case "end":
			d.logScroll = 0
		}
	}
	return d, nil
}

func (d Dashboard) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		styles.Title.Render("Dashboard"),
		d.renderStatCards(),
		"",
		d.renderModeCards(),
		"",
		styles.Title.Render("Recent Runs"),
		d.renderRunsTable(),
		"",
		d.renderLogTail(),
	)
}

func (d Dashboard) renderLogTail() string {
	if len(d.logLines) == 0 {
		content := styles.Muted.Render("(waiting for logs...)")
		return styles.LogBox.Width(d.width - 4).Render(content)
	}

	total := len(d.logLines)
	endIdx := total - d.logScroll
	startIdx := endIdx - d.logViewport
	if startIdx < 0 {
		startIdx = 0
	}
	if endIdx > total {
		endIdx = total
	}

	var lines []string
	for _, line := range d.logLines[startIdx:endIdx] {
		lines = append(lines, styleLogLine(line, d.width-8))
	}

	var scrollInfo string
	switch {
	case !d.daemonActive:
		scrollInfo = styles.StatusError.Render(" ● STOPPED ")
	case d.logScroll > 0:
		scrollInfo = styles.StatusPending.Render(fmt.Sprintf(" ↑%d ", d.logScroll))
	default:
		scrollInfo = styles.StatusSuccess.Render(" ● LIVE ")
	}

	header := styles.Title.Render("Live Log") + scrollInfo +
		styles.Muted.Render(fmt.Sprintf("[%d-%d/%d]", startIdx+1, endIdx, total))
	if !d.logModTime.IsZero() {
		header += styles.Muted.Render("  written " + relativeTime(d.logModTime))
	}

	return styles.LogBox.Width(d.width - 4).Render(header + "\n" + strings.Join(lines, "\n"))
}

// styleLogLine colours a daemon log line. Lines from the standard logger
// start with a "2006/01/02 15:04:05" timestamp.
func styleLogLine(line string, maxWidth int) string {
	line = truncate(line, maxWidth)

	ts, rest := "", line
	if len(line) > 19 && line[4] == '/' && line[10] == ' ' {
		ts, rest = styles.Muted.Render(line[:19]), line[19:]
	}

	switch {
	case strings.Contains(rest, "ERROR") || strings.Contains(rest, "FATAL"):
		return ts + styles.StatusError.Render(rest)
	case strings.Contains(rest, "WARN"):
		return ts + styles.StatusPending.Render(rest)
	case strings.Contains(rest, "INFO"):
		return ts + styles.LogInfo.Render(rest)
	}
	return ts + rest
}

func (d Dashboard) renderStatCards() string {
	cards := []string{
		renderStatCard("Records", fmt.Sprintf("%d", d.recordCount)),
		renderStatCard("Runs", fmt.Sprintf("%d", len(d.runs))),
		renderStatCard("Failures", fmt.Sprintf("%d", d.failureCount)),
		renderStatCard("Queued Cmds", fmt.Sprintf("%d", d.pendingCmds)),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func renderStatCard(label, value string) string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		styles.StatValue.Render(value),
		styles.Muted.Render(label),
	)
	return styles.StatCard.Width(16).Render(content)
}

func (d Dashboard) renderModeCards() string {
	if len(d.modes) == 0 {
		return styles.Muted.Render("No runs recorded")
	}

	var cards []string
	for _, m := range d.modes {
		cards = append(cards, renderModeCard(m))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func renderModeCard(m db.ModeStats) string {
	status, statusStyle := statusLabel(m.LastRunStatus)

	lastRun := "never"
	if m.LastRunAt != nil {
		lastRun = relativeTime(*m.LastRunAt)
	}

	checkpoint := "none"
	if m.HasCheckpoint {
		checkpoint = fmt.Sprintf("#%d %s", m.CheckpointIdx, truncate(m.CheckpointTerm, 14))
	}

	resume := styles.Muted.Render("Resume: no")
	if m.ResumePending {
		resume = styles.StatusPending.Render("Resume: pending")
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		styles.StatValue.Render(m.Mode),
		statusStyle.Render(status),
		styles.Muted.Render("Last: "+lastRun),
		styles.Muted.Render("Checkpoint: "+checkpoint),
		resume,
	)
	return styles.ModeCard.Width(30).Render(content)
}

func statusLabel(status *string) (string, lipgloss.Style) {
	if status == nil {
		return "○ never run", styles.StatusPending
	}
	switch *status {
	case "completed":
		return "✓ completed", styles.StatusSuccess
	case "failed":
		return "✗ failed", styles.StatusError
	case "running":
		return "◐ running", styles.StatusPending
	}
	return *status, styles.Muted
}

func (d Dashboard) renderRunsTable() string {
	if len(d.runs) == 0 {
		return styles.Muted.Render("No runs yet")
	}

	header := fmt.Sprintf("%-8s %-10s %-9s %11s %7s %7s %6s %6s",
		"Mode", "Status", "Started", "Terms", "Failed", "Written", "Skip", "Errors")
	rows := styles.Title.Render(header) + "\n"

	for _, r := range d.runs {
		status := r.Status
		_, statusStyle := statusLabel(&status)

		row := fmt.Sprintf("%-8s %s %-9s %11s %7d %7d %6d %6d",
			truncate(r.Mode, 8),
			statusStyle.Render(fmt.Sprintf("%-10s", status)),
			r.StartedAt.Local().Format("15:04:05"),
			fmt.Sprintf("%d/%d", r.TermsDone, r.TermsTotal),
			r.TermsFailed,
			r.RecordsWritten,
			r.RowsSkipped,
			r.ErrorsCount,
		)
		rows += row + "\n"
	}
	return rows
}

func relativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	return string(r[:max-1]) + "…"
}
