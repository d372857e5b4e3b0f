package views

import (
	"fmt"
	"strings"

	"tui/db"
	"tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var logLevels = []string{"ALL", "DEBUG", "INFO", "WARN", "ERROR"}

type logsMsg struct {
	logs     []db.CrawlLog
	failures []db.Failure
}

// Logs lists journal log lines, or the per-row failure records when
// failures mode is on.
type Logs struct {
	db            *db.Client
	width, height int
	logs          []db.CrawlLog
	failures      []db.Failure
	showFailures  bool
	levelIndex    int
	scrollOffset  int
}

func NewLogs(dbClient *db.Client) Logs {
	return Logs{db: dbClient}
}

func (l Logs) Init() tea.Cmd {
	return l.Refresh()
}

func (l Logs) Refresh() tea.Cmd {
	return func() tea.Msg {
		level := logLevels[l.levelIndex]
		var levelPtr *string
		if level != "ALL" {
			levelPtr = &level
		}
		logs, _ := l.db.GetRecentLogs(200, levelPtr)
		failures, _ := l.db.GetRecentFailures(200)
		return logsMsg{logs, failures}
	}
}

func (l Logs) SetSize(w, h int) Logs {
	l.width = w
	l.height = h
	return l
}

func (l Logs) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case logsMsg:
		l.logs = msg.logs
		l.failures = msg.failures
		l.scrollOffset = min(l.scrollOffset, l.maxScroll())

	case tea.KeyMsg:
		switch msg.String() {
		case "left", "h":
			if l.levelIndex > 0 {
				l.levelIndex--
				l.scrollOffset = 0
				return l, l.Refresh()
			}
		case "right", "l":
			if l.levelIndex < len(logLevels)-1 {
				l.levelIndex++
				l.scrollOffset = 0
				return l, l.Refresh()
			}
		case "f":
			l.showFailures = !l.showFailures
			l.scrollOffset = 0
		case "up", "k":
			l.scrollOffset = max(l.scrollOffset-1, 0)
		case "down", "j":
			l.scrollOffset = min(l.scrollOffset+1, l.maxScroll())
		case "g":
			l.scrollOffset = 0
		case "G":
			l.scrollOffset = l.maxScroll()
		}
	}
	return l, nil
}

func (l Logs) count() int {
	if l.showFailures {
		return len(l.failures)
	}
	return len(l.logs)
}

func (l Logs) maxScroll() int {
	return max(l.count()-l.visibleLines(), 0)
}

func (l Logs) visibleLines() int {
	if l.height-6 < 1 {
		return 10
	}
	return l.height - 6
}

func (l Logs) View() string {
	title := "Logs"
	if l.showFailures {
		title = "Failures"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		styles.Title.Render(title),
		l.renderFilter(),
		"",
		l.renderLines(),
	)
}

func (l Logs) renderFilter() string {
	if l.showFailures {
		return styles.Muted.Render("(f to show logs)")
	}
	var parts []string
	for i, level := range logLevels {
		if i == l.levelIndex {
			parts = append(parts, styles.TabActive.Render("["+level+"]"))
		} else {
			parts = append(parts, styles.TabInactive.Render(level))
		}
	}
	return "Filter: " + strings.Join(parts, " ") + "  (←/→ level, f failures)"
}

func (l Logs) renderLines() string {
	total := l.count()
	if total == 0 {
		if l.showFailures {
			return styles.Muted.Render("No failures")
		}
		return styles.Muted.Render("No logs")
	}

	start := l.scrollOffset
	end := min(start+l.visibleLines(), total)

	var lines []string
	for i := start; i < end; i++ {
		if l.showFailures {
			lines = append(lines, l.formatFailure(l.failures[i]))
		} else {
			lines = append(lines, l.formatLog(l.logs[i]))
		}
	}

	header := styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]", start+1, end, total))
	return header + "\n" + strings.Join(lines, "\n")
}

func (l Logs) formatLog(log db.CrawlLog) string {
	var levelStyle lipgloss.Style
	switch log.Level {
	case "DEBUG":
		levelStyle = styles.Muted
	case "INFO":
		levelStyle = styles.StatusSuccess
	case "WARN":
		levelStyle = styles.StatusPending
	case "ERROR", "FATAL":
		levelStyle = styles.StatusError
	default:
		levelStyle = lipgloss.NewStyle()
	}

	term := ""
	if log.Term != "" {
		term = fmt.Sprintf("[%s] ", truncate(log.Term, 24))
	}

	return fmt.Sprintf("%s %s %s%s",
		styles.Muted.Render(log.Timestamp.Local().Format("15:04:05")),
		levelStyle.Render(fmt.Sprintf("%-5s", log.Level)),
		styles.Muted.Render(term),
		truncate(log.Message, l.width-len(term)-18),
	)
}

func (l Logs) formatFailure(f db.Failure) string {
	kindStyle := styles.StatusPending
	if f.Kind == "session_fatal" {
		kindStyle = styles.StatusError
	}

	where := f.Term
	if f.RowID != "" {
		where += " / " + f.RowID
	}

	return fmt.Sprintf("%s %s %-11s %s %s",
		styles.Muted.Render(f.CreatedAt.Local().Format("01-02 15:04")),
		kindStyle.Render(fmt.Sprintf("%-20s", f.Kind)),
		truncate(f.State, 11),
		styles.Muted.Render(truncate(where, 40)),
		truncate(f.Error, l.width-80),
	)
}
