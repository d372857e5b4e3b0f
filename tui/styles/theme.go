package styles

import "github.com/charmbracelet/lipgloss"

var (
	teal  = lipgloss.Color("#0F766E")
	sky   = lipgloss.Color("#38BDF8")
	amber = lipgloss.Color("#F59E0B")
	green = lipgloss.Color("#16A34A")
	gold  = lipgloss.Color("#CA8A04")
	red   = lipgloss.Color("#DC2626")
	slate = lipgloss.Color("#94A3B8")
	frame = lipgloss.Color("#334155")
	white = lipgloss.Color("#F8FAFC")
)

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

func box(b lipgloss.Border, c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Border(b).BorderForeground(c).Padding(0, 1)
}

// Muted is also used for labels and log timestamps.
var (
	Muted     = fg(slate)
	Title     = fg(teal).Bold(true).Padding(0, 1)
	StatValue = fg(white).Bold(true)
	LogInfo   = fg(sky)

	TabActive    = fg(teal).Bold(true).Padding(0, 2)
	TabInactive  = Muted.Padding(0, 2)
	StatusBar    = Muted.Padding(0, 1)
	Notification = fg(green).Padding(0, 1)

	StatCard   = box(lipgloss.RoundedBorder(), teal)
	ModeCard   = box(lipgloss.RoundedBorder(), sky)
	DetailCard = box(lipgloss.RoundedBorder(), amber)
	LogBox     = box(lipgloss.NormalBorder(), frame)

	StatusSuccess = fg(green)
	StatusError   = fg(red)
	StatusPending = fg(gold)

	TableSelected = lipgloss.NewStyle().Background(teal).Foreground(white)
)
