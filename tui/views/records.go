package views

import (
	"fmt"
	"strings"

	"tui/db"
	"tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type recordsMsg struct {
	records []db.Record
	total   int
}

type recordDetailMsg struct {
	regNo  string
	detail *db.RecordDetail
	err    error
}

type Records struct {
	db            *db.Client
	width, height int
	records       []db.Record
	detail        *db.RecordDetail
	detailErr     error
	selectedRow   int
	dbPage        int
	dbPageSize    int
	total         int
}

func NewRecords(dbClient *db.Client) Records {
	return Records{db: dbClient, dbPageSize: 100}
}

func (r Records) Init() tea.Cmd {
	return r.Refresh()
}

func (r Records) Refresh() tea.Cmd {
	return func() tea.Msg {
		records, _ := r.db.GetRecords(r.dbPageSize, r.dbPage*r.dbPageSize)
		total, _ := r.db.GetRecordCount()
		return recordsMsg{records, total}
	}
}

func (r Records) SetSize(w, h int) Records {
	r.width = w
	r.height = h
	return r
}

// SelectedRegNo returns the registration id under the cursor.
func (r Records) SelectedRegNo() string {
	if r.selectedRow < len(r.records) {
		return r.records[r.selectedRow].RegNo
	}
	return ""
}

func (r Records) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case recordsMsg:
		r.records = msg.records
		r.total = msg.total
		if r.selectedRow >= len(r.records) {
			r.selectedRow = 0
		}
		return r, r.loadDetail()

	case recordDetailMsg:
		if msg.regNo == r.SelectedRegNo() {
			r.detail = msg.detail
			r.detailErr = msg.err
		}

	case tea.KeyMsg:
		if len(r.records) == 0 {
			return r, nil
		}
		prev := r.selectedRow
		switch msg.String() {
		case "up", "k":
			r.selectedRow = max(r.selectedRow-1, 0)
		case "down", "j":
			r.selectedRow = min(r.selectedRow+1, len(r.records)-1)
		case "pgup", "ctrl+u":
			r.selectedRow = max(r.selectedRow-10, 0)
		case "pgdown", "ctrl+d":
			r.selectedRow = min(r.selectedRow+10, len(r.records)-1)
		case "home", "g":
			r.selectedRow = 0
		case "end", "G":
			r.selectedRow = len(r.records) - 1
		case "[":
			if r.dbPage > 0 {
				r.dbPage--
				r.selectedRow = 0
				return r, r.Refresh()
			}
		case "]":
			if r.dbPage < r.totalPages()-1 {
				r.dbPage++
				r.selectedRow = 0
				return r, r.Refresh()
			}
		}
		if r.selectedRow != prev {
			return r, r.loadDetail()
		}
	}
	return r, nil
}

func (r Records) loadDetail() tea.Cmd {
	regNo := r.SelectedRegNo()
	if regNo == "" {
		return nil
	}
	return func() tea.Msg {
		detail, err := r.db.GetRecordDetail(regNo)
		return recordDetailMsg{regNo, detail, err}
	}
}

func (r Records) visibleRows() int {
	rows := 20
	if r.height > 0 {
		rows = max((r.height*50)/100, 8)
	}
	return rows
}

func (r Records) totalPages() int {
	if r.dbPageSize == 0 || r.total == 0 {
		return 1
	}
	return (r.total + r.dbPageSize - 1) / r.dbPageSize
}

func (r Records) View() string {
	globalPos := r.dbPage*r.dbPageSize + r.selectedRow + 1
	if len(r.records) == 0 {
		globalPos = 0
	}
	header := styles.Title.Render("Projects") +
		styles.StatValue.Render(fmt.Sprintf("  %d/%d", globalPos, r.total)) +
		styles.Muted.Render(fmt.Sprintf("  Page %d/%d", r.dbPage+1, r.totalPages())) +
		"  " + styles.Muted.Render("[[ ]] Prev/Next page")

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		r.renderTable(),
		"",
		r.renderDetail(),
	)
}

func (r Records) renderTable() string {
	if len(r.records) == 0 {
		return styles.Muted.Render("No records yet")
	}

	header := fmt.Sprintf("%-40s %-28s %-22s %-16s %5s %-10s",
		"Registration", "Project", "Promoter", "District", "Seen", "Last seen")
	rows := styles.Title.Render(header) + "\n"

	visible := r.visibleRows()
	offset := 0
	if r.selectedRow >= visible {
		offset = r.selectedRow - visible + 1
	}
	end := min(offset+visible, len(r.records))

	for i := offset; i < end; i++ {
		rec := r.records[i]
		row := fmt.Sprintf("%-40s %-28s %-22s %-16s %5d %-10s",
			truncate(rec.RegNo, 40),
			truncate(rec.ProjectName, 28),
			truncate(rec.Promoter, 22),
			truncate(rec.District, 16),
			rec.TimesSeen,
			relativeTime(rec.LastSeenAt),
		)
		if i == r.selectedRow {
			rows += styles.TableSelected.Render(row) + "\n"
		} else {
			rows += row + "\n"
		}
	}

	if len(r.records) > visible {
		rows += styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]", offset+1, end, len(r.records)))
	}
	return rows
}

func (r Records) renderDetail() string {
	half := r.width/2 - 2
	if half < 30 {
		half = 40
	}

	left, right := styles.Muted.Render("Select a record"), ""
	switch {
	case r.detailErr != nil:
		left = styles.StatusError.Render(r.detailErr.Error())
	case r.detail != nil && len(r.records) > 0:
		left = r.renderProject(r.records[r.selectedRow], half-4)
		right = r.renderTowers(half - 4)
	}

	projectBox := styles.DetailCard.Width(half).Render(styles.Title.Render("Project") + "\n" + left)
	towersBox := styles.ModeCard.Width(half).Render(styles.Title.Render("Towers") + "\n" + right)
	return lipgloss.JoinHorizontal(lipgloss.Top, projectBox, towersBox)
}

func (r Records) renderProject(rec db.Record, width int) string {
	d := r.detail
	taluk := d.Details.Taluk
	if taluk == "" {
		taluk = d.Summary.Taluk
	}

	pairs := [][2]string{
		{"Status", rec.Status},
		{"Sub type", d.Details.ProjectSubType},
		{"Progress", d.Details.ProjectStatus},
		{"Taluk", taluk},
		{"Approved", d.Summary.ApprovedOn},
		{"Completion", d.Summary.ProposedCompletionDate},
		{"Cost", d.Details.ProjectCost},
		{"Area", d.Details.TotalArea},
		{"Units", d.Details.Units},
		{"Litigation", d.Summary.ComplaintsLitigation},
		{"Term", rec.SearchTerm},
	}

	var lines []string
	for _, p := range pairs {
		if p[1] == "" {
			continue
		}
		lines = append(lines, styles.Muted.Render(p[0]+": ")+truncate(p[1], width-len(p[0])-2))
	}
	if d.Details.ProjectAddress != "" {
		lines = append(lines, "")
		lines = append(lines, wrapText(d.Details.ProjectAddress, width)...)
	}
	if d.Details.Latitude != "" {
		lines = append(lines, styles.Muted.Render(d.Details.Latitude+", "+d.Details.Longitude))
	}
	lines = append(lines, "", styles.Muted.Render(fmt.Sprintf("%d inventories, %d amenities",
		len(d.Inventories), len(d.Amenities))))
	return strings.Join(lines, "\n")
}

func (r Records) renderTowers(width int) string {
	if len(r.detail.Towers) == 0 {
		return styles.Muted.Render("No towers")
	}

	header := fmt.Sprintf("%-20s %7s %7s", "Tower", "Floors", "Units")
	rows := styles.Title.Render(header) + "\n"
	for i, t := range r.detail.Towers {
		if i == 10 {
			rows += styles.Muted.Render(fmt.Sprintf("  +%d more", len(r.detail.Towers)-i))
			break
		}
		rows += fmt.Sprintf("%-20s %7s %7s\n", truncate(t.TowerName, min(20, width)), t.Floors, t.TotalUnits)
	}
	return rows
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		width = 40
	}
	var lines []string
	var line string
	for _, word := range strings.Fields(text) {
		if line != "" && len(line)+len(word)+1 > width {
			lines = append(lines, line)
			line = word
			continue
		}
		if line != "" {
			line += " "
		}
		line += word
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}
