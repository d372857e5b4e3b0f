package extract

import (
	"strings"
)

// Row is the trimmed cell text of one physical table row.
type Row []string

// Cell returns cell i, or "" when the row is shorter.
func (r Row) Cell(i int) string {
	if i < len(r) {
		return r[i]
	}
	return ""
}

const (
	sectionSentinel = "1"
	minSectionCells = 3
)

// SplitByIndexReset splits rows of one physical table into n logical
// sections. A row whose index cell is "1" starts the next section once the
// current one has rows; when that happens in the last section the remaining
// rows are discarded. Indices already seen in the current section are
// skipped. Rows with fewer than three cells are ignored.
func SplitByIndexReset(rows []Row, n int) [][]Row {
	sections := make([][]Row, n)
	for i := range sections {
		sections[i] = []Row{}
	}
	if n == 0 {
		return sections
	}

	current := 0
	seen := make(map[string]bool)
	for _, row := range rows {
		if len(row) < minSectionCells {
			continue
		}
		idx := strings.TrimSpace(row[0])

		if idx == sectionSentinel && len(sections[current]) > 0 {
			if current == n-1 {
				break
			}
			current++
			seen = make(map[string]bool)
		}

		if seen[idx] {
			continue
		}
		sections[current] = append(sections[current], row)
		seen[idx] = true
	}
	return sections
}

// SplitByColumnCount buckets rows by their exact cell count. The result has
// one entry per element of widths, in the same order; rows of any other width
// are dropped.
func SplitByColumnCount(rows []Row, widths ...int) [][]Row {
	buckets := make([][]Row, len(widths))
	pos := make(map[int]int, len(widths))
	for i, w := range widths {
		buckets[i] = []Row{}
		pos[w] = i
	}
	for _, row := range rows {
		if i, ok := pos[len(row)]; ok {
			buckets[i] = append(buckets[i], row)
		}
	}
	return buckets
}
