// Package checkpoint supplies the ordered search terms and decides where a
// run resumes.
package checkpoint

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"rera_crawler/models"
)

// ReadTerms loads the term file: the first field of every line, trimmed.
// Blank lines are skipped and do not consume an index.
func ReadTerms(path string) ([]models.SearchTerm, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open terms: %w", err)
	}
	defer f.Close()
	return ParseTerms(f)
}

func ParseTerms(r io.Reader) ([]models.SearchTerm, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var terms []models.SearchTerm
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read terms: %w", err)
		}
		if len(record) == 0 {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(record[0], "\ufeff"))
		if value == "" {
			continue
		}
		terms = append(terms, models.SearchTerm{Index: len(terms), Value: value})
	}
	return terms, nil
}
