package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// RegNoStore is the append-only registration id list built by harvest runs.
type RegNoStore struct {
	path string
	seen map[string]bool
	file *os.File
	w    *csv.Writer
}

func NewRegNoStore(path string) (*RegNoStore, error) {
	if err := trimPartialTail(path, completeCSVRecords); err != nil {
		return nil, err
	}
	seen, err := readRegNos(path)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open regno store: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	s := &RegNoStore{path: path, seen: seen, file: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := s.w.Write([]string{"reg_no"}); err != nil {
			f.Close()
			return nil, err
		}
		s.w.Flush()
		if err := s.w.Error(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return s, nil
}

// readRegNos loads the stored ids, skipping the header row.
func readRegNos(path string) (map[string]bool, error) {
	seen := map[string]bool{}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return seen, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open regno store: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	first := true
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return seen, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read regno store: %w", err)
		}
		if first {
			first = false
			continue
		}
		if len(row) > 0 {
			if id := strings.TrimSpace(row[0]); id != "" {
				seen[id] = true
			}
		}
	}
}

func (s *RegNoStore) Len() int { return len(s.seen) }

// Append writes the ids not stored yet, in order, and flushes them to disk.
// It returns the ids that were new.
func (s *RegNoStore) Append(ids []string) ([]string, error) {
	var added []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || s.seen[id] {
			continue
		}
		if err := s.w.Write([]string{id}); err != nil {
			return added, fmt.Errorf("write regno: %w", err)
		}
		s.seen[id] = true
		added = append(added, id)
	}
	if len(added) == 0 {
		return nil, nil
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return added, fmt.Errorf("flush regno store: %w", err)
	}
	return added, s.file.Sync()
}

func (s *RegNoStore) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
