package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"rera_crawler/models"
)

const (
	JSONLSchema        = "rera_project"
	JSONLSchemaVersion = 1
)

type jsonlMarker struct {
	Schema  string `json:"schema"`
	Version int    `json:"version"`
}

type jsonlLine struct {
	RunID uuid.UUID `json:"run_id"`
	*models.ProjectRecord
}

// JSONLSink writes one JSON object per record, preceded by a schema marker
// line when the file is new.
type JSONLSink struct {
	path  string
	runID uuid.UUID
	file  *os.File
	w     *bufio.Writer
}

func NewJSONLSink(path string, runID uuid.UUID) (*JSONLSink, error) {
	if err := trimPartialTail(path, completeLines); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	s := &JSONLSink{path: path, runID: runID, file: f, w: bufio.NewWriter(f)}
	if info.Size() == 0 {
		if err := s.writeLine(jsonlMarker{Schema: JSONLSchema, Version: JSONLSchemaVersion}); err != nil {
			f.Close()
			return nil, err
		}
		if err := s.w.Flush(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *JSONLSink) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	data = append(data, '\n')
	_, err = s.w.Write(data)
	return err
}

func (s *JSONLSink) Write(_ context.Context, r *models.ProjectRecord) error {
	if err := s.writeLine(jsonlLine{RunID: s.runID, ProjectRecord: r}); err != nil {
		return fmt.Errorf("write record %s: %w", r.ID(), err)
	}
	return s.w.Flush()
}

func (s *JSONLSink) Flush() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	return s.file.Sync()
}

func (s *JSONLSink) Close() error {
	if err := s.Flush(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

func (s *JSONLSink) Identifiers() (map[string]bool, error) {
	ids := map[string]bool{}
	err := ReadJSONL(s.path, func(r *models.ProjectRecord) { ids[r.ID()] = true })
	return ids, err
}

func (s *JSONLSink) LastIdentifier() (string, error) {
	var last string
	err := ReadJSONL(s.path, func(r *models.ProjectRecord) { last = r.ID() })
	return last, err
}

// ReadJSONL calls fn for every record line of path, skipping the schema
// marker. A truncated final line from an interrupted write is ignored.
func ReadJSONL(path string, fn func(r *models.ProjectRecord)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	var pending error
	for scanner.Scan() {
		line++
		if pending != nil {
			return pending
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var marker jsonlMarker
		if err := json.Unmarshal(raw, &marker); err == nil && marker.Schema != "" {
			if marker.Schema != JSONLSchema || marker.Version != JSONLSchemaVersion {
				return fmt.Errorf("output %s has schema %s v%d", path, marker.Schema, marker.Version)
			}
			continue
		}

		rec := &models.ProjectRecord{}
		if err := json.Unmarshal(raw, &jsonlLine{ProjectRecord: rec}); err != nil {
			pending = fmt.Errorf("output %s line %d: %w", path, line, err)
			continue
		}
		fn(rec)
	}
	return scanner.Err()
}
