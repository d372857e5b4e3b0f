package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"

	"rera_crawler/models"
)

// CSVSchemaVersion changes whenever csvColumns changes. Appending to a file
// written under another version fails instead of shifting columns.
const CSVSchemaVersion = 2

type csvColumn struct {
	Name  string
	Value func(r *models.ProjectRecord) string
}

func detailColumn(key models.FieldKey) csvColumn {
	return csvColumn{Name: string(key), Value: func(r *models.ProjectRecord) string { return r.Details.Get(key) }}
}

func jsonColumn(name string, section func(r *models.ProjectRecord) any) csvColumn {
	return csvColumn{Name: name, Value: func(r *models.ProjectRecord) string {
		data, err := json.Marshal(section(r))
		if err != nil || string(data) == "null" {
			return "[]"
		}
		return string(data)
	}}
}

var csvColumns = []csvColumn{
	{"s_no", func(r *models.ProjectRecord) string { return r.Summary.SNo }},
	{"ack_no", func(r *models.ProjectRecord) string { return r.Summary.AckNo }},
	{"reg_no", func(r *models.ProjectRecord) string { return r.ID() }},
	{"promoter_name", func(r *models.ProjectRecord) string { return r.Summary.PromoterName }},
	{"project_name", func(r *models.ProjectRecord) string { return r.Summary.ProjectName }},
	{"status", func(r *models.ProjectRecord) string { return r.Summary.Status }},
	{"district", func(r *models.ProjectRecord) string { return r.Summary.District }},
	{"taluk", func(r *models.ProjectRecord) string { return r.Taluk() }},
	{"approved_on", func(r *models.ProjectRecord) string { return r.Summary.ApprovedOn }},
	{"proposed_completion_date", func(r *models.ProjectRecord) string { return r.Summary.ProposedCompletionDate }},
	{"covid_extension_date", func(r *models.ProjectRecord) string { return r.Summary.CovidExtensionDate }},
	{"section_6_extension_date", func(r *models.ProjectRecord) string { return r.Summary.Section6ExtensionDate }},
	{"further_extension_date", func(r *models.ProjectRecord) string { return r.Summary.FurtherExtensionDate }},
	{"certificate", func(r *models.ProjectRecord) string { return r.Summary.Certificate }},
	{"covid_certificate", func(r *models.ProjectRecord) string { return r.Summary.CovidCertificate }},
	{"renewed_certificate", func(r *models.ProjectRecord) string { return r.Summary.RenewedCertificate }},
	{"further_extension_order", func(r *models.ProjectRecord) string { return r.Summary.FurtherExtensionOrder }},
	{"complaints_litigation", func(r *models.ProjectRecord) string { return r.Summary.ComplaintsLitigation }},
	detailColumn(models.FieldProjectSubType),
	detailColumn(models.FieldLatitude),
	detailColumn(models.FieldLongitude),
	detailColumn(models.FieldTotalArea),
	detailColumn(models.FieldOpenArea),
	detailColumn(models.FieldUnits),
	detailColumn(models.FieldProjectAddress),
	detailColumn(models.FieldProjectStatus),
	detailColumn(models.FieldProjectStartDate),
	detailColumn(models.FieldProjectEndDate),
	detailColumn(models.FieldProjectCost),
	detailColumn(models.FieldProjectCarpetArea),
	detailColumn(models.FieldWaterSource),
	detailColumn(models.FieldOtherWaterSource),
	detailColumn(models.FieldOpenParking),
	detailColumn(models.FieldCoveredParking),
	detailColumn(models.FieldLandCost),
	detailColumn(models.FieldPlinthArea),
	detailColumn(models.FieldApprovingAuth),
	detailColumn(models.FieldTypeOfInventory),
	detailColumn(models.FieldNoOfInventory),
	{"number_of_towers", func(r *models.ProjectRecord) string { return strconv.Itoa(r.NumberOfTowers()) }},
	jsonColumn("inventories", func(r *models.ProjectRecord) any { return r.Inventories }),
	jsonColumn("towers", func(r *models.ProjectRecord) any { return r.Towers }),
	jsonColumn("internal_infrastructure", func(r *models.ProjectRecord) any { return r.InternalInfrastructure }),
	jsonColumn("external_infrastructure", func(r *models.ProjectRecord) any { return r.ExternalInfrastructure }),
	jsonColumn("amenities", func(r *models.ProjectRecord) any { return r.Amenities }),
	{"search_term", func(r *models.ProjectRecord) string { return r.Term }},
	{"extracted_at", func(r *models.ProjectRecord) string { return r.ExtractedAt.UTC().Format(time.RFC3339) }},
}

// CSVHeader returns the column names in write order.
func CSVHeader() []string {
	header := make([]string, len(csvColumns))
	for i, c := range csvColumns {
		header[i] = c.Name
	}
	return header
}

// CSVSink appends one row per record. The header is written only when the
// file is empty.
type CSVSink struct {
	path string
	file *os.File
	w    *csv.Writer
}

func NewCSVSink(path string) (*CSVSink, error) {
	if err := trimPartialTail(path, completeCSVRecords); err != nil {
		return nil, err
	}
	if err := checkCSVHeader(path, CSVHeader()); err != nil {
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

	s := &CSVSink{path: path, file: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := s.w.Write(CSVHeader()); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
		s.w.Flush()
		if err := s.w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	return s, nil
}

func checkCSVHeader(path string, want []string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer f.Close()

	got, err := csv.NewReader(f).Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read output header: %w", err)
	}
	if !slices.Equal(got, want) {
		return fmt.Errorf("output %s was written with a different column layout (current schema v%d)", path, CSVSchemaVersion)
	}
	return nil
}

func (s *CSVSink) Write(_ context.Context, r *models.ProjectRecord) error {
	row := make([]string, len(csvColumns))
	for i, c := range csvColumns {
		row[i] = c.Value(r)
	}
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("write record %s: %w", r.ID(), err)
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *CSVSink) Flush() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return err
	}
	return s.file.Sync()
}

func (s *CSVSink) Close() error {
	if err := s.Flush(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

func (s *CSVSink) Identifiers() (map[string]bool, error) {
	ids := map[string]bool{}
	err := s.eachID(func(id string) { ids[id] = true })
	return ids, err
}

func (s *CSVSink) LastIdentifier() (string, error) {
	var last string
	err := s.eachID(func(id string) { last = id })
	return last, err
}

func (s *CSVSink) eachID(fn func(id string)) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read output: %w", err)
	}
	col := slices.Index(header, "reg_no")
	if col < 0 {
		return fmt.Errorf("output %s has no reg_no column", s.path)
	}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read output: %w", err)
		}
		if col < len(row) && row[col] != "" {
			fn(row[col])
		}
	}
}
