package scraper

import (
	"time"

	"rera_crawler/extract"
	"rera_crawler/models"
)

// Assemble merges the listing row and the detail page into one record.
// Sections are never nil so they serialize as empty lists.
func Assemble(term string, summary models.SummaryRow, detail *extract.Detail, at time.Time) *models.ProjectRecord {
	rec := &models.ProjectRecord{
		Term:                   term,
		Summary:                summary,
		Inventories:            []models.InventoryItem{},
		Towers:                 []models.TowerItem{},
		InternalInfrastructure: []models.InfrastructureItem{},
		ExternalInfrastructure: []models.InfrastructureItem{},
		Amenities:              []models.AmenityItem{},
		ExtractedAt:            at.UTC(),
	}
	if detail == nil {
		return rec
	}

	rec.Details.Apply(detail.Fields)
	rec.Inventories = append(rec.Inventories, detail.Inventories...)
	rec.Towers = append(rec.Towers, detail.Towers...)
	rec.InternalInfrastructure = append(rec.InternalInfrastructure, detail.InternalInfrastructure...)
	rec.ExternalInfrastructure = append(rec.ExternalInfrastructure, detail.ExternalInfrastructure...)
	rec.Amenities = append(rec.Amenities, detail.Amenities...)
	return rec
}
