package storage

import (
	"time"

	"rera_crawler/models"
)

func sampleRecord(regNo string) *models.ProjectRecord {
	return &models.ProjectRecord{
		Term: regNo,
		Summary: models.SummaryRow{
			SNo:          "1",
			AckNo:        "ACK/" + regNo,
			RegNo:        regNo,
			PromoterName: "Acme Builders",
			ProjectName:  "Green Acres",
			District:     "Bengaluru Urban",
			Taluk:        "Bangalore North",
		},
		Details: models.ProjectDetails{
			ProjectStatus: "Approved",
			Taluk:         "Bangalore East",
			Latitude:      "13.0358",
		},
		Inventories: []models.InventoryItem{
			{SlNo: "1", TypeOfInventory: "2 BHK", NoOfInventory: "96"},
		},
		Towers:                 []models.TowerItem{{TowerName: "A"}, {TowerName: "B"}},
		InternalInfrastructure: []models.InfrastructureItem{},
		ExternalInfrastructure: []models.InfrastructureItem{},
		Amenities:              []models.AmenityItem{},
		ExtractedAt:            time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}
