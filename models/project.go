package models

import (
	"time"
)

// SearchTerm is one line of the term source. Index is its position in the
// full term list and is what positional checkpoints refer to.
type SearchTerm struct {
	Index int    `json:"index"`
	Value string `json:"value"`
}

// SummaryRow holds the cells of one row of the approved projects table.
type SummaryRow struct {
	SNo                    string `json:"s_no"`
	AckNo                  string `json:"ack_no"`
	RegNo                  string `json:"reg_no"`
	PromoterName           string `json:"promoter_name"`
	ProjectName            string `json:"project_name"`
	Status                 string `json:"status"`
	District               string `json:"district"`
	Taluk                  string `json:"taluk"`
	ApprovedOn             string `json:"approved_on"`
	ProposedCompletionDate string `json:"proposed_completion_date"`
	CovidExtensionDate     string `json:"covid_extension_date"`
	Section6ExtensionDate  string `json:"section_6_extension_date"`
	FurtherExtensionDate   string `json:"further_extension_date"`
	Certificate            string `json:"certificate"`
	CovidCertificate       string `json:"covid_certificate"`
	RenewedCertificate     string `json:"renewed_certificate"`
	FurtherExtensionOrder  string `json:"further_extension_order"`
	ComplaintsLitigation   string `json:"complaints_litigation"`
}

// InventoryItem is one row of the unit inventory table (6 columns).
type InventoryItem struct {
	SlNo            string `json:"sl_no"`
	TypeOfInventory string `json:"type_of_inventory"`
	NoOfInventory   string `json:"no_of_inventory"`
	CarpetArea      string `json:"carpet_area_sq_mtr"`
	BalconyArea     string `json:"balcony_area_sq_mtr"`
	TerraceArea     string `json:"open_terrace_area_sq_mtr"`
}

// TowerItem is one row of the tower table (8 columns).
type TowerItem struct {
	TowerName    string `json:"tower_name"`
	Floors       string `json:"no_of_floors"`
	Stilts       string `json:"no_of_stilts"`
	Basements    string `json:"no_of_basements"`
	Height       string `json:"height_meters"`
	TotalUnits   string `json:"total_units"`
	Slabs        string `json:"no_of_slabs"`
	TotalParking string `json:"total_parking"`
}

// InfrastructureItem is one row of the internal or external infrastructure checklist.
type InfrastructureItem struct {
	SlNo         string `json:"sl_no"`
	Work         string `json:"work"`
	IsApplicable string `json:"is_applicable"`
}

type AmenityItem struct {
	SlNo         string `json:"sl_no"`
	Work         string `json:"work"`
	IsApplicable string `json:"is_applicable"`
	Area         string `json:"area_sq_mtr"`
}

// ProjectRecord is the unit written to the output stores.
type ProjectRecord struct {
	Term                   string               `json:"search_term"`
	Summary                SummaryRow           `json:"summary"`
	Details                ProjectDetails       `json:"details"`
	Inventories            []InventoryItem      `json:"inventories"`
	Towers                 []TowerItem          `json:"towers"`
	InternalInfrastructure []InfrastructureItem `json:"internal_infrastructure"`
	ExternalInfrastructure []InfrastructureItem `json:"external_infrastructure"`
	Amenities              []AmenityItem        `json:"amenities"`
	ExtractedAt            time.Time            `json:"extracted_at"`
}

// ID returns the registration id. Rows whose registration cell is blank are
// told apart by acknowledgement number, and only then by the search term.
func (r *ProjectRecord) ID() string {
	switch {
	case r.Summary.RegNo != "":
		return r.Summary.RegNo
	case r.Summary.AckNo != "":
		return r.Summary.AckNo
	}
	return r.Term
}

// Taluk prefers the value from the detail page over the listing cell.
func (r *ProjectRecord) Taluk() string {
	if r.Details.Taluk != "" {
		return r.Details.Taluk
	}
	return r.Summary.Taluk
}

func (r *ProjectRecord) NumberOfTowers() int {
	return len(r.Towers)
}
