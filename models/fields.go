package models

// FieldKey is the canonical name of a scalar field on the project detail page.
type FieldKey string

const (
	FieldProjectSubType    FieldKey = "project_sub_type"
	FieldProjectStatus     FieldKey = "ProjectStatus"
	FieldProjectStartDate  FieldKey = "ProjectStartDate"
	FieldProjectEndDate    FieldKey = "ProjectEndDate"
	FieldProjectCost       FieldKey = "ProjectCost"
	FieldProjectCarpetArea FieldKey = "ProjectCarpetArea"
	FieldWaterSource       FieldKey = "WaterSource"
	FieldOtherWaterSource  FieldKey = "OtherWaterSource"
	FieldOpenParking       FieldKey = "OpenParking"
	FieldCoveredParking    FieldKey = "CoveredParking"
	FieldLandCost          FieldKey = "LandCost"
	FieldPlinthArea        FieldKey = "PlinthArea"
	FieldApprovingAuth     FieldKey = "ApprovingAuth"
	FieldTotalArea         FieldKey = "total_area"
	FieldOpenArea          FieldKey = "open_area"
	FieldUnits             FieldKey = "units"
	FieldTaluk             FieldKey = "taluk"
	FieldProjectAddress    FieldKey = "ProjectAddress"
	FieldLatitude          FieldKey = "latitude"
	FieldLongitude         FieldKey = "longitude"
	FieldTypeOfInventory   FieldKey = "type_of_inventory"
	FieldNoOfInventory     FieldKey = "no_of_inventory"
)

// Fields maps canonical keys to trimmed values. Keys that were not found on
// the page are absent.
type Fields map[FieldKey]string

// ProjectDetails is the typed form of Fields. Every field is optional and
// stays empty when the page did not carry it.
type ProjectDetails struct {
	ProjectSubType    string `json:"project_sub_type,omitempty"`
	ProjectStatus     string `json:"project_status,omitempty"`
	ProjectStartDate  string `json:"project_start_date,omitempty"`
	ProjectEndDate    string `json:"project_end_date,omitempty"`
	ProjectCost       string `json:"project_cost,omitempty"`
	ProjectCarpetArea string `json:"project_carpet_area,omitempty"`
	WaterSource       string `json:"water_source,omitempty"`
	OtherWaterSource  string `json:"other_water_source,omitempty"`
	OpenParking       string `json:"open_parking,omitempty"`
	CoveredParking    string `json:"covered_parking,omitempty"`
	LandCost          string `json:"land_cost,omitempty"`
	PlinthArea        string `json:"plinth_area,omitempty"`
	ApprovingAuth     string `json:"approving_authority,omitempty"`
	TotalArea         string `json:"total_area,omitempty"`
	OpenArea          string `json:"open_area,omitempty"`
	Units             string `json:"units,omitempty"`
	Taluk             string `json:"taluk,omitempty"`
	ProjectAddress    string `json:"project_address,omitempty"`
	Latitude          string `json:"latitude,omitempty"`
	Longitude         string `json:"longitude,omitempty"`
	TypeOfInventory   string `json:"type_of_inventory,omitempty"`
	NoOfInventory     string `json:"no_of_inventory,omitempty"`
}

// Field returns a pointer to the struct field backing key, or nil for an
// unknown key.
func (d *ProjectDetails) Field(key FieldKey) *string {
	switch key {
	case FieldProjectSubType:
		return &d.ProjectSubType
	case FieldProjectStatus:
		return &d.ProjectStatus
	case FieldProjectStartDate:
		return &d.ProjectStartDate
	case FieldProjectEndDate:
		return &d.ProjectEndDate
	case FieldProjectCost:
		return &d.ProjectCost
	case FieldProjectCarpetArea:
		return &d.ProjectCarpetArea
	case FieldWaterSource:
		return &d.WaterSource
	case FieldOtherWaterSource:
		return &d.OtherWaterSource
	case FieldOpenParking:
		return &d.OpenParking
	case FieldCoveredParking:
		return &d.CoveredParking
	case FieldLandCost:
		return &d.LandCost
	case FieldPlinthArea:
		return &d.PlinthArea
	case FieldApprovingAuth:
		return &d.ApprovingAuth
	case FieldTotalArea:
		return &d.TotalArea
	case FieldOpenArea:
		return &d.OpenArea
	case FieldUnits:
		return &d.Units
	case FieldTaluk:
		return &d.Taluk
	case FieldProjectAddress:
		return &d.ProjectAddress
	case FieldLatitude:
		return &d.Latitude
	case FieldLongitude:
		return &d.Longitude
	case FieldTypeOfInventory:
		return &d.TypeOfInventory
	case FieldNoOfInventory:
		return &d.NoOfInventory
	}
	return nil
}

// Apply copies every known key of f into d.
func (d *ProjectDetails) Apply(f Fields) {
	for key, val := range f {
		if p := d.Field(key); p != nil {
			*p = val
		}
	}
}

// Get is the read counterpart of Field.
func (d *ProjectDetails) Get(key FieldKey) string {
	if p := d.Field(key); p != nil {
		return *p
	}
	return ""
}
