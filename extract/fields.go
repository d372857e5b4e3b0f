// Package extract turns the rendered project detail page into typed fields
// and section tables.
package extract

import (
	"strings"

	"rera_crawler/models"
)

// LabelTable maps the label text shown on the detail page (after
// NormalizeLabel) to its canonical key.
var LabelTable = map[string]models.FieldKey{
	"Project Sub Type":         models.FieldProjectSubType,
	"Project Status":           models.FieldProjectStatus,
	"Project Start Date":       models.FieldProjectStartDate,
	"Proposed Completion Date": models.FieldProjectEndDate,
	"Total Project Cost (INR)": models.FieldProjectCost,
	"Total Carpet Area of all the Floors (Sq Mtr)":         models.FieldProjectCarpetArea,
	"Source of Water":                                      models.FieldWaterSource,
	"Others":                                               models.FieldOtherWaterSource,
	"No. of Open Parking":                                  models.FieldOpenParking,
	"No. of Covered Parking":                               models.FieldCoveredParking,
	"Cost of Land (INR)":                                   models.FieldLandCost,
	"Total Plinth Area (Sq Mtr)":                           models.FieldPlinthArea,
	"Approving Authority":                                  models.FieldApprovingAuth,
	"Total Area Of Land (Sq Mtr)":                          models.FieldTotalArea,
	"Total Open Area (Sq Mtr)":                             models.FieldOpenArea,
	"Total Number of Inventories/Flats/Sites/Plots/Villas": models.FieldUnits,
	"Taluk":             models.FieldTaluk,
	"Project Address":   models.FieldProjectAddress,
	"Latitude":          models.FieldLatitude,
	"Longitude":         models.FieldLongitude,
	"Type of Inventory": models.FieldTypeOfInventory,
	"No of Inventory":   models.FieldNoOfInventory,
}

// NormalizeLabel trims whitespace and the trailing colon from a label.
func NormalizeLabel(label string) string {
	label = strings.TrimSpace(label)
	label = strings.TrimRight(label, ":")
	return strings.TrimSpace(label)
}

// MapFields pairs labels[i] with values[i], where values[i] is the text
// rendered right after labels[i]. Unknown labels and labels without a value
// are skipped; a repeated key keeps the last value.
func MapFields(labels, values []string) models.Fields {
	fields := make(models.Fields)
	MergeFields(fields, labels, values)
	return fields
}

// MergeFields is MapFields writing into an existing map, so a later pass
// overrides an earlier one.
func MergeFields(dst models.Fields, labels, values []string) {
	for i, label := range labels {
		if i >= len(values) {
			break
		}
		key, ok := LabelTable[NormalizeLabel(label)]
		if !ok {
			continue
		}
		dst[key] = strings.TrimSpace(values[i])
	}
}

// MapSequence reads a flat run of rendered nodes where every node may be a
// label whose value is the node right after it.
func MapSequence(nodes []string) models.Fields {
	fields := make(models.Fields)
	MergeSequence(fields, nodes)
	return fields
}

func MergeSequence(dst models.Fields, nodes []string) {
	if len(nodes) < 2 {
		return
	}
	MergeFields(dst, nodes[:len(nodes)-1], nodes[1:])
}
