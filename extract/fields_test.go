package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"rera_crawler/models"
)

func TestMapFields_SkipsUnmappedLabels(t *testing.T) {
	fields := MapFields(
		[]string{"Project Status:", "Unmapped Field:"},
		[]string{"Approved", "X"},
	)

	assert.Equal(t, models.Fields{models.FieldProjectStatus: "Approved"}, fields)
}

func TestMapFields_LabelWithoutValue(t *testing.T) {
	fields := MapFields(
		[]string{"Latitude", "Longitude"},
		[]string{"13.0"},
	)

	assert.Equal(t, "13.0", fields[models.FieldLatitude])
	_, ok := fields[models.FieldLongitude]
	assert.False(t, ok)
}

func TestMapFields_LastWriteWins(t *testing.T) {
	fields := MapFields(
		[]string{"Taluk :", "Taluk:"},
		[]string{"Bangalore North", " Bangalore East "},
	)

	assert.Equal(t, "Bangalore East", fields[models.FieldTaluk])
}

func TestMapSequence(t *testing.T) {
	fields := MapSequence([]string{
		"Project Sub Type :", "Residential",
		"Source of Water:", "Borewell",
		"Others :", "Tanker",
		"Approving Authority :",
	})

	assert.Equal(t, models.Fields{
		models.FieldProjectSubType:   "Residential",
		models.FieldWaterSource:      "Borewell",
		models.FieldOtherWaterSource: "Tanker",
	}, fields)
}

func TestMapSequence_TooShort(t *testing.T) {
	assert.Empty(t, MapSequence(nil))
	assert.Empty(t, MapSequence([]string{"Project Status :"}))
}

func TestNormalizeLabel(t *testing.T) {
	tests := map[string]string{
		"Project Status:":    "Project Status",
		"  Project Status : ": "Project Status",
		"Latitude":           "Latitude",
		"Taluk::":            "Taluk",
		"":                   "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeLabel(in), "input %q", in)
	}
}

func TestLabelTable_KeysAreKnownFields(t *testing.T) {
	var d models.ProjectDetails
	for label, key := range LabelTable {
		assert.NotNil(t, d.Field(key), "label %q maps to unknown key %q", label, key)
	}
}
