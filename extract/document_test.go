package extract

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rera_crawler/models"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err, "read fixture %s", name)
	return string(data)
}

func TestParse_Fields(t *testing.T) {
	d, err := ParseHTML(loadFixture(t, "detail_basic.html"), DefaultSelectors)
	require.NoError(t, err)

	assert.Equal(t, "Residential", d.Fields[models.FieldProjectSubType])
	assert.Equal(t, "Approved", d.Fields[models.FieldProjectStatus])
	assert.Equal(t, "01-04-2021", d.Fields[models.FieldProjectStartDate])
	assert.Equal(t, "31-03-2025", d.Fields[models.FieldProjectEndDate])
	assert.Equal(t, "450000000", d.Fields[models.FieldProjectCost])
	assert.Equal(t, "156", d.Fields[models.FieldUnits])
	assert.Equal(t, "Sy No 12, Hennur Main Road, Bengaluru 560043", d.Fields[models.FieldProjectAddress])
	assert.Equal(t, "13.0358", d.Fields[models.FieldLatitude])
	// address pass overrides the general pass
	assert.Equal(t, "Bangalore East", d.Fields[models.FieldTaluk])

	_, ok := d.Fields[models.FieldLandCost]
	assert.False(t, ok, "absent labels stay absent")
	assert.NotContains(t, d.Fields, models.FieldKey("Builder Remarks"))
}

func TestParse_UnitTables(t *testing.T) {
	d, err := ParseHTML(loadFixture(t, "detail_basic.html"), DefaultSelectors)
	require.NoError(t, err)

	require.Len(t, d.Inventories, 2)
	assert.Equal(t, models.InventoryItem{
		SlNo: "1", TypeOfInventory: "2 BHK", NoOfInventory: "96",
		CarpetArea: "78.5", BalconyArea: "6.2", TerraceArea: "0",
	}, d.Inventories[0])
	assert.Equal(t, "3 BHK", d.Inventories[1].TypeOfInventory)

	require.Len(t, d.Towers, 1)
	assert.Equal(t, models.TowerItem{
		TowerName: "Tower A", Floors: "14", Stilts: "1", Basements: "2",
		Height: "44.9", TotalUnits: "156", Slabs: "15", TotalParking: "152",
	}, d.Towers[0])
}

func TestParse_InfrastructureSections(t *testing.T) {
	d, err := ParseHTML(loadFixture(t, "detail_basic.html"), DefaultSelectors)
	require.NoError(t, err)

	require.Len(t, d.InternalInfrastructure, 3)
	assert.Equal(t, "Roads", d.InternalInfrastructure[0].Work)
	assert.Equal(t, "Sewerage", d.InternalInfrastructure[2].Work)

	require.Len(t, d.ExternalInfrastructure, 2)
	assert.Equal(t, models.InfrastructureItem{SlNo: "2", Work: "Electricity", IsApplicable: "No"}, d.ExternalInfrastructure[1])

	require.Len(t, d.Amenities, 4)
	assert.Equal(t, models.AmenityItem{SlNo: "1", Work: "Club House", IsApplicable: "Yes", Area: "450"}, d.Amenities[0])
	assert.Equal(t, "Children Play Area", d.Amenities[3].Work)
}

func TestParse_EmptyPage(t *testing.T) {
	d, err := ParseHTML("<html><body><p>nothing here</p></body></html>", DefaultSelectors)
	require.NoError(t, err)

	assert.Empty(t, d.Fields)
	assert.NotNil(t, d.Inventories)
	assert.NotNil(t, d.Towers)
	assert.NotNil(t, d.InternalInfrastructure)
	assert.NotNil(t, d.ExternalInfrastructure)
	assert.NotNil(t, d.Amenities)
}

func TestParse_Idempotent(t *testing.T) {
	html := loadFixture(t, "detail_basic.html")

	first, err := ParseHTML(html, DefaultSelectors)
	require.NoError(t, err)
	second, err := ParseHTML(html, DefaultSelectors)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
