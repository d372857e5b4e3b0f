package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"rera_crawler/models"
)

// Selectors locate the parts of the detail page inside an HTML snapshot.
type Selectors struct {
	GeneralFields      string `yaml:"general_fields"`
	AddressFields      string `yaml:"address_fields"`
	UnitRows           string `yaml:"unit_rows"`
	InfrastructureRows string `yaml:"infrastructure_rows"`
}

var DefaultSelectors = Selectors{
	GeneralFields:      "div.col-md-3.col-sm-6.col-xs-6 > p",
	AddressFields:      "div.col-md-6.col-sm-6.col-xs-6 > p",
	UnitRows:           "table.table-bordered.table-striped.table-condensed > tbody > tr",
	InfrastructureRows: `h1:contains("Internal Infrastructure") ~ div ~ table.table-bordered.table-striped.table-condensed > tbody > tr`,
}

const (
	inventoryColumns = 6
	towerColumns     = 8
	infraSections    = 3
)

// Detail is everything read from one project detail page.
type Detail struct {
	Fields                 models.Fields
	Inventories            []models.InventoryItem
	Towers                 []models.TowerItem
	InternalInfrastructure []models.InfrastructureItem
	ExternalInfrastructure []models.InfrastructureItem
	Amenities              []models.AmenityItem
}

func ParseHTML(html string, sel Selectors) (*Detail, error) {
	return Parse(strings.NewReader(html), sel)
}

// Parse reads a detail page snapshot. The general field pass runs before the
// address pass so address values win on conflicting keys.
func Parse(r io.Reader, sel Selectors) (*Detail, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	d := &Detail{Fields: make(models.Fields)}
	MergeSequence(d.Fields, texts(doc.Find(sel.GeneralFields)))
	MergeSequence(d.Fields, texts(doc.Find(sel.AddressFields)))

	units := SplitByColumnCount(rows(doc.Find(sel.UnitRows)), inventoryColumns, towerColumns)
	d.Inventories = make([]models.InventoryItem, 0, len(units[0]))
	for _, row := range units[0] {
		d.Inventories = append(d.Inventories, inventoryFromRow(row))
	}
	d.Towers = make([]models.TowerItem, 0, len(units[1]))
	for _, row := range units[1] {
		d.Towers = append(d.Towers, towerFromRow(row))
	}

	sections := SplitByIndexReset(rows(doc.Find(sel.InfrastructureRows)), infraSections)
	d.InternalInfrastructure = infraItems(sections[0])
	d.ExternalInfrastructure = infraItems(sections[1])
	d.Amenities = make([]models.AmenityItem, 0, len(sections[2]))
	for _, row := range sections[2] {
		d.Amenities = append(d.Amenities, models.AmenityItem{
			SlNo:         row.Cell(0),
			Work:         row.Cell(1),
			IsApplicable: row.Cell(2),
			Area:         row.Cell(3),
		})
	}

	return d, nil
}

func texts(s *goquery.Selection) []string {
	out := make([]string, 0, s.Length())
	s.Each(func(_ int, node *goquery.Selection) {
		out = append(out, cleanText(node.Text()))
	})
	return out
}

func rows(s *goquery.Selection) []Row {
	out := make([]Row, 0, s.Length())
	s.Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("td")
		row := make(Row, 0, cells.Length())
		cells.Each(func(_ int, td *goquery.Selection) {
			row = append(row, cleanText(td.Text()))
		})
		out = append(out, row)
	})
	return out
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func inventoryFromRow(r Row) models.InventoryItem {
	return models.InventoryItem{
		SlNo:            r.Cell(0),
		TypeOfInventory: r.Cell(1),
		NoOfInventory:   r.Cell(2),
		CarpetArea:      r.Cell(3),
		BalconyArea:     r.Cell(4),
		TerraceArea:     r.Cell(5),
	}
}

func towerFromRow(r Row) models.TowerItem {
	return models.TowerItem{
		TowerName:    r.Cell(0),
		Floors:       r.Cell(1),
		Stilts:       r.Cell(2),
		Basements:    r.Cell(3),
		Height:       r.Cell(4),
		TotalUnits:   r.Cell(5),
		Slabs:        r.Cell(6),
		TotalParking: r.Cell(7),
	}
}

func infraItems(rows []Row) []models.InfrastructureItem {
	items := make([]models.InfrastructureItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, models.InfrastructureItem{
			SlNo:         r.Cell(0),
			Work:         r.Cell(1),
			IsApplicable: r.Cell(2),
		})
	}
	return items
}
