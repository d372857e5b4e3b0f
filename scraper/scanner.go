package scraper

import (
	"strings"

	"rera_crawler/browser"
	"rera_crawler/config"
	"rera_crawler/models"
)

// Listing cell positions. Cells 3 and 14 hold icons; 14 links the
// registration certificate.
const (
	cellSNo = iota
	cellAckNo
	cellRegNo
	cellDetailIcon
	cellPromoter
	cellProjectName
	cellStatus
	cellDistrict
	cellTaluk
	cellApprovedOn
	cellCompletion
	cellCovidExtension
	cellSection6Extension
	cellFurtherExtension
	cellCertificate
	cellCovidCertificate
	cellRenewedCertificate
	cellFurtherExtensionOrder
	cellComplaints
)

// ListingRow is one result row. Row stays a live handle so the detail
// trigger is looked up only when the row is processed.
type ListingRow struct {
	Index   int
	Summary models.SummaryRow
	Row     browser.Element
}

type Scanner struct {
	client browser.Client
	reg    *config.RegistryConfig
}

func NewScanner(client browser.Client, reg *config.RegistryConfig) *Scanner {
	return &Scanner{client: client, reg: reg}
}

// Rows reads every result row of the current listing page. Rows with fewer
// cells than the registry's minimum (placeholder rows) are skipped.
func (s *Scanner) Rows() ([]ListingRow, error) {
	elems, err := s.client.FindAll(s.reg.Selectors.ListingRows)
	if err != nil {
		return nil, err
	}

	rows := make([]ListingRow, 0, len(elems))
	for i, el := range elems {
		cells, err := cellTexts(el)
		if err != nil {
			if browser.IsFatal(err) {
				return nil, err
			}
			continue
		}
		if len(cells) < s.reg.MinRowCells {
			continue
		}
		summary := summaryFromCells(cells)
		if summary.Certificate == "" && len(cells) > cellCertificate {
			summary.Certificate = certificateLink(el)
		}
		rows = append(rows, ListingRow{Index: i, Summary: summary, Row: el})
	}
	return rows, nil
}

func cellTexts(row browser.Element) ([]string, error) {
	cells, err := row.FindAll("td")
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(cells))
	for i, c := range cells {
		t, err := c.Text()
		if err != nil {
			return nil, err
		}
		texts[i] = strings.TrimSpace(t)
	}
	return texts, nil
}

func certificateLink(row browser.Element) string {
	cells, err := row.FindAll("td")
	if err != nil || len(cells) <= cellCertificate {
		return ""
	}
	a, err := cells[cellCertificate].Find("a")
	if err != nil {
		return ""
	}
	href, err := a.Attribute("href")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(href)
}

func cell(cells []string, i int) string {
	if i < len(cells) {
		return cells[i]
	}
	return ""
}

func summaryFromCells(cells []string) models.SummaryRow {
	return models.SummaryRow{
		SNo:                    cell(cells, cellSNo),
		AckNo:                  cell(cells, cellAckNo),
		RegNo:                  cell(cells, cellRegNo),
		PromoterName:           cell(cells, cellPromoter),
		ProjectName:            cell(cells, cellProjectName),
		Status:                 cell(cells, cellStatus),
		District:               cell(cells, cellDistrict),
		Taluk:                  cell(cells, cellTaluk),
		ApprovedOn:             cell(cells, cellApprovedOn),
		ProposedCompletionDate: cell(cells, cellCompletion),
		CovidExtensionDate:     cell(cells, cellCovidExtension),
		Section6ExtensionDate:  cell(cells, cellSection6Extension),
		FurtherExtensionDate:   cell(cells, cellFurtherExtension),
		Certificate:            cell(cells, cellCertificate),
		CovidCertificate:       cell(cells, cellCovidCertificate),
		RenewedCertificate:     cell(cells, cellRenewedCertificate),
		FurtherExtensionOrder:  cell(cells, cellFurtherExtensionOrder),
		ComplaintsLitigation:   cell(cells, cellComplaints),
	}
}
