package companyimport

import (
	"bytes"
	"encoding/csv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// Template column headers. Uploaded files may use any alias listed in columnAliases.
const (
	ColumnCIN               = "CIN"
	ColumnName              = "Company Name"
	ColumnCategory          = "Company Category"
	ColumnSubCategory       = "Company Sub Category"
	ColumnClass             = "Class of Company"
	ColumnAuthorizedCapital = "Authorized Capital"
	ColumnPaidUpCapital     = "Paid Up Capital"
	ColumnRegisteredOn      = "Date of Registration"
	ColumnAddress           = "Registered Office Address"
	ColumnStatus            = "Company Status"
	ColumnStateCode         = "State Code"
	ColumnNICCode           = "NIC Code"
)

// TemplateHeader is the column order of the downloadable template.
var TemplateHeader = []string{
	ColumnCIN,
	ColumnName,
	ColumnCategory,
	ColumnSubCategory,
	ColumnClass,
	ColumnAuthorizedCapital,
	ColumnPaidUpCapital,
	ColumnRegisteredOn,
	ColumnAddress,
	ColumnStatus,
	ColumnStateCode,
	ColumnNICCode,
}

var templateExample = []string{
	"U72200KA2010PTC054321",
	"Acme Workspaces Private Limited",
	"Company limited by Shares",
	"Non-govt company",
	"Private",
	"1000000",
	"500000",
	"2010-08-17",
	"12 MG Road, Bengaluru 560001",
	"Active",
	"KA",
	"72200",
}

var columnAliases = map[string][]string{
	ColumnCIN:               {"cin", "corporate_identification_number", "registration_number", "company_cin"},
	ColumnName:              {"company_name", "name"},
	ColumnCategory:          {"company_category", "category"},
	ColumnSubCategory:       {"company_sub_category", "company_subcategory", "sub_category", "subcategory"},
	ColumnClass:             {"class_of_company", "company_class", "class"},
	ColumnAuthorizedCapital: {"authorized_capital", "authorised_capital", "authorized_cap"},
	ColumnPaidUpCapital:     {"paid_up_capital", "paidup_capital", "paid_up_cap"},
	ColumnRegisteredOn:      {"date_of_registration", "registration_date", "company_registration_date", "date_of_incorporation"},
	ColumnAddress:           {"registered_office_address", "address", "registered_address"},
	ColumnStatus:            {"company_status", "status"},
	ColumnStateCode:         {"state_code", "state", "company_state_code"},
	ColumnNICCode:           {"nic_code", "industrial_class", "principal_business_activity_code"},
}

// aliasIndex maps a normalized header to its template column.
var aliasIndex = func() map[string]string {
	idx := make(map[string]string)
	for column, aliases := range columnAliases {
		idx[normalizeHeader(column)] = column
		for _, a := range aliases {
			idx[a] = column
		}
	}
	return idx
}()

var headerReplacer = strings.NewReplacer(" ", "_", "-", "_", ".", "", "/", "_")

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = headerReplacer.Replace(h)
	for strings.Contains(h, "__") {
		h = strings.ReplaceAll(h, "__", "_")
	}
	return strings.Trim(h, "_")
}

// canonicalColumn resolves a file header to a template column, or "" if unknown.
func canonicalColumn(header string) string {
	return aliasIndex[normalizeHeader(header)]
}

// TemplateCSV returns the header row plus one example row.
func TemplateCSV() []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(TemplateHeader)
	_ = w.Write(templateExample)
	w.Flush()
	return buf.Bytes()
}

// TemplateRows returns the template as rows, header first.
func TemplateRows() [][]string {
	return [][]string{
		append([]string(nil), TemplateHeader...),
		append([]string(nil), templateExample...),
	}
}

// TemplateXLSX renders the template as a single-sheet workbook.
func TemplateXLSX() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Companies"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, errors.Wrap(err, "name template sheet")
	}
	for i, row := range TemplateRows() {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, errors.Wrap(err, "template cell")
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, errors.Wrap(err, "write template row")
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, errors.Wrap(err, "freeze template header")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "encode template workbook")
	}
	return buf.Bytes(), nil
}
