package companyimport

import (
	"fmt"
	"maps"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// RawRow is one data line of an upload, keyed by the file's own column headers.
// Headers keeps the file's column order; rows built without it use sorted keys.
type RawRow struct {
	Position int
	Headers  []string
	Values   map[string]string
}

// byColumn maps the row onto template columns. When several headers alias the
// same column, the non-empty value under the exact template header wins, then
// the leftmost non-empty one.
func (r RawRow) byColumn() map[string]string {
	headers := r.Headers
	if headers == nil {
		headers = slices.Sorted(maps.Keys(r.Values))
	}

	out := make(map[string]string, len(headers))
	exact := make(map[string]bool, len(headers))
	for _, h := range headers {
		col := canonicalColumn(h)
		if col == "" {
			continue
		}
		v := strings.TrimSpace(r.Values[h])
		if v == "" {
			continue
		}
		isExact := normalizeHeader(h) == normalizeHeader(col)
		if _, taken := out[col]; taken && (exact[col] || !isExact) {
			continue
		}
		out[col] = v
		exact[col] = isExact
	}
	return out
}

type Status string

const (
	StatusActive    Status = "Active"
	StatusDormant   Status = "Dormant"
	StatusStrikeOff Status = "Strike Off"
)

// CompanyRecord is the typed projection of a RawRow that passed validation.
type CompanyRecord struct {
	Row               int             `json:"row"`
	CIN               string          `json:"cin" label:"CIN" validate:"required,cin"`
	Name              string          `json:"name" label:"Company Name" validate:"required"`
	Category          string          `json:"category"`
	SubCategory       string          `json:"subCategory"`
	Class             string          `json:"class"`
	AuthorizedCapital decimal.Decimal `json:"authorizedCapital"`
	PaidUpCapital     decimal.Decimal `json:"paidUpCapital"`
	RegisteredOn      *time.Time      `json:"registeredOn,omitempty"`
	Address           string          `json:"address"`
	Status            Status          `json:"status"`
	StateCode         string          `json:"stateCode"`
	NICCode           string          `json:"nicCode"`
}

// RowError is a validation failure of a single field in a single row.
type RowError struct {
	Row     int
	Field   string
	Message string
}

func (e RowError) Error() string {
	return fmt.Sprintf("Row %d: %s", e.Row, e.Message)
}

// ErrorList holds every failure of one row.
type ErrorList []RowError

func (l ErrorList) Error() string {
	return l.Summary()
}

// Summary renders the list as one message: "Row 3: CIN is required; Company Name is required".
func (l ErrorList) Summary() string {
	if len(l) == 0 {
		return ""
	}
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Message
	}
	return fmt.Sprintf("Row %d: %s", l[0].Row, strings.Join(msgs, "; "))
}

// cinPattern: listing flag, 5-digit industry code, state, year, ownership, 6-digit serial.
var cinPattern = regexp.MustCompile(`^[LU][0-9]{5}[A-Z]{2}[0-9]{4}[A-Z]{3}[0-9]{6}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if label := f.Tag.Get("label"); label != "" {
			return label
		}
		return f.Name
	})
	_ = v.RegisterValidation("cin", func(fl validator.FieldLevel) bool {
		return cinPattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidateRow projects raw into a CompanyRecord. It returns a non-empty ErrorList
// instead of a record when a required field is missing or malformed.
func ValidateRow(raw RawRow) (CompanyRecord, ErrorList) {
	cols := raw.byColumn()

	rec := CompanyRecord{
		Row:               raw.Position,
		CIN:               strings.ToUpper(strings.ReplaceAll(cols[ColumnCIN], " ", "")),
		Name:              collapseSpaces(cols[ColumnName]),
		Category:          normalizeLabel(cols[ColumnCategory]),
		SubCategory:       normalizeLabel(cols[ColumnSubCategory]),
		Class:             normalizeLabel(cols[ColumnClass]),
		AuthorizedCapital: parseAmount(cols[ColumnAuthorizedCapital]),
		PaidUpCapital:     parseAmount(cols[ColumnPaidUpCapital]),
		RegisteredOn:      parseDate(cols[ColumnRegisteredOn]),
		Address:           collapseSpaces(cols[ColumnAddress]),
		Status:            NormalizeStatus(cols[ColumnStatus]),
		StateCode:         strings.ToUpper(cols[ColumnStateCode]),
		NICCode:           cols[ColumnNICCode],
	}

	if err := validate.Struct(rec); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return CompanyRecord{}, ErrorList{{Row: raw.Position, Message: err.Error()}}
		}
		list := make(ErrorList, 0, len(verrs))
		for _, fe := range verrs {
			list = append(list, RowError{
				Row:     raw.Position,
				Field:   fe.Field(),
				Message: fieldMessage(fe),
			})
		}
		return CompanyRecord{}, list
	}

	if rec.StateCode == "" {
		rec.StateCode = rec.CIN[6:8]
	}
	return rec, nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "cin":
		return fmt.Sprintf("%s %q is not a valid registration number", fe.Field(), fe.Value())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// NormalizeStatus maps the common spellings onto the known statuses and keeps
// anything else as cleaned free text.
func NormalizeStatus(s string) Status {
	key := strings.ToLower(collapseSpaces(strings.NewReplacer("-", " ", "_", " ").Replace(s)))
	switch key {
	case "active":
		return StatusActive
	case "dormant", "dormant under section 455":
		return StatusDormant
	case "strike off", "struck off", "strikeoff", "under process of striking off":
		return StatusStrikeOff
	}
	return Status(normalizeLabel(s))
}

var titleCaser = cases.Title(language.English)

func normalizeLabel(s string) string {
	s = collapseSpaces(s)
	if s == "" {
		return ""
	}
	return titleCaser.String(strings.ToLower(s))
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var amountReplacer = strings.NewReplacer(",", "", " ", "", "₹", "", "$", "", "inr", "", "rs.", "", "rs", "")

// parseAmount is best-effort: anything unparsable or negative is zero.
func parseAmount(s string) decimal.Decimal {
	s = amountReplacer.Replace(strings.ToLower(strings.TrimSpace(s)))
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"2006/01/02",
	"02-Jan-2006",
	"2 Jan 2006",
	"02.01.2006",
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
