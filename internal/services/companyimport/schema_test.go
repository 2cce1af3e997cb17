package companyimport

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawFrom(position int, values map[string]string) RawRow {
	return RawRow{Position: position, Values: values}
}

func TestValidateRow_ValidRecord(t *testing.T) {
	rec, errs := ValidateRow(rawFrom(1, map[string]string{
		"CIN":                       " u72200ka2010ptc054321 ",
		"Company Name":              "  Acme   Workspaces Private Limited ",
		"Company Category":          "COMPANY LIMITED BY SHARES",
		"Class of Company":          "private",
		"Authorized Capital":        "₹ 10,00,000",
		"Paid Up Capital":           "500000.50",
		"Date of Registration":      "17-08-2010",
		"Registered Office Address": "12 MG Road,  Bengaluru",
		"Company Status":            "ACTIVE",
		"State Code":                "ka",
		"NIC Code":                  "72200",
	}))
	require.Empty(t, errs)

	assert.Equal(t, 1, rec.Row)
	assert.Equal(t, "U72200KA2010PTC054321", rec.CIN)
	assert.Equal(t, "Acme Workspaces Private Limited", rec.Name)
	assert.Equal(t, "Company Limited By Shares", rec.Category)
	assert.Equal(t, "Private", rec.Class)
	assert.True(t, decimal.NewFromInt(1000000).Equal(rec.AuthorizedCapital))
	assert.True(t, decimal.RequireFromString("500000.50").Equal(rec.PaidUpCapital))
	require.NotNil(t, rec.RegisteredOn)
	assert.Equal(t, "2010-08-17", rec.RegisteredOn.Format("2006-01-02"))
	assert.Equal(t, "12 MG Road, Bengaluru", rec.Address)
	assert.Equal(t, StatusActive, rec.Status)
	assert.Equal(t, "KA", rec.StateCode)
}

func TestValidateRow_MissingRequiredFields(t *testing.T) {
	_, errs := ValidateRow(rawFrom(4, map[string]string{
		"CIN":          "",
		"Company Name": "   ",
	}))
	require.Len(t, errs, 2)
	assert.Equal(t, "CIN", errs[0].Field)
	assert.Equal(t, "Row 4: CIN is required; Company Name is required", errs.Summary())
	assert.Equal(t, "Row 4: CIN is required", errs[0].Error())
}

func TestValidateRow_MalformedCIN(t *testing.T) {
	_, errs := ValidateRow(rawFrom(2, map[string]string{
		"CIN":          "12345",
		"Company Name": "Acme",
	}))
	require.Len(t, errs, 1)
	assert.Contains(t, errs.Summary(), `CIN "12345" is not a valid registration number`)
}

func TestValidateRow_BestEffortNumbersAndDates(t *testing.T) {
	rec, errs := ValidateRow(rawFrom(3, map[string]string{
		"CIN":                  "L17110MH1973PLC019786",
		"Company Name":         "Beta Industries Limited",
		"Authorized Capital":   "not disclosed",
		"Paid Up Capital":      "-2500",
		"Date of Registration": "sometime in 1973",
	}))
	require.Empty(t, errs)
	assert.True(t, rec.AuthorizedCapital.IsZero())
	assert.True(t, rec.PaidUpCapital.IsZero())
	assert.Nil(t, rec.RegisteredOn)
}

func TestValidateRow_HeaderAliasesAndDerivedState(t *testing.T) {
	rec, errs := ValidateRow(rawFrom(1, map[string]string{
		"corporate_identification_number": "L17110MH1973PLC019786",
		"COMPANY_NAME":                    "Beta Industries Limited",
		"status":                          "Struck-Off",
	}))
	require.Empty(t, errs)
	assert.Equal(t, "Beta Industries Limited", rec.Name)
	assert.Equal(t, StatusStrikeOff, rec.Status)
	assert.Equal(t, "MH", rec.StateCode)
}

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]Status{
		"active":            StatusActive,
		" Dormant ":         StatusDormant,
		"strike_off":        StatusStrikeOff,
		"STRUCK OFF":        StatusStrikeOff,
		"under liquidation": Status("Under Liquidation"),
		"":                  Status(""),
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeStatus(in), "input %q", in)
	}
}

func TestValidateRow_NeverPanics(t *testing.T) {
	inputs := []map[string]string{
		nil,
		{},
		{"CIN": "\x00\xff", "Company Name": "\xfe"},
		{"unrelated": "value"},
		{"CIN": "U72200KA2010PTC054321"},
	}
	for _, in := range inputs {
		require.NotPanics(t, func() {
			rec, errs := ValidateRow(rawFrom(1, in))
			if len(errs) == 0 {
				require.NotEmpty(t, rec.CIN)
			}
		})
	}
}

func TestValidateRow_DuplicateAliasColumns(t *testing.T) {
	raw := RawRow{
		Position: 1,
		Headers:  []string{"CIN", "Company Name", "State", "State Code"},
		Values: map[string]string{
			"CIN":          "U72200KA2010PTC054321",
			"Company Name": "Acme",
			"State":        "Karnataka",
			"State Code":   "KA",
		},
	}
	for range 200 {
		rec, errs := ValidateRow(raw)
		require.Empty(t, errs)
		require.Equal(t, "KA", rec.StateCode)
	}
}

func TestRawRow_ColumnPrecedence(t *testing.T) {
	cases := []struct {
		name    string
		headers []string
		values  map[string]string
		want    string
	}{
		{
			name:    "exact header beats an earlier alias",
			headers: []string{"Registration Number", "CIN"},
			values:  map[string]string{"Registration Number": "U11111KA2010PTC000001", "CIN": "U22222KA2010PTC000002"},
			want:    "U22222KA2010PTC000002",
		},
		{
			name:    "leftmost alias wins without an exact header",
			headers: []string{"Company CIN", "Registration Number"},
			values:  map[string]string{"Company CIN": "U11111KA2010PTC000001", "Registration Number": "U22222KA2010PTC000002"},
			want:    "U11111KA2010PTC000001",
		},
		{
			name:    "empty exact header falls back to an alias",
			headers: []string{"CIN", "Registration Number"},
			values:  map[string]string{"CIN": " ", "Registration Number": "U22222KA2010PTC000002"},
			want:    "U22222KA2010PTC000002",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for range 50 {
				got := RawRow{Headers: tc.headers, Values: tc.values}.byColumn()
				require.Equal(t, tc.want, got[ColumnCIN])
			}
		})
	}
}
