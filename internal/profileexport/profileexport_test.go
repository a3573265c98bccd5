package profileexport_test

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"stmtrules/internal/domain"
	"stmtrules/internal/profile"
	"stmtrules/internal/profileexport"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func columnCount(profiles []*domain.BankProfile) int {
	n := 0
	for _, p := range profiles {
		n += len(p.Parsing.Columns)
	}
	return n
}

func TestRows_OnePerColumn(t *testing.T) {
	profiles := profile.DefaultProfiles(fixedNow)

	rows := profileexport.Rows(profiles)

	require.Len(t, rows, columnCount(profiles))
	first := rows[0]
	assert.Equal(t, "kazkomertsbank", first[0])
	assert.Equal(t, "pdf", first[6])
	assert.Equal(t, profiles[0].Parsing.Columns[0].Name, first[7])
	assert.Equal(t, "2025-03-14T09:30:00Z", first[14])
	for _, r := range rows {
		assert.Len(t, r, len(profileexport.Header()))
	}
}

func TestRows_ProfileWithoutColumns(t *testing.T) {
	p := &domain.BankProfile{ID: "bare", Name: "Bare Bank"}

	rows := profileexport.Rows([]*domain.BankProfile{p})

	require.Len(t, rows, 1)
	assert.Equal(t, "bare", rows[0][0])
	assert.Empty(t, rows[0][7])
	assert.Empty(t, rows[0][14])
}

func TestRows_ColumnDetails(t *testing.T) {
	i := 3
	p := &domain.BankProfile{
		ID: "x",
		Parsing: domain.ParsingConfig{Columns: []domain.ColumnDefinition{{
			Name:     "amount",
			Type:     domain.ColumnAmount,
			Required: true,
			Index:    &i,
			Pattern:  `^-?\d+`,
			Mapping:  &domain.ColumnMapping{Alternatives: []string{"Сумма", "Sum"}},
		}}},
	}

	row := profileexport.Rows([]*domain.BankProfile{p})[0]

	assert.Equal(t, "amount", row[7])
	assert.Equal(t, "amount", row[8])
	assert.Equal(t, "Yes", row[9])
	assert.Equal(t, "3", row[10])
	assert.Equal(t, `^-?\d+`, row[11])
	assert.Equal(t, "Сумма; Sum", row[12])
}

func TestWriteCSV(t *testing.T) {
	profiles := profile.DefaultProfiles(fixedNow)
	var buf bytes.Buffer

	require.NoError(t, profileexport.WriteCSV(&buf, profiles))

	data := buf.Bytes()
	require.True(t, bytes.HasPrefix(data, profileexport.BOM))
	records, err := csv.NewReader(bytes.NewReader(data[len(profileexport.BOM):])).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, profileexport.Header(), records[0])
	assert.Len(t, records, columnCount(profiles)+1)
}

func TestWriteXLSX(t *testing.T) {
	profiles := profile.DefaultProfiles(fixedNow)
	var buf bytes.Buffer

	require.NoError(t, profileexport.WriteXLSX(&buf, profiles))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{profileexport.ColumnsSheet, profileexport.SummarySheet}, f.GetSheetList())

	rows, err := f.GetRows(profileexport.ColumnsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, columnCount(profiles)+1)
	assert.Equal(t, "Profile ID", rows[0][0])
	assert.Equal(t, "kazkomertsbank", rows[1][0])

	summary, err := f.GetRows(profileexport.SummarySheet)
	require.NoError(t, err)
	require.Len(t, summary, len(profiles)+1)
	assert.Equal(t, "halykbank", summary[2][0])
	assert.Equal(t, "excel", summary[2][2])
}

func TestBuildFilename(t *testing.T) {
	assert.Equal(t, "bank_profiles_2025-03-14.xlsx", profileexport.BuildFilename("bank profiles!", "xlsx", fixedNow))
	assert.Equal(t, "profiles_2025-03-14.csv", profileexport.BuildFilename("Банки", "csv", fixedNow))
}
