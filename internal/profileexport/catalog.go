// Package profileexport renders the bank profile catalog as CSV or XLSX,
// one row per declared statement column.
package profileexport

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"stmtrules/internal/domain"
)

// columns is the catalog header row.
var columns = []string{
	"Profile ID",
	"Bank Name",
	"Display Name",
	"Country",
	"Currency",
	"Locale",
	"Format",
	"Column",
	"Column Type",
	"Required",
	"Index",
	"Pattern",
	"Alternatives",
	"Date Format",
	"Last Updated",
}

// Header returns a copy of the catalog header row.
func Header() []string {
	return append([]string(nil), columns...)
}

// Rows flattens profiles into catalog rows. A profile without columns still
// yields one row with the column fields empty.
func Rows(profiles []*domain.BankProfile) [][]string {
	var out [][]string
	for _, p := range profiles {
		if len(p.Parsing.Columns) == 0 {
			out = append(out, profileRow(p, nil))
			continue
		}
		for i := range p.Parsing.Columns {
			out = append(out, profileRow(p, &p.Parsing.Columns[i]))
		}
	}
	return out
}

func profileRow(p *domain.BankProfile, col *domain.ColumnDefinition) []string {
	row := make([]string, len(columns))
	row[0] = p.ID
	row[1] = p.Name
	row[2] = p.DisplayName
	row[3] = p.Country
	row[4] = p.Currency
	row[5] = p.Locale
	row[6] = string(p.Parsing.Format)
	row[13] = p.Parsing.DateFormat
	if !p.LastUpdated.IsZero() {
		row[14] = p.LastUpdated.UTC().Format(time.RFC3339)
	}
	if col == nil {
		return row
	}
	row[7] = col.Name
	row[8] = string(col.Type)
	row[9] = formatBool(col.Required)
	if col.Index != nil {
		row[10] = strconv.Itoa(*col.Index)
	}
	row[11] = col.Pattern
	if col.Mapping != nil {
		row[12] = strings.Join(col.Mapping.Alternatives, "; ")
	}
	return row
}

func formatBool(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)
	multiUnderscore = regexp.MustCompile(`_{2,}`)
)

// SanitizeFilename keeps letters, digits, hyphen and underscore, collapses
// runs of underscores and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "profiles"
	}
	return s
}

// BuildFilename returns {name}_{YYYY-MM-DD}.{ext} for Content-Disposition.
func BuildFilename(name, ext string, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", SanitizeFilename(name), now.Format("2006-01-02"), ext)
}
