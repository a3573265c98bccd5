package profileexport

import (
	"encoding/csv"
	"io"

	"stmtrules/internal/domain"
)

// BOM makes Excel on Windows detect UTF-8, which Cyrillic bank names need.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter wraps csv.Writer for exporting the profile catalog.
type CSVWriter struct {
	csv *csv.Writer
}

// NewCSVWriter creates a CSVWriter that writes to w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{csv: csv.NewWriter(w)}
}

// WriteHeader writes the catalog header row.
func (w *CSVWriter) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteProfiles writes one row per profile column.
func (w *CSVWriter) WriteProfiles(profiles []*domain.BankProfile) error {
	for _, row := range Rows(profiles) {
		if err := w.csv.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer.
func (w *CSVWriter) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *CSVWriter) Error() error {
	return w.csv.Error()
}

// WriteCSV writes BOM, header and rows to w.
func WriteCSV(w io.Writer, profiles []*domain.BankProfile) error {
	if _, err := w.Write(BOM); err != nil {
		return err
	}
	cw := NewCSVWriter(w)
	if err := cw.WriteHeader(); err != nil {
		return err
	}
	if err := cw.WriteProfiles(profiles); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
