package service_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stmtrules/internal/domain"
	"stmtrules/internal/featureflag"
	"stmtrules/internal/profile"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaultStore(t *testing.T) *profile.Store {
	t.Helper()
	return profile.NewStore(t.TempDir()+"/missing", profile.WithLogger(quietLogger()))
}

func newEngine(t *testing.T, opts ...featureflag.Option) *featureflag.Engine {
	t.Helper()
	opts = append([]featureflag.Option{featureflag.WithLogger(quietLogger())}, opts...)
	e, err := featureflag.New(opts...)
	require.NoError(t, err)
	return e
}

func validProfile(id string) *domain.BankProfile {
	return &domain.BankProfile{
		ID:       id,
		Name:     "Bank " + id,
		Country:  "KZ",
		Currency: "KZT",
		Identification: domain.Identification{
			FilenamePatterns: []string{id + `_.*\.csv`},
			TextPatterns:     []string{"Bank " + id},
		},
		Parsing: domain.ParsingConfig{
			Format: domain.FormatCSV,
			Columns: []domain.ColumnDefinition{
				{Name: "date", Type: domain.ColumnDate, Required: true},
				{Name: "amount", Type: domain.ColumnAmount, Required: true},
			},
		},
		LastUpdated: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}
