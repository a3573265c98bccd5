package profile_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stmtrules/internal/domain"
	"stmtrules/internal/profile"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaultStore(t *testing.T) *profile.Store {
	t.Helper()
	return profile.NewStore(t.TempDir()+"/missing", profile.WithLogger(quietLogger()))
}

func minimalProfile(id string, filenamePatterns ...string) *domain.BankProfile {
	return &domain.BankProfile{
		ID:       id,
		Name:     id,
		Country:  "KZ",
		Currency: "KZT",
		Identification: domain.Identification{
			FilenamePatterns: filenamePatterns,
		},
		Parsing: domain.ParsingConfig{
			Format: domain.FormatCSV,
			Columns: []domain.ColumnDefinition{
				{Name: "date", Type: domain.ColumnDate, Required: true},
				{Name: "amount", Type: domain.ColumnAmount, Required: true},
			},
		},
	}
}

func TestNewStore_MissingDirectorySeedsDefaults(t *testing.T) {
	s := defaultStore(t)

	ids := make([]string, 0)
	for _, p := range s.List() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"kazkomertsbank", "halykbank", "kaspibank", "berekebank"}, ids)
}

func TestFindByFilename_Kaspi(t *testing.T) {
	s := defaultStore(t)

	p, ok := s.FindByFilename("kaspi_statement_2024.pdf")
	require.True(t, ok)
	assert.Equal(t, "kaspibank", p.ID)
}

func TestFindByFilename_CaseInsensitive(t *testing.T) {
	s := defaultStore(t)

	p, ok := s.FindByFilename("HALYK_March.PDF")
	require.True(t, ok)
	assert.Equal(t, "halykbank", p.ID)
}

func TestFindByFilename_NoMatch(t *testing.T) {
	s := defaultStore(t)

	p, ok := s.FindByFilename("random.docx")
	assert.False(t, ok)
	assert.Nil(t, p)
}

func TestFindByFilename_FirstRegisteredWins(t *testing.T) {
	s := profile.NewMemoryStore([]*domain.BankProfile{
		minimalProfile("specific", `acme_corp_.*\.csv`),
		minimalProfile("generic", `acme_.*`),
	}, profile.WithLogger(quietLogger()))

	for i := 0; i < 50; i++ {
		p, ok := s.FindByFilename("acme_corp_jan.csv")
		require.True(t, ok)
		assert.Equal(t, "specific", p.ID)
	}

	p, ok := s.FindByFilename("acme_other.csv")
	require.True(t, ok)
	assert.Equal(t, "generic", p.ID)
}

func TestFindByFilename_InvalidPatternSkipped(t *testing.T) {
	s := profile.NewMemoryStore([]*domain.BankProfile{
		minimalProfile("broken", `([`, `broken_.*`),
	}, profile.WithLogger(quietLogger()))

	p, ok := s.FindByFilename("broken_file.csv")
	require.True(t, ok)
	assert.Equal(t, "broken", p.ID)
}

func TestFindByText(t *testing.T) {
	s := defaultStore(t)

	p, ok := s.FindByText("Выписка по счету\nАО KASPI BANK\n...")
	require.True(t, ok)
	assert.Equal(t, "kaspibank", p.ID)

	_, ok = s.FindByText("nothing recognisable here")
	assert.False(t, ok)
}

func TestIdentify_FilenameBeforeText(t *testing.T) {
	s := defaultStore(t)

	p, method, ok := s.Identify("halyk_2024.pdf", "Kaspi Bank")
	require.True(t, ok)
	assert.Equal(t, "halykbank", p.ID)
	assert.Equal(t, domain.IdentifiedByFilename, method)

	p, method, ok = s.Identify("scan.pdf", "Kaspi Bank")
	require.True(t, ok)
	assert.Equal(t, "kaspibank", p.ID)
	assert.Equal(t, domain.IdentifiedByText, method)
}

func TestAddUpdateRemove(t *testing.T) {
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := profile.NewMemoryStore(nil, profile.WithLogger(quietLogger()), profile.WithClock(func() time.Time { return clock }))

	s.Add(minimalProfile("acme", `acme_.*`))
	got, ok := s.Get("acme")
	require.True(t, ok)
	assert.True(t, clock.Equal(got.LastUpdated))

	clock = clock.Add(time.Hour)
	name := "Acme Savings"
	updated, err := s.Update("acme", domain.ProfileUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Acme Savings", updated.Name)
	assert.Equal(t, "acme", updated.ID)
	assert.True(t, clock.Equal(updated.LastUpdated))
	assert.Len(t, updated.Parsing.Columns, 2)

	_, err = s.Update("missing", domain.ProfileUpdate{Name: &name})
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)

	assert.True(t, s.Remove("acme"))
	assert.False(t, s.Remove("acme"))
	_, ok = s.Get("acme")
	assert.False(t, ok)
}

func TestAdd_ReplaceKeepsPosition(t *testing.T) {
	s := profile.NewMemoryStore([]*domain.BankProfile{
		minimalProfile("a", `shared_.*`),
		minimalProfile("b", `shared_.*`),
	}, profile.WithLogger(quietLogger()))

	s.Add(minimalProfile("a", `other_.*`))
	s.Add(minimalProfile("a", `shared_.*`))

	p, ok := s.FindByFilename("shared_x")
	require.True(t, ok)
	assert.Equal(t, "a", p.ID)
}

func TestGet_ReturnsCopy(t *testing.T) {
	s := defaultStore(t)

	p, ok := s.Get("kaspibank")
	require.True(t, ok)
	p.Name = "mutated"
	p.Identification.FilenamePatterns[0] = "nothing"

	again, _ := s.Get("kaspibank")
	assert.Equal(t, "Kaspi Bank", again.Name)
	_, found := s.FindByFilename("kaspi_x.pdf")
	assert.True(t, found)
}

func TestReload_ReseedsDefaults(t *testing.T) {
	s := defaultStore(t)
	s.Remove("kaspibank")
	s.Add(minimalProfile("acme"))

	s.Reload()

	_, ok := s.Get("kaspibank")
	assert.True(t, ok)
	_, ok = s.Get("acme")
	assert.False(t, ok)
	assert.Equal(t, 4, s.Len())
}

func TestValidate_AmountAndDateColumnBoundary(t *testing.T) {
	p := &domain.BankProfile{
		ID:       "acme",
		Name:     "Acme",
		Country:  "KZ",
		Currency: "KZT",
		Parsing: domain.ParsingConfig{
			Columns: []domain.ColumnDefinition{{Name: "memo", Type: domain.ColumnString}},
		},
	}

	res := profile.Validate(p)
	assert.False(t, res.IsValid)
	assert.Contains(t, res.Errors, "At least one amount column is required")
	assert.Contains(t, res.Errors, "At least one date column is required")

	p.Parsing.Columns = append(p.Parsing.Columns,
		domain.ColumnDefinition{Name: "amount", Type: domain.ColumnAmount},
		domain.ColumnDefinition{Name: "date", Type: domain.ColumnDate},
	)
	res = profile.Validate(p)
	assert.True(t, res.IsValid)
	assert.Empty(t, res.Errors)
}

func TestValidate_IdentityFields(t *testing.T) {
	p := minimalProfile("")
	p.Name = ""
	p.Country = "KAZ"
	p.Currency = "KZ"

	res := profile.Validate(p)
	assert.False(t, res.IsValid)
	assert.ElementsMatch(t, []string{
		"Profile ID is required",
		"Profile name is required",
		"Valid country code is required",
		"Valid currency code is required",
	}, res.Errors)
}

func TestDefaultProfiles_AreValid(t *testing.T) {
	for _, p := range profile.DefaultProfiles(time.Now()) {
		res := profile.Validate(p)
		assert.True(t, res.IsValid, "%s: %v", p.ID, res.Errors)
	}
}
