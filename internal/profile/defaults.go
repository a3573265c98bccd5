package profile

import (
	"time"

	"stmtrules/internal/domain"
)

// DefaultProfiles returns the built-in seed used when no profile directory is
// available. Order matters for identification.
func DefaultProfiles(now time.Time) []*domain.BankProfile {
	return []*domain.BankProfile{
		kazkomertsbank(now),
		halykbank(now),
		kaspibank(now),
		berekebank(now),
	}
}

func idx(i int) *int { return &i }

func standardTolerance() *domain.ToleranceLevels {
	return &domain.ToleranceLevels{Amount: 0.01, Date: 1, Balance: 0.02}
}

var standardRequiredFields = []string{"transactionDate", "counterpartyName", "paymentPurpose"}

func kazkomertsbank(now time.Time) *domain.BankProfile {
	return &domain.BankProfile{
		ID:          "kazkomertsbank",
		Name:        "Kazkommertsbank",
		DisplayName: `АО "Казкоммерцбанк"`,
		Country:     "KZ",
		Locale:      "ru",
		Currency:    "KZT",
		Version:     "1.0.0",
		LastUpdated: now,
		Identification: domain.Identification{
			DocumentPatterns: []string{"казкоммерцбанк", "kazkomertsbank", "kkb", `АО "Казкоммерцбанк"`},
			FilenamePatterns: []string{`kkb_.*\.pdf`, `kazkomertsbank_.*\.xlsx`, `выписка_.*kkb.*`},
			TextPatterns:     []string{`АО "Казкоммерцбанк"`, "Казкоммерцбанк", "KAZKOMERTSBANK"},
		},
		Parsing: domain.ParsingConfig{
			Format: domain.FormatPDF,
			Columns: []domain.ColumnDefinition{
				{Name: "transactionDate", Type: domain.ColumnDate, Required: true, Index: idx(0)},
				{Name: "documentNumber", Type: domain.ColumnString, Index: idx(1)},
				{Name: "counterpartyName", Type: domain.ColumnString, Required: true, Index: idx(2)},
				{Name: "counterpartyBin", Type: domain.ColumnString, Index: idx(3)},
				{Name: "debit", Type: domain.ColumnAmount, Index: idx(4)},
				{Name: "credit", Type: domain.ColumnAmount, Index: idx(5)},
				{Name: "paymentPurpose", Type: domain.ColumnString, Required: true, Index: idx(6)},
				{Name: "currency", Type: domain.ColumnCurrency, Index: idx(7)},
			},
			DateFormat: "DD.MM.YYYY",
			AmountFormat: &domain.AmountFormat{
				DecimalSeparator:   ",",
				ThousandsSeparator: " ",
				CurrencyPosition:   "after",
				CurrencySymbol:     "₸",
			},
		},
		Metadata: domain.MetadataPatterns{
			HeaderPatterns:        []string{"ВЫПИСКА ИЗ СЧЕТА", "ПО СЧЕТУ", `АО "Казкоммерцбанк"`},
			AccountNumberPatterns: []string{`Счет[:\s]*([A-Z0-9]{20})`, `Номер счета[:\s]*([A-Z0-9]{20})`},
			PeriodPatterns: []string{
				`Период[:\s]*(\d{2}\.\d{2}\.\d{4})\s*-\s*(\d{2}\.\d{2}\.\d{4})`,
				`За период[:\s]*(\d{2}\.\d{2}\.\d{4})\s*по\s*(\d{2}\.\d{2}\.\d{4})`,
			},
			BalancePatterns: []string{`Остаток на конец[:\s]*([\d\s,.-]+)`, `Конечный остаток[:\s]*([\d\s,.-]+)`},
		},
		Validation: domain.ValidationRules{
			RequiredFields: standardRequiredFields,
			OptionalFields: []string{"documentNumber", "counterpartyBin", "currency"},
			BusinessRules: []domain.BusinessRule{{
				Name:        "debit_xor_credit",
				Description: "Transaction must have either debit or credit, not both",
				Condition:   "xor(debit, credit)",
				Action:      "set_other_to_zero",
				Priority:    1,
			}},
		},
		Quality: domain.QualityConfig{
			ExpectedColumns:    8,
			ToleranceLevels:    standardTolerance(),
			ChecksumValidation: true,
			DuplicateDetection: true,
		},
		Features: map[string]any{
			"ml-classification":   true,
			"ai-extraction":       true,
			"auto-fix-enabled":    true,
			"checksum-validation": true,
			"fallback-mode":       "regex",
		},
	}
}

func halykbank(now time.Time) *domain.BankProfile {
	return &domain.BankProfile{
		ID:          "halykbank",
		Name:        "Halyk Bank",
		DisplayName: `АО "Народный банк Казахстана"`,
		Country:     "KZ",
		Locale:      "ru",
		Currency:    "KZT",
		Version:     "1.0.0",
		LastUpdated: now,
		Identification: domain.Identification{
			DocumentPatterns: []string{"народный банк", "halyk bank", "халык банк", "народный"},
			FilenamePatterns: []string{`halyk_.*\.pdf`, `народный_.*\.xlsx`},
			TextPatterns:     []string{`АО "Народный банк Казахстана"`, "Halyk Bank", "Халык Банк"},
		},
		Parsing: domain.ParsingConfig{
			Format:    domain.FormatExcel,
			Delimiter: ",",
			HasHeader: true,
			SkipRows:  1,
			Columns: []domain.ColumnDefinition{
				{Name: "transactionDate", Type: domain.ColumnDate, Required: true, Index: idx(0)},
				{Name: "counterpartyName", Type: domain.ColumnString, Required: true, Index: idx(1)},
				{Name: "paymentPurpose", Type: domain.ColumnString, Required: true, Index: idx(2)},
				{Name: "debit", Type: domain.ColumnAmount, Index: idx(3)},
				{Name: "credit", Type: domain.ColumnAmount, Index: idx(4)},
				{Name: "currency", Type: domain.ColumnCurrency, Index: idx(5)},
			},
			DateFormat: "DD.MM.YYYY",
			AmountFormat: &domain.AmountFormat{
				DecimalSeparator:   ".",
				ThousandsSeparator: ",",
				CurrencyPosition:   "after",
				CurrencySymbol:     "₸",
			},
			MultiCurrency: true,
		},
		Metadata: domain.MetadataPatterns{
			HeaderPatterns:        []string{"Народный банк", "Halyk Bank", "Выписка по счету"},
			AccountNumberPatterns: []string{`Счет[:\s]*([A-Z0-9]{20})`, `Номер счета[:\s]*([A-Z0-9]{20})`},
			PeriodPatterns:        []string{`Период[:\s]*(\d{2}\.\d{2}\.\d{4})\s*-\s*(\d{2}\.\d{2}\.\d{4})`},
		},
		Validation: domain.ValidationRules{
			RequiredFields: standardRequiredFields,
			BusinessRules: []domain.BusinessRule{{
				Name:        "amount_required",
				Description: "Transaction must have either debit or credit",
				Condition:   "or(debit, credit)",
				Action:      "error_if_missing",
				Priority:    1,
			}},
		},
		Quality: domain.QualityConfig{
			ExpectedColumns:    6,
			ToleranceLevels:    standardTolerance(),
			ChecksumValidation: true,
			DuplicateDetection: true,
		},
		Features: map[string]any{
			"ml-classification":   true,
			"ai-extraction":       true,
			"auto-fix-enabled":    true,
			"checksum-validation": true,
			"fallback-mode":       "heuristic",
		},
	}
}

func kaspibank(now time.Time) *domain.BankProfile {
	return &domain.BankProfile{
		ID:          "kaspibank",
		Name:        "Kaspi Bank",
		DisplayName: `АО "Kaspi Bank"`,
		Country:     "KZ",
		Locale:      "ru",
		Currency:    "KZT",
		Version:     "1.0.0",
		LastUpdated: now,
		Identification: domain.Identification{
			DocumentPatterns: []string{"каспи банк", "kaspi bank", "каспи", "kaspi"},
			FilenamePatterns: []string{`kaspi_.*\.pdf`, `каспи_.*\.xlsx`, `выписка_.*kaspi.*`},
			TextPatterns:     []string{"АО Kaspi Bank", "Kaspi Bank", "Каспи Банк"},
		},
		Parsing: domain.ParsingConfig{
			Format:    domain.FormatCSV,
			Delimiter: ";",
			HasHeader: true,
			Columns: []domain.ColumnDefinition{
				{Name: "transactionDate", Type: domain.ColumnDate, Required: true, Index: idx(0)},
				{Name: "documentNumber", Type: domain.ColumnString, Index: idx(1)},
				{Name: "counterpartyName", Type: domain.ColumnString, Required: true, Index: idx(2)},
				{Name: "debit", Type: domain.ColumnAmount, Index: idx(3)},
				{Name: "credit", Type: domain.ColumnAmount, Index: idx(4)},
				{Name: "paymentPurpose", Type: domain.ColumnString, Required: true, Index: idx(5)},
			},
			DateFormat: "DD.MM.YYYY HH:mm:ss",
			AmountFormat: &domain.AmountFormat{
				DecimalSeparator:   ".",
				ThousandsSeparator: " ",
				CurrencyPosition:   "after",
			},
		},
		Metadata: domain.MetadataPatterns{
			HeaderPatterns: []string{"Kaspi Bank", "АО Kaspi Bank", "Выписка по счету"},
		},
		Validation: domain.ValidationRules{
			RequiredFields: standardRequiredFields,
		},
		Quality: domain.QualityConfig{
			ExpectedColumns:    6,
			ToleranceLevels:    standardTolerance(),
			ChecksumValidation: true,
			DuplicateDetection: true,
		},
		Features: map[string]any{
			"ml-classification":   false,
			"ai-extraction":       true,
			"auto-fix-enabled":    true,
			"checksum-validation": true,
			"fallback-mode":       "regex",
		},
	}
}

func berekebank(now time.Time) *domain.BankProfile {
	return &domain.BankProfile{
		ID:          "berekebank",
		Name:        "Bereke Bank",
		DisplayName: `АО "Bereke Bank"`,
		Country:     "KZ",
		Locale:      "ru",
		Currency:    "KZT",
		Version:     "1.0.0",
		LastUpdated: now,
		Identification: domain.Identification{
			DocumentPatterns: []string{"береке банк", "bereke bank", "береке", "bereke"},
			FilenamePatterns: []string{`bereke_.*\.pdf`, `береке_.*\.xlsx`},
			TextPatterns:     []string{"АО Bereke Bank", "Bereke Bank", "Береке Банк"},
		},
		Parsing: domain.ParsingConfig{
			Format: domain.FormatPDF,
			Columns: []domain.ColumnDefinition{
				{Name: "transactionDate", Type: domain.ColumnDate, Required: true, Index: idx(0)},
				{Name: "counterpartyName", Type: domain.ColumnString, Required: true, Index: idx(1)},
				{Name: "paymentPurpose", Type: domain.ColumnString, Required: true, Index: idx(2)},
				{Name: "debit", Type: domain.ColumnAmount, Index: idx(3)},
				{Name: "credit", Type: domain.ColumnAmount, Index: idx(4)},
				{Name: "currency", Type: domain.ColumnCurrency, Index: idx(5)},
			},
			DateFormat: "DD.MM.YYYY",
			AmountFormat: &domain.AmountFormat{
				DecimalSeparator:   ",",
				ThousandsSeparator: " ",
				CurrencyPosition:   "after",
				CurrencySymbol:     "₸",
			},
		},
		Metadata: domain.MetadataPatterns{
			HeaderPatterns: []string{"Bereke Bank", "АО Bereke Bank", "Выписка по счету"},
		},
		Validation: domain.ValidationRules{
			RequiredFields: standardRequiredFields,
		},
		Quality: domain.QualityConfig{
			ExpectedColumns:    6,
			ToleranceLevels:    standardTolerance(),
			ChecksumValidation: true,
			DuplicateDetection: true,
		},
		Features: map[string]any{
			"ml-classification":   false,
			"ai-extraction":       true,
			"auto-fix-enabled":    true,
			"checksum-validation": true,
			"fallback-mode":       "heuristic",
		},
	}
}
