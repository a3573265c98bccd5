package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// BankProfile is the identification and parsing contract for one institution.
type BankProfile struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	DisplayName string    `json:"displayName" yaml:"displayName"`
	Country     string    `json:"country" yaml:"country"`
	Locale      string    `json:"locale" yaml:"locale"`
	Currency    string    `json:"currency" yaml:"currency"`
	Version     string    `json:"version" yaml:"version"`
	LastUpdated time.Time `json:"lastUpdated" yaml:"lastUpdated"`

	Identification Identification   `json:"identification" yaml:"identification"`
	Parsing        ParsingConfig    `json:"parsing" yaml:"parsing"`
	Metadata       MetadataPatterns `json:"metadata" yaml:"metadata"`
	Validation     ValidationRules  `json:"validation" yaml:"validation"`
	Quality        QualityConfig    `json:"quality" yaml:"quality"`

	// Features overrides global feature-flag evaluation for this bank, keyed by flag name.
	Features map[string]any `json:"features,omitempty" yaml:"features,omitempty"`
}

// Identification holds ordered pattern lists used to recognise a bank's documents.
type Identification struct {
	DocumentPatterns []string `json:"documentPatterns" yaml:"documentPatterns"`
	FilenamePatterns []string `json:"filenamePatterns" yaml:"filenamePatterns"`
	TextPatterns     []string `json:"textPatterns" yaml:"textPatterns"`
	URLPatterns      []string `json:"urlPatterns,omitempty" yaml:"urlPatterns,omitempty"`
	MetadataPatterns []string `json:"metadataPatterns,omitempty" yaml:"metadataPatterns,omitempty"`
}

// ParsingConfig is the declarative column schema and format hints for a bank.
type ParsingConfig struct {
	Format    StatementFormat `json:"format" yaml:"format"`
	Encoding  string          `json:"encoding,omitempty" yaml:"encoding,omitempty"`
	Delimiter string          `json:"delimiter,omitempty" yaml:"delimiter,omitempty"`
	HasHeader bool            `json:"hasHeader,omitempty" yaml:"hasHeader,omitempty"`
	SkipRows  int             `json:"skipRows,omitempty" yaml:"skipRows,omitempty"`
	MaxRows   int             `json:"maxRows,omitempty" yaml:"maxRows,omitempty"`

	Columns []ColumnDefinition `json:"columns" yaml:"columns"`

	DateFormat   string        `json:"dateFormat,omitempty" yaml:"dateFormat,omitempty"`
	AmountFormat *AmountFormat `json:"amountFormat,omitempty" yaml:"amountFormat,omitempty"`

	MultiCurrency         bool `json:"multiCurrency,omitempty" yaml:"multiCurrency,omitempty"`
	ReverseDebitCredit    bool `json:"reverseDebitCredit,omitempty" yaml:"reverseDebitCredit,omitempty"`
	NegativeInParentheses bool `json:"negativeInParentheses,omitempty" yaml:"negativeInParentheses,omitempty"`
	ZeroAmountsAsNull     bool `json:"zeroAmountsAsNull,omitempty" yaml:"zeroAmountsAsNull,omitempty"`
}

// AmountFormat describes how amounts are written in a statement.
type AmountFormat struct {
	DecimalSeparator   string `json:"decimalSeparator" yaml:"decimalSeparator"`
	ThousandsSeparator string `json:"thousandsSeparator" yaml:"thousandsSeparator"`
	CurrencyPosition   string `json:"currencyPosition" yaml:"currencyPosition"` // before | after
	CurrencySymbol     string `json:"currencySymbol,omitempty" yaml:"currencySymbol,omitempty"`
}

// ColumnDefinition is one column of a bank's statement layout.
type ColumnDefinition struct {
	Name       string            `json:"name" yaml:"name"`
	Type       ColumnType        `json:"type" yaml:"type"`
	Required   bool              `json:"required" yaml:"required"`
	Index      *int              `json:"index,omitempty" yaml:"index,omitempty"`
	Pattern    string            `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Mapping    *ColumnMapping    `json:"mapping,omitempty" yaml:"mapping,omitempty"`
	Validation *ColumnValidation `json:"validation,omitempty" yaml:"validation,omitempty"`
}

// ColumnMapping lists alternative header names and value transformations.
type ColumnMapping struct {
	Alternatives    []string `json:"alternatives,omitempty" yaml:"alternatives,omitempty"`
	Transformations []string `json:"transformations,omitempty" yaml:"transformations,omitempty"`
}

// ColumnValidation constrains the raw cell value of a column.
type ColumnValidation struct {
	MinLength     int      `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength     int      `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Pattern       string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	AllowedValues []string `json:"allowedValues,omitempty" yaml:"allowedValues,omitempty"`
}

// MetadataPatterns locate header, account, period and balance text in a document.
type MetadataPatterns struct {
	HeaderPatterns        []string `json:"headerPatterns,omitempty" yaml:"headerPatterns,omitempty"`
	AccountNumberPatterns []string `json:"accountNumberPatterns,omitempty" yaml:"accountNumberPatterns,omitempty"`
	PeriodPatterns        []string `json:"periodPatterns,omitempty" yaml:"periodPatterns,omitempty"`
	BalancePatterns       []string `json:"balancePatterns,omitempty" yaml:"balancePatterns,omitempty"`
	CurrencyPatterns      []string `json:"currencyPatterns,omitempty" yaml:"currencyPatterns,omitempty"`
	InstitutionPatterns   []string `json:"institutionPatterns,omitempty" yaml:"institutionPatterns,omitempty"`
}

// ValidationRules lists the fields and business rules applied to parsed rows.
type ValidationRules struct {
	RequiredFields  []string          `json:"requiredFields,omitempty" yaml:"requiredFields,omitempty"`
	OptionalFields  []string          `json:"optionalFields,omitempty" yaml:"optionalFields,omitempty"`
	FieldValidation []FieldValidation `json:"fieldValidation,omitempty" yaml:"fieldValidation,omitempty"`
	BusinessRules   []BusinessRule    `json:"businessRules,omitempty" yaml:"businessRules,omitempty"`
}

// FieldValidation is a single per-field rule.
type FieldValidation struct {
	Field    string              `json:"field" yaml:"field"`
	Type     FieldValidationType `json:"type" yaml:"type"`
	Rule     string              `json:"rule" yaml:"rule"`
	Message  string              `json:"message,omitempty" yaml:"message,omitempty"`
	Severity Severity            `json:"severity,omitempty" yaml:"severity,omitempty"`
}

// BusinessRule is a named condition→action pair, lower priority applied first.
type BusinessRule struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Condition   string `json:"condition" yaml:"condition"`
	Action      string `json:"action" yaml:"action"`
	Priority    int    `json:"priority" yaml:"priority"`
}

// QualityConfig holds tolerances and quality-check eligibility.
type QualityConfig struct {
	ExpectedColumns    int              `json:"expectedColumns,omitempty" yaml:"expectedColumns,omitempty"`
	ToleranceLevels    *ToleranceLevels `json:"toleranceLevels,omitempty" yaml:"toleranceLevels,omitempty"`
	ChecksumValidation bool             `json:"checksumValidation,omitempty" yaml:"checksumValidation,omitempty"`
	DuplicateDetection bool             `json:"duplicateDetection,omitempty" yaml:"duplicateDetection,omitempty"`
}

// ToleranceLevels: amount and balance as fractions, date in days.
type ToleranceLevels struct {
	Amount  float64 `json:"amount" yaml:"amount"`
	Date    float64 `json:"date" yaml:"date"`
	Balance float64 `json:"balance" yaml:"balance"`
}

// HasColumnType reports whether any column of the profile has type t.
func (p *BankProfile) HasColumnType(t ColumnType) bool {
	for _, c := range p.Parsing.Columns {
		if c.Type == t {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can never mutate store-owned state.
func (p *BankProfile) Clone() *BankProfile {
	if p == nil {
		return nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		cp := *p
		return &cp
	}
	var out BankProfile
	if err := json.Unmarshal(raw, &out); err != nil {
		cp := *p
		return &cp
	}
	return &out
}

// ProfileUpdate is a partial update; nil fields are left untouched. The id is immutable.
type ProfileUpdate struct {
	Name           *string           `json:"name"`
	DisplayName    *string           `json:"displayName"`
	Country        *string           `json:"country"`
	Locale         *string           `json:"locale"`
	Currency       *string           `json:"currency"`
	Version        *string           `json:"version"`
	Identification *Identification   `json:"identification"`
	Parsing        *ParsingConfig    `json:"parsing"`
	Metadata       *MetadataPatterns `json:"metadata"`
	Validation     *ValidationRules  `json:"validation"`
	Quality        *QualityConfig    `json:"quality"`
	Features       map[string]any    `json:"features"`
}

// Apply merges u into p and refreshes LastUpdated.
func (u *ProfileUpdate) Apply(p *BankProfile, now time.Time) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.DisplayName != nil {
		p.DisplayName = *u.DisplayName
	}
	if u.Country != nil {
		p.Country = *u.Country
	}
	if u.Locale != nil {
		p.Locale = *u.Locale
	}
	if u.Currency != nil {
		p.Currency = *u.Currency
	}
	if u.Version != nil {
		p.Version = *u.Version
	}
	if u.Identification != nil {
		p.Identification = *u.Identification
	}
	if u.Parsing != nil {
		p.Parsing = *u.Parsing
	}
	if u.Metadata != nil {
		p.Metadata = *u.Metadata
	}
	if u.Validation != nil {
		p.Validation = *u.Validation
	}
	if u.Quality != nil {
		p.Quality = *u.Quality
	}
	if u.Features != nil {
		p.Features = u.Features
	}
	p.LastUpdated = now
}

// ValidationResult is the structural check outcome for a profile.
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// ConfigSnapshot is a persisted JSON document (flag configuration or profile backup).
type ConfigSnapshot struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	Kind      SnapshotKind    `json:"kind" db:"kind"`
	Payload   json.RawMessage `json:"payload" db:"payload"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
