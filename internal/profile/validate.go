package profile

import "stmtrules/internal/domain"

// Validate enforces identity fields and the date/amount column invariant.
// It never fails; problems are reported in the result.
func Validate(p *domain.BankProfile) domain.ValidationResult {
	errs := []string{}
	if p == nil {
		return domain.ValidationResult{IsValid: false, Errors: []string{"Profile is required"}}
	}

	if p.ID == "" {
		errs = append(errs, "Profile ID is required")
	}
	if p.Name == "" {
		errs = append(errs, "Profile name is required")
	}
	if len(p.Country) != 2 {
		errs = append(errs, "Valid country code is required")
	}
	if len(p.Currency) != 3 {
		errs = append(errs, "Valid currency code is required")
	}
	if len(p.Parsing.Columns) == 0 {
		errs = append(errs, "At least one column definition is required")
	}
	if !p.HasColumnType(domain.ColumnDate) {
		errs = append(errs, "At least one date column is required")
	}
	if !p.HasColumnType(domain.ColumnAmount) {
		errs = append(errs, "At least one amount column is required")
	}

	return domain.ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}
