package domain

// StatementFormat is the document format a profile targets.
type StatementFormat string

const (
	FormatCSV   StatementFormat = "csv"
	FormatExcel StatementFormat = "excel"
	FormatPDF   StatementFormat = "pdf"
	FormatHTML  StatementFormat = "html"
	FormatAuto  StatementFormat = "auto"
)

// ColumnType is the semantic type of a statement column.
type ColumnType string

const (
	ColumnDate     ColumnType = "date"
	ColumnAmount   ColumnType = "amount"
	ColumnString   ColumnType = "string"
	ColumnNumber   ColumnType = "number"
	ColumnCurrency ColumnType = "currency"
	ColumnBoolean  ColumnType = "boolean"
)

// FieldValidationType classifies a FieldValidation rule.
type FieldValidationType string

const (
	FieldValidationFormat  FieldValidationType = "format"
	FieldValidationRange   FieldValidationType = "range"
	FieldValidationPattern FieldValidationType = "pattern"
	FieldValidationEnum    FieldValidationType = "enum"
)

// Severity of a failed field validation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// HealthStatus is the coarse state reported by configuration health checks.
type HealthStatus string

const (
	HealthHealthy HealthStatus = "healthy"
	HealthWarning HealthStatus = "warning"
	HealthError   HealthStatus = "error"
)

// IdentificationMethod records how a profile was matched to a document.
type IdentificationMethod string

const (
	IdentifiedByFilename IdentificationMethod = "filename"
	IdentifiedByText     IdentificationMethod = "text"
	IdentifiedByBankID   IdentificationMethod = "bank_id"
)

// SnapshotKind partitions rows in the config_snapshots table.
type SnapshotKind string

const (
	SnapshotFlags    SnapshotKind = "flags"
	SnapshotProfiles SnapshotKind = "profiles"
)
