package port

import (
	"context"
	"encoding/json"
)

// ParseInput carries a statement and the directives of the strategy it is parsed under.
type ParseInput struct {
	FileBytes   []byte
	Filename    string
	ContentType string
	BankID      string
	Strategy    string
	Extraction  string
	Validation  string
	AutoFix     bool
	Features    map[string]bool
}

// ParseOutput is the result of one parse attempt. Quality is in [0, 1].
type ParseOutput struct {
	Transactions json.RawMessage
	Quality      float64
	EngineUsed   string
}

// StatementParser is an external byte-level statement parsing engine.
type StatementParser interface {
	Parse(ctx context.Context, input ParseInput) (*ParseOutput, error)
}
