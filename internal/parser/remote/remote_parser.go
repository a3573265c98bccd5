package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"stmtrules/internal/config"
	"stmtrules/internal/parser"
	"stmtrules/internal/port"
)

// Parser implements port.StatementParser by posting the document and the
// strategy directives to an external parsing service.
type Parser struct {
	engine   string
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewParser creates a remote parser for the named engine.
func NewParser(engine string, cfg *config.ParserConfig) *Parser {
	timeout := cfg.AttemptTimeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Parser{
		engine:   engine,
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
	}
}

// Register registers a remote engine factory for each name.
func Register(names ...string) {
	for _, name := range names {
		engine := name
		parser.RegisterEngine(engine, func(cfg *config.ParserConfig) (port.StatementParser, error) {
			if cfg.Endpoint == "" {
				return nil, fmt.Errorf("parser endpoint is not configured")
			}
			return NewParser(engine, cfg), nil
		})
	}
}

type request struct {
	Engine      string          `json:"engine"`
	Filename    string          `json:"filename"`
	ContentType string          `json:"contentType"`
	BankID      string          `json:"bankId,omitempty"`
	Strategy    string          `json:"strategy"`
	Extraction  string          `json:"extraction"`
	Validation  string          `json:"validation"`
	AutoFix     bool            `json:"autoFix"`
	Features    map[string]bool `json:"features,omitempty"`
	Document    string          `json:"document"`
}

type response struct {
	Transactions json.RawMessage `json:"transactions"`
	Quality      float64         `json:"quality"`
	Engine       string          `json:"engine"`
}

func (p *Parser) Parse(ctx context.Context, input port.ParseInput) (*port.ParseOutput, error) {
	body, err := json.Marshal(request{
		Engine:      p.engine,
		Filename:    input.Filename,
		ContentType: input.ContentType,
		BankID:      input.BankID,
		Strategy:    input.Strategy,
		Extraction:  input.Extraction,
		Validation:  input.Validation,
		AutoFix:     input.AutoFix,
		Features:    input.Features,
		Document:    base64.StdEncoding.EncodeToString(input.FileBytes),
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling parser service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := fmt.Errorf("parser service error (status %d): %s", resp.StatusCode, truncate(string(respBody), 500))
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := parser.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return nil, parser.NewRateLimitError(p.engine, baseErr, retryAfter)
		}
		return nil, baseErr
	}

	var out response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}
	if out.Quality < 0 || out.Quality > 1 {
		return nil, fmt.Errorf("parser service reported quality %v outside [0, 1]", out.Quality)
	}
	engine := out.Engine
	if engine == "" {
		engine = p.engine
	}
	return &port.ParseOutput{
		Transactions: out.Transactions,
		Quality:      out.Quality,
		EngineUsed:   engine,
	}, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
