package parser

import (
	"fmt"
	"sort"
	"sync"

	"stmtrules/internal/config"
	"stmtrules/internal/domain"
	"stmtrules/internal/port"
)

// EngineFactory creates a StatementParser from the parser config.
type EngineFactory func(cfg *config.ParserConfig) (port.StatementParser, error)

var (
	enginesMu sync.RWMutex
	engines   = map[string]EngineFactory{}
)

// RegisterEngine registers an engine factory under the name used in a
// strategy's actions.parsing directive.
func RegisterEngine(name string, factory EngineFactory) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	engines[name] = factory
}

// NewEngine creates the named engine using its registered factory.
func NewEngine(name string, cfg *config.ParserConfig) (port.StatementParser, error) {
	enginesMu.RLock()
	factory, ok := engines[name]
	enginesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("parser engine %q: %w", name, domain.ErrNoParserEngine)
	}
	return factory(cfg)
}

// RegisteredEngines lists registered engine names in sorted order.
func RegisteredEngines() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildEngines instantiates every registered engine.
func BuildEngines(cfg *config.ParserConfig) (map[string]port.StatementParser, error) {
	out := make(map[string]port.StatementParser)
	for _, name := range RegisteredEngines() {
		p, err := NewEngine(name, cfg)
		if err != nil {
			return nil, fmt.Errorf("building parser engine %q: %w", name, err)
		}
		out[name] = p
	}
	return out, nil
}
