package compaction

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/youssefsiam38/ctxoffload/knownkeys"
	"github.com/youssefsiam38/ctxoffload/storage"
)

// Strategy represents a compaction strategy.
type Strategy string

const (
	// StrategyWriteToolResults offloads tool-result payloads to storage and
	// replaces them with references.
	StrategyWriteToolResults Strategy = "write-tool-results-to-storage"
)

// Default reader tool names. Results of these tools are already references
// into storage and are never written again.
const (
	DefaultReadToolName   = "readFile"
	DefaultSearchToolName = "grepAndSearchFile"
)

// DefaultStrategy is the strategy used when none is configured
const DefaultStrategy = StrategyWriteToolResults

// DefaultReaderToolNames returns the names of the built-in read and search tools
func DefaultReaderToolNames() []string {
	return []string{DefaultReadToolName, DefaultSearchToolName}
}

// Serializer turns a structured tool output into the text that is offloaded
type Serializer func(value any) (string, error)

// JSONSerializer renders value as two-space indented JSON without HTML escaping.
func JSONSerializer(value any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		return "", err
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// Config holds compaction configuration.
type Config struct {
	// Strategy is the compaction strategy to use.
	// Default: StrategyWriteToolResults
	Strategy Strategy

	// Boundary selects the window of messages eligible for rewriting.
	// Default: SinceLastText()
	Boundary Boundary

	// Adapter stores offloaded payloads. Required.
	Adapter storage.Adapter

	// Serializer converts structured outputs to text before writing.
	// Default: JSONSerializer
	Serializer Serializer

	// ReaderToolNames lists the tools whose results are references into
	// storage. A non-empty list replaces the defaults.
	// Default: DefaultReaderToolNames()
	ReaderToolNames []string

	// KnownKeys records every key written or surfaced during compaction.
	// Default: a fresh registry
	KnownKeys *knownkeys.Registry

	// Logger receives progress messages.
	// Default: no-op
	Logger Logger
}

// DefaultConfig returns a Config with defaults for everything but the adapter.
func DefaultConfig() *Config {
	return &Config{
		Strategy:        DefaultStrategy,
		Boundary:        SinceLastText(),
		Serializer:      JSONSerializer,
		ReaderToolNames: DefaultReaderToolNames(),
		KnownKeys:       knownkeys.New(),
		Logger:          noopLogger{},
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Strategy != StrategyWriteToolResults {
		return fmt.Errorf("%w: unknown strategy %q, must be %q",
			ErrInvalidConfig, c.Strategy, StrategyWriteToolResults)
	}

	if c.Adapter == nil {
		return fmt.Errorf("%w: storage adapter is required", ErrInvalidConfig)
	}

	switch c.Boundary.Kind() {
	case BoundarySinceLastText, BoundaryEntireConversation, BoundaryFirstNMessages:
	default:
		return fmt.Errorf("%w: unknown boundary %q", ErrInvalidConfig, c.Boundary.Kind())
	}

	for _, name := range c.ReaderToolNames {
		if name == "" {
			return fmt.Errorf("%w: reader tool names must not be empty", ErrInvalidConfig)
		}
	}

	return nil
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.Strategy == "" {
		c.Strategy = DefaultStrategy
	}
	if c.Serializer == nil {
		c.Serializer = JSONSerializer
	}
	if len(c.ReaderToolNames) == 0 {
		c.ReaderToolNames = DefaultReaderToolNames()
	}
	if c.KnownKeys == nil {
		c.KnownKeys = knownkeys.New()
	}
	if c.Logger == nil {
		c.Logger = noopLogger{}
	}
	// The zero Boundary is already SinceLastText
}
