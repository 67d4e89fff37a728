package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mygoal-javadeveloper/Blend360-LLM-retail-insights/pkg/catalog"
)

// ErrorKind classifies every failure the pipeline can surface.
type ErrorKind string

const (
	KindNoStatementProduced ErrorKind = "no_statement_produced"
	KindUnsafeOperation     ErrorKind = "unsafe_operation"
	KindUnknownTable        ErrorKind = "unknown_table"
	KindMalformedStatement  ErrorKind = "malformed_statement"
	KindBackendTimeout      ErrorKind = "backend_timeout"
	KindBackendUnavailable  ErrorKind = "backend_unavailable"
	KindExecutionTimeout    ErrorKind = "execution_timeout"
	KindExecutionFailed     ErrorKind = "execution_failed"

	// KindResultTruncated is warning-level, never terminal.
	KindResultTruncated ErrorKind = "result_truncated"
)

// KindError carries an ErrorKind across internal boundaries.
type KindError struct {
	Kind   ErrorKind
	Detail string
}

func (e *KindError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Scope restricts a request to a single table or all tables.
type Scope struct {
	// Table is empty when the scope covers all tables.
	Table string `json:"table,omitempty"`
}

func ScopeAll() Scope              { return Scope{} }
func ScopeTable(name string) Scope { return Scope{Table: name} }
func (s Scope) All() bool          { return s.Table == "" }

func (s Scope) String() string {
	if s.All() {
		return "all"
	}
	return s.Table
}

// Request is one user interaction: a natural-language question plus a target
// scope. Immutable once constructed.
type Request struct {
	Question string `json:"question"`
	Scope    Scope  `json:"scope"`
}

// CandidateStatement is an unvalidated SQL string produced by translation. It
// is never mutated; a rejected candidate is replaced by a new one.
type CandidateStatement struct {
	SQL     string  `json:"sql"`
	Request Request `json:"request"`
}

// Verdict is the Guard's terminal decision for one candidate statement.
type Verdict struct {
	Accepted bool      `json:"accepted"`
	Kind     ErrorKind `json:"kind,omitempty"`
	Detail   string    `json:"detail,omitempty"`

	// Notes carries advisory low-confidence observations (e.g. column
	// references that did not resolve). Notes never cause rejection.
	Notes []string `json:"notes,omitempty"`
}

// ExecutionResult is the outcome of running one accepted statement. Either
// Rows/Columns are populated, or Error holds the engine diagnostic verbatim.
type ExecutionResult struct {
	Columns   []string `json:"columns,omitempty"`
	Rows      [][]any  `json:"rows,omitempty"`
	Count     int      `json:"count"`
	Truncated bool     `json:"truncated,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Failure is the terminal error state of an envelope.
type Failure struct {
	Kind   ErrorKind `json:"kind"`
	Detail string    `json:"detail"`
}

// Envelope is the uniform response returned to the caller for every request,
// failed or not. Result is present if and only if the verdict accepted the
// statement; no execution occurs without prior acceptance.
type Envelope struct {
	Request  Request          `json:"request"`
	SQL      string           `json:"sql,omitempty"`
	Verdict  *Verdict         `json:"verdict,omitempty"`
	Result   *ExecutionResult `json:"result,omitempty"`
	Failure  *Failure         `json:"failure,omitempty"`
	Warnings []ErrorKind      `json:"warnings,omitempty"`
	Elapsed  time.Duration    `json:"elapsed_ns"`
	Attempts int              `json:"attempts"`
}

// OK reports whether the request completed with usable rows.
func (e *Envelope) OK() bool {
	return e.Failure == nil
}

// LLMClient is the interface for the language-generation backend. One call
// awaits one complete response; no streaming semantics.
type LLMClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Executor runs an accepted statement against the analytics store. Engine
// failures are reported in ExecutionResult.Error; the returned error is
// reserved for context cancellation and timeouts.
type Executor interface {
	Execute(ctx context.Context, sqlText string) (ExecutionResult, error)
}

// SchemaProvider returns a fresh structural snapshot of the store.
type SchemaProvider interface {
	Describe(ctx context.Context) (catalog.Descriptor, error)
}

// Config holds the configuration for the pipeline.
type Config struct {
	Logger   *slog.Logger
	LLM      LLMClient
	Executor Executor
	Schema   SchemaProvider
	Prompts  *Prompts
	Clock    clockwork.Clock

	// TranslateRetries bounds re-translation after NoStatementProduced.
	TranslateRetries int

	// CorrectiveRetries bounds re-translation after a Guard rejection, with
	// the rejection reason appended as corrective context.
	CorrectiveRetries int

	// BackendRetries bounds constant-backoff retries when the language
	// backend is unavailable.
	BackendRetries int

	BackendTimeout   time.Duration
	ExecutionTimeout time.Duration

	// VerdictTTL bounds how long a verdict stays cached per statement text
	// and schema fingerprint.
	VerdictTTL time.Duration
}

const (
	defaultTranslateRetries  = 1
	defaultCorrectiveRetries = 1
	defaultBackendRetries    = 2
	defaultBackendTimeout    = 60 * time.Second
	defaultExecutionTimeout  = 30 * time.Second
	defaultVerdictTTL        = 5 * time.Minute
)

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.LLM == nil {
		return fmt.Errorf("LLM client is required")
	}
	if cfg.Executor == nil {
		return fmt.Errorf("executor is required")
	}
	if cfg.Schema == nil {
		return fmt.Errorf("schema provider is required")
	}
	if cfg.Prompts == nil {
		return fmt.Errorf("prompts are required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.TranslateRetries == 0 {
		cfg.TranslateRetries = defaultTranslateRetries
	}
	if cfg.CorrectiveRetries == 0 {
		cfg.CorrectiveRetries = defaultCorrectiveRetries
	}
	if cfg.BackendRetries == 0 {
		cfg.BackendRetries = defaultBackendRetries
	}
	if cfg.BackendTimeout == 0 {
		cfg.BackendTimeout = defaultBackendTimeout
	}
	if cfg.ExecutionTimeout == 0 {
		cfg.ExecutionTimeout = defaultExecutionTimeout
	}
	if cfg.VerdictTTL == 0 {
		cfg.VerdictTTL = defaultVerdictTTL
	}
	return nil
}
