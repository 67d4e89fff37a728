// Package pipeline implements the query pipeline that answers natural
// language questions over the retail store: translation to SQL, a
// deterministic safety gate, and read-only execution, composed with bounded
// retries. Every request produces a response envelope; a failed envelope is
// a normal terminal state, not an exception.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mygoal-javadeveloper/Blend360-LLM-retail-insights/pkg/catalog"
)

const backendRetryInterval = 500 * time.Millisecond

// Pipeline orchestrates Translating -> Validating -> Executing for one
// request at a time. Concurrent runs are independent; the only shared state
// is the read-only store handle behind the schema provider and executor.
type Pipeline struct {
	cfg   *Config
	log   *slog.Logger
	guard *Guard
}

// New creates a new Pipeline.
func New(cfg *Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate pipeline config: %w", err)
	}
	return &Pipeline{
		cfg:   cfg,
		log:   cfg.Logger,
		guard: NewGuard(cfg.Logger, cfg.VerdictTTL),
	}, nil
}

// Close releases the verdict cache.
func (p *Pipeline) Close() {
	p.guard.Close()
}

// Run is the sole entry point into the core. It always returns an envelope;
// callers must treat a failed envelope as an expected outcome.
func (p *Pipeline) Run(ctx context.Context, req Request) *Envelope {
	start := p.cfg.Clock.Now()
	env := &Envelope{Request: req}
	defer func() {
		env.Elapsed = p.cfg.Clock.Since(start)
	}()

	desc, err := p.cfg.Schema.Describe(ctx)
	if err != nil {
		return p.fail(env, KindExecutionFailed, fmt.Sprintf("schema introspection failed: %v", err))
	}

	// Translating
	p.log.Debug("pipeline: translating", "question", req.Question, "scope", req.Scope.String())
	var cand CandidateStatement
	feedback := ""
	for attempt := 0; ; attempt++ {
		env.Attempts++
		cand, err = p.translateWithPolicy(ctx, req, desc, feedback)
		if err == nil {
			break
		}

		var ke *KindError
		if errors.As(err, &ke) && ke.Kind == KindNoStatementProduced {
			if attempt < p.cfg.TranslateRetries {
				feedback = "the model output contained no SQL statement; respond with one statement in a ```sql block"
				continue
			}
			return p.fail(env, KindNoStatementProduced, ke.Detail)
		}

		kind, detail := backendFailure(err)
		return p.fail(env, kind, detail)
	}

	// Validating. A rejected candidate is a policy failure, not a transient
	// one; the single optional re-translation feeds the rejection reason
	// back as corrective context.
	p.log.Debug("pipeline: validating", "sql", cand.SQL)
	env.SQL = cand.SQL
	verdict := p.guard.Validate(cand, desc)
	env.Verdict = &verdict

	for retry := 0; !verdict.Accepted && retry < p.cfg.CorrectiveRetries; retry++ {
		env.Attempts++
		feedback = fmt.Sprintf("statement rejected (%s): %s", verdict.Kind, verdict.Detail)
		regenerated, err := p.translateWithPolicy(ctx, req, desc, feedback)
		if err != nil {
			// keep the original rejection as the terminal reason
			break
		}
		cand = regenerated
		env.SQL = cand.SQL
		verdict = p.guard.Validate(cand, desc)
		env.Verdict = &verdict
	}
	if !verdict.Accepted {
		return p.fail(env, verdict.Kind, verdict.Detail)
	}

	// Executing. The runner is called exactly once: a failing statement
	// against a fixed schema will not usually self-heal.
	p.log.Debug("pipeline: executing", "sql", cand.SQL)
	ectx, cancel := context.WithTimeout(ctx, p.cfg.ExecutionTimeout)
	defer cancel()

	result, err := p.cfg.Executor.Execute(ectx, cand.SQL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return p.fail(env, KindExecutionTimeout,
				fmt.Sprintf("execution exceeded %s", p.cfg.ExecutionTimeout))
		}
		return p.fail(env, KindExecutionFailed, err.Error())
	}

	env.Result = &result
	if result.Error != "" {
		return p.fail(env, KindExecutionFailed, result.Error)
	}
	if result.Truncated {
		env.Warnings = append(env.Warnings, KindResultTruncated)
	}

	p.log.Info("pipeline: request completed",
		"question", req.Question,
		"scope", req.Scope.String(),
		"rows", result.Count,
		"truncated", result.Truncated,
		"attempts", env.Attempts)
	return env
}

// translateWithPolicy applies the backend timeout to one translation attempt
// and retries transient backend unavailability with a constant backoff.
// Typed translation failures and timeouts are permanent.
func (p *Pipeline) translateWithPolicy(ctx context.Context, req Request, desc catalog.Descriptor, feedback string) (CandidateStatement, error) {
	var cand CandidateStatement
	op := func() error {
		cctx, cancel := context.WithTimeout(ctx, p.cfg.BackendTimeout)
		defer cancel()

		c, err := p.Translate(cctx, req, desc, feedback)
		if err != nil {
			var ke *KindError
			if errors.As(err, &ke) {
				return backoff.Permanent(err)
			}
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return backoff.Permanent(err)
			}
			return err
		}
		cand = c
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(backendRetryInterval), uint64(p.cfg.BackendRetries)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return CandidateStatement{}, err
	}
	return cand, nil
}

func (p *Pipeline) fail(env *Envelope, kind ErrorKind, detail string) *Envelope {
	env.Failure = &Failure{Kind: kind, Detail: detail}
	p.log.Info("pipeline: request failed",
		"kind", kind,
		"detail", detail,
		"question", env.Request.Question,
		"scope", env.Request.Scope.String())
	return env
}

// backendFailure maps a backend error to its typed kind. A cancelled caller
// context is the caller abandoning the request, not a backend outage.
func backendFailure(err error) (ErrorKind, string) {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindBackendTimeout, "language backend call timed out"
	}
	if errors.Is(err, context.Canceled) {
		return KindExecutionFailed, "request cancelled"
	}
	return KindBackendUnavailable, err.Error()
}
