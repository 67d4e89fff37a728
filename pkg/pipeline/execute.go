package pipeline

import (
	"context"
	"errors"

	"github.com/mygoal-javadeveloper/Blend360-LLM-retail-insights/pkg/store"
)

// StoreExecutor implements Executor over the embedded store. Statements run
// in a read-only session so that even a statement the Guard mis-judged
// cannot persist a side effect. Engine diagnostics are preserved verbatim
// for debuggability.
type StoreExecutor struct {
	Store *store.Store
}

func (e *StoreExecutor) Execute(ctx context.Context, sqlText string) (ExecutionResult, error) {
	result, err := e.Store.QueryReadOnly(ctx, sqlText)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return ExecutionResult{}, err
		}
		// engine-level failure: malformed SQL the Guard didn't catch, type
		// mismatch, missing object
		return ExecutionResult{Error: err.Error()}, nil
	}

	return ExecutionResult{
		Columns:   result.Columns,
		Rows:      result.Rows,
		Count:     result.Count,
		Truncated: result.Truncated,
	}, nil
}
