package pathq

import (
	"errors"
	"sync"

	"github.com/orneryd/pathq/pkg/expr"
)

// PooledExpression is one compiled instance on loan from an ExpressionPool.
// Between Borrow and Release exactly one goroutine owns it: bind a context
// and variables, evaluate any number of times, then release. Releasing
// scrubs every binding, so the next borrower never observes stale state.
//
// A detached instance, produced by a no-cache borrow or by its pool being
// destroyed mid-loan, behaves identically except that Release discards it.
type PooledExpression struct {
	compiled *expr.Compiled
	location string
	dc       *expr.DynamicContext

	mu       sync.Mutex
	pool     *ExpressionPool
	released bool
}

// BindContext binds the context item sequence and the 1-based position of
// the context item within it.
func (pe *PooledExpression) BindContext(items expr.Sequence, position int) {
	pe.dc.SetContext(items, position)
}

// BindVariables replaces all variable bindings with vars. Declared
// variables absent from vars become unbound; undeclared names error.
func (pe *PooledExpression) BindVariables(vars map[string]any) error {
	pe.dc.ResetVariables()
	for name, value := range vars {
		if err := pe.dc.SetVariable(name, value); err != nil {
			return err
		}
	}
	return nil
}

// SetFunctionContext attaches an opaque value handed through to library
// functions during evaluation.
func (pe *PooledExpression) SetFunctionContext(v any) {
	pe.dc.Function = v
}

// Evaluate runs the expression against the current bindings.
func (pe *PooledExpression) Evaluate() (expr.Sequence, error) {
	result, err := pe.compiled.Eval(pe.dc)
	if err != nil {
		if errors.Is(err, expr.ErrContextNotBound) {
			return nil, &ContextBindingError{Text: pe.compiled.Text(), Location: pe.location}
		}
		return nil, &EvaluationError{Text: pe.compiled.Text(), Location: pe.location, Err: err}
	}
	return result, nil
}

// EvaluateSingle runs the expression and returns the first result item,
// or nil for an empty result.
func (pe *PooledExpression) EvaluateSingle() (expr.Item, error) {
	result, err := pe.Evaluate()
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, nil
	}
	return result[0], nil
}

// EvaluateString runs the expression and returns the string value of the
// first result item, "" for an empty result.
func (pe *PooledExpression) EvaluateString() (string, error) {
	result, err := pe.Evaluate()
	if err != nil {
		return "", err
	}
	return expr.SequenceString(result), nil
}

// Release scrubs all bindings and returns the instance to its pool.
// Detached instances are discarded. Releasing an instance twice is a
// protocol error.
func (pe *PooledExpression) Release() error {
	pe.mu.Lock()
	pool := pe.pool
	if pool == nil {
		if pe.released {
			pe.mu.Unlock()
			return &ProtocolError{Op: "release", Reason: "instance already released"}
		}
		pe.released = true
		pe.mu.Unlock()
		pe.dc.Reset()
		return nil
	}
	pe.mu.Unlock()

	pe.dc.Reset()
	return pool.giveBack(pe)
}

// detach severs the instance from its pool after the pool is destroyed.
func (pe *PooledExpression) detach() {
	pe.mu.Lock()
	pe.pool = nil
	pe.mu.Unlock()
}
