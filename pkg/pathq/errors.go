package pathq

import "fmt"

// CompilationError wraps a parse or resolution failure with the expression
// text it occurred in and, when supplied, the caller's source location.
type CompilationError struct {
	Text     string
	Location string
	Err      error
}

func (e *CompilationError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("compiling expression %q at %s: %v", e.Text, e.Location, e.Err)
	}
	return fmt.Sprintf("compiling expression %q: %v", e.Text, e.Err)
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

// EvaluationError wraps a runtime evaluation failure with the expression
// text it occurred in and, when supplied, the caller's source location.
type EvaluationError struct {
	Text     string
	Location string
	Err      error
}

func (e *EvaluationError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("evaluating expression %q at %s: %v", e.Text, e.Location, e.Err)
	}
	return fmt.Sprintf("evaluating expression %q: %v", e.Text, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// ContextBindingError reports an evaluation attempted before BindContext.
type ContextBindingError struct {
	Text     string
	Location string
}

func (e *ContextBindingError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("expression %q at %s evaluated without a bound context", e.Text, e.Location)
	}
	return fmt.Sprintf("expression %q evaluated without a bound context", e.Text)
}

// ProtocolError reports a misuse of the pooled-instance lifecycle, such as
// releasing an instance twice or borrowing from a destroyed pool.
type ProtocolError struct {
	Op     string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}
