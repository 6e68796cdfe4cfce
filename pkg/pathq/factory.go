package pathq

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/orneryd/pathq/pkg/expr"
)

// compilationFactory builds pooled instances for one expression. The static
// context is constructed once; compilation itself is deferred to the first
// borrow so that no registry or pool lock ever covers a compile.
type compilationFactory struct {
	text     string
	location string
	static   *expr.StaticContext
	template bool
	log      zerolog.Logger

	compilations atomic.Uint64
}

func newCompilationFactory(q Query, log zerolog.Logger) *compilationFactory {
	sc := expr.NewStaticContext(q.Namespaces, q.Library, q.BaseURI)
	for _, name := range q.Variables {
		sc.DeclareVariable(name)
	}
	return &compilationFactory{
		text:     q.Text,
		location: q.Location,
		static:   sc,
		template: q.Template,
		log:      log,
	}
}

// newInstance compiles the expression and wraps it in a fresh pooled
// instance. Every call compiles; the pool above decides when a new
// instance is actually needed.
func (f *compilationFactory) newInstance() (*PooledExpression, error) {
	start := time.Now()

	var compiled *expr.Compiled
	var err error
	if f.template {
		compiled, err = expr.CompileTemplate(f.text, f.static)
	} else {
		compiled, err = expr.Compile(f.text, f.static)
	}
	if err != nil {
		f.log.Error().Str("expression", f.text).Err(err).Msg("compilation failed")
		return nil, &CompilationError{Text: f.text, Location: f.location, Err: err}
	}

	f.compilations.Add(1)
	f.log.Debug().
		Str("expression", f.text).
		Int64("compile_ms", time.Since(start).Milliseconds()).
		Msg("compiled expression")

	return &PooledExpression{
		compiled: compiled,
		location: f.location,
		dc:       compiled.NewDynamicContext(),
	}, nil
}

// Compilations returns how many times this factory has compiled.
func (f *compilationFactory) Compilations() uint64 {
	return f.compilations.Load()
}
