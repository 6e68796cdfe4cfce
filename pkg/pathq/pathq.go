// Package pathq provides a process-wide cache of compiled path expressions
// with pooled, reusable evaluation instances.
//
// Features:
//   - Named LRU caches of expression pools, keyed by expression text,
//     namespace bindings, function library identity and compilation mode
//   - Borrow/bind/evaluate/release lifecycle: a borrowed instance is
//     exclusively owned until released, then reused by later borrowers
//   - Lazy compilation: acquiring a cache slot is cheap, compilation runs
//     on first borrow and never under a cache or pool lock
//   - Validity stamps to invalidate entries compiled from changed sources
//   - Value templates ("Hello {$name}") compiled through the same cache
//
// Usage:
//
//	pq := pathq.New(pathq.Options{})
//	defer pq.Close()
//
//	result, err := pq.Evaluate(
//		pathq.Query{Text: "count(//item)"},
//		pathq.Binding{Context: expr.Sequence{root}},
//	)
package pathq

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/orneryd/pathq/pkg/cache"
	"github.com/orneryd/pathq/pkg/expr"
	"github.com/orneryd/pathq/pkg/logging"
)

// DefaultCacheName is the cache used by queries that do not name one.
const DefaultCacheName = "main"

// Options configures a Cache.
type Options struct {
	// DefaultCacheCapacity is the per-cache entry limit for caches not
	// listed in CacheCapacities. Zero uses the built-in default.
	DefaultCacheCapacity int

	// CacheCapacities overrides the entry limit for specific cache names.
	CacheCapacities map[string]int

	// Logger receives cache and compilation events. The zero value logs
	// through the global logger.
	Logger *zerolog.Logger
}

// Query identifies an expression and its compilation inputs.
type Query struct {
	// Cache names the cache to use; "" means DefaultCacheName.
	Cache string

	// Text is the expression source.
	Text string

	// Namespaces declares prefix-to-URI bindings for the expression.
	Namespaces map[string]string

	// Variables declares the variable names the expression may reference.
	Variables []string

	// Library is the function library; nil uses the shared default.
	Library *expr.Library

	// BaseURI is the static base URI. It does not participate in the
	// cache key.
	BaseURI string

	// Location is an optional caller source location ("form.xml:42")
	// carried into compilation and evaluation errors. It does not
	// participate in the cache key.
	Location string

	// Template compiles Text as a value template instead of an expression.
	Template bool

	// Stamp is the validity stamp of the expression source. A cached
	// entry with a different stamp is recompiled.
	Stamp int64

	// NoCache bypasses the cache entirely, returning a detached instance.
	NoCache bool
}

// Binding is the dynamic input for one evaluation.
type Binding struct {
	// Context is the context item sequence.
	Context expr.Sequence

	// Position is the 1-based context position; zero means 1.
	Position int

	// Variables are the values for the query's declared variables.
	Variables map[string]any

	// FunctionContext is handed through to library functions.
	FunctionContext any
}

// Cache is the expression cache facade. It is safe for concurrent use.
type Cache struct {
	registry *cache.Registry
	log      zerolog.Logger
}

// New creates a Cache.
func New(opts Options) *Cache {
	log := logging.NewLogger("pathq")
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Cache{
		registry: cache.NewRegistry(opts.DefaultCacheCapacity, opts.CacheCapacities),
		log:      log,
	}
}

// Borrow acquires the expression's pool and borrows an instance from it.
// The caller owns the instance until Release.
func (c *Cache) Borrow(q Query) (*PooledExpression, error) {
	if q.NoCache {
		return newCompilationFactory(q, c.log).newInstance()
	}

	name := q.Cache
	if name == "" {
		name = DefaultCacheName
	}
	libID := expr.DefaultLibrary().ID()
	if q.Library != nil {
		libID = q.Library.ID()
	}
	key := cache.BuildKey(cache.KeyInputs{
		Text:       q.Text,
		Namespaces: q.Namespaces,
		LibraryID:  libID,
		Template:   q.Template,
	})

	for {
		pool := c.registry.Acquire(name, key, q.Stamp, func() cache.Pool {
			return newExpressionPool(newCompilationFactory(q, c.log))
		})
		inst, err := pool.(*ExpressionPool).Borrow()
		if err != nil {
			// The pool can be evicted between acquire and borrow; a fresh
			// acquire creates a replacement.
			var perr *ProtocolError
			if errors.As(err, &perr) && perr.Op == "borrow" {
				continue
			}
			return nil, err
		}
		// The pool is shared across call sites; errors should point at
		// this borrower's location.
		inst.location = q.Location
		return inst, nil
	}
}

// WithExpression borrows an instance, runs fn, and releases it.
func (c *Cache) WithExpression(q Query, fn func(*PooledExpression) error) error {
	inst, err := c.Borrow(q)
	if err != nil {
		return err
	}
	defer inst.Release()
	return fn(inst)
}

// Evaluate borrows, binds, evaluates and releases in one call.
func (c *Cache) Evaluate(q Query, b Binding) (expr.Sequence, error) {
	var result expr.Sequence
	err := c.WithExpression(q, func(inst *PooledExpression) error {
		if err := bind(inst, b); err != nil {
			return err
		}
		var err error
		result, err = inst.Evaluate()
		return err
	})
	return result, err
}

// EvaluateSingle evaluates and returns the first result item, or nil for
// an empty result.
func (c *Cache) EvaluateSingle(q Query, b Binding) (expr.Item, error) {
	result, err := c.Evaluate(q, b)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, nil
	}
	return result[0], nil
}

// EvaluateString evaluates the expression's string value: the string of
// its first result item. The derived wrapper expression is cached under
// its own key, so repeated string evaluations reuse one compiled form.
func (c *Cache) EvaluateString(q Query, b Binding) (string, error) {
	derived := q
	derived.Text = "string(subsequence(" + q.Text + ", 1, 1))"
	result, err := c.Evaluate(derived, b)
	if err != nil {
		return "", err
	}
	return expr.SequenceString(result), nil
}

// EvaluateTemplate evaluates Text as a value template, returning the
// expanded string.
func (c *Cache) EvaluateTemplate(q Query, b Binding) (string, error) {
	q.Template = true
	result, err := c.Evaluate(q, b)
	if err != nil {
		return "", err
	}
	return expr.SequenceString(result), nil
}

// Stats returns a snapshot of the named cache.
func (c *Cache) Stats(cacheName string) cache.Stats {
	return c.registry.Stats(cacheName)
}

// ReclaimIdle drops idle instances from every cached pool, returning the
// number reclaimed. Cached pools keep their slots and recompile on the
// next borrow.
func (c *Cache) ReclaimIdle() int {
	return c.registry.ReclaimIdle()
}

// Close destroys every cached pool. Outstanding borrowed instances stay
// usable and are discarded on release.
func (c *Cache) Close() {
	c.registry.Close()
}

func bind(inst *PooledExpression, b Binding) error {
	pos := b.Position
	if pos == 0 {
		pos = 1
	}
	inst.BindContext(b.Context, pos)
	if err := inst.BindVariables(b.Variables); err != nil {
		return err
	}
	inst.SetFunctionContext(b.FunctionContext)
	return nil
}
