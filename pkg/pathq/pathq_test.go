package pathq

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/pathq/pkg/expr"
)

const catalogXML = `<catalog>
	<item id="1"><name>Apple</name></item>
	<item id="2"><name>Banana</name></item>
	<item id="3"><name>Cherry</name></item>
</catalog>`

func parseCatalog(t *testing.T) *expr.Node {
	t.Helper()
	root, err := expr.ParseXML(strings.NewReader(catalogXML))
	require.NoError(t, err)
	return root
}

func TestEvaluateCountsItems(t *testing.T) {
	pq := New(Options{})
	defer pq.Close()
	root := parseCatalog(t)

	result, err := pq.Evaluate(
		Query{Text: "count(//item)"},
		Binding{Context: expr.Sequence{root}},
	)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, 3.0, result[0])
}

func TestRepeatedEvaluationHitsCache(t *testing.T) {
	pq := New(Options{})
	defer pq.Close()
	root := parseCatalog(t)

	q := Query{Text: "count(//item)"}
	b := Binding{Context: expr.Sequence{root}}

	for i := 0; i < 5; i++ {
		_, err := pq.Evaluate(q, b)
		require.NoError(t, err)
	}

	stats := pq.Stats(DefaultCacheName)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(4), stats.Hits)
	assert.Equal(t, 1, stats.Size)
}

func TestBorrowReleaseRoundTrip(t *testing.T) {
	pq := New(Options{})
	defer pq.Close()

	first, err := pq.Borrow(Query{Text: "1 + 1"})
	require.NoError(t, err)
	require.NoError(t, first.Release())

	second, err := pq.Borrow(Query{Text: "1 + 1"})
	require.NoError(t, err)
	assert.Same(t, first, second)
	require.NoError(t, second.Release())
}

func TestDistinctInputsGetDistinctPools(t *testing.T) {
	pq := New(Options{})
	defer pq.Close()

	a, err := pq.Borrow(Query{Text: "x", Namespaces: map[string]string{"x": "urn:a"}})
	require.NoError(t, err)
	b, err := pq.Borrow(Query{Text: "x", Namespaces: map[string]string{"x": "urn:b"}})
	require.NoError(t, err)
	assert.NotSame(t, a, b)

	assert.Equal(t, 2, pq.Stats(DefaultCacheName).Size)
	require.NoError(t, a.Release())
	require.NoError(t, b.Release())
}

func TestEvictionDetachesOutstandingBorrow(t *testing.T) {
	pq := New(Options{DefaultCacheCapacity: 1})
	defer pq.Close()
	root := parseCatalog(t)

	inst, err := pq.Borrow(Query{Text: "count(//item)"})
	require.NoError(t, err)

	// A second expression evicts the first pool from the size-1 cache.
	_, err = pq.Evaluate(Query{Text: "count(//name)"}, Binding{Context: expr.Sequence{root}})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), pq.Stats(DefaultCacheName).Evictions)

	// The borrowed instance survives eviction and releases without error.
	inst.BindContext(expr.Sequence{root}, 1)
	result, err := inst.Evaluate()
	require.NoError(t, err)
	assert.Equal(t, 3.0, result[0])
	require.NoError(t, inst.Release())
}

func TestStaleStampRecompiles(t *testing.T) {
	pq := New(Options{})
	defer pq.Close()

	first, err := pq.Borrow(Query{Text: "1 + 1", Stamp: 1})
	require.NoError(t, err)
	require.NoError(t, first.Release())

	second, err := pq.Borrow(Query{Text: "1 + 1", Stamp: 2})
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, uint64(1), pq.Stats(DefaultCacheName).Stale)
	require.NoError(t, second.Release())
}

func TestStaleBindingsDoNotLeak(t *testing.T) {
	pq := New(Options{})
	defer pq.Close()
	root := parseCatalog(t)

	q := Query{Text: "$x", Variables: []string{"x"}}

	first, err := pq.Borrow(q)
	require.NoError(t, err)
	first.BindContext(expr.Sequence{root}, 1)
	require.NoError(t, first.BindVariables(map[string]any{"x": "secret"}))
	require.NoError(t, first.Release())

	second, err := pq.Borrow(q)
	require.NoError(t, err)
	require.Same(t, first, second)

	// Context binding was scrubbed on release.
	_, err = second.Evaluate()
	var berr *ContextBindingError
	require.ErrorAs(t, err, &berr)

	// And so was the variable value.
	second.BindContext(expr.Sequence{root}, 1)
	result, err := second.Evaluate()
	require.NoError(t, err)
	assert.Empty(t, result)
	require.NoError(t, second.Release())
}

func TestNoCacheReturnsDetachedInstance(t *testing.T) {
	pq := New(Options{})
	defer pq.Close()
	root := parseCatalog(t)

	inst, err := pq.Borrow(Query{Text: "count(//item)", NoCache: true})
	require.NoError(t, err)
	assert.Equal(t, 0, pq.Stats(DefaultCacheName).Size)

	inst.BindContext(expr.Sequence{root}, 1)
	result, err := inst.Evaluate()
	require.NoError(t, err)
	assert.Equal(t, 3.0, result[0])
	require.NoError(t, inst.Release())
}

func TestCompilationErrorCarriesText(t *testing.T) {
	pq := New(Options{})
	defer pq.Close()

	_, err := pq.Borrow(Query{Text: "//["})
	require.Error(t, err)

	var cerr *CompilationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "//[", cerr.Text)
}

func TestErrorsCarryCallerLocation(t *testing.T) {
	pq := New(Options{})
	defer pq.Close()

	_, err := pq.Borrow(Query{Text: "//[", Location: "form.xml:42"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "form.xml:42")

	inst, err := pq.Borrow(Query{Text: "1 + 1", Location: "form.xml:7"})
	require.NoError(t, err)
	_, err = inst.Evaluate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "form.xml:7")
	require.NoError(t, inst.Release())
}

func TestEvaluateTemplate(t *testing.T) {
	pq := New(Options{})
	defer pq.Close()
	root := parseCatalog(t)

	got, err := pq.EvaluateTemplate(
		Query{Text: "Hello {$name}", Variables: []string{"name"}},
		Binding{Context: expr.Sequence{root}, Variables: map[string]any{"name": "World"}},
	)
	require.NoError(t, err)
	assert.Equal(t, "Hello World", got)
}

func TestTemplateAndExpressionKeysDiffer(t *testing.T) {
	pq := New(Options{})
	defer pq.Close()
	root := parseCatalog(t)

	// The same text compiled as expression and as template must not share
	// a pool.
	_, err := pq.Evaluate(Query{Text: "count(//item)"}, Binding{Context: expr.Sequence{root}})
	require.NoError(t, err)
	_, err = pq.EvaluateTemplate(Query{Text: "count(//item)"}, Binding{Context: expr.Sequence{root}})
	require.NoError(t, err)

	assert.Equal(t, 2, pq.Stats(DefaultCacheName).Size)
}

func TestEvaluateString(t *testing.T) {
	pq := New(Options{})
	defer pq.Close()
	root := parseCatalog(t)

	got, err := pq.EvaluateString(
		Query{Text: "item/name"},
		Binding{Context: expr.Sequence{root}},
	)
	require.NoError(t, err)
	assert.Equal(t, "Apple", got)

	// Empty results stringify to "".
	got, err = pq.EvaluateString(
		Query{Text: "item/missing"},
		Binding{Context: expr.Sequence{root}},
	)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestEvaluateSingle(t *testing.T) {
	pq := New(Options{})
	defer pq.Close()
	root := parseCatalog(t)

	item, err := pq.EvaluateSingle(
		Query{Text: "item[2]/name"},
		Binding{Context: expr.Sequence{root}},
	)
	require.NoError(t, err)
	assert.Equal(t, "Banana", expr.ItemString(item))

	item, err = pq.EvaluateSingle(
		Query{Text: "item[9]"},
		Binding{Context: expr.Sequence{root}},
	)
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestEvaluateWithVariablesAndPosition(t *testing.T) {
	pq := New(Options{})
	defer pq.Close()
	root := parseCatalog(t)
	items := expr.Sequence{root.Children[0], root.Children[1], root.Children[2]}

	got, err := pq.EvaluateString(
		Query{Text: "concat(position(), '/', last(), ': ', name)"},
		Binding{Context: items, Position: 2},
	)
	require.NoError(t, err)
	assert.Equal(t, "2/3: Banana", got)
}

func TestCustomLibraryKeysSeparately(t *testing.T) {
	pq := New(Options{})
	defer pq.Close()
	root := parseCatalog(t)

	lib := expr.NewLibraryWithBuiltins()
	lib.Register("shout", func(_ *expr.CallContext, args []expr.Sequence) (expr.Sequence, error) {
		return expr.Sequence{strings.ToUpper(expr.SequenceString(args[0])) + "!"}, nil
	})

	got, err := pq.EvaluateString(
		Query{Text: "shout(item[1]/name)", Library: lib},
		Binding{Context: expr.Sequence{root}},
	)
	require.NoError(t, err)
	assert.Equal(t, "APPLE!", got)

	// Same text under the default library is a different cache entry and
	// fails to compile.
	_, err = pq.Evaluate(
		Query{Text: "shout(item[1]/name)"},
		Binding{Context: expr.Sequence{root}},
	)
	require.Error(t, err)
}

func TestReclaimIdleThenReuse(t *testing.T) {
	pq := New(Options{})
	defer pq.Close()
	root := parseCatalog(t)

	q := Query{Text: "count(//item)"}
	b := Binding{Context: expr.Sequence{root}}

	_, err := pq.Evaluate(q, b)
	require.NoError(t, err)
	assert.Equal(t, 1, pq.ReclaimIdle())

	// The pool keeps its slot: no new miss, just a recompile on borrow.
	result, err := pq.Evaluate(q, b)
	require.NoError(t, err)
	assert.Equal(t, 3.0, result[0])
	assert.Equal(t, uint64(1), pq.Stats(DefaultCacheName).Misses)
}

func TestWithExpressionReleasesOnError(t *testing.T) {
	pq := New(Options{})
	defer pq.Close()

	q := Query{Text: "1 + 1"}
	err := pq.WithExpression(q, func(inst *PooledExpression) error {
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	// The instance went back to the pool despite the error.
	inst, err := pq.Borrow(q)
	require.NoError(t, err)
	require.NoError(t, inst.Release())
	assert.Equal(t, uint64(1), pq.Stats(DefaultCacheName).Misses)
}
