package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAbsolutePath(t *testing.T) {
	node, err := parse("/root/item")
	require.NoError(t, err)

	path, ok := node.(*pathNode)
	require.True(t, ok)
	assert.True(t, path.Absolute)
	require.Len(t, path.Steps, 2)
	assert.Equal(t, "root", path.Steps[0].Name)
	assert.Equal(t, "item", path.Steps[1].Name)
	assert.False(t, path.Steps[1].Descendant)
}

func TestParseDescendantStep(t *testing.T) {
	node, err := parse("//item")
	require.NoError(t, err)

	path, ok := node.(*pathNode)
	require.True(t, ok)
	assert.True(t, path.Absolute)
	require.Len(t, path.Steps, 1)
	assert.True(t, path.Steps[0].Descendant)
	assert.Equal(t, axisChild, path.Steps[0].Axis)
}

func TestParseStepWithPredicates(t *testing.T) {
	node, err := parse("item[@id = '1'][2]")
	require.NoError(t, err)

	path, ok := node.(*pathNode)
	require.True(t, ok)
	assert.False(t, path.Absolute)
	require.Len(t, path.Steps, 1)
	assert.Len(t, path.Steps[0].Predicates, 2)
}

func TestParsePrefixedStep(t *testing.T) {
	node, err := parse("x:item")
	require.NoError(t, err)

	path, ok := node.(*pathNode)
	require.True(t, ok)
	assert.Equal(t, "x", path.Steps[0].Prefix)
	assert.Equal(t, "item", path.Steps[0].Name)
}

func TestParseAxes(t *testing.T) {
	node, err := parse("../@id")
	require.NoError(t, err)

	path, ok := node.(*pathNode)
	require.True(t, ok)
	require.Len(t, path.Steps, 2)
	assert.Equal(t, axisParent, path.Steps[0].Axis)
	assert.Equal(t, axisAttribute, path.Steps[1].Axis)
	assert.Equal(t, "id", path.Steps[1].Name)
}

func TestParseOperatorPrecedence(t *testing.T) {
	// 1 + 2 * 3 parses as 1 + (2 * 3).
	node, err := parse("1 + 2 * 3")
	require.NoError(t, err)

	add, ok := node.(*binaryNode)
	require.True(t, ok)
	assert.Equal(t, "+", add.Op)

	mul, ok := add.Right.(*binaryNode)
	require.True(t, ok)
	assert.Equal(t, "*", mul.Op)
}

func TestParseContextualKeywords(t *testing.T) {
	// "div" and "mod" are only operators in operator position; a step
	// named div is still a valid path.
	node, err := parse("div")
	require.NoError(t, err)
	_, ok := node.(*pathNode)
	assert.True(t, ok)

	bin, err := parse("6 div 2")
	require.NoError(t, err)
	op, ok := bin.(*binaryNode)
	require.True(t, ok)
	assert.Equal(t, "div", op.Op)
}

func TestParseFunctionCall(t *testing.T) {
	node, err := parse("concat('a', 'b', 'c')")
	require.NoError(t, err)

	call, ok := node.(*callNode)
	require.True(t, ok)
	assert.Equal(t, "concat", call.Name)
	assert.Len(t, call.Args, 3)
}

func TestParsePrefixedFunctionCall(t *testing.T) {
	node, err := parse("fn:upper-case('a')")
	require.NoError(t, err)

	call, ok := node.(*callNode)
	require.True(t, ok)
	assert.Equal(t, "fn", call.Prefix)
	assert.Equal(t, "upper-case", call.Name)
}

func TestParseVariableReference(t *testing.T) {
	node, err := parse("$count + 1")
	require.NoError(t, err)

	bin, ok := node.(*binaryNode)
	require.True(t, ok)
	v, ok := bin.Left.(*varNode)
	require.True(t, ok)
	assert.Equal(t, "count", v.Name)
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"//[",
		"count(",
		"a = ",
		"$",
		"item[",
		")",
	}
	for _, input := range cases {
		_, err := parse(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestParseErrorCarriesPosition(t *testing.T) {
	_, err := parse("a = ")
	require.Error(t, err)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Greater(t, perr.Column, 0)
}

func TestParseTrailingInputRejected(t *testing.T) {
	_, err := parse("1 2")
	require.Error(t, err)
}
