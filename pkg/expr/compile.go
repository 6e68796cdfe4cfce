package expr

import (
	"fmt"
	"math"
)

// compiledFn is the compiled form of one expression tree node.
type compiledFn func(st *evalState) (Sequence, error)

// Compiled is an expression compiled against a static context. The compiled
// form carries its static context and declared-variable slot table, so
// callers can rebind dynamic values without recompiling. A Compiled value is
// immutable and safe to share; each evaluation owns its own DynamicContext.
type Compiled struct {
	text   string
	static *StaticContext
	run    compiledFn
}

// Compile parses and compiles an expression under the given static context.
// Variable references, namespace prefixes and function names are resolved
// now; unresolved references fail compilation.
func Compile(text string, sc *StaticContext) (*Compiled, error) {
	if sc == nil {
		sc = NewStaticContext(nil, nil, "")
	}
	ast, err := parse(text)
	if err != nil {
		return nil, err
	}
	run, err := compileNode(ast, sc)
	if err != nil {
		return nil, err
	}
	return &Compiled{text: text, static: sc, run: run}, nil
}

// Text returns the original expression text.
func (c *Compiled) Text() string {
	return c.text
}

// StaticContext returns the context the expression was compiled under.
func (c *Compiled) StaticContext() *StaticContext {
	return c.static
}

// NewDynamicContext creates a dynamic context sized for this expression's
// variable slots. Context and variables must be bound before Eval.
func (c *Compiled) NewDynamicContext() *DynamicContext {
	return &DynamicContext{
		static: c.static,
		slots:  make([]any, c.static.SlotCount()),
	}
}

// Eval evaluates the compiled expression against a dynamic context.
func (c *Compiled) Eval(dc *DynamicContext) (Sequence, error) {
	st, err := newEvalState(dc)
	if err != nil {
		return nil, err
	}
	return c.run(st)
}

func compileNode(node astNode, sc *StaticContext) (compiledFn, error) {
	switch n := node.(type) {
	case *literalNode:
		value := n.Value
		return func(*evalState) (Sequence, error) {
			return Sequence{value}, nil
		}, nil

	case *varNode:
		slot, ok := sc.SlotOf(n.Name)
		if !ok {
			return nil, &ParseError{
				Msg:    fmt.Sprintf("variable $%s is not declared", n.Name),
				Line:   n.Line,
				Column: n.Col,
			}
		}
		return func(st *evalState) (Sequence, error) {
			return valueToSequence(st.dc.slots[slot]), nil
		}, nil

	case *callNode:
		return compileCall(n, sc)

	case *unaryNode:
		operand, err := compileNode(n.Operand, sc)
		if err != nil {
			return nil, err
		}
		return func(st *evalState) (Sequence, error) {
			seq, err := operand(st)
			if err != nil {
				return nil, err
			}
			if len(seq) == 0 {
				return nil, fmt.Errorf("unary minus of empty sequence")
			}
			f, err := ItemNumber(seq[0])
			if err != nil {
				return nil, err
			}
			return Sequence{-f}, nil
		}, nil

	case *binaryNode:
		return compileBinary(n, sc)

	case *pathNode:
		return compilePath(n, sc)

	default:
		return nil, fmt.Errorf("unsupported expression node %T", node)
	}
}

// compileCall resolves the function at compile time. Prefixed function names
// resolve their prefix against the declared namespaces and look up
// "uri#local"; unprefixed names look up the local name directly.
func compileCall(n *callNode, sc *StaticContext) (compiledFn, error) {
	name := n.Name
	if n.Prefix != "" {
		uri, ok := sc.NamespaceURI(n.Prefix)
		if !ok {
			return nil, &ParseError{
				Msg:    fmt.Sprintf("undeclared namespace prefix %q", n.Prefix),
				Line:   n.Line,
				Column: n.Col,
			}
		}
		name = uri + "#" + n.Name
	}
	fn, ok := sc.Library().Lookup(name)
	if !ok {
		return nil, &ParseError{
			Msg:    fmt.Sprintf("unknown function %s()", n.Name),
			Line:   n.Line,
			Column: n.Col,
		}
	}

	args := make([]compiledFn, len(n.Args))
	for i, arg := range n.Args {
		compiled, err := compileNode(arg, sc)
		if err != nil {
			return nil, err
		}
		args[i] = compiled
	}

	return func(st *evalState) (Sequence, error) {
		evaluated := make([]Sequence, len(args))
		for i, arg := range args {
			seq, err := arg(st)
			if err != nil {
				return nil, err
			}
			evaluated[i] = seq
		}
		return fn(st.callContext(), evaluated)
	}, nil
}

func compileBinary(n *binaryNode, sc *StaticContext) (compiledFn, error) {
	left, err := compileNode(n.Left, sc)
	if err != nil {
		return nil, err
	}
	right, err := compileNode(n.Right, sc)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case "or", "and":
		wantShortCircuit := n.Op == "or"
		return func(st *evalState) (Sequence, error) {
			lv, err := left(st)
			if err != nil {
				return nil, err
			}
			if EffectiveBool(lv) == wantShortCircuit {
				return Sequence{wantShortCircuit}, nil
			}
			rv, err := right(st)
			if err != nil {
				return nil, err
			}
			return Sequence{EffectiveBool(rv)}, nil
		}, nil

	case "=", "!=", "<", "<=", ">", ">=":
		op := n.Op
		return func(st *evalState) (Sequence, error) {
			lv, err := left(st)
			if err != nil {
				return nil, err
			}
			rv, err := right(st)
			if err != nil {
				return nil, err
			}
			return Sequence{compareSequences(op, lv, rv)}, nil
		}, nil

	case "+", "-", "*", "div", "mod":
		op := n.Op
		return func(st *evalState) (Sequence, error) {
			lv, err := left(st)
			if err != nil {
				return nil, err
			}
			rv, err := right(st)
			if err != nil {
				return nil, err
			}
			if len(lv) == 0 || len(rv) == 0 {
				return nil, fmt.Errorf("arithmetic on empty sequence")
			}
			l, err := ItemNumber(lv[0])
			if err != nil {
				return nil, err
			}
			r, err := ItemNumber(rv[0])
			if err != nil {
				return nil, err
			}
			switch op {
			case "+":
				return Sequence{l + r}, nil
			case "-":
				return Sequence{l - r}, nil
			case "*":
				return Sequence{l * r}, nil
			case "div":
				return Sequence{l / r}, nil
			default: // mod
				return Sequence{math.Mod(l, r)}, nil
			}
		}, nil

	default:
		return nil, fmt.Errorf("unsupported operator %q", n.Op)
	}
}

// compareSequences compares the first item of each side. Empty sequences
// never compare true. Equality is numeric when either side is a number,
// boolean when either side is a boolean, string otherwise; ordering
// comparisons are always numeric.
func compareSequences(op string, lv, rv Sequence) bool {
	if len(lv) == 0 || len(rv) == 0 {
		return false
	}
	l, r := lv[0], rv[0]

	switch op {
	case "<", "<=", ">", ">=":
		ln, err := ItemNumber(l)
		if err != nil {
			return false
		}
		rn, err := ItemNumber(r)
		if err != nil {
			return false
		}
		switch op {
		case "<":
			return ln < rn
		case "<=":
			return ln <= rn
		case ">":
			return ln > rn
		default:
			return ln >= rn
		}
	}

	var eq bool
	switch {
	case isNumberItem(l) || isNumberItem(r):
		ln, lerr := ItemNumber(l)
		rn, rerr := ItemNumber(r)
		eq = lerr == nil && rerr == nil && ln == rn
	case isBoolItem(l) || isBoolItem(r):
		eq = EffectiveBool(Sequence{l}) == EffectiveBool(Sequence{r})
	default:
		eq = ItemString(l) == ItemString(r)
	}
	if op == "!=" {
		return !eq
	}
	return eq
}

func isNumberItem(it Item) bool {
	_, ok := it.(float64)
	return ok
}

func isBoolItem(it Item) bool {
	_, ok := it.(bool)
	return ok
}

// valueToSequence normalizes a bound variable value into a sequence.
func valueToSequence(v any) Sequence {
	switch val := v.(type) {
	case nil:
		return Sequence{}
	case Sequence:
		return val
	case int:
		return Sequence{float64(val)}
	case int32:
		return Sequence{float64(val)}
	case int64:
		return Sequence{float64(val)}
	case float32:
		return Sequence{float64(val)}
	default:
		return Sequence{val}
	}
}
