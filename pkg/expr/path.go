package expr

import (
	"fmt"
)

// compiledStep evaluates one path step over an input sequence.
type compiledStep func(st *evalState, input Sequence) (Sequence, error)

func compilePath(n *pathNode, sc *StaticContext) (compiledFn, error) {
	steps := make([]compiledStep, len(n.Steps))
	for i := range n.Steps {
		step, err := compileStep(&n.Steps[i], sc)
		if err != nil {
			return nil, err
		}
		steps[i] = step
	}

	absolute := n.Absolute
	return func(st *evalState) (Sequence, error) {
		var current Sequence
		if absolute {
			node, ok := st.item.(*Node)
			if !ok {
				return nil, fmt.Errorf("absolute path requires a node context item")
			}
			current = Sequence{node.Root()}
		} else {
			if st.item == nil {
				return nil, fmt.Errorf("relative path requires a context item")
			}
			current = Sequence{st.item}
		}
		for _, step := range steps {
			next, err := step(st, current)
			if err != nil {
				return nil, err
			}
			current = next
			if len(current) == 0 {
				break
			}
		}
		return current, nil
	}, nil
}

// compileStep resolves the step's namespace test at compile time and builds
// its axis walk plus predicate filters.
func compileStep(step *pathStep, sc *StaticContext) (compiledStep, error) {
	var nsURI string
	if step.Prefix != "" {
		uri, ok := sc.NamespaceURI(step.Prefix)
		if !ok {
			return nil, &ParseError{
				Msg:    fmt.Sprintf("undeclared namespace prefix %q", step.Prefix),
				Line:   step.Line,
				Column: step.Col,
			}
		}
		nsURI = uri
	}

	preds := make([]compiledFn, len(step.Predicates))
	for i, pred := range step.Predicates {
		compiled, err := compileNode(pred, sc)
		if err != nil {
			return nil, err
		}
		preds[i] = compiled
	}

	axis := step.Axis
	descendant := step.Descendant
	name := step.Name
	wildcard := name == "*"

	matches := func(n *Node) bool {
		if !wildcard && n.Name != name {
			return false
		}
		if wildcard && step.Prefix == "" {
			return true
		}
		return n.NS == nsURI
	}

	return func(st *evalState, input Sequence) (Sequence, error) {
		nodes := inputNodes(input)
		if descendant {
			nodes = descendantOrSelf(nodes)
		}

		var out Sequence
		switch axis {
		case axisSelf:
			if wildcard && !descendant {
				out = append(out, input...)
			} else {
				for _, n := range nodes {
					if matches(n) {
						out = append(out, n)
					}
				}
			}
		case axisParent:
			seen := make(map[*Node]bool)
			for _, n := range nodes {
				p := n.Parent()
				if p != nil && !seen[p] {
					seen[p] = true
					out = append(out, p)
				}
			}
		case axisAttribute:
			for _, n := range nodes {
				for _, a := range n.Attrs {
					if (wildcard || a.Name == name) && (step.Prefix == "" || a.NS == nsURI) {
						out = append(out, a.Value)
					}
				}
			}
		default: // axisChild
			seen := make(map[*Node]bool)
			for _, n := range nodes {
				for _, c := range n.Children {
					if matches(c) && !seen[c] {
						seen[c] = true
						out = append(out, c)
					}
				}
			}
		}

		for _, pred := range preds {
			filtered, err := applyPredicate(st, pred, out)
			if err != nil {
				return nil, err
			}
			out = filtered
		}
		return out, nil
	}, nil
}

func inputNodes(input Sequence) []*Node {
	nodes := make([]*Node, 0, len(input))
	for _, it := range input {
		if n, ok := it.(*Node); ok {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// descendantOrSelf expands each node to itself followed by all descendants
// in document order, deduplicated across overlapping subtrees.
func descendantOrSelf(nodes []*Node) []*Node {
	seen := make(map[*Node]bool)
	var out []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		if seen[n] {
			return
		}
		seen[n] = true
		out = append(out, n)
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return out
}

// applyPredicate filters a sequence, re-focusing the evaluation on each
// candidate item. A numeric predicate result is a 1-based position test;
// anything else is taken as an effective boolean.
func applyPredicate(st *evalState, pred compiledFn, items Sequence) (Sequence, error) {
	var out Sequence
	size := len(items)
	for i, it := range items {
		focus := &evalState{dc: st.dc, item: it, pos: i + 1, size: size}
		result, err := pred(focus)
		if err != nil {
			return nil, err
		}
		if len(result) == 1 {
			if f, ok := result[0].(float64); ok {
				if int(f) == i+1 {
					out = append(out, it)
				}
				continue
			}
		}
		if EffectiveBool(result) {
			out = append(out, it)
		}
	}
	return out, nil
}
