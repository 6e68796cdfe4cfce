// Package expr provides the path-expression language evaluated by PathQ:
// a lexer, a parser, a closure compiler, and a small XML-backed node model.
//
// Expressions are compiled once against a static context (declared
// namespaces, declared variable slots, attached function library) and then
// evaluated many times against fresh dynamic contexts (context node
// sequence, context position, variable values).
//
// Usage:
//
//	sc := expr.NewStaticContext(nil, nil, "")
//	sc.DeclareVariable("x")
//
//	compiled, err := expr.Compile("count(//item) + $x", sc)
//	if err != nil {
//		return err
//	}
//
//	dc := compiled.NewDynamicContext()
//	dc.SetContext([]expr.Item{root}, 1)
//	dc.SetVariable("x", 2.0)
//	result, err := compiled.Eval(dc)
package expr

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Item is a single evaluation result value: *Node, string, float64 or bool.
type Item = any

// Sequence is an ordered list of items, the result of every evaluation.
type Sequence = []Item

// Attr is a single attribute on a Node.
type Attr struct {
	Name  string
	NS    string
	Value string
}

// Node is one node in a parsed document tree.
type Node struct {
	Name     string
	NS       string
	Text     string // character data directly inside this element
	Attrs    []Attr
	Children []*Node

	parent *Node
}

// Parent returns the parent node, or nil for the document root.
func (n *Node) Parent() *Node {
	return n.parent
}

// Root walks the parent chain to the document root.
func (n *Node) Root() *Node {
	cur := n
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

// Attribute returns the value of the named attribute.
func (n *Node) Attribute(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// StringValue returns the concatenated character data of the node's subtree.
func (n *Node) StringValue() string {
	var b strings.Builder
	n.appendText(&b)
	return b.String()
}

func (n *Node) appendText(b *strings.Builder) {
	b.WriteString(n.Text)
	for _, c := range n.Children {
		c.appendText(b)
	}
}

// ParseXML parses an XML document into a node tree.
func ParseXML(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)

	var root *Node
	var stack []*Node
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			node := &Node{
				Name: t.Name.Local,
				NS:   t.Name.Space,
			}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
					continue
				}
				node.Attrs = append(node.Attrs, Attr{
					Name:  a.Name.Local,
					NS:    a.Name.Space,
					Value: a.Value,
				})
			}
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				node.parent = top
				top.Children = append(top.Children, node)
			} else if root == nil {
				root = node
			}
			stack = append(stack, node)

		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}

		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("parse xml: empty document")
	}
	return root, nil
}

// ItemString converts a single item to its string value.
// Nodes use their subtree text; numbers drop a trailing ".0".
func ItemString(it Item) string {
	switch v := it.(type) {
	case nil:
		return ""
	case *Node:
		return v.StringValue()
	case string:
		return v
	case float64:
		return formatNumber(v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ItemNumber converts a single item to a number.
func ItemNumber(it Item) (float64, error) {
	switch v := it.(type) {
	case float64:
		return v, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		s := strings.TrimSpace(ItemString(it))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to number", s)
		}
		return f, nil
	}
}

// EffectiveBool computes the effective boolean value of a sequence:
// empty is false, a leading node is true, a single atomic follows its
// own truthiness (non-empty string, non-zero number, the bool itself).
func EffectiveBool(seq Sequence) bool {
	if len(seq) == 0 {
		return false
	}
	switch v := seq[0].(type) {
	case *Node:
		return true
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != ""
	default:
		return true
	}
}

// SequenceString returns the string value of a sequence: the string value
// of its first item, or "" for an empty sequence.
func SequenceString(seq Sequence) string {
	if len(seq) == 0 {
		return ""
	}
	return ItemString(seq[0])
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
