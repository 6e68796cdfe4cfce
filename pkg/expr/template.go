package expr

import (
	"strings"
)

// templateSegment is one piece of a compiled template: either fixed text or
// an embedded expression.
type templateSegment struct {
	literal string
	expr    compiledFn
}

// CompileTemplate compiles a value template: literal text with embedded
// expressions in curly braces, such as "Hello {$name}". Doubled braces
// ("{{", "}}") escape a literal brace. The compiled form always evaluates
// to a single string item.
func CompileTemplate(text string, sc *StaticContext) (*Compiled, error) {
	if sc == nil {
		sc = NewStaticContext(nil, nil, "")
	}
	segments, err := parseTemplate(text, sc)
	if err != nil {
		return nil, err
	}

	run := func(st *evalState) (Sequence, error) {
		var b strings.Builder
		for _, seg := range segments {
			if seg.expr == nil {
				b.WriteString(seg.literal)
				continue
			}
			seq, err := seg.expr(st)
			if err != nil {
				return nil, err
			}
			b.WriteString(SequenceString(seq))
		}
		return Sequence{b.String()}, nil
	}
	return &Compiled{text: text, static: sc, run: run}, nil
}

func parseTemplate(text string, sc *StaticContext) ([]templateSegment, error) {
	var segments []templateSegment
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			segments = append(segments, templateSegment{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			if i+1 < len(text) && text[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(text[i+1:], '}')
			if end < 0 {
				return nil, &ParseError{Msg: "unclosed '{' in template", Column: i + 1}
			}
			inner := text[i+1 : i+1+end]
			ast, err := parse(inner)
			if err != nil {
				return nil, err
			}
			fn, err := compileNode(ast, sc)
			if err != nil {
				return nil, err
			}
			flush()
			segments = append(segments, templateSegment{expr: fn})
			i += end + 1
		case '}':
			if i+1 < len(text) && text[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, &ParseError{Msg: "unmatched '}' in template", Column: i + 1}
		default:
			lit.WriteByte(text[i])
		}
	}
	flush()
	if len(segments) == 0 {
		segments = append(segments, templateSegment{literal: ""})
	}
	return segments, nil
}
