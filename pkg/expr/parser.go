package expr

import (
	"fmt"
	"strconv"
)

// ParseError is a compilation-time syntax or resolution failure with the
// position it was detected at.
type ParseError struct {
	Msg    string
	Line   int
	Column int
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s at line %d column %d", e.Msg, e.Line, e.Column)
	}
	return e.Msg
}

// astNode is one node of the parsed expression tree.
type astNode interface {
	astMarker()
}

// binaryNode is an infix operation: or, and, comparisons, arithmetic.
type binaryNode struct {
	Op    string
	Left  astNode
	Right astNode
}

func (*binaryNode) astMarker() {}

// unaryNode is currently only unary minus.
type unaryNode struct {
	Op      string
	Operand astNode
}

func (*unaryNode) astMarker() {}

// literalNode holds a string or number literal.
type literalNode struct {
	Value any
}

func (*literalNode) astMarker() {}

// varNode is a $name variable reference.
type varNode struct {
	Name string
	Line int
	Col  int
}

func (*varNode) astMarker() {}

// callNode is a function call, optionally namespace-qualified.
type callNode struct {
	Prefix string
	Name   string
	Args   []astNode
	Line   int
	Col    int
}

func (*callNode) astMarker() {}

// axisKind selects the node axis a step walks.
type axisKind int

const (
	axisChild axisKind = iota
	axisAttribute
	axisSelf
	axisParent
)

// pathStep is one step of a path expression.
type pathStep struct {
	Axis       axisKind
	Descendant bool // step was preceded by '//'
	Prefix     string
	Name       string // "*" for a wildcard name test
	Predicates []astNode
	Line       int
	Col        int
}

// pathNode is a relative or absolute path expression.
type pathNode struct {
	Absolute bool // leading '/' or '//': start from the context root
	Steps    []pathStep
}

func (*pathNode) astMarker() {}

// parser is a recursive-descent parser over the token stream.
type parser struct {
	toks []Token
	pos  int
}

// parse parses a complete expression, requiring all input to be consumed.
func parse(text string) (astNode, error) {
	toks, err := NewLexer(text).Tokens()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Type != TokenEOF {
		return nil, p.errorf(tok, "unexpected token %q", tok.Literal)
	}
	return node, nil
}

func (p *parser) peek() Token {
	return p.toks[p.pos]
}

func (p *parser) peekAt(n int) Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() Token {
	tok := p.toks[p.pos]
	if tok.Type != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(tt TokenType, what string) (Token, error) {
	tok := p.next()
	if tok.Type != tt {
		return tok, p.errorf(tok, "expected %s, got %q", what, tok.Literal)
	}
	return tok, nil
}

func (p *parser) errorf(tok Token, format string, args ...any) error {
	return &ParseError{Msg: fmt.Sprintf(format, args...), Line: tok.Line, Column: tok.Column}
}

// isOperatorIdent reports whether an identifier acts as an infix operator
// here. "and", "or", "div" and "mod" are contextual keywords: they are only
// operators in operator position.
func (p *parser) isOperatorIdent(name string) bool {
	tok := p.peek()
	return tok.Type == TokenIdent && tok.Literal == name
}

func (p *parser) parseExpr() (astNode, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (astNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isOperatorIdent("or") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (astNode, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.isOperatorIdent("and") {
		p.next()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{Op: "and", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseComparison() (astNode, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	var op string
	switch p.peek().Type {
	case TokenEqual:
		op = "="
	case TokenNotEqual:
		op = "!="
	case TokenLess:
		op = "<"
	case TokenLessEqual:
		op = "<="
	case TokenGreater:
		op = ">"
	case TokenGreaterEqual:
		op = ">="
	default:
		return left, nil
	}
	p.next()
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return &binaryNode{Op: op, Left: left, Right: right}, nil
}

func (p *parser) parseAdditive() (astNode, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.peek().Type {
		case TokenPlus:
			op = "+"
		case TokenMinus:
			op = "-"
		default:
			return left, nil
		}
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseMultiplicative() (astNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch {
		case p.peek().Type == TokenStar:
			op = "*"
		case p.isOperatorIdent("div"):
			op = "div"
		case p.isOperatorIdent("mod"):
			op = "mod"
		default:
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (astNode, error) {
	if p.peek().Type == TokenMinus {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{Op: "-", Operand: operand}, nil
	}
	return p.parsePath()
}

// parsePath parses a path expression or falls through to a primary.
func (p *parser) parsePath() (astNode, error) {
	tok := p.peek()

	switch tok.Type {
	case TokenSlash, TokenDoubleSlash:
		path := &pathNode{Absolute: true}
		// A bare "/" selects the context root itself.
		if tok.Type == TokenSlash {
			p.next()
			if !p.startsStep() {
				return path, nil
			}
			step, err := p.parseStep(false)
			if err != nil {
				return nil, err
			}
			path.Steps = append(path.Steps, step)
		} else {
			p.next()
			step, err := p.parseStep(true)
			if err != nil {
				return nil, err
			}
			path.Steps = append(path.Steps, step)
		}
		return p.parseStepTail(path)

	case TokenDot, TokenDotDot, TokenAt, TokenStar:
		path := &pathNode{}
		step, err := p.parseStep(false)
		if err != nil {
			return nil, err
		}
		path.Steps = append(path.Steps, step)
		return p.parseStepTail(path)

	case TokenIdent:
		// Name followed by '(' is a function call, a primary; any other
		// name starts a relative path.
		if p.peekAt(1).Type == TokenLeftParen {
			return p.parsePrimary()
		}
		if p.peekAt(1).Type == TokenColon && p.peekAt(3).Type == TokenLeftParen {
			return p.parsePrimary()
		}
		path := &pathNode{}
		step, err := p.parseStep(false)
		if err != nil {
			return nil, err
		}
		path.Steps = append(path.Steps, step)
		return p.parseStepTail(path)

	default:
		return p.parsePrimary()
	}
}

func (p *parser) startsStep() bool {
	switch p.peek().Type {
	case TokenIdent, TokenStar, TokenAt, TokenDot, TokenDotDot:
		return true
	}
	return false
}

func (p *parser) parseStepTail(path *pathNode) (astNode, error) {
	for {
		var desc bool
		switch p.peek().Type {
		case TokenSlash:
			desc = false
		case TokenDoubleSlash:
			desc = true
		default:
			return path, nil
		}
		p.next()
		step, err := p.parseStep(desc)
		if err != nil {
			return nil, err
		}
		path.Steps = append(path.Steps, step)
	}
}

func (p *parser) parseStep(descendant bool) (pathStep, error) {
	tok := p.peek()
	step := pathStep{Descendant: descendant, Line: tok.Line, Col: tok.Column}

	switch tok.Type {
	case TokenDot:
		p.next()
		step.Axis = axisSelf
		step.Name = "*"
		return step, nil
	case TokenDotDot:
		p.next()
		step.Axis = axisParent
		step.Name = "*"
		return step, nil
	case TokenAt:
		p.next()
		step.Axis = axisAttribute
		name, err := p.expect(TokenIdent, "attribute name")
		if err != nil {
			return step, err
		}
		step.Name = name.Literal
		return step, nil
	case TokenStar:
		p.next()
		step.Axis = axisChild
		step.Name = "*"
	case TokenIdent:
		p.next()
		step.Axis = axisChild
		step.Name = tok.Literal
		if p.peek().Type == TokenColon {
			p.next()
			local, err := p.expect(TokenIdent, "local name after namespace prefix")
			if err != nil {
				return step, err
			}
			step.Prefix = tok.Literal
			step.Name = local.Literal
		}
	default:
		return step, p.errorf(tok, "expected step, got %q", tok.Literal)
	}

	for p.peek().Type == TokenLeftBracket {
		p.next()
		pred, err := p.parseExpr()
		if err != nil {
			return step, err
		}
		if _, err := p.expect(TokenRightBracket, "']'"); err != nil {
			return step, err
		}
		step.Predicates = append(step.Predicates, pred)
	}
	return step, nil
}

func (p *parser) parsePrimary() (astNode, error) {
	tok := p.next()

	switch tok.Type {
	case TokenNumber:
		f, err := parseNumber(tok.Literal)
		if err != nil {
			return nil, p.errorf(tok, "invalid number %q", tok.Literal)
		}
		return &literalNode{Value: f}, nil

	case TokenString:
		return &literalNode{Value: tok.Literal}, nil

	case TokenDollar:
		name, err := p.expect(TokenIdent, "variable name")
		if err != nil {
			return nil, err
		}
		return &varNode{Name: name.Literal, Line: name.Line, Col: name.Column}, nil

	case TokenLeftParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRightParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil

	case TokenIdent:
		call := &callNode{Name: tok.Literal, Line: tok.Line, Col: tok.Column}
		if p.peek().Type == TokenColon {
			p.next()
			local, err := p.expect(TokenIdent, "local name after namespace prefix")
			if err != nil {
				return nil, err
			}
			call.Prefix = tok.Literal
			call.Name = local.Literal
		}
		if _, err := p.expect(TokenLeftParen, "'('"); err != nil {
			return nil, err
		}
		if p.peek().Type == TokenRightParen {
			p.next()
			return call, nil
		}
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			if p.peek().Type == TokenComma {
				p.next()
				continue
			}
			break
		}
		if _, err := p.expect(TokenRightParen, "')'"); err != nil {
			return nil, err
		}
		return call, nil

	default:
		return nil, p.errorf(tok, "unexpected token %q", tok.Literal)
	}
}

func parseNumber(lit string) (float64, error) {
	return strconv.ParseFloat(lit, 64)
}
