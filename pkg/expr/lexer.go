package expr

import (
	"fmt"
	"unicode"
)

// TokenType identifies a lexical token class.
type TokenType int

const (
	TokenIdent TokenType = iota
	TokenNumber
	TokenString
	TokenDollar       // '$'
	TokenLeftParen    // '('
	TokenRightParen   // ')'
	TokenLeftBracket  // '['
	TokenRightBracket // ']'
	TokenComma        // ','
	TokenSlash        // '/'
	TokenDoubleSlash  // '//'
	TokenAt           // '@'
	TokenDot          // '.'
	TokenDotDot       // '..'
	TokenStar         // '*'
	TokenColon        // ':'
	TokenEqual        // '='
	TokenNotEqual     // '!='
	TokenLess         // '<'
	TokenLessEqual    // '<='
	TokenGreater      // '>'
	TokenGreaterEqual // '>='
	TokenPlus         // '+'
	TokenMinus        // '-'
	TokenEOF
)

// Token is one lexical token with its source position.
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

// Lexer produces tokens from an expression string.
type Lexer struct {
	input        string
	position     int
	readPosition int
	ch           byte
	line         int
	column       int
}

// NewLexer creates a lexer over input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1, column: 0}
	l.readChar()
	return l
}

// Tokens runs the lexer to completion, including the trailing EOF token.
func (l *Lexer) Tokens() ([]Token, error) {
	var toks []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Type == TokenEOF {
			return toks, nil
		}
	}
}

// Next returns the next token.
func (l *Lexer) Next() (Token, error) {
	l.skipWhitespace()

	line, col := l.line, l.column
	tok := Token{Line: line, Column: col}

	switch l.ch {
	case 0:
		tok.Type = TokenEOF
		return tok, nil
	case '$':
		tok.Type, tok.Literal = TokenDollar, "$"
	case '(':
		tok.Type, tok.Literal = TokenLeftParen, "("
	case ')':
		tok.Type, tok.Literal = TokenRightParen, ")"
	case '[':
		tok.Type, tok.Literal = TokenLeftBracket, "["
	case ']':
		tok.Type, tok.Literal = TokenRightBracket, "]"
	case ',':
		tok.Type, tok.Literal = TokenComma, ","
	case '@':
		tok.Type, tok.Literal = TokenAt, "@"
	case '*':
		tok.Type, tok.Literal = TokenStar, "*"
	case ':':
		tok.Type, tok.Literal = TokenColon, ":"
	case '+':
		tok.Type, tok.Literal = TokenPlus, "+"
	case '-':
		tok.Type, tok.Literal = TokenMinus, "-"
	case '=':
		tok.Type, tok.Literal = TokenEqual, "="
	case '/':
		if l.peekChar() == '/' {
			l.readChar()
			tok.Type, tok.Literal = TokenDoubleSlash, "//"
		} else {
			tok.Type, tok.Literal = TokenSlash, "/"
		}
	case '.':
		if l.peekChar() == '.' {
			l.readChar()
			tok.Type, tok.Literal = TokenDotDot, ".."
		} else {
			tok.Type, tok.Literal = TokenDot, "."
		}
	case '!':
		if l.peekChar() != '=' {
			return tok, &ParseError{Msg: "unexpected character '!'", Line: line, Column: col}
		}
		l.readChar()
		tok.Type, tok.Literal = TokenNotEqual, "!="
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			tok.Type, tok.Literal = TokenLessEqual, "<="
		} else {
			tok.Type, tok.Literal = TokenLess, "<"
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok.Type, tok.Literal = TokenGreaterEqual, ">="
		} else {
			tok.Type, tok.Literal = TokenGreater, ">"
		}
	case '\'', '"':
		lit, err := l.readString(l.ch)
		if err != nil {
			return tok, err
		}
		tok.Type, tok.Literal = TokenString, lit
		return tok, nil
	default:
		if isNameStart(l.ch) {
			tok.Type, tok.Literal = TokenIdent, l.readName()
			return tok, nil
		}
		if isDigit(l.ch) {
			tok.Type, tok.Literal = TokenNumber, l.readNumber()
			return tok, nil
		}
		return tok, &ParseError{
			Msg:    fmt.Sprintf("unexpected character %q", string(l.ch)),
			Line:   line,
			Column: col,
		}
	}

	l.readChar()
	return tok, nil
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

// readName consumes a name. Hyphens are part of the name when followed by a
// name character, so "starts-with" lexes as one token; subtraction between
// names needs surrounding spaces.
func (l *Lexer) readName() string {
	start := l.position
	for {
		if isNameChar(l.ch) {
			l.readChar()
			continue
		}
		if l.ch == '-' && isNameChar(l.peekChar()) {
			l.readChar()
			continue
		}
		break
	}
	return l.input[start:l.position]
}

func (l *Lexer) readNumber() string {
	start := l.position
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[start:l.position]
}

func (l *Lexer) readString(quote byte) (string, error) {
	line, col := l.line, l.column
	start := l.position + 1
	for {
		l.readChar()
		if l.ch == quote {
			lit := l.input[start:l.position]
			l.readChar()
			return lit, nil
		}
		if l.ch == 0 {
			return "", &ParseError{Msg: "unterminated string literal", Line: line, Column: col}
		}
	}
}

func isNameStart(ch byte) bool {
	return unicode.IsLetter(rune(ch)) || ch == '_'
}

func isNameChar(ch byte) bool {
	return isNameStart(ch) || isDigit(ch)
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
