package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexerTokens(t *testing.T) {
	toks, err := NewLexer("//item[@id = '42']/name").Tokens()
	require.NoError(t, err)

	types := make([]TokenType, len(toks))
	for i, tok := range toks {
		types[i] = tok.Type
	}
	assert.Equal(t, []TokenType{
		TokenDoubleSlash, TokenIdent, TokenLeftBracket, TokenAt, TokenIdent,
		TokenEqual, TokenString, TokenRightBracket, TokenSlash, TokenIdent,
		TokenEOF,
	}, types)
}

func TestLexerHyphenatedNames(t *testing.T) {
	toks, err := NewLexer("starts-with($a, 'x')").Tokens()
	require.NoError(t, err)
	assert.Equal(t, "starts-with", toks[0].Literal)
	assert.Equal(t, TokenIdent, toks[0].Type)
}

func TestLexerSubtractionNeedsSpaces(t *testing.T) {
	toks, err := NewLexer("$a - 1").Tokens()
	require.NoError(t, err)

	types := make([]TokenType, len(toks))
	for i, tok := range toks {
		types[i] = tok.Type
	}
	assert.Equal(t, []TokenType{TokenDollar, TokenIdent, TokenMinus, TokenNumber, TokenEOF}, types)
}

func TestLexerNumbers(t *testing.T) {
	toks, err := NewLexer("3.14 + 7").Tokens()
	require.NoError(t, err)
	assert.Equal(t, "3.14", toks[0].Literal)
	assert.Equal(t, TokenNumber, toks[0].Type)
	assert.Equal(t, "7", toks[2].Literal)
}

func TestLexerComparisonOperators(t *testing.T) {
	toks, err := NewLexer("< <= > >= = !=").Tokens()
	require.NoError(t, err)

	types := make([]TokenType, len(toks))
	for i, tok := range toks {
		types[i] = tok.Type
	}
	assert.Equal(t, []TokenType{
		TokenLess, TokenLessEqual, TokenGreater, TokenGreaterEqual,
		TokenEqual, TokenNotEqual, TokenEOF,
	}, types)
}

func TestLexerUnterminatedString(t *testing.T) {
	_, err := NewLexer("'oops").Tokens()
	require.Error(t, err)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Msg, "unterminated")
}

func TestLexerBadCharacter(t *testing.T) {
	_, err := NewLexer("a & b").Tokens()
	require.Error(t, err)
}

func TestLexerPositions(t *testing.T) {
	toks, err := NewLexer("a = b").Tokens()
	require.NoError(t, err)
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 1, toks[0].Column)
	assert.Equal(t, 3, toks[1].Column)
	assert.Equal(t, 5, toks[2].Column)
}
