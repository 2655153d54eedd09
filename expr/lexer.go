package expr

import "strings"

// TokenType identifies the kind of a lexed token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdent
	TokenNumber
	TokenInput  // $N
	TokenOp     // run of operator characters
	TokenLParen // (
	TokenRParen // )
	TokenIllegal
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "end of input"
	case TokenIdent:
		return "identifier"
	case TokenNumber:
		return "number"
	case TokenInput:
		return "input"
	case TokenOp:
		return "operator"
	case TokenLParen:
		return "'('"
	case TokenRParen:
		return "')'"
	default:
		return "illegal character"
	}
}

// Token is one lexeme. Pos is the byte offset of its first character.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
	Line  int
	Col   int
}

const opChars = "+-*/=<>!%&|^~"

func isDigit(ch byte) bool  { return ch >= '0' && ch <= '9' }
func isOpChar(ch byte) bool { return strings.IndexByte(opChars, ch) >= 0 }

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentChar(ch byte) bool { return isIdentStart(ch) || isDigit(ch) }

// Lexer splits expression source into tokens
type Lexer struct {
	input     string
	pos       int
	line      int
	lineStart int
}

func NewLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1}
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		switch l.input[l.pos] {
		case ' ', '\t', '\r':
			l.pos++
		case '\n':
			l.pos++
			l.line++
			l.lineStart = l.pos
		default:
			return
		}
	}
}

func (l *Lexer) token(t TokenType, start int) Token {
	return Token{
		Type:  t,
		Value: l.input[start:l.pos],
		Pos:   start,
		Line:  l.line,
		Col:   start - l.lineStart + 1,
	}
}

// NextToken returns the next token, or TokenEOF forever once the input is exhausted
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()
	start := l.pos
	if l.pos >= len(l.input) {
		return l.token(TokenEOF, start)
	}

	ch := l.input[l.pos]
	switch {
	case ch == '(':
		l.pos++
		return l.token(TokenLParen, start)
	case ch == ')':
		l.pos++
		return l.token(TokenRParen, start)
	case isDigit(ch):
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
		return l.token(TokenNumber, start)
	case ch == '$':
		l.pos++
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
		if l.pos == start+1 {
			return l.token(TokenIllegal, start)
		}
		return l.token(TokenInput, start)
	case isIdentStart(ch):
		for l.pos < len(l.input) && isIdentChar(l.input[l.pos]) {
			l.pos++
		}
		return l.token(TokenIdent, start)
	case isOpChar(ch):
		l.pos++
		for l.pos < len(l.input) && isOpChar(l.input[l.pos]) {
			// A '-' glued to a digit is the sign of the next literal: $0--3 is $0 - -3
			if l.input[l.pos] == '-' && l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1]) {
				break
			}
			l.pos++
		}
		return l.token(TokenOp, start)
	}

	// Step over one whole UTF-8 sequence so the error names the full character
	l.pos++
	for l.pos < len(l.input) && l.input[l.pos]&0xC0 == 0x80 {
		l.pos++
	}
	return l.token(TokenIllegal, start)
}

// Tokenize lexes the whole input, ending with a TokenEOF token
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}
