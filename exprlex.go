package framestore

import (
	"fmt"
	"strings"
)

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenIdent
	tokenNumber
	tokenString
	tokenLParen
	tokenRParen
	tokenLBracket
	tokenRBracket
	tokenComma
	tokenEQ  // == (and the = alias)
	tokenNEQ // !=
	tokenGT
	tokenGTE
	tokenLT
	tokenLTE
	tokenAnd // &
	tokenOr  // |
	tokenNot // ~
)

type exprToken struct {
	Type  tokenType
	Value string
	Pos   int
}

type exprLexer struct {
	input  string
	pos    int
	tokens []exprToken
}

func newExprLexer(input string) *exprLexer {
	return &exprLexer{input: input}
}

// Tokenize performs full tokenization of the where string.
func (l *exprLexer) Tokenize() ([]exprToken, error) {
	l.tokens = nil
	l.pos = 0
	for l.pos < len(l.input) {
		l.skipWhitespace()
		if l.pos >= len(l.input) {
			break
		}
		ch := l.input[l.pos]
		switch {
		case ch == '\'' || ch == '"':
			tok, err := l.readString(ch)
			if err != nil {
				return nil, err
			}
			l.tokens = append(l.tokens, tok)
		case ch == '(':
			l.emit(tokenLParen, "(")
		case ch == ')':
			l.emit(tokenRParen, ")")
		case ch == '[':
			l.emit(tokenLBracket, "[")
		case ch == ']':
			l.emit(tokenRBracket, "]")
		case ch == ',':
			l.emit(tokenComma, ",")
		case ch == '&':
			l.emit(tokenAnd, "&")
		case ch == '|':
			l.emit(tokenOr, "|")
		case ch == '~':
			l.emit(tokenNot, "~")
		case ch == '=' && l.peek(1) == '=':
			l.tokens = append(l.tokens, exprToken{Type: tokenEQ, Value: "==", Pos: l.pos})
			l.pos += 2
		case ch == '=':
			// accepted as an alias for ==
			l.emit(tokenEQ, "=")
		case ch == '!' && l.peek(1) == '=':
			l.tokens = append(l.tokens, exprToken{Type: tokenNEQ, Value: "!=", Pos: l.pos})
			l.pos += 2
		case ch == '>' && l.peek(1) == '=':
			l.tokens = append(l.tokens, exprToken{Type: tokenGTE, Value: ">=", Pos: l.pos})
			l.pos += 2
		case ch == '<' && l.peek(1) == '=':
			l.tokens = append(l.tokens, exprToken{Type: tokenLTE, Value: "<=", Pos: l.pos})
			l.pos += 2
		case ch == '>':
			l.emit(tokenGT, ">")
		case ch == '<':
			l.emit(tokenLT, "<")
		case ch == '-' || isDigit(ch):
			l.tokens = append(l.tokens, l.readNumber())
		case isIdentStart(ch):
			l.tokens = append(l.tokens, l.readIdent())
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d in where expression", ch, l.pos)
		}
	}
	l.tokens = append(l.tokens, exprToken{Type: tokenEOF, Pos: l.pos})
	return l.tokens, nil
}

func (l *exprLexer) emit(t tokenType, v string) {
	l.tokens = append(l.tokens, exprToken{Type: t, Value: v, Pos: l.pos})
	l.pos++
}

func (l *exprLexer) skipWhitespace() {
	for l.pos < len(l.input) && (l.input[l.pos] == ' ' || l.input[l.pos] == '\t' || l.input[l.pos] == '\n' || l.input[l.pos] == '\r') {
		l.pos++
	}
}

func (l *exprLexer) peek(offset int) byte {
	idx := l.pos + offset
	if idx < len(l.input) {
		return l.input[idx]
	}
	return 0
}

func (l *exprLexer) readString(quote byte) (exprToken, error) {
	start := l.pos
	l.pos++
	var sb strings.Builder
	for l.pos < len(l.input) {
		if l.input[l.pos] == quote {
			l.pos++
			return exprToken{Type: tokenString, Value: sb.String(), Pos: start}, nil
		}
		if l.input[l.pos] == '\\' && l.pos+1 < len(l.input) {
			l.pos++
		}
		sb.WriteByte(l.input[l.pos])
		l.pos++
	}
	return exprToken{}, fmt.Errorf("unterminated string at position %d in where expression", start)
}

func (l *exprLexer) readNumber() exprToken {
	start := l.pos
	if l.input[l.pos] == '-' {
		l.pos++
	}
	for l.pos < len(l.input) && (isDigit(l.input[l.pos]) || l.input[l.pos] == '.' || l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
		l.pos++
	}
	return exprToken{Type: tokenNumber, Value: l.input[start:l.pos], Pos: start}
}

// identifiers may be dotted (scope references like df.index)
func (l *exprLexer) readIdent() exprToken {
	start := l.pos
	for l.pos < len(l.input) && (isIdentPart(l.input[l.pos]) || l.input[l.pos] == '.') {
		l.pos++
	}
	return exprToken{Type: tokenIdent, Value: l.input[start:l.pos], Pos: start}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}
