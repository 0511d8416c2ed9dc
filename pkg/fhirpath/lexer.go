package fhirpath

import (
	"strconv"
	"strings"
)

// TokenType represents the kind of token.
type TokenType int

const (
	EOF TokenType = iota

	// Literals & identifiers
	IDENT
	STRING
	INTEGER
	DECIMAL
	DATE
	DATETIME
	TIME
	EXTVAR  // %name
	SPECIAL // $this, $index, $total

	// Punctuation
	PERIOD
	COMMA
	LROUND
	RROUND
	LSQUARE
	RSQUARE
	LCURLY
	RCURLY

	// Operators
	PLUS
	MINUS
	MULT
	SLASH
	PIPE
	AMP
	EQ
	NEQ
	EQUIV
	NEQUIV
	LESS
	LESS_EQ
	GREATER
	GREATER_EQ
)

// Token is a lexical token with optional literal value.
type Token struct {
	Type    TokenType
	Lexeme  string
	Literal any
	Pos     int
	// Quoted is set for `delimited` identifiers, which are never keywords.
	Quoted bool
}

type lexer struct {
	src    string
	cur    int
	tokens []Token
}

func tokenize(src string) ([]Token, error) {
	lx := &lexer{src: src}
	for {
		lx.skipSpaceAndComments()
		if lx.cur >= len(lx.src) {
			lx.tokens = append(lx.tokens, Token{Type: EOF, Pos: lx.cur})
			return lx.tokens, nil
		}
		if err := lx.next(); err != nil {
			return nil, err
		}
	}
}

func (lx *lexer) emit(t TokenType, start int, lit any) {
	lx.tokens = append(lx.tokens, Token{Type: t, Lexeme: lx.src[start:lx.cur], Literal: lit, Pos: start})
}

func (lx *lexer) peekAt(offset int) byte {
	if lx.cur+offset >= len(lx.src) {
		return 0
	}
	return lx.src[lx.cur+offset]
}

func (lx *lexer) skipSpaceAndComments() {
	for lx.cur < len(lx.src) {
		c := lx.src[lx.cur]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			lx.cur++
		case c == '/' && lx.peekAt(1) == '/':
			for lx.cur < len(lx.src) && lx.src[lx.cur] != '\n' {
				lx.cur++
			}
		case c == '/' && lx.peekAt(1) == '*':
			end := strings.Index(lx.src[lx.cur+2:], "*/")
			if end < 0 {
				lx.cur = len(lx.src)
				return
			}
			lx.cur += end + 4
		default:
			return
		}
	}
}

func (lx *lexer) next() error {
	start := lx.cur
	c := lx.src[lx.cur]

	switch {
	case isIdentStart(c):
		for lx.cur < len(lx.src) && isIdentPart(lx.src[lx.cur]) {
			lx.cur++
		}
		lx.emit(IDENT, start, lx.src[start:lx.cur])
		return nil
	case c >= '0' && c <= '9':
		return lx.number(start)
	}

	lx.cur++
	switch c {
	case '\'':
		s, err := lx.quoted('\'', start)
		if err != nil {
			return err
		}
		lx.emit(STRING, start, s)
	case '`':
		s, err := lx.quoted('`', start)
		if err != nil {
			return err
		}
		lx.emit(IDENT, start, s)
		lx.tokens[len(lx.tokens)-1].Quoted = true
	case '%':
		return lx.extVar(start)
	case '$':
		for lx.cur < len(lx.src) && isIdentPart(lx.src[lx.cur]) {
			lx.cur++
		}
		name := lx.src[start+1 : lx.cur]
		if name != "this" && name != "index" && name != "total" {
			return syntaxErr(start, "unknown special variable $%s", name)
		}
		lx.emit(SPECIAL, start, name)
	case '@':
		return lx.temporal(start)
	case '.':
		lx.emit(PERIOD, start, nil)
	case ',':
		lx.emit(COMMA, start, nil)
	case '(':
		lx.emit(LROUND, start, nil)
	case ')':
		lx.emit(RROUND, start, nil)
	case '[':
		lx.emit(LSQUARE, start, nil)
	case ']':
		lx.emit(RSQUARE, start, nil)
	case '{':
		lx.emit(LCURLY, start, nil)
	case '}':
		lx.emit(RCURLY, start, nil)
	case '+':
		lx.emit(PLUS, start, nil)
	case '-':
		lx.emit(MINUS, start, nil)
	case '*':
		lx.emit(MULT, start, nil)
	case '/':
		lx.emit(SLASH, start, nil)
	case '|':
		lx.emit(PIPE, start, nil)
	case '&':
		lx.emit(AMP, start, nil)
	case '=':
		lx.emit(EQ, start, nil)
	case '~':
		lx.emit(EQUIV, start, nil)
	case '!':
		switch lx.peekAt(0) {
		case '=':
			lx.cur++
			lx.emit(NEQ, start, nil)
		case '~':
			lx.cur++
			lx.emit(NEQUIV, start, nil)
		default:
			return syntaxErr(start, "unexpected '!'")
		}
	case '<':
		if lx.peekAt(0) == '=' {
			lx.cur++
			lx.emit(LESS_EQ, start, nil)
		} else {
			lx.emit(LESS, start, nil)
		}
	case '>':
		if lx.peekAt(0) == '=' {
			lx.cur++
			lx.emit(GREATER_EQ, start, nil)
		} else {
			lx.emit(GREATER, start, nil)
		}
	default:
		return syntaxErr(start, "unexpected character %q", c)
	}
	return nil
}

func (lx *lexer) number(start int) error {
	for lx.cur < len(lx.src) && isDigit(lx.src[lx.cur]) {
		lx.cur++
	}
	if lx.peekAt(0) == '.' && isDigit(lx.peekAt(1)) {
		lx.cur++
		for lx.cur < len(lx.src) && isDigit(lx.src[lx.cur]) {
			lx.cur++
		}
		f, err := strconv.ParseFloat(lx.src[start:lx.cur], 64)
		if err != nil {
			return syntaxErr(start, "invalid decimal %q", lx.src[start:lx.cur])
		}
		lx.emit(DECIMAL, start, f)
		return nil
	}
	i, err := strconv.ParseInt(lx.src[start:lx.cur], 10, 64)
	if err != nil {
		return syntaxErr(start, "invalid integer %q", lx.src[start:lx.cur])
	}
	lx.emit(INTEGER, start, i)
	return nil
}

func (lx *lexer) quoted(delim byte, start int) (string, error) {
	var b strings.Builder
	for lx.cur < len(lx.src) {
		c := lx.src[lx.cur]
		lx.cur++
		if c == delim {
			return b.String(), nil
		}
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if lx.cur >= len(lx.src) {
			break
		}
		esc := lx.src[lx.cur]
		lx.cur++
		switch esc {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'f':
			b.WriteByte('\f')
		case 'u':
			if lx.cur+4 > len(lx.src) {
				return "", syntaxErr(lx.cur, "truncated unicode escape")
			}
			r, err := strconv.ParseUint(lx.src[lx.cur:lx.cur+4], 16, 32)
			if err != nil {
				return "", syntaxErr(lx.cur, "invalid unicode escape")
			}
			b.WriteRune(rune(r))
			lx.cur += 4
		default:
			b.WriteByte(esc)
		}
	}
	return "", syntaxErr(start, "unterminated literal")
}

func (lx *lexer) extVar(start int) error {
	switch lx.peekAt(0) {
	case '`', '\'':
		delim := lx.src[lx.cur]
		lx.cur++
		name, err := lx.quoted(delim, start)
		if err != nil {
			return err
		}
		lx.emit(EXTVAR, start, name)
		return nil
	}
	if lx.cur >= len(lx.src) || !isIdentStart(lx.src[lx.cur]) {
		return syntaxErr(start, "expected variable name after '%%'")
	}
	for lx.cur < len(lx.src) && (isIdentPart(lx.src[lx.cur]) || lx.src[lx.cur] == '-') {
		lx.cur++
	}
	lx.emit(EXTVAR, start, lx.src[start+1:lx.cur])
	return nil
}

// temporal scans @YYYY[-MM[-DD]][Thh[:mm[:ss[.fff]]][tz]] and @Thh[:mm[:ss]].
func (lx *lexer) temporal(start int) error {
	for lx.cur < len(lx.src) {
		c := lx.src[lx.cur]
		if isDigit(c) || c == '-' || c == ':' || c == 'T' || c == 'Z' || c == '+' {
			lx.cur++
			continue
		}
		if c == '.' && isDigit(lx.peekAt(1)) {
			lx.cur++
			continue
		}
		break
	}
	text := lx.src[start+1 : lx.cur]
	if strings.HasPrefix(text, "T") {
		t, err := ParseTime(text[1:])
		if err != nil {
			return syntaxErr(start, "invalid time literal @%s", text)
		}
		lx.emit(TIME, start, t)
		return nil
	}
	if strings.Contains(text, "T") {
		dt, err := ParseDateTime(strings.TrimSuffix(text, "T"))
		if err != nil {
			return syntaxErr(start, "invalid dateTime literal @%s", text)
		}
		lx.emit(DATETIME, start, dt)
		return nil
	}
	d, err := ParseDate(text)
	if err != nil {
		return syntaxErr(start, "invalid date literal @%s", text)
	}
	lx.emit(DATE, start, d)
	return nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
