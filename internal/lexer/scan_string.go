package lexer

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"trainplan/internal/diag"
	"trainplan/internal/token"
)

// scanString scans a '...' or "..." literal and decodes its escapes into
// Token.Value. Raw newlines end the literal with an error.
func (lx *Lexer) scanString() token.Token {
	start := lx.cursor.Mark()
	quote := lx.cursor.Bump()

	var b strings.Builder
	for !lx.cursor.EOF() {
		ch := lx.cursor.Peek()
		switch ch {
		case quote:
			lx.cursor.Bump()
			sp := lx.cursor.SpanFrom(start)
			return token.Token{Kind: token.String, Span: sp, Text: lx.text(sp), Value: b.String()}
		case '\n':
			sp := lx.cursor.SpanFrom(start)
			lx.errLex(diag.SynUnterminatedString, sp, "newline in string literal")
			return token.Token{Kind: token.Invalid, Span: sp, Text: lx.text(sp)}
		case '\\':
			lx.scanEscape(&b)
		default:
			r, sz := lx.peekRune()
			if r == utf8.RuneError && sz == 1 {
				b.WriteByte(ch)
				lx.cursor.Bump()
				continue
			}
			b.WriteRune(r)
			lx.bumpRune()
		}
	}
	sp := lx.cursor.SpanFrom(start)
	lx.errLex(diag.SynUnterminatedString, sp, "unterminated string literal")
	return token.Token{Kind: token.Invalid, Span: sp, Text: lx.text(sp)}
}

func (lx *Lexer) scanEscape(b *strings.Builder) {
	esc := lx.cursor.Mark()
	lx.cursor.Bump() // '\'
	c := lx.cursor.Bump()
	switch c {
	case '"', '\'', '\\', '/':
		b.WriteByte(c)
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'n':
		b.WriteByte('\n')
	case 'r':
		b.WriteByte('\r')
	case 't':
		b.WriteByte('\t')
	case 'u':
		r, ok := lx.scanHex4()
		if !ok {
			lx.errLex(diag.SynBadEscape, lx.cursor.SpanFrom(esc), "\\u must be followed by four hex digits")
			return
		}
		if utf16.IsSurrogate(r) {
			if b0, b1, ok := lx.cursor.Peek2(); ok && b0 == '\\' && b1 == 'u' {
				mark := lx.cursor.Mark()
				lx.cursor.Bump()
				lx.cursor.Bump()
				if r2, ok := lx.scanHex4(); ok {
					if dec := utf16.DecodeRune(r, r2); dec != utf8.RuneError {
						b.WriteRune(dec)
						return
					}
				}
				lx.cursor.Reset(mark)
			}
			r = utf8.RuneError
		}
		b.WriteRune(r)
	default:
		lx.errLex(diag.SynBadEscape, lx.cursor.SpanFrom(esc), "invalid escape sequence")
	}
}

func (lx *Lexer) scanHex4() (rune, bool) {
	var r rune
	for range 4 {
		c := lx.cursor.Peek()
		if !isHex(c) {
			return 0, false
		}
		lx.cursor.Bump()
		r <<= 4
		switch {
		case c >= '0' && c <= '9':
			r |= rune(c - '0')
		case c >= 'a' && c <= 'f':
			r |= rune(c-'a') + 10
		default:
			r |= rune(c-'A') + 10
		}
	}
	return r, true
}
