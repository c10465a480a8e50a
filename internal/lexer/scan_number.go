package lexer

import (
	"trainplan/internal/diag"
	"trainplan/internal/source"
	"trainplan/internal/token"
)

// scanNumber accepts [+-]? (digits [. digits?] | . digits) ([eE] [+-]? digits)?.
// Anything glued to the literal (1_000, 12abc, 1e) is reported as SynBadNumber
// and consumed so lexing resumes after it.
func (lx *Lexer) scanNumber() token.Token {
	start := lx.cursor.Mark()
	kind := token.Int

	if b := lx.cursor.Peek(); b == '-' || b == '+' {
		lx.cursor.Bump()
		if !isDec(lx.cursor.Peek()) && !lx.isNumberAfterDot() {
			return lx.badNumber(start, "sign must be followed by a digit")
		}
	}

	digits := lx.eatDigits()
	if lx.cursor.Peek() == '.' {
		lx.cursor.Bump()
		kind = token.Float
		frac := lx.eatDigits()
		if digits == 0 && frac == 0 {
			return lx.badNumber(start, "expected digit after '.'")
		}
	}

	if b := lx.cursor.Peek(); b == 'e' || b == 'E' {
		lx.cursor.Bump()
		kind = token.Float
		if b := lx.cursor.Peek(); b == '-' || b == '+' {
			lx.cursor.Bump()
		}
		if lx.eatDigits() == 0 {
			return lx.badNumber(start, "exponent has no digits")
		}
	}

	if b := lx.cursor.Peek(); b == '_' {
		return lx.badNumber(start, "digit separators are not allowed")
	} else if isWordContinueByte(b) {
		return lx.badNumber(start, "malformed number literal")
	}

	sp := lx.cursor.SpanFrom(start)
	return token.Token{Kind: kind, Span: sp, Text: lx.text(sp)}
}

func (lx *Lexer) eatDigits() int {
	n := 0
	for isDec(lx.cursor.Peek()) {
		lx.cursor.Bump()
		n++
	}
	return n
}

func (lx *Lexer) badNumber(start Mark, msg string) token.Token {
	for isWordContinueByte(lx.cursor.Peek()) || lx.cursor.Peek() == '+' {
		lx.cursor.Bump()
	}
	sp := lx.cursor.SpanFrom(start)
	lx.errLex(diag.SynBadNumber, sp, msg)
	return token.Token{Kind: token.Invalid, Span: sp, Text: lx.text(sp)}
}

// ScalarKind reports the literal kind of text when it is exactly one
// number, boolean or null token of the fragment format. Otherwise it
// returns token.Invalid.
func ScalarKind(text string) token.Kind {
	fs := source.NewFileSet()
	file := fs.Get(fs.AddVirtual("<scalar>", []byte(text)))
	rep := &diag.SliceReporter{}
	lx := New(file, Options{Reporter: rep})
	tok := lx.Next()
	whole := tok.Span.Start == 0 && int(tok.Span.End) == len(file.Content)
	if !whole || lx.Next().Kind != token.EOF || len(rep.Items) > 0 {
		return token.Invalid
	}
	switch tok.Kind {
	case token.Int, token.Float, token.True, token.False, token.Null:
		return tok.Kind
	}
	return token.Invalid
}
