package lexer

import (
	"fmt"

	"trainplan/internal/diag"
	"trainplan/internal/token"
)

// scanWord scans a bare word and folds literal spellings via token.LookupWord.
// Token.Text is exactly the source slice.
func (lx *Lexer) scanWord() token.Token {
	start := lx.cursor.Mark()

	r, sz := lx.peekRune()
	if sz == 0 {
		return token.Token{Kind: token.Invalid, Span: lx.cursor.SpanFrom(start)}
	}
	if r >= utf8RuneSelf && !isIdentStartRune(r) {
		lx.bumpRune()
		sp := lx.cursor.SpanFrom(start)
		lx.errLex(diag.SynUnexpectedChar, sp, fmt.Sprintf("unexpected character %q", lx.text(sp)))
		return token.Token{Kind: token.Invalid, Span: sp, Text: lx.text(sp)}
	}

	for {
		r, sz := lx.peekRune()
		if sz == 0 {
			break
		}
		if r < utf8RuneSelf {
			if !isWordContinueByte(byte(r)) {
				break
			}
			lx.cursor.Bump()
			continue
		}
		if !isWordContinueRune(r) {
			break
		}
		lx.bumpRune()
	}

	sp := lx.cursor.SpanFrom(start)
	text := lx.text(sp)
	return token.Token{Kind: token.LookupWord(text), Span: sp, Text: text}
}
