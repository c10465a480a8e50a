package lexer

import (
	"trainplan/internal/diag"
	"trainplan/internal/source"
)

type Options struct {
	Reporter diag.Reporter // nil: ошибки игнорируем, но продолжаем лексить
}

func (lx *Lexer) errLex(code diag.Code, sp source.Span, msg string) {
	if lx.opts.Reporter != nil {
		diag.ReportError(lx.opts.Reporter, code, sp, msg).Emit()
	}
}
