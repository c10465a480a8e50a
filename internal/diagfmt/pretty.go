package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"trainplan/internal/diag"
	"trainplan/internal/source"
)

type palette struct {
	err, warn, info, note, code, caret, gutter, header *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		err:    color.New(color.FgRed, color.Bold),
		warn:   color.New(color.FgYellow, color.Bold),
		info:   color.New(color.FgCyan),
		note:   color.New(color.FgBlue, color.Bold),
		code:   color.New(color.Bold),
		caret:  color.New(color.FgMagenta, color.Bold),
		gutter: color.New(color.FgBlue),
		header: color.New(color.FgCyan, color.Bold),
	}
	for _, c := range []*color.Color{p.err, p.warn, p.info, p.note, p.code, p.caret, p.gutter, p.header} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(s diag.Severity) *color.Color {
	switch s {
	case diag.SevError:
		return p.err
	case diag.SevWarning:
		return p.warn
	default:
		return p.info
	}
}

// Pretty форматирует диагностики в человекочитаемый вид.
// Идёт по bag.Items() (ожидается bag.Sort() заранее).
// Для каждой диагностики печатает
//
//	<path>:<line>:<col>: <SEV> <CODE>: <message>
//
// затем строку исходника с подчёркиванием ^~~~ по Span, затем Notes.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) error {
	pr := &prettyPrinter{w: w, fs: fs, opts: opts, pal: newPalette(opts.Color)}
	groups := [][]diag.Diagnostic{bag.Items()}
	if opts.GroupByKey {
		groups = bag.Groups()
	}
	for _, g := range groups {
		if opts.GroupByKey && len(g) > 0 && g[0].Key != "" {
			pr.printf("%s\n", pr.pal.header.Sprintf("── %s", g[0].Key))
		}
		for _, d := range g {
			pr.diagnostic(d)
		}
	}
	if n := bag.Dropped(); n > 0 {
		pr.printf("... %d more diagnostics not shown\n", n)
	}
	return pr.err
}

type prettyPrinter struct {
	w    io.Writer
	fs   *source.FileSet
	opts PrettyOpts
	pal  palette
	err  error
}

func (p *prettyPrinter) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *prettyPrinter) position(sp source.Span) string {
	f := p.fs.Get(sp.File)
	if f == nil {
		return "<input>"
	}
	start, _ := p.fs.Resolve(sp)
	return fmt.Sprintf("%s:%d:%d", formatPath(f, p.fs, p.opts.PathMode), start.Line, start.Col)
}

func (p *prettyPrinter) diagnostic(d diag.Diagnostic) {
	sev := p.pal.severity(d.Severity)
	p.printf("%s: %s %s: %s\n",
		p.position(d.Primary),
		sev.Sprint(d.Severity.String()),
		p.pal.code.Sprint(d.Code.ID()),
		d.Message)
	p.excerpt(d.Primary, sev)
	if d.Rule != "" {
		p.printf("  %s rule %s\n", p.pal.note.Sprint("="), d.Rule)
	}
	for _, n := range d.Notes {
		if !p.opts.ShowNotes {
			p.printf("  %s %s\n", p.pal.note.Sprint("note:"), n.Msg)
			continue
		}
		p.printf("  %s %s: %s\n", p.pal.note.Sprint("note:"), p.position(n.Span), n.Msg)
		p.excerpt(n.Span, p.pal.note)
	}
}

// excerpt prints the first line of sp with a caret underline.
func (p *prettyPrinter) excerpt(sp source.Span, c *color.Color) {
	f := p.fs.Get(sp.File)
	if f == nil {
		return
	}
	start, end := p.fs.Resolve(sp)
	line := f.GetLine(start.Line)
	if line == "" {
		return
	}
	from := min(int(start.Col)-1, len(line))
	to := len(line)
	if end.Line == start.Line {
		to = min(max(int(end.Col)-1, from), len(line))
	}

	prefix := line[:from]
	marked := line[from:to]
	shown := line
	if p.opts.Width > 0 && runewidth.StringWidth(shown) > p.opts.Width {
		shown = runewidth.Truncate(shown, p.opts.Width, "…")
	}

	num := fmt.Sprintf("%d", start.Line)
	pad := strings.Repeat(" ", len(num))
	p.printf(" %s %s %s\n", p.pal.gutter.Sprint(num), p.pal.gutter.Sprint("|"), shown)

	width := max(runewidth.StringWidth(marked), 1)
	underline := "^" + strings.Repeat("~", width-1)
	p.printf(" %s %s %s%s\n", pad, p.pal.gutter.Sprint("|"), indentFor(prefix), c.Sprint(underline))
}

// indentFor keeps tabs so the caret lines up with the source line.
func indentFor(prefix string) string {
	var b strings.Builder
	for _, r := range prefix {
		if r == '\t' {
			b.WriteByte('\t')
			continue
		}
		b.WriteString(strings.Repeat(" ", runewidth.RuneWidth(r)))
	}
	return b.String()
}

// Summary renders "N errors, M warnings" for the bag.
func Summary(bag *diag.Bag) string {
	errs, warns := bag.Count(diag.SevError), bag.Count(diag.SevWarning)
	return fmt.Sprintf("%s, %s", plural(errs, "error"), plural(warns, "warning"))
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}
