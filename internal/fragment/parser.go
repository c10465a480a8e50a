package fragment

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"trainplan/internal/diag"
	"trainplan/internal/lexer"
	"trainplan/internal/source"
	"trainplan/internal/token"
	"trainplan/internal/value"
)

type parser struct {
	lx   *lexer.Lexer
	file *source.File
	rep  *countingReporter
}

// node is the mutable parse tree; it is frozen into value.Value by build.
type node struct {
	scalar value.Value
	obj    *object
	items  []*node
	isList bool
	span   source.Span
}

type object struct {
	keys    []string
	entries map[string]*entry
}

type entry struct {
	node     *node
	keySpan  source.Span
	implicit bool // created by expanding a dotted key
}

func newObject() *object {
	return &object{entries: map[string]*entry{}}
}

func (o *object) add(key string, e *entry) {
	o.keys = append(o.keys, key)
	o.entries[key] = e
}

func (p *parser) peek() token.Token { return p.lx.Peek() }
func (p *parser) next() token.Token { return p.lx.Next() }

func (p *parser) errorf(code diag.Code, sp source.Span, format string, args ...any) *diag.ReportBuilder {
	return diag.ReportError(p.rep, code, sp, fmt.Sprintf(format, args...))
}

// parseDocument accepts either one object literal or a brace-less list of
// members (key: value separated by commas or newlines).
func (p *parser) parseDocument() *object {
	first := p.peek()
	switch first.Kind {
	case token.EOF:
		return newObject()
	case token.LBrace:
		open := p.next()
		obj := newObject()
		p.parseMembers(obj, open, token.RBrace)
		if t := p.peek(); t.Kind != token.EOF {
			p.errorf(diag.SynTrailingContent, t.Span, "unexpected %s after the closing '}'", t.Kind).Emit()
		}
		return obj
	default:
		obj := newObject()
		p.parseMembers(obj, first, token.EOF)
		return obj
	}
}

// parseMembers reads key: value pairs until closing and consumes it.
func (p *parser) parseMembers(obj *object, open token.Token, closing token.Kind) source.Span {
	topLevel := closing == token.EOF
	for {
		t := p.peek()
		if t.Kind == closing {
			p.next()
			return open.Span.Cover(t.Span)
		}
		if t.Kind == token.EOF {
			p.errorf(diag.SynUnclosedBrace, open.Span, "'{' is never closed").Emit()
			return open.Span
		}
		if !t.IsKey() {
			if t.Kind != token.Invalid {
				p.errorf(diag.SynExpectKey, t.Span, "expected a key, found %s", t.Kind).Emit()
			}
			p.next()
			p.recover()
			p.eatComma()
			continue
		}
		key := p.next()
		if c := p.peek(); c.Kind != token.Colon {
			p.errorf(diag.SynExpectColon, c.Span, "expected ':' after key %q, found %s", key.KeyText(), c.Kind).Emit()
			p.recover()
			p.eatComma()
			continue
		}
		p.next()
		val := p.parseValue()
		p.insert(obj, key, val)

		s := p.peek()
		switch {
		case s.Kind == token.Comma:
			p.next()
		case s.Kind == closing, s.Kind == token.EOF:
		case topLevel && s.IsKey() && hasNewline(s.Leading):
		default:
			p.errorf(diag.SynUnexpectedToken, s.Span, "expected ',' or %s after value, found %s", closingName(closing), s.Kind).Emit()
			if !s.IsKey() {
				p.recover()
				p.eatComma()
			}
		}
	}
}

func (p *parser) parseValue() *node {
	t := p.peek()
	switch t.Kind {
	case token.RBrace, token.RBracket, token.Comma, token.EOF:
		p.errorf(diag.SynExpectValue, t.Span, "expected a value, found %s", t.Kind).Emit()
		return &node{span: t.Span}
	}
	p.next()
	switch t.Kind {
	case token.LBrace:
		obj := newObject()
		sp := p.parseMembers(obj, t, token.RBrace)
		return &node{obj: obj, span: sp}
	case token.LBracket:
		return p.parseList(t)
	case token.String:
		return &node{scalar: value.String(norm.NFC.String(t.Value)), span: t.Span}
	case token.Int:
		return &node{scalar: p.parseInt(t), span: t.Span}
	case token.Float:
		return &node{scalar: p.parseFloat(t), span: t.Span}
	case token.True:
		return &node{scalar: value.Bool(true), span: t.Span}
	case token.False:
		return &node{scalar: value.Bool(false), span: t.Span}
	case token.Null:
		return &node{scalar: value.Null(), span: t.Span}
	case token.Ident:
		p.errorf(diag.SynExpectValue, t.Span, "bare word %q is not a value; quote strings", t.Text).Emit()
	case token.Invalid:
		// lexer already reported
	default:
		p.errorf(diag.SynExpectValue, t.Span, "expected a value, found %s", t.Kind).Emit()
	}
	return &node{span: t.Span}
}

func (p *parser) parseList(open token.Token) *node {
	n := &node{isList: true, span: open.Span}
	for {
		t := p.peek()
		switch t.Kind {
		case token.RBracket:
			p.next()
			n.span = open.Span.Cover(t.Span)
			return n
		case token.EOF:
			p.errorf(diag.SynUnclosedBracket, open.Span, "'[' is never closed").Emit()
			return n
		case token.RBrace:
			// leave '}' to the enclosing block
			p.errorf(diag.SynUnclosedBracket, open.Span, "'[' is never closed").
				WithNote(t.Span, "found '}' instead").
				Emit()
			return n
		case token.Comma:
			p.errorf(diag.SynExpectValue, t.Span, "expected a value or ']', found %s", t.Kind).Emit()
			p.next()
			continue
		}
		n.items = append(n.items, p.parseValue())
		switch s := p.peek(); s.Kind {
		case token.Comma:
			p.next()
		case token.RBracket, token.RBrace, token.EOF:
		default:
			p.errorf(diag.SynUnexpectedToken, s.Span, "expected ',' or ']' after list element, found %s", s.Kind).Emit()
		}
	}
}

func (p *parser) parseInt(t token.Token) value.Value {
	i, err := strconv.ParseInt(t.Text, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			p.errorf(diag.SynBadNumber, t.Span, "integer literal %s overflows a 64-bit integer", t.Text).Emit()
		} else {
			p.errorf(diag.SynBadNumber, t.Span, "malformed integer %s", t.Text).Emit()
		}
		return value.Null()
	}
	return value.Int(i)
}

func (p *parser) parseFloat(t token.Token) value.Value {
	f, err := strconv.ParseFloat(t.Text, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) && f != 0 {
			p.errorf(diag.SynBadNumber, t.Span, "float literal %s is out of range", t.Text).Emit()
			return value.Null()
		}
		if !errors.Is(err, strconv.ErrRange) {
			p.errorf(diag.SynBadNumber, t.Span, "malformed float %s", t.Text).Emit()
			return value.Null()
		}
	}
	return value.Float(f)
}

// recover skips to the next ',' or closing bracket of the current level.
func (p *parser) recover() {
	depth := 0
	for {
		t := p.peek()
		switch t.Kind {
		case token.EOF:
			return
		case token.LBrace, token.LBracket:
			depth++
		case token.RBrace, token.RBracket:
			if depth == 0 {
				return
			}
			depth--
		case token.Comma:
			if depth == 0 {
				return
			}
		}
		p.next()
	}
}

func (p *parser) eatComma() {
	if p.peek().Kind == token.Comma {
		p.next()
	}
}

// insert places val under the (possibly dotted) key of keyTok.
func (p *parser) insert(obj *object, keyTok token.Token, val *node) {
	keyText := norm.NFC.String(keyTok.KeyText())
	segs := strings.Split(keyText, ".")
	for _, s := range segs {
		if s == "" {
			p.errorf(diag.SynExpectKey, keyTok.Span, "key %q has an empty path segment", keyText).Emit()
			return
		}
	}

	cur := obj
	var path value.Path
	for _, seg := range segs[:len(segs)-1] {
		path = path.Child(seg)
		e, ok := cur.entries[seg]
		if !ok {
			e = &entry{node: &node{obj: newObject(), span: keyTok.Span}, keySpan: keyTok.Span, implicit: true}
			cur.add(seg, e)
		} else if e.node.obj == nil {
			p.errorf(diag.SynKeyConflict, keyTok.Span, "key %q needs %q to be a block, but it holds a value", keyText, path.String()).
				WithKey(path.String()).
				WithNote(e.keySpan, "value defined here").
				Emit()
			return
		}
		cur = e.node.obj
	}
	p.place(cur, path, segs[len(segs)-1], &entry{node: val, keySpan: keyTok.Span})
}

func (p *parser) place(cur *object, parent value.Path, key string, ne *entry) {
	path := parent.Child(key)
	old, ok := cur.entries[key]
	if !ok {
		cur.add(key, ne)
		return
	}
	// {"a.b": 1, "a": {"c": 2}} is fine: the implicit block absorbs the explicit one
	if old.node.obj != nil && ne.node.obj != nil && (old.implicit || ne.implicit) {
		old.implicit = old.implicit && ne.implicit
		if !ne.implicit {
			old.keySpan = ne.keySpan
			old.node.span = ne.node.span
		}
		for _, k := range ne.node.obj.keys {
			p.place(old.node.obj, path, k, ne.node.obj.entries[k])
		}
		return
	}
	code, msg := diag.SynDuplicateKey, fmt.Sprintf("duplicate key %q", path.String())
	if (old.node.obj == nil) != (ne.node.obj == nil) {
		code, msg = diag.SynKeyConflict, fmt.Sprintf("key %q is defined both as a block and as a value", path.String())
	}
	p.errorf(code, ne.keySpan, "%s", msg).
		WithKey(path.String()).
		WithNote(old.keySpan, "first defined here").
		Emit()
}

func hasNewline(trivia []token.Trivia) bool {
	for _, t := range trivia {
		if t.Kind == token.TriviaNewline {
			return true
		}
	}
	return false
}

func closingName(k token.Kind) string {
	if k == token.EOF {
		return "end of input"
	}
	return k.String()
}
