package token

import (
	"trainplan/internal/source"
)

// Token represents a single fragment token with its location and trivia.
type Token struct {
	Kind    Kind
	Span    source.Span
	Text    string
	Value   string // decoded contents for String
	Leading []Trivia
}

// IsLiteral reports whether the token can start a scalar value.
func (t Token) IsLiteral() bool {
	switch t.Kind {
	case String, Int, Float, True, False, Null:
		return true
	default:
		return false
	}
}

// IsKey reports whether the token can be used as an object key.
func (t Token) IsKey() bool {
	switch t.Kind {
	case Ident, String, Int, True, False, Null:
		return true
	default:
		return false
	}
}

// KeyText returns the key spelled by t.
func (t Token) KeyText() string {
	if t.Kind == String {
		return t.Value
	}
	return t.Text
}

// LookupWord folds literal spellings into their kinds; other words are Ident.
func LookupWord(word string) Kind {
	switch word {
	case "true", "True", "TRUE":
		return True
	case "false", "False", "FALSE":
		return False
	case "null", "Null", "NULL", "None":
		return Null
	}
	return Ident
}
