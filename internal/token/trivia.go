package token

import "trainplan/internal/source"

type TriviaKind uint8

const (
	TriviaSpace TriviaKind = iota
	TriviaNewline
	TriviaLineComment // "//" or "#"
	TriviaBlockComment
)

type Trivia struct {
	Kind TriviaKind
	Span source.Span
	Text string
}

// HasComment reports whether any trivia in list is a comment.
func HasComment(list []Trivia) bool {
	for _, t := range list {
		if t.Kind == TriviaLineComment || t.Kind == TriviaBlockComment {
			return true
		}
	}
	return false
}
