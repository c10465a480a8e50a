// Package token defines lexical token kinds and trivia for configuration fragments.
// Invariants:
//   - Token.Text is the raw source text; Token.Span matches it exactly.
//   - String tokens carry the decoded value in Token.Value.
//   - Boolean and null spellings (true/True/TRUE, null/None, ...) are folded
//     into True/False/Null by the lexer; any other bare word is Ident.
//   - Comments (//, #, /* */) and whitespace never reach the token stream;
//     they are attached to the following token as Leading trivia.
package token
