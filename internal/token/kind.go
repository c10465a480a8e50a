package token

// Kind represents the category of a fragment token.
type Kind uint8

const (
	// Invalid indicates an erroneous token.
	Invalid Kind = iota
	// EOF marks the end of the source input.
	EOF

	// Ident is a bare word, used for unquoted keys.
	Ident
	// String is a single or double quoted string.
	String
	// Int is an integer literal without fraction or exponent.
	Int
	// Float is a literal with a fraction or exponent.
	Float
	True
	False
	Null

	LBrace   // {
	RBrace   // }
	LBracket // [
	RBracket // ]
	Colon    // :
	Comma    // ,
)

var kindNames = [...]string{
	Invalid:  "invalid",
	EOF:      "end of input",
	Ident:    "identifier",
	String:   "string",
	Int:      "integer",
	Float:    "float",
	True:     "true",
	False:    "false",
	Null:     "null",
	LBrace:   "'{'",
	RBrace:   "'}'",
	LBracket: "'['",
	RBracket: "']'",
	Colon:    "':'",
	Comma:    "','",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}
