package token

import "testing"

func TestLookupWord(t *testing.T) {
	tests := []struct {
		word string
		want Kind
	}{
		{"true", True},
		{"True", True},
		{"FALSE", False},
		{"False", False},
		{"None", Null},
		{"null", Null},
		{"hidden-size", Ident},
		{"yes", Ident},
	}
	for _, tt := range tests {
		if got := LookupWord(tt.word); got != tt.want {
			t.Errorf("LookupWord(%q) = %s, want %s", tt.word, got, tt.want)
		}
	}
}

func TestKeyText(t *testing.T) {
	str := Token{Kind: String, Text: `"optimizer.params.lr"`, Value: "optimizer.params.lr"}
	if !str.IsKey() || str.KeyText() != "optimizer.params.lr" {
		t.Fatalf("unexpected key text %q", str.KeyText())
	}
	ident := Token{Kind: Ident, Text: "num-layers"}
	if ident.KeyText() != "num-layers" || ident.IsLiteral() {
		t.Fatal("ident must be a key, not a literal")
	}
	if (Token{Kind: Comma}).IsKey() {
		t.Fatal("comma is not a key")
	}
	if Kind(200).String() != "unknown" || LBrace.String() != "'{'" {
		t.Fatal("unexpected kind names")
	}
}
