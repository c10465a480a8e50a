package main

import "testing"

func TestOverridesFragment(t *testing.T) {
	src, err := overridesFragment([]string{
		"optimizer.params.lr=0.0003",
		"fp16.enabled=True",
		"tokenizer-type=HFTokenizer",
		"optimizer.params.betas=[0.9, 0.95]",
		"vocab-file=",
	})
	if err != nil {
		t.Fatal(err)
	}
	want := "{\n" +
		"  \"optimizer.params.lr\": 0.0003,\n" +
		"  \"fp16.enabled\": True,\n" +
		"  \"tokenizer-type\": \"HFTokenizer\",\n" +
		"  \"optimizer.params.betas\": [0.9, 0.95],\n" +
		"  \"vocab-file\": \"\",\n" +
		"}\n"
	if string(src.Content) != want {
		t.Errorf("got:\n%s\nwant:\n%s", src.Content, want)
	}
	if src.Name != overrideSource {
		t.Errorf("name %q", src.Name)
	}
}

func TestOverridesFragmentRejectsMalformed(t *testing.T) {
	for _, p := range []string{"no-equals", "=1"} {
		if _, err := overridesFragment([]string{p}); err == nil {
			t.Errorf("%q accepted", p)
		}
	}
}

func TestLiteral(t *testing.T) {
	cases := map[string]string{
		"42":       "42",
		"-1.5e-3":  "-1.5e-3",
		"TRUE":     "TRUE",
		"None":     "None",
		"inf":      `"inf"`,
		"-Inf":     `"-Inf"`,
		"NaN":      `"NaN"`,
		"Infinity": `"Infinity"`,
		"1_000":    `"1_000"`,
		"0x10":     `"0x10"`,
		"mmap":     `"mmap"`,
		"1 2":      `"1 2"`,
	}
	for in, want := range cases {
		if got := literal(in); got != want {
			t.Errorf("literal(%q) = %s, want %s", in, got, want)
		}
	}
}
