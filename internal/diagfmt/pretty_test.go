package diagfmt

import (
	"bytes"
	"strings"
	"testing"

	"trainplan/internal/diag"
	"trainplan/internal/source"
)

func TestPrettyCaretUnderValue(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("base.json", []byte(`{"hidden-size": 66}`))
	bag := diag.NewBag(0)
	bag.Add(diag.NewError(diag.CnsDivisibility, source.Span{File: id, Start: 16, End: 18}, "not divisible").
		WithKey("hidden-size").WithRule("heads-divide-hidden"))

	var buf bytes.Buffer
	if err := Pretty(&buf, bag, fs, PrettyOpts{}); err != nil {
		t.Fatal(err)
	}
	want := "base.json:1:17: ERROR CNS3001: not divisible\n" +
		" 1 | {\"hidden-size\": 66}\n" +
		"   | " + strings.Repeat(" ", 16) + "^~\n" +
		"  = rule heads-divide-hidden\n"
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestPrettyWideRunes(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("a.json", []byte(`{"名前": 1}`))
	bag := diag.NewBag(0)
	bag.Add(diag.NewWarning(diag.SchUnknownKey, source.Span{File: id, Start: 11, End: 12}, "unknown"))

	var buf bytes.Buffer
	if err := Pretty(&buf, bag, fs, PrettyOpts{}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(buf.String(), "\n")
	if len(lines) < 3 {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
	if want := "   | " + strings.Repeat(" ", 9) + "^"; lines[2] != want {
		t.Errorf("caret line %q, want %q", lines[2], want)
	}
}

func TestPrettyGroupsAndNotes(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("b.json", []byte("{\n  \"a\": 1,\n  \"a\": 2\n}\n"))
	bag := diag.NewBag(0)
	bag.Add(diag.NewError(diag.SynDuplicateKey, source.Span{File: id, Start: 14, End: 17}, "duplicate key \"a\"").
		WithKey("a").WithNote(source.Span{File: id, Start: 4, End: 7}, "first defined here"))
	bag.Add(diag.NewError(diag.IOLoadFileError, source.NoSpan, "failed to load c.json"))
	bag.Sort()

	var buf bytes.Buffer
	if err := Pretty(&buf, bag, fs, PrettyOpts{GroupByKey: true, ShowNotes: true}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"<input>: ERROR IO5001: failed to load c.json",
		"── a\n",
		"b.json:3:3: ERROR SYN1020",
		"note: b.json:2:3: first defined here",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestPrettyWidthTruncates(t *testing.T) {
	fs := source.NewFileSet()
	long := `{"x": "` + strings.Repeat("a", 100) + `"}`
	id := fs.AddVirtual("w.json", []byte(long))
	bag := diag.NewBag(0)
	bag.Add(diag.NewError(diag.SchTypeMismatch, source.Span{File: id, Start: 6, End: 8}, "bad"))

	var buf bytes.Buffer
	if err := Pretty(&buf, bag, fs, PrettyOpts{Width: 20}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "…") || strings.Contains(buf.String(), strings.Repeat("a", 30)) {
		t.Errorf("line not truncated:\n%s", buf.String())
	}
}

func TestSummary(t *testing.T) {
	bag := diag.NewBag(0)
	bag.Add(diag.NewError(diag.CnsOrdering, source.NoSpan, "x"))
	bag.Add(diag.NewWarning(diag.SchUnknownKey, source.NoSpan, "y"))
	bag.Add(diag.NewWarning(diag.SchUnknownKey, source.NoSpan, "z"))
	if got := Summary(bag); got != "1 error, 2 warnings" {
		t.Errorf("Summary = %q", got)
	}
}
