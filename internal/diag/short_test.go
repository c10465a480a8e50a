package diag

import (
	"testing"

	"trainplan/internal/source"
)

func TestFormatShort(t *testing.T) {
	fs := source.NewFileSet()
	base := fs.AddVirtual("base.json", []byte("{\n  \"lr\": 1,\n  \"lr\": 2\n}\n"))

	items := []Diagnostic{
		NewError(SynDuplicateKey, source.Span{File: base, Start: 15, End: 19}, "duplicate key \"lr\"\nin fragment").
			WithKey("lr").
			WithNote(source.Span{File: base, Start: 4, End: 8}, "first defined here"),
		NewError(CnsTopology, source.NoSpan, "8 devices cannot host pipe 3 x model 1").WithKey("pipe-parallel-size"),
	}

	want := "error SYN1020 base.json:3:3 lr: duplicate key \"lr\" in fragment\n" +
		"note SYN1020 base.json:2:3 lr: first defined here\n" +
		"error CNS3002 - pipe-parallel-size: 8 devices cannot host pipe 3 x model 1"
	if got := FormatShort(items, fs, true); got != want {
		t.Fatalf("unexpected short output:\nwant:\n%s\n\ngot:\n%s", want, got)
	}

	withoutNotes := FormatShort(items[:1], fs, false)
	if withoutNotes != "error SYN1020 base.json:3:3 lr: duplicate key \"lr\" in fragment" {
		t.Fatalf("got %q", withoutNotes)
	}
}

func TestReportBuilderEmitsOnce(t *testing.T) {
	var sink SliceReporter
	b := ReportError(&sink, CnsDivisibility, source.NoSpan, "hidden-size 1000 is not divisible by num-attention-heads 16").
		WithKey("hidden-size").
		WithRule("heads-divide-hidden").
		WithValue("1000")
	b.Emit()
	b.Emit()
	if len(sink.Items) != 1 {
		t.Fatalf("expected one diagnostic, got %d", len(sink.Items))
	}
	got := sink.Items[0]
	if got.Rule != "heads-divide-hidden" || got.Value != "1000" || got.Severity != SevError {
		t.Fatalf("unexpected diagnostic %+v", got)
	}
}

func TestDedupReporter(t *testing.T) {
	bag := NewBag(0)
	r := NewDedupReporter(BagReporter{Bag: bag})
	d := NewWarning(SchUnknownKey, source.Span{File: 0, Start: 2, End: 5}, "unknown key").WithKey("foo")
	r.Report(d)
	r.Report(d)
	r.Report(d.WithKey("bar"))
	if bag.Len() != 2 {
		t.Fatalf("Len = %d", bag.Len())
	}
}
