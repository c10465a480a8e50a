package source

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileSetVersioning(t *testing.T) {
	fs := NewFileSet()
	first := fs.AddVirtual("base.json", []byte("{}"))
	second := fs.AddVirtual("base.json", []byte("{\"a\": 1}"))
	if first == second {
		t.Fatalf("expected distinct ids for repeated path, got %d twice", first)
	}
	latest, ok := fs.GetLatest("base.json")
	if !ok || latest != second {
		t.Fatalf("GetLatest = %d,%v; want %d,true", latest, ok, second)
	}
	if fs.Len() != 2 {
		t.Fatalf("Len = %d, want 2", fs.Len())
	}
}

func TestResolvePositions(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("cfg.json", []byte("a\nbc\n\nd"))

	tests := []struct {
		off  uint32
		want LineCol
	}{
		{0, LineCol{1, 1}},
		{1, LineCol{1, 2}}, // сам '\n' принадлежит первой строке
		{2, LineCol{2, 1}},
		{3, LineCol{2, 2}},
		{5, LineCol{3, 1}},
		{6, LineCol{4, 1}},
	}
	for _, tt := range tests {
		start, _ := fs.Resolve(Span{File: id, Start: tt.off, End: tt.off})
		if start != tt.want {
			t.Errorf("offset %d: got %+v, want %+v", tt.off, start, tt.want)
		}
	}
}

func TestResolveUnknownSpan(t *testing.T) {
	fs := NewFileSet()
	start, end := fs.Resolve(NoSpan)
	if start != (LineCol{}) || end != (LineCol{}) {
		t.Fatalf("expected zero positions for NoSpan, got %+v %+v", start, end)
	}
	if got := fs.Position(NoSpan); got != "-" {
		t.Fatalf("Position(NoSpan) = %q", got)
	}
}

func TestCRLFAndBOMNormalization(t *testing.T) {
	fs := NewFileSet()
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("a: 1\r\nb: 2\r\n")...)
	id := fs.AddVirtual("win.json", raw)
	f := fs.Get(id)
	if string(f.Content) != "a: 1\nb: 2\n" {
		t.Fatalf("unexpected content %q", f.Content)
	}
	if f.Flags&FileHadBOM == 0 || f.Flags&FileNormalizedCRLF == 0 || f.Flags&FileVirtual == 0 {
		t.Fatalf("unexpected flags %08b", f.Flags)
	}
	if got := f.GetLine(2); got != "b: 2" {
		t.Fatalf("GetLine(2) = %q", got)
	}
}

func TestGetLineBounds(t *testing.T) {
	fs := NewFileSet()
	f := fs.Get(fs.AddVirtual("x", []byte("one\ntwo")))
	for line, want := range map[uint32]string{0: "", 1: "one", 2: "two", 3: ""} {
		if got := f.GetLine(line); got != want {
			t.Errorf("GetLine(%d) = %q, want %q", line, got, want)
		}
	}
}

func TestLoadFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	if err := os.WriteFile(path, []byte("{\"num-layers\": 24}\r\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	fs := NewFileSet()
	fs.SetBaseDir(dir)
	id, err := fs.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := fs.Position(Span{File: id, Start: 1, End: 2}); got != "model.json:1:2" {
		t.Fatalf("Position = %q", got)
	}
	if _, err := fs.Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSpanCover(t *testing.T) {
	a := Span{File: 1, Start: 4, End: 8}
	b := Span{File: 1, Start: 2, End: 6}
	if got := a.Cover(b); got != (Span{File: 1, Start: 2, End: 8}) {
		t.Fatalf("Cover = %v", got)
	}
	if got := a.Cover(Span{File: 2, Start: 0, End: 100}); got != a {
		t.Fatalf("cross-file Cover changed span: %v", got)
	}
	if NoSpan.Valid() || !a.Valid() {
		t.Fatal("Valid mismatch")
	}
}
