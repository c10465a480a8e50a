package ui

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"trainplan/internal/pipeline"
)

func feed(m *progressModel, evs ...pipeline.Event) {
	for _, ev := range evs {
		m.Update(eventMsg(ev))
	}
}

func TestProgressStatuses(t *testing.T) {
	m := NewProgressModel("checking candidates", []string{"a.json", "b.json", "c.json"}, nil).(*progressModel)
	feed(m,
		pipeline.Event{Request: "a.json", Stage: pipeline.StageSchema, Status: pipeline.StatusWorking},
		pipeline.Event{Request: "b.json", Stage: pipeline.StageRules, Status: pipeline.StatusError},
		pipeline.Event{Request: "c.json", Stage: pipeline.StageEmit, Status: pipeline.StatusDone},
		pipeline.Event{Request: "unknown.json", Stage: pipeline.StageLoad, Status: pipeline.StatusWorking},
	)

	want := []string{"validating", "rejected", "accepted"}
	for i, it := range m.items {
		if it.status != want[i] {
			t.Errorf("%s: status %q, want %q", it.name, it.status, want[i])
		}
	}
	// terminal states stick
	feed(m, pipeline.Event{Request: "b.json", Stage: pipeline.StageDerive, Status: pipeline.StatusWorking})
	if m.items[1].status != "rejected" {
		t.Errorf("rejected candidate changed to %q", m.items[1].status)
	}

	view := m.View()
	for _, s := range []string{"checking candidates (2/3)", "a.json", "validating", "rejected"} {
		if !strings.Contains(view, s) {
			t.Errorf("view lacks %q:\n%s", s, view)
		}
	}
}

func TestProgressPercent(t *testing.T) {
	m := NewProgressModel("x", []string{"a", "b"}, nil).(*progressModel)
	feed(m,
		pipeline.Event{Request: "a", Stage: pipeline.StageMerge, Status: pipeline.StatusDone},
		pipeline.Event{Request: "b", Status: pipeline.StatusCached},
	)
	// a: 2 of 6 stages, b: cached
	want := (2.0/6.0 + 1.0) / 2
	if got := m.percent(); got < want-1e-9 || got > want+1e-9 {
		t.Errorf("percent = %v, want %v", got, want)
	}
}

func TestDoneQuits(t *testing.T) {
	m := NewProgressModel("x", []string{"a"}, nil).(*progressModel)
	if _, cmd := m.Update(doneMsg{}); cmd == nil || !m.done {
		t.Fatalf("doneMsg must quit")
	}
	if !strings.Contains(m.View(), "done: x") {
		t.Errorf("view after done:\n%s", m.View())
	}
}

func TestTruncate(t *testing.T) {
	got := truncate("configs/very-long-candidate-name.json", 12)
	if got != "configs/v..." {
		t.Errorf("truncate = %q", got)
	}
	if w := runewidth.StringWidth(got); w != 12 {
		t.Errorf("truncated width = %d, want 12", w)
	}
	if got := truncate("конфиг-кандидат", 8); runewidth.StringWidth(got) > 8 || !strings.HasSuffix(got, "...") {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("short", 12); got != "short" {
		t.Errorf("truncate = %q", got)
	}
}
