package surface

import (
	"strings"
	"testing"
	"time"
)

func TestRenderWithoutChangeIsBaseOnly(t *testing.T) {
	desc := Description{Base: "**Saturday, September 12 at 07:30 PM**\n\nOpponent: Ice Hawks"}
	if got := desc.Render(); got != desc.Base {
		t.Fatalf("expected base-only render, got %q", got)
	}
}

func TestRenderAppendsSingleAnnotation(t *testing.T) {
	old := time.Date(2026, 9, 12, 19, 30, 0, 0, time.UTC)
	desc := Description{
		Base:   "base text",
		Change: &TimeChange{Old: old, New: old.Add(time.Hour)},
	}

	rendered := desc.Render()
	if strings.Count(rendered, timeChangeMarker) != 1 {
		t.Fatalf("expected exactly one annotation, got %q", rendered)
	}
	if !strings.Contains(rendered, "07:30 PM") || !strings.Contains(rendered, "08:30 PM") {
		t.Fatalf("expected old and new times in %q", rendered)
	}
	if !strings.Contains(rendered, "(later)") {
		t.Fatalf("expected direction in %q", rendered)
	}
}

func TestParseStripsExistingAnnotation(t *testing.T) {
	old := time.Date(2026, 9, 12, 19, 30, 0, 0, time.UTC)
	first := Description{
		Base:   "base text",
		Change: &TimeChange{Old: old, New: old.Add(time.Hour)},
	}

	parsed := ParseDescription(first.Render())
	if parsed.Base != "base text" {
		t.Fatalf("expected annotation stripped, got base %q", parsed.Base)
	}
	if parsed.Change != nil {
		t.Fatalf("expected no structured change after parse")
	}
}

func TestReapplyingChangeReplacesAnnotation(t *testing.T) {
	old := time.Date(2026, 9, 12, 19, 30, 0, 0, time.UTC)
	rendered := Description{
		Base:   "base text",
		Change: &TimeChange{Old: old, New: old.Add(time.Hour)},
	}.Render()

	// Re-detecting the same (or a further) change parses the rendered text
	// and re-assigns the annotation; the text must never accumulate.
	for i := 0; i < 3; i++ {
		desc := ParseDescription(rendered)
		desc.Change = &TimeChange{Old: old, New: old.Add(2 * time.Hour)}
		rendered = desc.Render()
	}

	if strings.Count(rendered, timeChangeMarker) != 1 {
		t.Fatalf("expected one annotation after repeated application, got %q", rendered)
	}
	if !strings.Contains(rendered, "09:30 PM") {
		t.Fatalf("expected the latest time in %q", rendered)
	}
}

func TestDirectionFromSign(t *testing.T) {
	old := time.Date(2026, 9, 12, 19, 30, 0, 0, time.UTC)

	later := TimeChange{Old: old, New: old.Add(time.Minute)}
	if later.Direction() != "later" {
		t.Fatalf("expected later, got %s", later.Direction())
	}

	earlier := TimeChange{Old: old, New: old.Add(-time.Minute)}
	if earlier.Direction() != "earlier" {
		t.Fatalf("expected earlier, got %s", earlier.Direction())
	}
}

func TestMention(t *testing.T) {
	if got := Mention("123"); got != "<@123>" {
		t.Fatalf("unexpected mention %q", got)
	}
}
