package engine

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/faceoff/internal/calendar"
	"github.com/MarcoPoloResearchLab/faceoff/internal/ledger"
	"github.com/MarcoPoloResearchLab/faceoff/internal/surface"
)

var testNow = time.Date(2026, 9, 5, 12, 0, 0, 0, time.UTC)

type removeCall struct {
	messageID string
	userID    string
	glyph     string
}

// fakeSurface is an in-memory chat surface; tests inject failures through the
// missing and forbidClear knobs.
type fakeSurface struct {
	selfID      string
	nextID      int
	messages    map[string]surface.Embed
	replies     map[string][]string
	seeded      map[string][]string
	removed     []removeCall
	missing     map[string]bool
	forbidClear bool
	replyErr    error
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{
		selfID:   "bot-user",
		messages: make(map[string]surface.Embed),
		replies:  make(map[string][]string),
		seeded:   make(map[string][]string),
		missing:  make(map[string]bool),
	}
}

func (f *fakeSurface) SendEmbed(_ context.Context, embed surface.Embed) (string, error) {
	f.nextID++
	id := fmt.Sprintf("msg-%d", f.nextID)
	f.messages[id] = embed
	return id, nil
}

func (f *fakeSurface) FetchEmbed(_ context.Context, messageID string) (surface.Embed, error) {
	if f.missing[messageID] {
		return surface.Embed{}, surface.ErrMessageMissing
	}
	embed, ok := f.messages[messageID]
	if !ok {
		return surface.Embed{}, surface.ErrMessageMissing
	}
	return embed, nil
}

func (f *fakeSurface) EditEmbed(_ context.Context, messageID string, embed surface.Embed) error {
	if f.missing[messageID] {
		return surface.ErrMessageMissing
	}
	f.messages[messageID] = embed
	return nil
}

func (f *fakeSurface) Reply(_ context.Context, messageID, content string) error {
	if f.missing[messageID] {
		return surface.ErrMessageMissing
	}
	if f.replyErr != nil {
		return f.replyErr
	}
	f.replies[messageID] = append(f.replies[messageID], content)
	return nil
}

func (f *fakeSurface) AddToggle(_ context.Context, messageID, glyph string) error {
	f.seeded[messageID] = append(f.seeded[messageID], glyph)
	return nil
}

func (f *fakeSurface) RemoveUserToggle(_ context.Context, messageID, userID, glyph string) error {
	if f.forbidClear {
		return surface.ErrForbidden
	}
	f.removed = append(f.removed, removeCall{messageID: messageID, userID: userID, glyph: glyph})
	return nil
}

func (f *fakeSurface) SelfUserID() string {
	return f.selfID
}

// fakeSource serves a fixed event list; tests mutate events between passes to
// simulate feed updates.
type fakeSource struct {
	team   string
	events []calendar.Event
}

func (f *fakeSource) TeamName() string {
	return f.team
}

func (f *fakeSource) EventsOnDate(ctx context.Context, day time.Time) []calendar.Event {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return f.EventsInRange(ctx, start, start.Add(24*time.Hour))
}

func (f *fakeSource) EventsInRange(_ context.Context, start, end time.Time) []calendar.Event {
	var out []calendar.Event
	for _, ev := range f.events {
		if !ev.Start.Before(start) && ev.Start.Before(end) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func (f *fakeSource) EventByID(_ context.Context, uid string) (calendar.Event, bool) {
	for _, ev := range f.events {
		if ev.UID == uid {
			return ev, true
		}
	}
	return calendar.Event{}, false
}

func newTestStore(t *testing.T) *ledger.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:engine_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&ledger.Poll{}, &ledger.Response{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	store, err := ledger.NewStore(ledger.StoreConfig{
		Database: db,
		Clock:    func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}
	return store
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *fakeSurface, *fakeSource) {
	t.Helper()

	chat := newFakeSurface()
	source := &fakeSource{team: "Mighty Pucks"}

	if cfg.Store == nil {
		cfg.Store = newTestStore(t)
	}
	cfg.Surface = chat
	cfg.Sources = []EventSource{source}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return testNow }
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	eng, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected engine error: %v", err)
	}
	return eng, chat, source
}

func gameEvent(uid string, start time.Time) calendar.Event {
	home := true
	return calendar.Event{
		UID:      uid,
		Start:    start,
		Summary:  "Ice Hawks @ Mighty Pucks",
		Location: "Home Rink",
		TeamName: "Mighty Pucks",
		Opponent: "Ice Hawks",
		Home:     &home,
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	store := newTestStore(t)
	chat := newFakeSurface()
	source := &fakeSource{team: "Mighty Pucks"}

	if _, err := New(Config{Surface: chat, Sources: []EventSource{source}}); err == nil {
		t.Fatalf("expected missing store to be rejected")
	}
	if _, err := New(Config{Store: store, Sources: []EventSource{source}}); err == nil {
		t.Fatalf("expected missing surface to be rejected")
	}
	if _, err := New(Config{Store: store, Surface: chat}); err == nil {
		t.Fatalf("expected missing sources to be rejected")
	}
}

func TestChoiceGlyphMapping(t *testing.T) {
	cases := map[string]ledger.Choice{
		GlyphYes:   ledger.ChoiceYes,
		GlyphNo:    ledger.ChoiceNo,
		GlyphMaybe: ledger.ChoiceMaybe,
	}
	for glyph, want := range cases {
		got, ok := choiceForGlyph(glyph)
		if !ok || got != want {
			t.Fatalf("expected %q to resolve to %s, got %s ok=%v", glyph, want, got, ok)
		}
	}

	if _, ok := choiceForGlyph("👍"); ok {
		t.Fatalf("expected an unmapped glyph to be a distinguishable ignore")
	}
}
