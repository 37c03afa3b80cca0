package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:faceoff_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if err := db.AutoMigrate(&Poll{}, &Response{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	clock := func() time.Time { return time.Unix(1766000000, 0).UTC() }
	store, err := NewStore(StoreConfig{Database: db, Clock: clock})
	if err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}
	return store, db
}

func mustCreatePoll(t *testing.T, store *Store, eventID, messageID string, eventTime time.Time) Poll {
	t.Helper()
	poll, err := store.CreatePoll(context.Background(), eventID, messageID, eventTime)
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	return poll
}

func TestCreatePollIsIdempotentPerEvent(t *testing.T) {
	store, db := newTestStore(t)
	eventTime := time.Date(2026, 9, 12, 19, 30, 0, 0, time.UTC)

	first := mustCreatePoll(t, store, "game-1", "msg-1", eventTime)
	if first.ID == 0 {
		t.Fatalf("expected a surrogate key on the created poll")
	}

	_, err := store.CreatePoll(context.Background(), "game-1", "msg-2", eventTime)
	if !errors.Is(err, ErrPollExists) {
		t.Fatalf("expected ErrPollExists, got %v", err)
	}

	var count int64
	if err := db.Model(&Poll{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count polls: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one poll, got %d", count)
	}
}

func TestPollLookups(t *testing.T) {
	store, _ := newTestStore(t)
	eventTime := time.Date(2026, 9, 12, 19, 30, 0, 0, time.UTC)
	created := mustCreatePoll(t, store, "game-1", "msg-1", eventTime)

	byEvent, found, err := store.PollByEventID(context.Background(), "game-1")
	if err != nil || !found {
		t.Fatalf("expected poll by event id, found=%v err=%v", found, err)
	}
	if byEvent.ID != created.ID {
		t.Fatalf("unexpected poll id %d", byEvent.ID)
	}

	byMessage, found, err := store.PollByMessageID(context.Background(), "msg-1")
	if err != nil || !found {
		t.Fatalf("expected poll by message id, found=%v err=%v", found, err)
	}
	if byMessage.ID != created.ID {
		t.Fatalf("unexpected poll id %d", byMessage.ID)
	}

	_, found, err = store.PollByEventID(context.Background(), "game-unknown")
	if err != nil {
		t.Fatalf("unexpected lookup error: %v", err)
	}
	if found {
		t.Fatalf("expected no poll for unknown event")
	}
}

func TestUpsertResponseReplacesExistingChoice(t *testing.T) {
	store, db := newTestStore(t)
	poll := mustCreatePoll(t, store, "game-1", "msg-1", time.Date(2026, 9, 12, 19, 30, 0, 0, time.UTC))

	ctx := context.Background()
	if err := store.UpsertResponse(ctx, poll.ID, "user-1", "Alice", ChoiceYes); err != nil {
		t.Fatalf("unexpected upsert error: %v", err)
	}
	if err := store.UpsertResponse(ctx, poll.ID, "user-1", "Alice", ChoiceMaybe); err != nil {
		t.Fatalf("unexpected upsert error: %v", err)
	}

	var responses []Response
	if err := db.Find(&responses).Error; err != nil {
		t.Fatalf("failed to load responses: %v", err)
	}
	if len(responses) != 1 {
		t.Fatalf("expected one response row, got %d", len(responses))
	}
	if responses[0].Choice != ChoiceMaybe {
		t.Fatalf("expected choice to be replaced with maybe, got %s", responses[0].Choice)
	}
}

func TestUpsertResponseRejectsInvalidChoice(t *testing.T) {
	store, _ := newTestStore(t)
	poll := mustCreatePoll(t, store, "game-1", "msg-1", time.Date(2026, 9, 12, 19, 30, 0, 0, time.UTC))

	err := store.UpsertResponse(context.Background(), poll.ID, "user-1", "Alice", Choice("if_needed"))
	if !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("expected ErrInvalidChoice, got %v", err)
	}
}

func TestDeleteResponseIsNoOpWhenAbsent(t *testing.T) {
	store, _ := newTestStore(t)
	poll := mustCreatePoll(t, store, "game-1", "msg-1", time.Date(2026, 9, 12, 19, 30, 0, 0, time.UTC))

	if err := store.DeleteResponse(context.Background(), poll.ID, "user-1"); err != nil {
		t.Fatalf("expected deleting an absent response to be a no-op, got %v", err)
	}
}

func TestTallyForPoll(t *testing.T) {
	store, _ := newTestStore(t)
	poll := mustCreatePoll(t, store, "game-1", "msg-1", time.Date(2026, 9, 12, 19, 30, 0, 0, time.UTC))

	ctx := context.Background()
	if err := store.UpsertResponse(ctx, poll.ID, "user-a", "A", ChoiceYes); err != nil {
		t.Fatalf("unexpected upsert error: %v", err)
	}
	if err := store.UpsertResponse(ctx, poll.ID, "user-b", "B", ChoiceYes); err != nil {
		t.Fatalf("unexpected upsert error: %v", err)
	}
	if err := store.UpsertResponse(ctx, poll.ID, "user-c", "C", ChoiceNo); err != nil {
		t.Fatalf("unexpected upsert error: %v", err)
	}

	tally, err := store.TallyForPoll(ctx, poll.ID)
	if err != nil {
		t.Fatalf("unexpected tally error: %v", err)
	}
	if tally.Yes != 2 || tally.No != 1 || tally.Maybe != 0 {
		t.Fatalf("unexpected tally %+v", tally)
	}
	if tally.Total() != 3 {
		t.Fatalf("unexpected total %d", tally.Total())
	}
}

func TestDueReminderQuery(t *testing.T) {
	store, _ := newTestStore(t)
	now := time.Date(2026, 9, 11, 20, 0, 0, 0, time.UTC)

	soon := mustCreatePoll(t, store, "game-soon", "msg-soon", now.Add(12*time.Hour))
	mustCreatePoll(t, store, "game-far", "msg-far", now.Add(72*time.Hour))
	reminded := mustCreatePoll(t, store, "game-done", "msg-done", now.Add(6*time.Hour))
	if err := store.MarkReminderSent(context.Background(), reminded.ID); err != nil {
		t.Fatalf("unexpected mark error: %v", err)
	}

	due, err := store.DueReminder(context.Background(), now.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("unexpected due query error: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected one due poll, got %d", len(due))
	}
	if due[0].ID != soon.ID {
		t.Fatalf("unexpected due poll %d", due[0].ID)
	}
}

func TestActivePollsExcludesPastEvents(t *testing.T) {
	store, _ := newTestStore(t)
	now := time.Date(2026, 9, 11, 20, 0, 0, 0, time.UTC)

	mustCreatePoll(t, store, "game-past", "msg-past", now.Add(-2*time.Hour))
	future := mustCreatePoll(t, store, "game-future", "msg-future", now.Add(48*time.Hour))

	active, err := store.ActivePolls(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected active query error: %v", err)
	}
	if len(active) != 1 || active[0].ID != future.ID {
		t.Fatalf("expected only the future poll, got %+v", active)
	}
}

func TestNextUpcomingPicksSoonestFutureEvent(t *testing.T) {
	store, _ := newTestStore(t)
	now := time.Date(2026, 9, 11, 20, 0, 0, 0, time.UTC)

	mustCreatePoll(t, store, "game-later", "msg-later", now.Add(96*time.Hour))
	soonest := mustCreatePoll(t, store, "game-next", "msg-next", now.Add(24*time.Hour))
	mustCreatePoll(t, store, "game-past", "msg-past", now.Add(-24*time.Hour))

	next, found, err := store.NextUpcoming(context.Background(), now)
	if err != nil || !found {
		t.Fatalf("expected an upcoming poll, found=%v err=%v", found, err)
	}
	if next.ID != soonest.ID {
		t.Fatalf("expected poll %d, got %d", soonest.ID, next.ID)
	}
}

func TestUpdateEventTimePersistsCorrection(t *testing.T) {
	store, _ := newTestStore(t)
	original := time.Date(2026, 9, 12, 19, 30, 0, 0, time.UTC)
	poll := mustCreatePoll(t, store, "game-1", "msg-1", original)

	corrected := original.Add(time.Hour)
	if err := store.UpdateEventTime(context.Background(), poll.ID, corrected); err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}

	stored, found, err := store.PollByEventID(context.Background(), "game-1")
	if err != nil || !found {
		t.Fatalf("expected poll, found=%v err=%v", found, err)
	}
	if !stored.EventTime.Equal(corrected) {
		t.Fatalf("expected event time %v, got %v", corrected, stored.EventTime)
	}
}

func TestResponsesCascadeWithPoll(t *testing.T) {
	store, db := newTestStore(t)
	poll := mustCreatePoll(t, store, "game-1", "msg-1", time.Date(2026, 9, 12, 19, 30, 0, 0, time.UTC))

	if err := store.UpsertResponse(context.Background(), poll.ID, "user-1", "Alice", ChoiceYes); err != nil {
		t.Fatalf("unexpected upsert error: %v", err)
	}

	if err := db.Delete(&Poll{}, poll.ID).Error; err != nil {
		t.Fatalf("failed to delete poll: %v", err)
	}

	var count int64
	if err := db.Model(&Response{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count responses: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected responses to cascade, got %d rows", count)
	}
}

func TestParseChoice(t *testing.T) {
	for _, valid := range []string{"yes", "no", "maybe"} {
		if _, err := ParseChoice(valid); err != nil {
			t.Fatalf("expected %q to parse, got %v", valid, err)
		}
	}
	if _, err := ParseChoice("if_needed"); !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("expected if_needed to be rejected, got %v", err)
	}
}
