package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/faceoff/internal/calendar"
	"github.com/MarcoPoloResearchLab/faceoff/internal/ledger"
)

// PollRef identifies one event touched by a reconciliation pass, for operator
// feedback.
type PollRef struct {
	TeamName  string
	Opponent  string
	EventTime time.Time
}

// ReconcileOutcome reports what a single reconciliation pass did.
type ReconcileOutcome struct {
	Created  []PollRef
	Existing []PollRef
}

// Reconcile lists events on the day dayOffset days from now, for every
// tracked source, and creates a poll for each event not already tracked.
// Re-running the pass against the same window is idempotent: the event_id
// uniqueness constraint makes a duplicate creation a no-op.
func (e *Engine) Reconcile(ctx context.Context, dayOffset int) (ReconcileOutcome, error) {
	now := e.clock().In(e.loc)
	targetDay := now.AddDate(0, 0, dayOffset)

	log := e.logger.With(
		zap.String("pass", "reconcile"),
		zap.String("run_id", uuid.NewString()),
		zap.Int("day_offset", dayOffset))
	log.Info("reconciliation pass started", zap.Time("target_day", targetDay))

	var outcome ReconcileOutcome
	for _, source := range e.sources {
		for _, event := range source.EventsOnDate(ctx, targetDay) {
			ref := PollRef{TeamName: event.TeamName, Opponent: event.Opponent, EventTime: event.Start}

			_, tracked, err := e.store.PollByEventID(ctx, event.UID)
			if err != nil {
				log.Error("poll lookup failed", zap.String("event_id", event.UID), zap.Error(err))
				continue
			}
			if tracked {
				outcome.Existing = append(outcome.Existing, ref)
				continue
			}

			if err := e.createPoll(ctx, event); err != nil {
				if errors.Is(err, ledger.ErrPollExists) {
					// Another interleaved pass won the insert; the
					// storage constraint is the arbiter here.
					outcome.Existing = append(outcome.Existing, ref)
					continue
				}
				log.Error("poll creation failed", zap.String("event_id", event.UID), zap.Error(err))
				continue
			}
			outcome.Created = append(outcome.Created, ref)
		}
	}

	log.Info("reconciliation pass finished",
		zap.Int("created", len(outcome.Created)),
		zap.Int("existing", len(outcome.Existing)))
	return outcome, nil
}

// CreateNextPoll creates a poll for the given source's soonest event within
// the next 30 days. It backs the operator's manual poll command.
func (e *Engine) CreateNextPoll(ctx context.Context, sourceIndex int) (PollRef, error) {
	if sourceIndex < 0 || sourceIndex >= len(e.sources) {
		return PollRef{}, fmt.Errorf("engine: no source at index %d", sourceIndex)
	}
	source := e.sources[sourceIndex]

	now := e.clock().In(e.loc)
	events := source.EventsInRange(ctx, now, now.AddDate(0, 0, 30))
	if len(events) == 0 {
		return PollRef{}, fmt.Errorf("engine: no upcoming events for %s in the next 30 days", source.TeamName())
	}

	event := events[0]
	if _, tracked, err := e.store.PollByEventID(ctx, event.UID); err != nil {
		return PollRef{}, err
	} else if tracked {
		return PollRef{}, fmt.Errorf("%w: %s", ledger.ErrPollExists, event.UID)
	}

	if err := e.createPoll(ctx, event); err != nil {
		return PollRef{}, err
	}
	return PollRef{TeamName: event.TeamName, Opponent: event.Opponent, EventTime: event.Start}, nil
}

// createPoll renders and sends the initial poll message, seeds the three
// choice toggles, and persists the tracking row.
func (e *Engine) createPoll(ctx context.Context, event calendar.Event) error {
	messageID, err := e.surface.SendEmbed(ctx, e.initialEmbed(event))
	if err != nil {
		return fmt.Errorf("send poll message: %w", err)
	}

	for _, choice := range ledger.Choices() {
		if err := e.surface.AddToggle(ctx, messageID, glyphForChoice(choice)); err != nil {
			// The poll still works without a seeded glyph; users can add
			// the reaction themselves.
			e.logger.Warn("toggle seed failed",
				zap.String("message_id", messageID),
				zap.String("glyph", glyphForChoice(choice)),
				zap.Error(err))
		}
	}

	if _, err := e.store.CreatePoll(ctx, event.UID, messageID, event.Start); err != nil {
		return err
	}

	e.logger.Info("poll opened",
		zap.String("event_id", event.UID),
		zap.String("team", event.TeamName),
		zap.Time("event_time", event.Start))
	return nil
}
