package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/faceoff/internal/calendar"
	"github.com/MarcoPoloResearchLab/faceoff/internal/ledger"
	"github.com/MarcoPoloResearchLab/faceoff/internal/surface"
)

// DetectChanges re-fetches every active poll's event from its feed and
// propagates significant schedule shifts: the rendered message gets a new
// timestamp and a replaced change annotation, responders get a follow-up
// mention, and the corrected time is persisted. An event missing from the
// feed is skipped, not treated as a change; shifts below the significance
// threshold are ignored entirely.
func (e *Engine) DetectChanges(ctx context.Context) error {
	now := e.clock()

	log := e.logger.With(
		zap.String("pass", "changes"),
		zap.String("run_id", uuid.NewString()))

	polls, err := e.store.ActivePolls(ctx, now)
	if err != nil {
		log.Error("active polls query failed", zap.Error(err))
		return err
	}

	for _, poll := range polls {
		if err := e.checkPoll(ctx, log, poll); err != nil {
			log.Error("change check failed", zap.Uint("poll_id", poll.ID), zap.Error(err))
		}
	}
	return nil
}

func (e *Engine) checkPoll(ctx context.Context, log *zap.Logger, poll ledger.Poll) error {
	event, found := e.findEvent(ctx, poll.EventID)
	if !found {
		// The feed may have removed or renamed the event; not a time change.
		log.Info("event no longer in any feed", zap.String("event_id", poll.EventID))
		return nil
	}

	delta := event.Start.Sub(poll.EventTime)
	if delta < 0 {
		delta = -delta
	}
	if delta < e.changeMinDelta {
		return nil
	}

	change := surface.TimeChange{Old: poll.EventTime, New: event.Start}
	if err := e.applyChange(ctx, poll, event, change); err != nil {
		if errors.Is(err, surface.ErrMessageMissing) {
			log.Warn("poll message missing, skipping change propagation",
				zap.Uint("poll_id", poll.ID),
				zap.String("message_id", poll.SurfaceMessageID))
			return nil
		}
		return err
	}

	if err := e.store.UpdateEventTime(ctx, poll.ID, event.Start); err != nil {
		return err
	}

	log.Info("event time corrected",
		zap.Uint("poll_id", poll.ID),
		zap.String("event_id", poll.EventID),
		zap.Time("old_time", change.Old),
		zap.Time("new_time", change.New))
	return nil
}

// applyChange rewrites the rendered poll with the new time and annotation,
// then notifies responders. Parsing the existing description strips any prior
// annotation, so re-detecting an already-applied change replaces rather than
// accumulates.
func (e *Engine) applyChange(ctx context.Context, poll ledger.Poll, event calendar.Event, change surface.TimeChange) error {
	embed, err := e.surface.FetchEmbed(ctx, poll.SurfaceMessageID)
	if err != nil {
		return fmt.Errorf("fetch poll message: %w", err)
	}

	desc := surface.ParseDescription(embed.Description)
	desc.Change = &change
	embed.Description = desc.Render()
	embed.Timestamp = event.Start

	if err := e.surface.EditEmbed(ctx, poll.SurfaceMessageID, embed); err != nil {
		return fmt.Errorf("edit poll message: %w", err)
	}

	responses, err := e.store.ResponsesForPoll(ctx, poll.ID)
	if err != nil {
		return err
	}
	if len(responses) == 0 {
		return nil
	}

	notice := e.timeChangeNotice(event, change, responses)
	if err := e.surface.Reply(ctx, poll.SurfaceMessageID, notice); err != nil {
		return fmt.Errorf("send change notice: %w", err)
	}
	return nil
}

// findEvent resolves an event id across every tracked source.
func (e *Engine) findEvent(ctx context.Context, eventID string) (calendar.Event, bool) {
	for _, source := range e.sources {
		if event, ok := source.EventByID(ctx, eventID); ok {
			return event, true
		}
	}
	return calendar.Event{}, false
}
