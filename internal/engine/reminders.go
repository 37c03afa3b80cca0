package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/faceoff/internal/ledger"
	"github.com/MarcoPoloResearchLab/faceoff/internal/surface"
)

// RemindDue sends a reminder for every poll whose event time has entered the
// reminder window and that has not been reminded yet. Each poll gets at most
// one reminder: the flag is set after a successful send, and also when the
// anchor message is permanently gone, so a deleted poll message is never
// retried forever. Transient send failures leave the flag unset and are
// retried on the next pass.
func (e *Engine) RemindDue(ctx context.Context) error {
	now := e.clock()

	log := e.logger.With(
		zap.String("pass", "remind"),
		zap.String("run_id", uuid.NewString()))

	polls, err := e.store.DueReminder(ctx, now.Add(e.reminderLead))
	if err != nil {
		log.Error("due reminder query failed", zap.Error(err))
		return err
	}

	for _, poll := range polls {
		err := e.remind(ctx, poll)
		switch {
		case err == nil:
			log.Info("reminder sent", zap.Uint("poll_id", poll.ID))
		case errors.Is(err, surface.ErrMessageMissing):
			log.Warn("poll message missing, marking reminder sent anyway",
				zap.Uint("poll_id", poll.ID),
				zap.String("message_id", poll.SurfaceMessageID))
		default:
			log.Error("reminder failed", zap.Uint("poll_id", poll.ID), zap.Error(err))
			continue
		}

		if err := e.store.MarkReminderSent(ctx, poll.ID); err != nil {
			log.Error("marking reminder sent failed", zap.Uint("poll_id", poll.ID), zap.Error(err))
		}
	}
	return nil
}

// RemindNext sends an immediate reminder for the soonest upcoming poll
// without marking it reminded. It backs the operator's manual reminder
// command.
func (e *Engine) RemindNext(ctx context.Context) (ledger.Poll, error) {
	poll, found, err := e.store.NextUpcoming(ctx, e.clock())
	if err != nil {
		return ledger.Poll{}, err
	}
	if !found {
		return ledger.Poll{}, ErrNoUpcomingPoll
	}

	if err := e.remind(ctx, poll); err != nil {
		return ledger.Poll{}, err
	}
	return poll, nil
}

func (e *Engine) remind(ctx context.Context, poll ledger.Poll) error {
	tally, err := e.store.TallyForPoll(ctx, poll.ID)
	if err != nil {
		return err
	}

	hoursUntil := int(poll.EventTime.Sub(e.clock()).Hours())
	text := reminderText(hoursUntil, tally)

	if err := e.surface.Reply(ctx, poll.SurfaceMessageID, text); err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}
	return nil
}
