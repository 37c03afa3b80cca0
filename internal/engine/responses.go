package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/faceoff/internal/ledger"
	"github.com/MarcoPoloResearchLab/faceoff/internal/surface"
)

// HandleToggleAdd processes a reaction-add toggle on a rendered poll. Glyphs
// outside the choice set, toggles from the surface itself, and messages that
// are not tracked polls are all ignored without error. A resolved toggle
// clears the user's other choice glyphs, upserts the response, and re-renders
// the tally.
func (e *Engine) HandleToggleAdd(ctx context.Context, messageID, userID, displayName, glyph string) error {
	if userID == e.surface.SelfUserID() {
		return nil
	}

	choice, ok := choiceForGlyph(glyph)
	if !ok {
		return nil
	}

	poll, tracked, err := e.store.PollByMessageID(ctx, messageID)
	if err != nil {
		return err
	}
	if !tracked {
		return nil
	}

	// At most one active choice per user: clear the other glyphs first. A
	// permission failure here must not block the state update.
	for _, other := range ledger.Choices() {
		if other == choice {
			continue
		}
		if err := e.surface.RemoveUserToggle(ctx, messageID, userID, glyphForChoice(other)); err != nil {
			if errors.Is(err, surface.ErrForbidden) {
				e.logger.Warn("toggle clear forbidden",
					zap.String("message_id", messageID),
					zap.String("user_id", userID))
				continue
			}
			e.logger.Warn("toggle clear failed",
				zap.String("message_id", messageID),
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}

	if err := e.store.UpsertResponse(ctx, poll.ID, userID, displayName, choice); err != nil {
		return err
	}

	e.logger.Debug("response recorded",
		zap.Uint("poll_id", poll.ID),
		zap.String("user_id", userID),
		zap.String("choice", string(choice)))

	return e.refreshTally(ctx, poll)
}

// HandleToggleRemove processes a reaction-remove toggle: delete the user's
// response if present, then re-render. Removal for a user with no response is
// a no-op.
func (e *Engine) HandleToggleRemove(ctx context.Context, messageID, userID string) error {
	poll, tracked, err := e.store.PollByMessageID(ctx, messageID)
	if err != nil {
		return err
	}
	if !tracked {
		return nil
	}

	if err := e.store.DeleteResponse(ctx, poll.ID, userID); err != nil {
		return err
	}

	return e.refreshTally(ctx, poll)
}

// refreshTally re-renders a poll's tally fields from a fresh aggregate read.
func (e *Engine) refreshTally(ctx context.Context, poll ledger.Poll) error {
	responses, err := e.store.ResponsesForPoll(ctx, poll.ID)
	if err != nil {
		return err
	}

	embed, err := e.surface.FetchEmbed(ctx, poll.SurfaceMessageID)
	if err != nil {
		return fmt.Errorf("fetch poll message: %w", err)
	}

	embed.Fields = e.tallyFields(responses)
	if err := e.surface.EditEmbed(ctx, poll.SurfaceMessageID, embed); err != nil {
		return fmt.Errorf("edit poll message: %w", err)
	}
	return nil
}
