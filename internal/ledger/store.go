package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase = errors.New("database handle is required")

	// ErrPollExists reports that a poll for the same event id is already
	// tracked. Duplicate creation attempts are expected under re-entrant
	// passes and are resolved by the event_id uniqueness constraint.
	ErrPollExists = errors.New("ledger: poll already exists for event")
)

// StoreError wraps a store failure with a stable operation code.
type StoreError struct {
	code string
	err  error
}

func (e *StoreError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *StoreError) Unwrap() error {
	return e.err
}

// Code returns the stable operation code for the failure.
func (e *StoreError) Code() string {
	return e.code
}

const (
	opStoreNew       = "ledger.store.new"
	opCreatePoll     = "ledger.create_poll"
	opLookupPoll     = "ledger.lookup_poll"
	opListPolls      = "ledger.list_polls"
	opUpdatePoll     = "ledger.update_poll"
	opUpsertResponse = "ledger.upsert_response"
	opDeleteResponse = "ledger.delete_response"
	opListResponses  = "ledger.list_responses"
	opTally          = "ledger.tally"
)

func newStoreError(operation, reason string, cause error) error {
	return &StoreError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// StoreConfig carries the dependencies for constructing a Store.
type StoreConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Store is the single owner of persisted poll and response state. All four
// core write paths go through it; concurrent writers rely on the storage
// uniqueness constraints rather than in-memory locks.
type Store struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewStore validates the configuration and returns a Store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, newStoreError(opStoreNew, "missing_database", errMissingDatabase)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{db: cfg.Database, clock: clock, logger: logger}, nil
}

// CreatePoll persists a new poll for the given event. When a poll for the
// event id already exists the insert is ignored at the storage layer and
// ErrPollExists is returned, making re-entrant scheduler passes idempotent.
func (s *Store) CreatePoll(ctx context.Context, eventID, surfaceMessageID string, eventTime time.Time) (Poll, error) {
	poll := Poll{
		EventID:          eventID,
		SurfaceMessageID: surfaceMessageID,
		EventTime:        eventTime,
		CreatedAt:        s.clock().UTC(),
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(&poll)
	if result.Error != nil {
		return Poll{}, newStoreError(opCreatePoll, "insert_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return Poll{}, fmt.Errorf("%w: %s", ErrPollExists, eventID)
	}

	s.logger.Info("poll created",
		zap.Uint("poll_id", poll.ID),
		zap.String("event_id", eventID),
		zap.Time("event_time", eventTime))
	return poll, nil
}

// PollByEventID looks up the poll tracking the given event, if any.
func (s *Store) PollByEventID(ctx context.Context, eventID string) (Poll, bool, error) {
	return s.findPoll(ctx, "event_id = ?", eventID)
}

// PollByMessageID looks up the poll rendered at the given surface message.
func (s *Store) PollByMessageID(ctx context.Context, surfaceMessageID string) (Poll, bool, error) {
	return s.findPoll(ctx, "surface_message_id = ?", surfaceMessageID)
}

func (s *Store) findPoll(ctx context.Context, query string, arg any) (Poll, bool, error) {
	var poll Poll
	err := s.db.WithContext(ctx).Where(query, arg).Take(&poll).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Poll{}, false, nil
	}
	if err != nil {
		return Poll{}, false, newStoreError(opLookupPoll, "select_failed", err)
	}
	return poll, true, nil
}

// NextUpcoming returns the soonest poll whose event is still in the future.
func (s *Store) NextUpcoming(ctx context.Context, now time.Time) (Poll, bool, error) {
	var poll Poll
	err := s.db.WithContext(ctx).
		Where("event_time > ?", now).
		Order("event_time ASC").
		Take(&poll).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Poll{}, false, nil
	}
	if err != nil {
		return Poll{}, false, newStoreError(opLookupPoll, "select_failed", err)
	}
	return poll, true, nil
}

// DueReminder lists polls that have not been reminded and whose event time
// falls at or before the cutoff.
func (s *Store) DueReminder(ctx context.Context, cutoff time.Time) ([]Poll, error) {
	var polls []Poll
	err := s.db.WithContext(ctx).
		Where("reminder_sent = ? AND event_time <= ?", false, cutoff).
		Order("event_time ASC").
		Find(&polls).Error
	if err != nil {
		return nil, newStoreError(opListPolls, "select_failed", err)
	}
	return polls, nil
}

// ActivePolls lists polls whose event has not yet occurred.
func (s *Store) ActivePolls(ctx context.Context, now time.Time) ([]Poll, error) {
	var polls []Poll
	err := s.db.WithContext(ctx).
		Where("event_time > ?", now).
		Order("event_time ASC").
		Find(&polls).Error
	if err != nil {
		return nil, newStoreError(opListPolls, "select_failed", err)
	}
	return polls, nil
}

// MarkReminderSent flips the monotonic reminder flag for a poll.
func (s *Store) MarkReminderSent(ctx context.Context, pollID uint) error {
	err := s.db.WithContext(ctx).
		Model(&Poll{}).
		Where("id = ?", pollID).
		Update("reminder_sent", true).Error
	if err != nil {
		return newStoreError(opUpdatePoll, "reminder_update_failed", err)
	}
	return nil
}

// UpdateEventTime persists a corrected event time for a poll.
func (s *Store) UpdateEventTime(ctx context.Context, pollID uint, eventTime time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&Poll{}).
		Where("id = ?", pollID).
		Update("event_time", eventTime).Error
	if err != nil {
		return newStoreError(opUpdatePoll, "time_update_failed", err)
	}
	return nil
}

// UpsertResponse records or replaces a user's choice for a poll. The
// (poll_id, user_id) uniqueness constraint resolves concurrent writes; a
// conflicting insert updates choice, display name and updated_at in place.
func (s *Store) UpsertResponse(ctx context.Context, pollID uint, userID, displayName string, choice Choice) error {
	if _, err := ParseChoice(string(choice)); err != nil {
		return newStoreError(opUpsertResponse, "invalid_choice", err)
	}

	now := s.clock().UTC()
	response := Response{
		PollID:      pollID,
		UserID:      userID,
		DisplayName: displayName,
		Choice:      choice,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "poll_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"choice", "display_name", "updated_at"}),
		}).
		Create(&response).Error
	if err != nil {
		return newStoreError(opUpsertResponse, "upsert_failed", err)
	}
	return nil
}

// DeleteResponse removes a user's response for a poll. Deleting an absent
// response is a no-op, not an error.
func (s *Store) DeleteResponse(ctx context.Context, pollID uint, userID string) error {
	err := s.db.WithContext(ctx).
		Where("poll_id = ? AND user_id = ?", pollID, userID).
		Delete(&Response{}).Error
	if err != nil {
		return newStoreError(opDeleteResponse, "delete_failed", err)
	}
	return nil
}

// ResponsesForPoll lists all responses for a poll, grouped by choice and
// ordered by display name for stable rendering.
func (s *Store) ResponsesForPoll(ctx context.Context, pollID uint) ([]Response, error) {
	var responses []Response
	err := s.db.WithContext(ctx).
		Where("poll_id = ?", pollID).
		Order("choice ASC, display_name ASC").
		Find(&responses).Error
	if err != nil {
		return nil, newStoreError(opListResponses, "select_failed", err)
	}
	return responses, nil
}

// TallyForPoll aggregates response counts by choice for a poll.
func (s *Store) TallyForPoll(ctx context.Context, pollID uint) (Tally, error) {
	type bucket struct {
		Choice Choice
		Count  int
	}

	var buckets []bucket
	err := s.db.WithContext(ctx).
		Model(&Response{}).
		Select("choice, COUNT(*) AS count").
		Where("poll_id = ?", pollID).
		Group("choice").
		Scan(&buckets).Error
	if err != nil {
		return Tally{}, newStoreError(opTally, "select_failed", err)
	}

	var tally Tally
	for _, b := range buckets {
		switch b.Choice {
		case ChoiceYes:
			tally.Yes = b.Count
		case ChoiceNo:
			tally.No = b.Count
		case ChoiceMaybe:
			tally.Maybe = b.Count
		}
	}
	return tally, nil
}
