package ledger

import (
	"errors"
	"fmt"
	"time"
)

// Choice enumerates the three possible responses to a poll. The stored value
// is the canonical name; surface glyphs are mapped onto it at the boundary.
type Choice string

const (
	ChoiceYes   Choice = "yes"
	ChoiceNo    Choice = "no"
	ChoiceMaybe Choice = "maybe"
)

// ErrInvalidChoice indicates a response value outside the closed enumeration.
var ErrInvalidChoice = errors.New("ledger: invalid choice")

// ParseChoice validates a raw stored value against the enumeration.
func ParseChoice(raw string) (Choice, error) {
	switch Choice(raw) {
	case ChoiceYes, ChoiceNo, ChoiceMaybe:
		return Choice(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidChoice, raw)
}

// Choices lists the enumeration in rendering order.
func Choices() []Choice {
	return []Choice{ChoiceYes, ChoiceNo, ChoiceMaybe}
}

// Poll binds one calendar event to one rendered chat message and tracks its
// reminder and time-correction state. Polls are never deleted; once the event
// time passes they simply drop out of the active queries.
type Poll struct {
	ID               uint      `gorm:"column:id;primaryKey"`
	EventID          string    `gorm:"column:event_id;size:190;not null;uniqueIndex:idx_polls_event_id"`
	SurfaceMessageID string    `gorm:"column:surface_message_id;size:190;not null;uniqueIndex:idx_polls_message_id"`
	EventTime        time.Time `gorm:"column:event_time;not null;index:idx_polls_event_time"`
	ReminderSent     bool      `gorm:"column:reminder_sent;not null;default:false"`
	CreatedAt        time.Time `gorm:"column:created_at"`
}

// TableName provides the explicit table binding for GORM.
func (Poll) TableName() string {
	return "polls"
}

// Response records one user's current choice for a poll. At most one row per
// (poll, user); a later write replaces the choice in place.
type Response struct {
	ID          uint      `gorm:"column:id;primaryKey"`
	PollID      uint      `gorm:"column:poll_id;not null;uniqueIndex:idx_responses_poll_user,priority:1"`
	UserID      string    `gorm:"column:user_id;size:190;not null;uniqueIndex:idx_responses_poll_user,priority:2"`
	DisplayName string    `gorm:"column:display_name;size:190;not null"`
	Choice      Choice    `gorm:"column:choice;size:16;not null"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`

	Poll Poll `gorm:"foreignKey:PollID;constraint:OnDelete:CASCADE"`
}

// TableName provides the explicit table binding for GORM.
func (Response) TableName() string {
	return "responses"
}

// Tally aggregates response counts for one poll.
type Tally struct {
	Yes   int
	No    int
	Maybe int
}

// Count returns the tally bucket for the given choice.
func (t Tally) Count(choice Choice) int {
	switch choice {
	case ChoiceYes:
		return t.Yes
	case ChoiceNo:
		return t.No
	case ChoiceMaybe:
		return t.Maybe
	}
	return 0
}

// Total returns the number of recorded responses across all choices.
func (t Tally) Total() int {
	return t.Yes + t.No + t.Maybe
}
