// Package surface defines the chat-surface boundary: the value types a poll
// renders into and the operations the reconciliation core needs from a chat
// client. Implementations live elsewhere; the core only sees this interface.
package surface

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMessageMissing reports that the rendered message no longer exists.
	// Callers treat it as terminal for the pending action on that poll.
	ErrMessageMissing = errors.New("surface: message missing")
	// ErrForbidden reports a permission failure. Toggle clearing tolerates
	// it; nothing in the core propagates it.
	ErrForbidden = errors.New("surface: forbidden")
)

// Field is one labeled column of a rendered poll.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Embed is the rich message a poll renders into.
type Embed struct {
	Title       string
	Description string
	Timestamp   time.Time
	Fields      []Field
	Footer      string
}

// Surface is the outbound chat interface, bound to one configured channel.
type Surface interface {
	// SendEmbed posts a new rich message and returns its surface message id.
	SendEmbed(ctx context.Context, embed Embed) (string, error)
	// FetchEmbed reads back the current rendered state of a message.
	FetchEmbed(ctx context.Context, messageID string) (Embed, error)
	// EditEmbed replaces the rendered state of an existing message.
	EditEmbed(ctx context.Context, messageID string, embed Embed) error
	// Reply posts a message anchored to an existing one.
	Reply(ctx context.Context, messageID, content string) error
	// AddToggle seeds a choice glyph on a message as an available toggle.
	AddToggle(ctx context.Context, messageID, glyph string) error
	// RemoveUserToggle clears one user's toggle of the given glyph.
	RemoveUserToggle(ctx context.Context, messageID, userID, glyph string) error
	// SelfUserID identifies the surface's own actor, so the core can ignore
	// its own seeded toggles.
	SelfUserID() string
}

// Mention renders a mention-style reference to a user.
func Mention(userID string) string {
	return fmt.Sprintf("<@%s>", userID)
}
