package calendar

import (
	"strings"
	"time"
)

// Event is a normalized occurrence from one calendar feed. Events are never
// persisted; every pass re-fetches them fresh, and two fetches for the same
// UID may disagree on Start. That disagreement is the change-detection signal.
type Event struct {
	UID         string
	Start       time.Time
	Summary     string
	Description string
	Location    string
	TeamName    string

	// Opponent is derived from an "AWAY @ HOME" summary; when the summary
	// does not match that shape it falls back to the raw summary.
	Opponent string
	// Home is true when the tracked team is the home side, false when away,
	// and nil when the summary shape did not allow a determination.
	Home *bool
}

// deriveMatchup extracts the opponent and home/away flag from a conventional
// "AWAY @ HOME" summary by case-insensitive matching of the tracked team name
// against the two halves.
func deriveMatchup(summary, teamName string) (string, *bool) {
	parts := strings.Split(summary, " @ ")
	if len(parts) != 2 || strings.TrimSpace(teamName) == "" {
		return summary, nil
	}

	awayTeam := strings.TrimSpace(parts[0])
	homeTeam := strings.TrimSpace(parts[1])
	needle := strings.ToLower(teamName)

	if strings.Contains(strings.ToLower(homeTeam), needle) {
		home := true
		return awayTeam, &home
	}
	if strings.Contains(strings.ToLower(awayTeam), needle) {
		home := false
		return homeTeam, &home
	}
	return summary, nil
}
