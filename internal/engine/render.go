package engine

import (
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/faceoff/internal/calendar"
	"github.com/MarcoPoloResearchLab/faceoff/internal/ledger"
	"github.com/MarcoPoloResearchLab/faceoff/internal/surface"
)

const (
	eventTimeLayout = "Monday, January 02 at 03:04 PM"
	eventDateLayout = "January 02"
	clockLayout     = "03:04 PM"

	pollFooter = "React with ✅, ❌, or 🤷 to RSVP"
)

// initialEmbed renders a fresh poll for an event: title, schedule details,
// and the three zero-count choice fields.
func (e *Engine) initialEmbed(event calendar.Event) surface.Embed {
	location := event.Location
	if strings.TrimSpace(location) == "" {
		location = "TBD"
	}

	desc := surface.Description{
		Base: fmt.Sprintf("**%s**\n\nOpponent: %s\nLocation: %s",
			event.Start.In(e.loc).Format(eventTimeLayout),
			event.Opponent,
			location),
	}

	return surface.Embed{
		Title:       fmt.Sprintf("🏒 %s - Game RSVP", event.TeamName),
		Description: desc.Render(),
		Timestamp:   event.Start,
		Fields:      e.tallyFields(nil),
		Footer:      pollFooter,
	}
}

// tallyFields renders the three choice columns from the current responses.
// Each field lists responders as mentions; when the joined list would exceed
// the per-field budget it falls back to a bare count.
func (e *Engine) tallyFields(responses []ledger.Response) []surface.Field {
	mentions := make(map[ledger.Choice][]string)
	for _, r := range responses {
		mentions[r.Choice] = append(mentions[r.Choice], surface.Mention(r.UserID))
	}

	fields := make([]surface.Field, 0, 3)
	for _, choice := range ledger.Choices() {
		users := mentions[choice]
		value := "None"
		if len(users) > 0 {
			joined := strings.Join(users, "\n")
			if len(joined) > e.fieldBudget {
				value = fmt.Sprintf("%d players", len(users))
			} else {
				value = joined
			}
		}
		fields = append(fields, surface.Field{
			Name:   fmt.Sprintf("%s %s (%d)", glyphForChoice(choice), labelForChoice(choice), len(mentions[choice])),
			Value:  value,
			Inline: true,
		})
	}
	return fields
}

// reminderText renders the reminder body with the current tally and a nudge
// line that differs when nobody has responded yet.
func reminderText(hoursUntil int, tally ledger.Tally) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⏰ **REMINDER**: Game in approximately %d hours!\n\n", hoursUntil)
	fmt.Fprintf(&b, "Current RSVPs: ✅ %d | ❌ %d | 🤷 %d\n\n", tally.Yes, tally.No, tally.Maybe)
	if tally.Total() > 0 {
		b.WriteString("If you haven't responded yet, please react to the poll above!")
	} else {
		b.WriteString("No responses yet! Please react to the poll above!")
	}
	return b.String()
}

// timeChangeNotice renders the follow-up sent to everyone who responded when
// an event's time moved.
func (e *Engine) timeChangeNotice(event calendar.Event, change surface.TimeChange, responses []ledger.Response) string {
	mentions := make([]string, 0, len(responses))
	for _, r := range responses {
		mentions = append(mentions, surface.Mention(r.UserID))
	}

	var b strings.Builder
	b.WriteString("🔔 **Game time has changed!**\n\n")
	fmt.Fprintf(&b, "**%s** game on %s\n", event.TeamName, change.New.In(e.loc).Format(eventDateLayout))
	fmt.Fprintf(&b, "**Old time**: %s\n", change.Old.In(e.loc).Format(clockLayout))
	fmt.Fprintf(&b, "**New time**: %s\n\n", change.New.In(e.loc).Format(clockLayout))
	fmt.Fprintf(&b, "Please check if you can still make it: %s", strings.Join(mentions, " "))
	return b.String()
}
