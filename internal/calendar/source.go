package calendar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"
)

const (
	defaultFetchTimeout = 10 * time.Second

	dateLayout          = "20060102"
	localDateTimeLayout = "20060102T150405"
	utcDateTimeLayout   = "20060102T150405Z"
)

var (
	errMissingURL      = errors.New("calendar: source URL is required")
	errMissingLocation = errors.New("calendar: display location is required")
)

// SourceConfig carries the dependencies for constructing a Source.
type SourceConfig struct {
	// TeamName labels events from this feed and drives opponent derivation.
	TeamName string
	// URL is the ICS endpoint; a webcal:// scheme is normalized to https://.
	URL string
	// Location is the display timezone all event times are normalized into.
	Location *time.Location

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Source wraps one external ICS feed as a stateless query surface. Every call
// performs a fresh fetch and full re-parse; failures are logged and surface as
// empty results rather than errors, so a dead feed only costs one pass.
type Source struct {
	teamName string
	url      string
	loc      *time.Location
	client   *http.Client
	logger   *zap.Logger
}

// NewSource validates the configuration and returns a Source.
func NewSource(cfg SourceConfig) (*Source, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errMissingURL
	}
	if cfg.Location == nil {
		return nil, errMissingLocation
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	url := cfg.URL
	if strings.HasPrefix(url, "webcal://") {
		url = "https://" + strings.TrimPrefix(url, "webcal://")
	}

	return &Source{
		teamName: cfg.TeamName,
		url:      url,
		loc:      cfg.Location,
		client:   client,
		logger:   logger,
	}, nil
}

// TeamName returns the label configured for this feed.
func (s *Source) TeamName() string {
	return s.teamName
}

// EventsOnDate returns all events starting on the given calendar day in the
// configured timezone.
func (s *Source) EventsOnDate(ctx context.Context, day time.Time) []Event {
	local := day.In(s.loc)
	startOfDay := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	return s.EventsInRange(ctx, startOfDay, startOfDay.Add(24*time.Hour))
}

// EventsInRange returns all events, with recurrences expanded, whose start
// falls within [start, end), sorted by start time.
func (s *Source) EventsInRange(ctx context.Context, start, end time.Time) []Event {
	records := s.fetchAndParse(ctx)

	events := make([]Event, 0, len(records))
	for _, rec := range records {
		events = append(events, s.expand(rec, start, end)...)
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	return events
}

// EventByID returns the event with the given UID, or false when the feed is
// unreachable or no longer carries it. Recurring events resolve to their base
// occurrence, matching how they were keyed at poll-creation time.
func (s *Source) EventByID(ctx context.Context, uid string) (Event, bool) {
	for _, rec := range s.fetchAndParse(ctx) {
		if rec.uid == uid {
			return s.normalize(rec, rec.start), true
		}
	}
	return Event{}, false
}

// record is the raw per-VEVENT parse result before recurrence expansion.
type record struct {
	uid         string
	start       time.Time
	summary     string
	description string
	location    string
	rawRRule    string
	exDates     []time.Time
}

func (s *Source) fetchAndParse(ctx context.Context) []record {
	body, err := s.fetch(ctx)
	if err != nil {
		s.logger.Warn("calendar fetch failed",
			zap.String("team", s.teamName),
			zap.Error(err))
		return nil
	}

	cal, err := ical.ParseCalendar(strings.NewReader(body))
	if err != nil {
		s.logger.Warn("calendar parse failed",
			zap.String("team", s.teamName),
			zap.Error(err))
		return nil
	}

	records := make([]record, 0)
	for _, ve := range cal.Events() {
		rec, err := s.parseVEvent(ve)
		if err != nil {
			// One malformed VEVENT must not drop the rest of the feed.
			s.logger.Warn("calendar event skipped",
				zap.String("team", s.teamName),
				zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records
}

func (s *Source) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return "", err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (s *Source) parseVEvent(ve *ical.VEvent) (record, error) {
	var rec record

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return rec, errors.New("missing UID")
	}
	rec.uid = uidProp.Value

	start, err := s.parseStart(ve)
	if err != nil {
		return rec, fmt.Errorf("event %s: %w", rec.uid, err)
	}
	rec.start = start

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		rec.summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		rec.description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		rec.location = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		rec.rawRRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, perr := s.parseStamp(part, nil); perr == nil {
				rec.exDates = append(rec.exDates, t)
			}
		}
	}

	return rec, nil
}

// parseStart normalizes DTSTART into the configured timezone: date-only
// values become local midnight, zoned values are converted, and naive values
// are assumed to already be local wall time.
func (s *Source) parseStart(ve *ical.VEvent) (time.Time, error) {
	prop := ve.GetProperty(ical.ComponentPropertyDtStart)
	if prop == nil || strings.TrimSpace(prop.Value) == "" {
		return time.Time{}, errors.New("missing DTSTART")
	}

	var tzid *time.Location
	if params := prop.ICalParameters; params != nil {
		if names, ok := params["TZID"]; ok && len(names) > 0 {
			zone, err := time.LoadLocation(names[0])
			if err != nil {
				return time.Time{}, fmt.Errorf("DTSTART TZID %q: %w", names[0], err)
			}
			tzid = zone
		}
	}

	return s.parseStamp(prop.Value, tzid)
}

func (s *Source) parseStamp(value string, tzid *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)

	if !strings.Contains(value, "T") {
		return time.ParseInLocation(dateLayout, value, s.loc)
	}

	if strings.HasSuffix(value, "Z") {
		t, err := time.Parse(utcDateTimeLayout, value)
		if err != nil {
			return time.Time{}, err
		}
		return t.In(s.loc), nil
	}

	if tzid != nil {
		t, err := time.ParseInLocation(localDateTimeLayout, value, tzid)
		if err != nil {
			return time.Time{}, err
		}
		return t.In(s.loc), nil
	}

	return time.ParseInLocation(localDateTimeLayout, value, s.loc)
}

// expand turns one raw record into its concrete occurrences within
// [rangeStart, rangeEnd). Recurrence rules are expanded before range
// filtering; a raw VEVENT with an RRULE is not itself a queryable instance.
func (s *Source) expand(rec record, rangeStart, rangeEnd time.Time) []Event {
	if rec.rawRRule == "" {
		if rec.start.Before(rangeStart) || !rec.start.Before(rangeEnd) {
			return nil
		}
		return []Event{s.normalize(rec, rec.start)}
	}

	rule, err := rrule.StrToRRule(rec.rawRRule)
	if err != nil {
		s.logger.Warn("calendar rrule parse failed",
			zap.String("team", s.teamName),
			zap.String("uid", rec.uid),
			zap.Error(err))
		return nil
	}
	rule.DTStart(rec.start)

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range rec.exDates {
		set.ExDate(ex.In(rec.start.Location()))
	}

	occurrences := set.Between(rangeStart.In(rec.start.Location()), rangeEnd.In(rec.start.Location()), true)

	events := make([]Event, 0, len(occurrences))
	for _, occ := range occurrences {
		if !occ.Before(rangeEnd) {
			continue
		}
		events = append(events, s.normalize(rec, occ.In(s.loc)))
	}
	return events
}

func (s *Source) normalize(rec record, start time.Time) Event {
	opponent, home := deriveMatchup(rec.summary, s.teamName)
	return Event{
		UID:         rec.uid,
		Start:       start,
		Summary:     rec.summary,
		Description: rec.description,
		Location:    rec.location,
		TeamName:    s.teamName,
		Opponent:    opponent,
		Home:        home,
	}
}
