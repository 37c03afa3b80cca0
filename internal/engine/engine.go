// Package engine implements the reconciliation core: the scheduler pass that
// turns upcoming calendar events into polls, the response state machine fed by
// reaction toggles, the reminder dispatcher, and the schedule change detector.
package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/faceoff/internal/calendar"
	"github.com/MarcoPoloResearchLab/faceoff/internal/ledger"
	"github.com/MarcoPoloResearchLab/faceoff/internal/surface"
)

const (
	// defaultFieldBudget is the per-field character budget for rendered
	// tally lists; beyond it the field falls back to a bare count.
	defaultFieldBudget = 1024

	defaultLookaheadDays  = 7
	defaultReminderLead   = 24 * time.Hour
	defaultChangeMinDelta = 15 * time.Minute
)

var (
	errMissingStore   = errors.New("ledger store is required")
	errMissingSurface = errors.New("chat surface is required")
	errMissingSources = errors.New("at least one event source is required")

	// ErrNoUpcomingPoll reports that the operator asked for the soonest
	// active poll and none is tracked.
	ErrNoUpcomingPoll = errors.New("engine: no upcoming poll")
)

// EventSource is the read-only calendar feed surface the engine consumes.
// *calendar.Source satisfies it; tests substitute fixed fixtures.
type EventSource interface {
	TeamName() string
	EventsOnDate(ctx context.Context, day time.Time) []calendar.Event
	EventsInRange(ctx context.Context, start, end time.Time) []calendar.Event
	EventByID(ctx context.Context, uid string) (calendar.Event, bool)
}

// Config carries the dependencies and tuning for building an Engine. It is
// assembled once at startup; the engine holds no other process-wide state.
type Config struct {
	Store   *ledger.Store
	Sources []EventSource
	Surface surface.Surface

	Clock    func() time.Time
	Logger   *zap.Logger
	Location *time.Location

	// LookaheadDays is the scheduler's fixed horizon for the daily pass.
	LookaheadDays int
	// ReminderLead is the time-to-event window that makes a poll due a reminder.
	ReminderLead time.Duration
	// ChangeMinDelta is the minimum schedule shift treated as a real change.
	ChangeMinDelta time.Duration
	// FieldBudget overrides the rendered tally field character budget.
	FieldBudget int
}

// Engine drives all four core write paths over the shared ledger.
type Engine struct {
	store   *ledger.Store
	sources []EventSource
	surface surface.Surface

	clock  func() time.Time
	logger *zap.Logger
	loc    *time.Location

	lookaheadDays  int
	reminderLead   time.Duration
	changeMinDelta time.Duration
	fieldBudget    int
}

// New validates the configuration and returns an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	if cfg.Surface == nil {
		return nil, errMissingSurface
	}
	if len(cfg.Sources) == 0 {
		return nil, errMissingSources
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	lookahead := cfg.LookaheadDays
	if lookahead <= 0 {
		lookahead = defaultLookaheadDays
	}
	reminderLead := cfg.ReminderLead
	if reminderLead <= 0 {
		reminderLead = defaultReminderLead
	}
	changeMinDelta := cfg.ChangeMinDelta
	if changeMinDelta <= 0 {
		changeMinDelta = defaultChangeMinDelta
	}
	fieldBudget := cfg.FieldBudget
	if fieldBudget <= 0 {
		fieldBudget = defaultFieldBudget
	}

	return &Engine{
		store:          cfg.Store,
		sources:        cfg.Sources,
		surface:        cfg.Surface,
		clock:          clock,
		logger:         logger,
		loc:            loc,
		lookaheadDays:  lookahead,
		reminderLead:   reminderLead,
		changeMinDelta: changeMinDelta,
		fieldBudget:    fieldBudget,
	}, nil
}

// LookaheadDays exposes the configured scheduler horizon for the daily pass.
func (e *Engine) LookaheadDays() int {
	return e.lookaheadDays
}
