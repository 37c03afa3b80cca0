package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/faceoff/internal/ledger"
)

var errMissingStore = errors.New("ledger store dependency required")

// Dependencies carries the wiring for the read-only status API.
type Dependencies struct {
	Store  *ledger.Store
	Clock  func() time.Time
	Logger *zap.Logger
}

// NewHTTPHandler builds the operator-local status router: a liveness probe
// and a read-only view of active polls with their tallies.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Store == nil {
		return nil, errMissingStore
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	handler := &httpHandler{store: deps.Store, clock: clock, logger: logger}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", handler.handleHealth)
	router.GET("/api/polls", handler.handlePolls)

	return router, nil
}

type httpHandler struct {
	store  *ledger.Store
	clock  func() time.Time
	logger *zap.Logger
}

type pollPayload struct {
	ID           uint      `json:"id"`
	EventID      string    `json:"event_id"`
	MessageID    string    `json:"message_id"`
	EventTime    time.Time `json:"event_time"`
	ReminderSent bool      `json:"reminder_sent"`
	Yes          int       `json:"yes"`
	No           int       `json:"no"`
	Maybe        int       `json:"maybe"`
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handlePolls(c *gin.Context) {
	polls, err := h.store.ActivePolls(c.Request.Context(), h.clock())
	if err != nil {
		h.logger.Error("active polls query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}

	payload := make([]pollPayload, 0, len(polls))
	for _, poll := range polls {
		tally, err := h.store.TallyForPoll(c.Request.Context(), poll.ID)
		if err != nil {
			h.logger.Error("tally query failed", zap.Uint("poll_id", poll.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
			return
		}
		payload = append(payload, pollPayload{
			ID:           poll.ID,
			EventID:      poll.EventID,
			MessageID:    poll.SurfaceMessageID,
			EventTime:    poll.EventTime,
			ReminderSent: poll.ReminderSent,
			Yes:          tally.Yes,
			No:           tally.No,
			Maybe:        tally.Maybe,
		})
	}

	c.JSON(http.StatusOK, gin.H{"polls": payload})
}
