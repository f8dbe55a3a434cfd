package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/fundlane/notification/internal/application"
	"github.com/fundlane/notification/internal/domain"
	"github.com/fundlane/notification/internal/preference"
	"github.com/fundlane/notification/internal/realtime"
)

// Handler holds all HTTP handler methods.
type Handler struct {
	enqueuer *application.Enqueuer
	worker   *application.Worker
	prefs    *preference.Resolver
	jobs     domain.JobRepository
	inbox    domain.InboxRepository
	hub      *realtime.Hub
}

// NewHandler creates a new Handler.
func NewHandler(enqueuer *application.Enqueuer, worker *application.Worker, prefs *preference.Resolver, jobs domain.JobRepository, inbox domain.InboxRepository, hub *realtime.Hub) *Handler {
	return &Handler{enqueuer: enqueuer, worker: worker, prefs: prefs, jobs: jobs, inbox: inbox, hub: hub}
}

// --- Service endpoints ---

type enqueueRequest struct {
	EventType    string            `json:"event_type"`
	UserID       string            `json:"user_id"`
	Recipient    string            `json:"recipient"`
	Params       map[string]string `json:"params"`
	ScheduledFor string            `json:"scheduled_for,omitempty"`
}

// Enqueue POST /v1/notifications
func (h *Handler) Enqueue(c echo.Context) error {
	var req enqueueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	in := application.EnqueueInput{
		UserID:    req.UserID,
		Recipient: req.Recipient,
		Params:    domain.RawParams{Event: req.EventType, Values: req.Params},
	}
	if req.ScheduledFor != "" {
		at, err := time.Parse(time.RFC3339, req.ScheduledFor)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "scheduled_for must be RFC3339")
		}
		in.ScheduledFor = at
	}

	result, err := h.enqueuer.Enqueue(c.Request().Context(), in)
	if err != nil {
		if application.IsValidation(err) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusAccepted, result)
}

// RunWorker POST /v1/worker/run, the external scheduler's trigger.
func (h *Handler) RunWorker(c echo.Context) error {
	processed, err := h.worker.Run(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("worker run failed")
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, map[string]int{"processed": processed})
}

// ListFailedJobs GET /v1/jobs/failed, the dead-letter audit surface.
func (h *Handler) ListFailedJobs(c echo.Context) error {
	limit := parseIntQuery(c, "limit", 50)
	offset := parseIntQuery(c, "offset", 0)

	jobs, err := h.jobs.ListFailed(c.Request().Context(), limit, offset)
	if err != nil {
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, map[string]any{
		"data":   jobs,
		"limit":  limit,
		"offset": offset,
	})
}

// --- Inbox endpoints (user-facing) ---

// ListInbox GET /v1/inbox
func (h *Handler) ListInbox(c echo.Context) error {
	userID := mustUserID(c)

	filter := domain.InboxFilter{
		UserID: userID,
		Limit:  parseIntQuery(c, "limit", 20),
		Offset: parseIntQuery(c, "offset", 0),
	}
	if r := c.QueryParam("is_read"); r != "" {
		isRead := r == "true"
		filter.IsRead = &isRead
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}

	messages, err := h.inbox.List(c.Request().Context(), filter)
	if err != nil {
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, map[string]any{
		"data":   messages,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// InboxUnreadCount GET /v1/inbox/unread-count
func (h *Handler) InboxUnreadCount(c echo.Context) error {
	count, err := h.inbox.CountUnread(c.Request().Context(), mustUserID(c))
	if err != nil {
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, map[string]int64{"count": count})
}

// MarkInboxRead PATCH /v1/inbox/:id/read
func (h *Handler) MarkInboxRead(c echo.Context) error {
	userID := mustUserID(c)
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.inbox.MarkRead(c.Request().Context(), id, userID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// MarkAllInboxRead POST /v1/inbox/read-all
func (h *Handler) MarkAllInboxRead(c echo.Context) error {
	count, err := h.inbox.MarkAllRead(c.Request().Context(), mustUserID(c))
	if err != nil {
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, map[string]int64{"marked": count})
}

// --- Preference endpoints ---

// GetPreferences GET /v1/preferences/:eventType
func (h *Handler) GetPreferences(c echo.Context) error {
	matrix, err := h.prefs.Resolve(c.Request().Context(), mustUserID(c), c.Param("eventType"))
	if err != nil {
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, matrix)
}

// UpdatePreferences PUT /v1/preferences/:eventType
func (h *Handler) UpdatePreferences(c echo.Context) error {
	var partial domain.PartialMatrix
	if err := c.Bind(&partial); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.prefs.Update(c.Request().Context(), mustUserID(c), c.Param("eventType"), partial); err != nil {
		return echo.ErrInternalServerError
	}
	return c.NoContent(http.StatusNoContent)
}

// --- Change stream ---

// StreamChanges GET /v1/changes/stream?tables=a,b serves the SSE stream.
// Every filter carries an owner predicate bound to the authenticated user,
// so a client only ever sees changes to its own rows.
func (h *Handler) StreamChanges(c echo.Context) error {
	userID := mustUserID(c)

	tablesParam := c.QueryParam("tables")
	if tablesParam == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tables query parameter is required")
	}

	var filters []realtime.Filter
	for _, table := range strings.Split(tablesParam, ",") {
		table = strings.TrimSpace(table)
		if table == "" {
			continue
		}
		filters = append(filters, realtime.Filter{
			Table:     table,
			Predicate: realtime.Predicate{Field: "owner", Value: userID},
		})
	}
	if len(filters) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no valid tables given")
	}

	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable proxy buffering

	sendCh := make(chan []byte, 32)
	sub := h.hub.Register(filters, sendCh)
	defer h.hub.Unregister(sub)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"ok\"}\n\n")
	w.Flush()

	log.Info().Str("user", userID).Int("filters", len(filters)).Msg("change stream opened")

	ctx := c.Request().Context()
	for {
		select {
		case msg, ok := <-sendCh:
			if !ok {
				return nil
			}
			if _, err := w.Write(msg); err != nil {
				return nil
			}
			w.Flush()

		case <-ctx.Done():
			log.Info().Str("user", userID).Msg("change stream closed by client")
			return nil
		}
	}
}

// --- Healthcheck ---

// Health GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":      "ok",
		"subscribers": h.hub.ConnectedCount(),
	})
}

// --- Helpers ---

func mustUserID(c echo.Context) string {
	userID, _ := c.Get("userID").(string)
	return userID
}

func parseIntQuery(c echo.Context, key string, def int) int {
	v, err := strconv.Atoi(c.QueryParam(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}

func parseUUIDParam(c echo.Context, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(key))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s must be a valid UUID", key)
	}
	return id, nil
}
