package web

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"

	"github.com/DelicateHug/DMaker-sub000/internal/events"
	"github.com/DelicateHug/DMaker-sub000/internal/feature"
	"github.com/DelicateHug/DMaker-sub000/internal/gateway"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type handlers struct {
	gw           gateway.Gateway
	history      History
	hub          *Hub
	log          logr.Logger
	writeTimeout time.Duration
}

// listFeatures returns a project's features.
// GET /api/projects/:project/features?view=summary|full&exclude_completed=bool
func (h *handlers) listFeatures(c *gin.Context) {
	project := c.Param("project")
	filter := gateway.StatusFilter{}
	if raw := c.Query("exclude_completed"); raw != "" {
		exclude, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "exclude_completed must be a boolean")
			return
		}
		filter.ExcludeCompleted = exclude
	}

	var (
		list []feature.Feature
		err  error
	)
	switch view := c.DefaultQuery("view", "full"); view {
	case "summary":
		list, err = h.gw.ListSummaries(c.Request.Context(), project, filter)
	case "full":
		list, err = h.gw.ListFull(c.Request.Context(), project, filter)
	default:
		badRequest(c, "view must be summary or full")
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	if list == nil {
		list = []feature.Feature{}
	}
	c.JSON(http.StatusOK, list)
}

// createFeature adds a feature.
// POST /api/projects/:project/features
func (h *handlers) createFeature(c *gin.Context) {
	var draft feature.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, "invalid feature: "+err.Error())
		return
	}
	f, err := h.gw.Create(c.Request.Context(), c.Param("project"), draft)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

// updateFeature applies a partial update.
// PATCH /api/projects/:project/features/:id
func (h *handlers) updateFeature(c *gin.Context) {
	var patch feature.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid patch: "+err.Error())
		return
	}
	f, err := h.gw.Update(c.Request.Context(), c.Param("project"), c.Param("id"), patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// deleteFeature removes a feature.
// DELETE /api/projects/:project/features/:id
func (h *handlers) deleteFeature(c *gin.Context) {
	if err := h.gw.Delete(c.Request.Context(), c.Param("project"), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// startFeature requests a run.
// POST /api/projects/:project/features/:id/start
func (h *handlers) startFeature(c *gin.Context) {
	res, err := h.gw.Start(c.Request.Context(), c.Param("project"), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// stopFeature aborts a run.
// POST /api/projects/:project/features/:id/stop
func (h *handlers) stopFeature(c *gin.Context) {
	if err := h.gw.Stop(c.Request.Context(), c.Param("project"), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// eventHistory returns journaled events.
// GET /api/projects/:project/events?after=N&limit=N
func (h *handlers) eventHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event history not available"})
		return
	}
	after, err := strconv.Atoi(c.DefaultQuery("after", "0"))
	if err != nil {
		badRequest(c, "after must be an integer")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil {
		badRequest(c, "limit must be an integer")
		return
	}

	records, err := h.history.History(c.Param("project"), after, limit)
	if err != nil {
		h.fail(c, err)
		return
	}

	entries := make([]HistoryEntry, 0, len(records))
	for _, r := range records {
		entry := HistoryEntry{
			Sequence:  r.Sequence,
			Type:      r.EventType,
			CreatedAt: r.CreatedAt,
		}
		if r.FeatureID != nil {
			entry.FeatureID = *r.FeatureID
		}
		if r.PayloadJSON != nil {
			var je events.JSONEvent
			if err := json.Unmarshal([]byte(*r.PayloadJSON), &je); err == nil {
				entry.Event = &je
			}
		}
		entries = append(entries, entry)
	}
	c.JSON(http.StatusOK, entries)
}

// streamEvents upgrades to a WebSocket and forwards push events as JSON
// frames until either side closes. Repeated project parameters limit the
// stream to those projects.
// GET /api/events?project=a&project=b
func (h *handlers) streamEvents(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error(err, "failed to upgrade the websocket")
		return
	}
	defer ws.Close()

	client := NewClient(generateID(), c.QueryArray("project")...)
	if !h.hub.Register(client) {
		return
	}
	defer h.hub.Unregister(client)
	h.log.V(1).Info("event subscriber connected", "client", client.id)

	// The read side only detects the peer going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			h.log.V(1).Info("event subscriber disconnected", "client", client.id, "dropped", client.Dropped())
			return
		case e, ok := <-client.events:
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			_ = ws.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := ws.WriteJSON(events.ToJSONEvent(e)); err != nil {
				h.log.V(1).Info("event write failed", "client", client.id, "error", err.Error())
				return
			}
		}
	}
}

func healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fail maps gateway errors onto HTTP status codes
func (h *handlers) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, gateway.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, gateway.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, gateway.ErrConflict):
		status = http.StatusConflict
	default:
		h.log.Error(err, "request failed", "method", c.Request.Method, "path", c.FullPath())
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

// generateID generates a random client ID.
func generateID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return hex.EncodeToString([]byte("fallback"))
	}
	return hex.EncodeToString(bytes)
}
