package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/asksite/internal/domain"
	"github.com/MrSnakeDoc/asksite/internal/httpserver/deps"
)

type historyItem struct {
	ConversationID string           `json:"conversation_id"`
	Preview        string           `json:"preview"`
	Age            string           `json:"age"`
	Timestamp      time.Time        `json:"timestamp"`
	Messages       int              `json:"message_count"`
	Site           *domain.SiteMeta `json:"site,omitempty"`
}

type historyResponse struct {
	Conversations []historyItem `json:"conversations"`
}

type loadHistoryRequest struct {
	ConversationID string `json:"conversation_id"`
}

// History fetches the configured user's conversations, newest first.
func History(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		convs, err := d.Session.FetchHistory(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}

		now := time.Now()
		items := make([]historyItem, 0, len(convs))
		for i := range convs {
			c := &convs[i]
			items = append(items, historyItem{
				ConversationID: c.ID,
				Preview:        c.Preview(),
				Age:            domain.FormatAge(c.Timestamp, now),
				Timestamp:      c.Timestamp,
				Messages:       len(c.Messages),
				Site:           c.Site,
			})
		}
		writeJSON(w, http.StatusOK, historyResponse{Conversations: items})
	}
}

// LoadHistory makes a fetched conversation the active one.
func LoadHistory(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loadHistoryRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		snap, err := d.Session.LoadHistoricalConversation(req.ConversationID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}
