package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/starford/ansuz/internal/catalog"
	"github.com/starford/ansuz/internal/match"
	"github.com/starford/ansuz/internal/models"
)

// secretTokenHeader is the header the Bot API echoes back on webhook
// deliveries when a secret token was registered.
const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// Handler holds the HTTP route handlers.
type Handler struct {
	store    *catalog.Store
	matcher  *match.Matcher
	dispatch func(models.Message)
	secret   string
}

// NewHandler creates a Handler. dispatch receives every decoded inbound
// message; secret, when non-empty, is required on webhook deliveries.
func NewHandler(store *catalog.Store, matcher *match.Matcher, dispatch func(models.Message), secret string) *Handler {
	return &Handler{store: store, matcher: matcher, dispatch: dispatch, secret: secret}
}

// update mirrors the slice of the Bot API update payload the bot consumes.
type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		MessageID int64  `json:"message_id"`
		Date      int64  `json:"date"`
		Text      string `json:"text"`
		Chat      struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		From struct {
			ID        int64  `json:"id"`
			Username  string `json:"username"`
			FirstName string `json:"first_name"`
		} `json:"from"`
	} `json:"message"`
}

// Webhook handles POST /webhook: it validates the secret token, decodes
// the update, and hands the normalized message to the dispatcher. The
// response is always immediate; processing happens on its own task.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" && r.Header.Get(secretTokenHeader) != h.secret {
		writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var u update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid update body"))
		return
	}

	// Non-message updates (edits, joins, reactions) are acknowledged and
	// skipped.
	if u.Message == nil || u.Message.Text == "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	name := u.Message.From.Username
	if name == "" {
		name = u.Message.From.FirstName
	}

	h.dispatch(models.Message{
		MessageID:  u.Message.MessageID,
		ChatID:     u.Message.Chat.ID,
		SenderID:   u.Message.From.ID,
		SenderName: name,
		Text:       u.Message.Text,
		SentAt:     time.Unix(u.Message.Date, 0),
	})
	w.WriteHeader(http.StatusOK)
}

// ListCatalog handles GET /api/catalog.
func (h *Handler) ListCatalog(w http.ResponseWriter, r *http.Request) {
	entries := h.store.All()
	items := make([]CatalogEntry, len(entries))
	for i, e := range entries {
		items[i] = CatalogEntry{
			Title:   e.Title,
			Link:    e.Record.Link,
			AddedBy: e.Record.AddedBy,
			AddedAt: e.Record.AddedAt,
		}
	}
	writeJSON(w, http.StatusOK, CatalogResponse{Entries: items, Total: len(items)})
}

// Search handles GET /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	cands := h.matcher.Match(q)
	if limit > 0 && len(cands) > limit {
		cands = cands[:limit]
	}

	hits := make([]SearchHit, len(cands))
	for i, c := range cands {
		hits[i] = SearchHit{Title: c.Title, Link: c.Record.Link, Score: c.Score}
	}
	slog.Debug("api: search", slog.String("query", q), slog.Int("hits", len(hits)))
	writeJSON(w, http.StatusOK, SearchResponse{Results: hits})
}
