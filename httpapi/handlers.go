package httpapi

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"whisperfeed/auth"
	"whisperfeed/errors"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 500
	tokenCookieName     = "feed_token"
)

type errorResponse struct {
	Error string `json:"error"`
}

type loginResponse struct {
	Status string `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)

	var limited errors.RateLimited
	if stderrors.As(err, &limited) {
		// Retry-After is in whole seconds, rounded up so the client
		// never retries inside the window.
		seconds := int(math.Ceil(limited.Remaining.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		// Internal detail stays in the logs.
		message = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: message})
}

// bearerToken extracts the post token: Authorization header first, then the
// cookie set by the verify endpoint.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return token
	}
	if cookie, err := r.Cookie(tokenCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Login requests a magic link for an attendee address.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var request auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err))
		return
	}

	if _, err := h.auth.Register(r.Context(), request); err != nil {
		h.log.Warn("Registration refused", "error", err)
		writeError(w, err)
		return
	}

	// The token travels by mail only. The response never leaks it.
	writeJSON(w, http.StatusAccepted, loginResponse{Status: "magic link sent"})
}

// Verify consumes a magic link: the token moves into an HttpOnly cookie and
// the browser lands on the feed.
func (h *Handlers) Verify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, errors.ErrTokenMalformed)
		return
	}

	identity, err := h.auth.Verify(token)
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	h.log.Info("Magic link verified", "identity", identity)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type postRequest struct {
	Content string `json:"content"`
}

type messageResponse struct {
	ID        uint64    `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Hashtags  []string  `json:"hashtags,omitempty"`
	Links     []string  `json:"links,omitempty"`
}

// Post submits one message to the admission pipeline.
func (h *Handlers) Post(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, errors.ErrTokenMalformed)
		return
	}

	var request postRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err))
		return
	}

	message, err := h.feed.Post(r.Context(), token, request.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, messageResponse{
		ID:        message.ID,
		Author:    string(message.Author),
		Content:   message.Content,
		CreatedAt: message.CreatedAt,
		Hashtags:  message.Hashtags,
		Links:     message.Links,
	})
}

// History returns messages with id greater than ?since=, ascending.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	var sinceID uint64
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, fmt.Errorf("%w: since must be a message id", errors.ErrInvalidPayload))
			return
		}
		sinceID = parsed
	}

	limit := queryLimit(r, defaultHistoryLimit)

	messages, err := h.feed.History(sinceID, limit)
	if err != nil {
		h.log.Error("History read failed", "since", sinceID, "error", err)
		writeError(w, fmt.Errorf("%w: %v", errors.ErrPersistence, err))
		return
	}

	response := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		response = append(response, messageResponse{
			ID:        m.ID,
			Author:    string(m.Author),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
			Hashtags:  m.Hashtags,
			Links:     m.Links,
		})
	}
	writeJSON(w, http.StatusOK, response)
}

// Hashtags returns the current trending hashtags.
func (h *Handlers) Hashtags(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 20)
	writeJSON(w, http.StatusOK, h.feed.Hashtags(limit))
}

// Search resolves ?q= against the full-text index.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		writeError(w, fmt.Errorf("%w: q is required", errors.ErrInvalidPayload))
		return
	}

	limit := queryLimit(r, defaultHistoryLimit)

	messages, err := h.feed.Search(r.Context(), term, limit)
	if err != nil {
		h.log.Error("Search failed", "term", term, "error", err)
		writeError(w, fmt.Errorf("%w: %v", errors.ErrPersistence, err))
		return
	}

	response := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		response = append(response, messageResponse{
			ID:        m.ID,
			Author:    string(m.Author),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
			Hashtags:  m.Hashtags,
			Links:     m.Links,
		})
	}
	writeJSON(w, http.StatusOK, response)
}

func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}
