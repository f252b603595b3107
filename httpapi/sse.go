package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"

	"whisperfeed/content"
	"whisperfeed/domain"
)

const ssePingInterval = 15 * time.Second

// Stream serves the live feed over Server-Sent Events. The backlog window
// is replayed first, then live messages follow in id order. An optional
// ?tags= filter (comma-separated, case-insensitive) narrows the stream to
// messages carrying at least one of the tags.
func (h *Handlers) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	filter := tagFilter(r.URL.Query().Get("tags"))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	sub := h.feed.Subscribe()
	defer sub.Cancel()

	for _, message := range sub.Backfill {
		if !filter.match(message) {
			continue
		}
		writeSSE(w, message)
	}
	flusher.Flush()

	ping := time.NewTicker(ssePingInterval)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case message, open := <-sub.Live:
			if !open {
				// Dropped for falling behind, or server shutdown.
				fmt.Fprintf(w, "event: bye\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			if !filter.match(message) {
				continue
			}
			writeSSE(w, message)
			flusher.Flush()
		case <-ping.C:
			fmt.Fprintf(w, "event: ping\ndata: {}\n\n")
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, message domain.Message) {
	data, err := json.Marshal(messageResponse{
		ID:        message.ID,
		Author:    string(message.Author),
		Content:   message.Content,
		CreatedAt: message.CreatedAt,
		Hashtags:  message.Hashtags,
		Links:     message.Links,
	})
	if err != nil {
		return
	}
	fmt.Fprintf(w, "id: %d\nevent: message\ndata: %s\n\n", message.ID, data)
}

type tagSet map[string]struct{}

func tagFilter(raw string) tagSet {
	if raw == "" {
		return nil
	}
	parts := lo.FilterMap(strings.Split(raw, ","), func(part string, _ int) (string, bool) {
		trimmed := strings.TrimSpace(strings.TrimPrefix(part, "#"))
		return content.HashtagKey(trimmed), trimmed != ""
	})
	if len(parts) == 0 {
		return nil
	}
	set := make(tagSet, len(parts))
	for _, p := range parts {
		set[p] = struct{}{}
	}
	return set
}

// match reports whether the message passes the filter. A nil filter passes
// everything.
func (s tagSet) match(message domain.Message) bool {
	if s == nil {
		return true
	}
	for _, tag := range message.Hashtags {
		if _, ok := s[content.HashtagKey(tag)]; ok {
			return true
		}
	}
	return false
}
