// Package projection builds local read models from observed events.
// Handles aggregation and ordering. Does not emit events or serve HTTP
// directly.
package projection

import (
	"sort"
	"sync"

	"github.com/samber/lo"

	"whisperfeed/content"
	"whisperfeed/domain"
	"whisperfeed/domain/event"
)

// HashtagCount is one row of the trending view.
type HashtagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Trends aggregates hashtag usage across admitted messages. Counting is
// done on the folded key; the display form is the first casing observed.
type Trends struct {
	mu       sync.RWMutex
	counts   map[string]int
	display  map[string]string
	messages int
}

func NewTrends() *Trends {
	return &Trends{
		counts:  make(map[string]int),
		display: make(map[string]string),
	}
}

func (t *Trends) Consume(e event.DomainEvent) {
	switch evt := e.(type) {
	case event.MessageAdmitted:
		t.record(evt.Message)
	}
}

func (t *Trends) record(message domain.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.messages++
	for _, tag := range message.Hashtags {
		key := content.HashtagKey(tag)
		if _, seen := t.display[key]; !seen {
			t.display[key] = tag
		}
		t.counts[key]++
	}
}

// Top returns the n most used hashtags, most frequent first. Ties are
// broken alphabetically on the folded key so the order is stable.
func (t *Trends) Top(n int) []HashtagCount {
	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := lo.Keys(t.counts)
	sort.Slice(keys, func(i, j int) bool {
		if t.counts[keys[i]] != t.counts[keys[j]] {
			return t.counts[keys[i]] > t.counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if n > 0 && len(keys) > n {
		keys = keys[:n]
	}

	return lo.Map(keys, func(key string, _ int) HashtagCount {
		return HashtagCount{Tag: t.display[key], Count: t.counts[key]}
	})
}

// MessageCount reports how many admitted messages fed the projection.
func (t *Trends) MessageCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.messages
}
