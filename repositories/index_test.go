package repositories

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/stretchr/testify/require"

	"whisperfeed/domain"
)

func newSearchIndex(t *testing.T) *SearchIndex {
	t.Helper()
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	return NewSearchIndex(writer, slog.Default())
}

func TestSearchIndex_TermAndHashtagLookup(t *testing.T) {
	req := require.New(t)
	index := newSearchIndex(t)
	ctx := context.Background()

	messages := []domain.Message{
		{ID: 1, Author: "a@university.edu", Content: "Presenting new research on #Diffusion models", CreatedAt: time.Now(), Hashtags: []string{"Diffusion"}},
		{ID: 2, Author: "b@company.com", Content: "Coffee queue is enormous", CreatedAt: time.Now()},
		{ID: 3, Author: "a@university.edu", Content: "Poster session on #LLM evaluation", CreatedAt: time.Now(), Hashtags: []string{"LLM"}},
	}
	for _, m := range messages {
		req.NoError(index.Index(m))
	}

	t.Run("Content term", func(t *testing.T) {
		ids, err := index.Search(ctx, "research", 10)
		req.NoError(err)
		req.Equal([]uint64{1}, ids)
	})

	t.Run("Hashtag folded key", func(t *testing.T) {
		ids, err := index.Search(ctx, "diffusion", 10)
		req.NoError(err)
		req.Contains(ids, uint64(1))
	})

	t.Run("Hashtag query is case-insensitive", func(t *testing.T) {
		ids, err := index.Search(ctx, "llm", 10)
		req.NoError(err)
		req.Contains(ids, uint64(3))
	})

	t.Run("No match", func(t *testing.T) {
		ids, err := index.Search(ctx, "nonexistent", 10)
		req.NoError(err)
		req.Empty(ids)
	})
}
