//go:generate go run go.uber.org/mock/mockgen -source=index.go -destination=../mocks/mock_search_index.go -package=mocks
package repositories

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/blugelabs/bluge"

	"whisperfeed/content"
	"whisperfeed/domain"
)

type ISearchIndex interface {
	Index(message domain.Message) error
	Search(ctx context.Context, term string, limit int) ([]uint64, error)
}

// SearchIndex maintains a Bluge full-text index over admitted messages.
// Hashtags are indexed on their folded key and significant terms are
// extracted with the same stop-word rules the feed uses everywhere.
type SearchIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewSearchIndex(writer *bluge.Writer, log *slog.Logger) *SearchIndex {
	return &SearchIndex{writer: writer, log: log}
}

func (s *SearchIndex) Index(message domain.Message) error {
	docID := strconv.FormatUint(message.ID, 10)
	doc := bluge.NewDocument(docID).
		AddField(bluge.NewTextField("content", message.Content)).
		AddField(bluge.NewKeywordField("author", string(message.Author)))

	for _, tag := range message.Hashtags {
		doc.AddField(bluge.NewKeywordField("hashtag", content.HashtagKey(tag)))
	}
	for _, term := range content.ExtractTerms(message.Content) {
		doc.AddField(bluge.NewKeywordField("term", term))
	}

	return s.writer.Update(doc.ID(), doc)
}

// Search matches a single lowercase-folded term against content, extracted
// terms and hashtag keys, returning message ids (newest-first by score is
// not needed; callers re-fetch and sort by id).
func (s *SearchIndex) Search(ctx context.Context, term string, limit int) ([]uint64, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := reader.Close(); cerr != nil {
			s.log.Warn("closing index reader", "error", cerr)
		}
	}()

	folded := content.HashtagKey(term)
	query := bluge.NewBooleanQuery().
		AddShould(bluge.NewMatchQuery(term).SetField("content")).
		AddShould(bluge.NewTermQuery(folded).SetField("term")).
		AddShould(bluge.NewTermQuery(folded).SetField("hashtag"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var ids []uint64
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				if id, parseErr := strconv.ParseUint(string(value), 10, 64); parseErr == nil {
					ids = append(ids, id)
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return ids, nil
}
