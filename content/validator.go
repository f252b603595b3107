// Package content holds the pure validation pipeline applied to candidate
// messages: length check, URL whitelist, hashtag extraction. Everything here
// is deterministic and side-effect free; order matters for error reporting
// (length before links before hashtags).
package content

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"whisperfeed/errors"
)

var (
	urlPattern     = regexp.MustCompile(`https?://\S+`)
	hashtagPattern = regexp.MustCompile(`#([A-Za-z0-9_]+)`)
)

// allowedURLPatterns is the fixed whitelist of link destinations: venue maps,
// paper hosts and the event site. Anything else rejects the whole message.
var allowedURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https?://(www\.)?google\.[a-z]+/maps`),
	regexp.MustCompile(`^https?://maps\.app\.goo\.gl/`),
	regexp.MustCompile(`^https?://(www\.)?arxiv\.org/(abs|pdf)/`),
	regexp.MustCompile(`^https?://(www\.)?openreview\.net/`),
	regexp.MustCompile(`^https?://(www\.)?neurips\.cc/`),
}

// Result carries the admitted content with its annotations. Content is the
// trimmed original text; hashtags and links are rendered client-side from
// the annotations, so the text itself is left untouched.
type Result struct {
	Content  string
	Hashtags []string // display case preserved, first occurrence order
	Links    []string // order of appearance
}

// Validator applies the admission rules to raw message content.
type Validator struct {
	maxLength int
}

func NewValidator(maxLength int) Validator {
	return Validator{maxLength: maxLength}
}

// Validate runs the pipeline on raw content. The first violated rule wins:
// empty, too long, then the first disallowed link. Hashtag extraction only
// annotates and never rejects.
func (v Validator) Validate(raw string) (Result, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Result{}, errors.ErrEmptyMessage
	}
	if utf8.RuneCountInString(trimmed) > v.maxLength {
		return Result{}, errors.ErrMessageTooLong
	}

	links := urlPattern.FindAllString(trimmed, -1)
	for _, link := range links {
		if !isAllowedURL(link) {
			return Result{}, errors.DisallowedLink{URL: link}
		}
	}

	return Result{
		Content:  trimmed,
		Hashtags: extractHashtags(trimmed),
		Links:    links,
	}, nil
}

func isAllowedURL(url string) bool {
	for _, pattern := range allowedURLPatterns {
		if pattern.MatchString(url) {
			return true
		}
	}
	return false
}

// extractHashtags returns hashtags in first-occurrence order with display
// case preserved. Duplicates are collapsed on the folded key.
func extractHashtags(text string) []string {
	matches := hashtagPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	var tags []string
	for _, m := range matches {
		key := HashtagKey(m[1])
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, m[1])
	}
	return tags
}

// HashtagKey folds a hashtag for indexing and filtering: "#LLM" and "#llm"
// share one key while display text keeps the original case.
func HashtagKey(tag string) string {
	return strings.ToLower(tag)
}
