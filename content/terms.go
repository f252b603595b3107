package content

import (
	"regexp"
	"strings"
)

var wordPattern = regexp.MustCompile(`[A-Za-z0-9_]+`)

// stopWords are common English words that add no signal to search.
var stopWords = map[string]struct{}{
	"the": {}, "be": {}, "to": {}, "of": {}, "and": {}, "a": {}, "in": {},
	"that": {}, "have": {}, "i": {}, "it": {}, "for": {}, "not": {}, "on": {},
	"with": {}, "he": {}, "as": {}, "you": {}, "do": {}, "at": {}, "this": {},
	"but": {}, "his": {}, "by": {}, "from": {}, "they": {}, "we": {}, "say": {},
	"her": {}, "she": {}, "or": {}, "an": {}, "will": {}, "my": {}, "one": {},
	"all": {}, "would": {}, "there": {}, "their": {}, "what": {}, "so": {},
	"up": {}, "out": {}, "if": {}, "about": {}, "who": {}, "get": {},
	"which": {}, "go": {}, "me": {}, "when": {}, "make": {}, "can": {},
	"like": {}, "time": {}, "no": {}, "just": {}, "him": {}, "know": {},
	"take": {}, "people": {}, "into": {}, "year": {}, "your": {}, "good": {},
	"some": {}, "could": {}, "them": {}, "see": {}, "other": {}, "than": {},
	"then": {}, "now": {}, "look": {}, "only": {}, "come": {}, "its": {},
	"over": {}, "think": {}, "also": {}, "back": {}, "after": {}, "use": {},
	"two": {}, "how": {}, "our": {}, "work": {}, "first": {}, "well": {},
	"way": {}, "even": {}, "new": {}, "want": {}, "because": {}, "any": {},
	"these": {}, "give": {}, "day": {}, "most": {}, "us": {}, "is": {},
	"are": {}, "was": {}, "were": {}, "has": {}, "had": {},
}

// ExtractTerms pulls significant lowercase words out of message content for
// the search index. URLs and hashtags are removed first (they are indexed
// separately), then stop words and words of two characters or less are
// filtered out. Result order follows first occurrence.
func ExtractTerms(text string) []string {
	cleaned := urlPattern.ReplaceAllString(text, "")
	cleaned = hashtagPattern.ReplaceAllString(cleaned, "")

	words := wordPattern.FindAllString(strings.ToLower(cleaned), -1)
	seen := make(map[string]struct{}, len(words))
	var terms []string
	for _, w := range words {
		if len(w) <= 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		terms = append(terms, w)
	}
	return terms
}
