// Package memory distills a short hint of what the user keeps talking about
// from the tail of their transcript. The hint is injected into the system
// prompt so the model stays anchored on recurring themes without carrying the
// full history in a separate summary call.
package memory

import (
	"sort"
	"strings"

	"github.com/iskralabs/iskra/internal/iskra/store"
)

// DefaultWindow is the number of most recent turns considered.
const DefaultWindow = 8

// topTokens is how many of the most frequent tokens make it into the hint.
const topTokens = 3

// minTokenLen filters out short function words; tokens of this length or
// shorter are discarded.
const minTokenLen = 3

// punctuationCutset is stripped from both ends of every token.
const punctuationCutset = ".,!?;:()\"'«»—–…"

// stopWords are common Russian and English words that carry no topical signal.
var stopWords = map[string]struct{}{
	"этот": {}, "это": {}, "быть": {}, "меня": {}, "мне": {}, "тебя": {},
	"тебе": {}, "себя": {}, "когда": {}, "если": {}, "чтобы": {}, "просто": {},
	"очень": {}, "такой": {}, "какой": {}, "есть": {}, "было": {}, "были": {},
	"буду": {}, "нету": {}, "того": {}, "этого": {}, "всегда": {}, "сейчас": {},
	"потому": {}, "почему": {}, "знаю": {}, "хочу": {}, "могу": {}, "надо": {},
	"that": {}, "this": {}, "with": {}, "have": {}, "just": {}, "what": {},
	"when": {}, "like": {}, "about": {}, "really": {}, "want": {}, "know": {},
}

// Extract returns the top recurring tokens from the user's side of the last
// window turns, joined by ", ". Ties in frequency break by first-encountered
// order. Returns "" when no token qualifies. window <= 0 uses DefaultWindow.
func Extract(history []store.Turn, window int) string {
	if window <= 0 {
		window = DefaultWindow
	}
	if len(history) > window {
		history = history[len(history)-window:]
	}

	type entry struct {
		token string
		count int
		first int // index of first encounter, for stable tie-breaking
	}
	counts := make(map[string]*entry)
	order := 0

	for _, turn := range history {
		if turn.Role != store.RoleUser {
			continue
		}
		for _, raw := range strings.Fields(strings.ToLower(turn.Content)) {
			token := strings.Trim(raw, punctuationCutset)
			if len([]rune(token)) <= minTokenLen {
				continue
			}
			if _, stop := stopWords[token]; stop {
				continue
			}
			if e, ok := counts[token]; ok {
				e.count++
			} else {
				counts[token] = &entry{token: token, count: 1, first: order}
				order++
			}
		}
	}

	if len(counts) == 0 {
		return ""
	}

	entries := make([]*entry, 0, len(counts))
	for _, e := range counts {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].first < entries[j].first
	})

	n := topTokens
	if len(entries) < n {
		n = len(entries)
	}
	tokens := make([]string, n)
	for i := 0; i < n; i++ {
		tokens[i] = entries[i].token
	}
	return strings.Join(tokens, ", ")
}
