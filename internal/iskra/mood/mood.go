// Package mood classifies free text into a small set of mood labels via
// keyword membership. Classification is deterministic: the same text always
// yields the same label.
package mood

import "strings"

// Mood is one of the fixed labels the classifier can produce.
type Mood string

const (
	Joy     Mood = "joy"
	Sadness Mood = "sadness"
	Anger   Mood = "anger"
	Calm    Mood = "calm"
	Neutral Mood = "neutral"
)

// Keywords maps each non-neutral mood to its membership set. The sets are
// mostly Russian (the bot's audience) with a few English cognates.
type Keywords struct {
	Joy     []string
	Sadness []string
	Anger   []string
	Calm    []string
}

// DefaultKeywords returns the built-in keyword sets.
func DefaultKeywords() Keywords {
	return Keywords{
		Joy:     []string{"рад", "счаст", "здорово", "отлично", "круто", "ура", "happy", "great"},
		Sadness: []string{"груст", "печал", "тоск", "плак", "одинок", "плохо", "sad", "lonely"},
		Anger:   []string{"злюсь", "злость", "бесит", "ненавиж", "раздраж", "ярост", "angry", "hate"},
		Calm:    []string{"спокой", "тихо", "умиротвор", "рассла", "calm", "peace"},
	}
}

// Classifier assigns mood labels to text.
type Classifier struct {
	keywords Keywords
}

// New returns a Classifier using the given keyword sets. Empty sets fall back
// to the defaults, so a partial override keeps the rest intact.
func New(kw Keywords) *Classifier {
	def := DefaultKeywords()
	if len(kw.Joy) == 0 {
		kw.Joy = def.Joy
	}
	if len(kw.Sadness) == 0 {
		kw.Sadness = def.Sadness
	}
	if len(kw.Anger) == 0 {
		kw.Anger = def.Anger
	}
	if len(kw.Calm) == 0 {
		kw.Calm = def.Calm
	}
	return &Classifier{keywords: kw}
}

// Classify returns the mood of text. The keyword sets are tested in a fixed
// priority order — joy, sadness, anger, calm — and the first matching set
// wins, so a message containing both a joy word and an anger word is joy.
// No match yields Neutral.
func (c *Classifier) Classify(text string) Mood {
	lower := strings.ToLower(text)

	ordered := []struct {
		mood  Mood
		words []string
	}{
		{Joy, c.keywords.Joy},
		{Sadness, c.keywords.Sadness},
		{Anger, c.keywords.Anger},
		{Calm, c.keywords.Calm},
	}

	for _, set := range ordered {
		for _, w := range set.words {
			if strings.Contains(lower, w) {
				return set.mood
			}
		}
	}
	return Neutral
}
