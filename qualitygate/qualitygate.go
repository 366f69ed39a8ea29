// Package qualitygate validates that a candidate sentence is audio-ready
// before it is allowed into a job's final result.
package qualitygate

import (
	"strings"
	"unicode"
)

// Config tunes the length rule; zero values fall back to the documented
// defaults (4 and 8 words).
type Config struct {
	MinWords int
	MaxWords int
	// HasPOSTagger reports whether a verb-presence check can be performed.
	// When false, rule 4 (verb presence) is skipped entirely rather than
	// rejecting for a reason the gate cannot verify.
	HasPOSTagger func(sentence string) (hasVerb bool, ok bool)
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{MinWords: 4, MaxWords: 8}
}

// fragmentLeaders are coordinating conjunctions and prepositions that make
// a sentence look like a fragment when they open it.
var fragmentLeaders = map[string]bool{
	"et": true, "mais": true, "donc": true, "car": true, "or": true,
	"de": true, "à": true, "pour": true, "par": true,
}

var terminalPunctuation = []rune{'.', '!', '?', '…', '»', '"'}

// Validate runs the ordered, short-circuiting rule chain against one
// sentence and reports whether it survives, with a reason when it doesn't.
func Validate(sentence string, cfg Config) (accepted bool, reason string) {
	trimmed := strings.TrimSpace(sentence)
	if trimmed == "" {
		return false, "empty"
	}

	minWords, maxWords := cfg.MinWords, cfg.MaxWords
	if minWords <= 0 {
		minWords = 4
	}
	if maxWords <= 0 {
		maxWords = 8
	}

	words := strings.Fields(trimmed)
	if len(words) < minWords || len(words) > maxWords {
		return false, "length"
	}

	if !startsCapitalized(trimmed) {
		return false, "capitalization"
	}

	if !endsWithTerminalPunctuation(trimmed) {
		return false, "terminal_punctuation"
	}

	hasVerb, verbCheckPossible := true, false
	if cfg.HasPOSTagger != nil {
		hasVerb, verbCheckPossible = cfg.HasPOSTagger(trimmed)
		if verbCheckPossible && !hasVerb {
			return false, "no_verb"
		}
	}

	if isFragment(words, verbCheckPossible && hasVerb) {
		return false, "fragment"
	}

	return true, ""
}

// RejectedSentence pairs a dropped sentence with why it was dropped, for
// logging only — reasons are never surfaced to end users.
type RejectedSentence struct {
	Sentence string
	Reason   string
}

// ValidateBatch partitions sentences into accepted and rejected-with-reasons.
func ValidateBatch(sentences []string, cfg Config) (kept []string, rejected []RejectedSentence) {
	for _, s := range sentences {
		if ok, reason := Validate(s, cfg); ok {
			kept = append(kept, s)
		} else {
			rejected = append(rejected, RejectedSentence{Sentence: s, Reason: reason})
		}
	}
	return kept, rejected
}

func startsCapitalized(s string) bool {
	runes := []rune(s)
	if len(runes) == 0 {
		return false
	}
	first := runes[0]
	if first == '«' || first == '"' {
		rest := []rune(strings.TrimLeftFunc(string(runes[1:]), unicode.IsSpace))
		if len(rest) == 0 {
			return false
		}
		return unicode.IsUpper(rest[0])
	}
	return unicode.IsUpper(first)
}

func endsWithTerminalPunctuation(s string) bool {
	runes := []rune(strings.TrimRight(s, " \t\n"))
	if len(runes) == 0 {
		return false
	}
	last := runes[len(runes)-1]
	for _, p := range terminalPunctuation {
		if last == p {
			return true
		}
	}
	return false
}

// gerundSuffix marks a French present participle/gerund ("-ant"), the
// form rule 5's second sub-rule rejects when it stands in for a finite
// verb, e.g. "Marchant dans la rue sombre." has no conjugated verb at all.
const gerundSuffix = "ant"

// isFragment applies the heuristics from rule 5: a lone leading
// conjunction/preposition with no verb match, or a sentence that
// consists solely of a participle/gerund with no finite verb.
func isFragment(words []string, hasVerbMatch bool) bool {
	if len(words) == 0 {
		return false
	}
	leader := strings.ToLower(strings.Trim(words[0], ".,;:!?«»\""))
	if hasVerbMatch {
		return false
	}
	if fragmentLeaders[leader] {
		return true
	}
	return isBareParticiple(leader)
}

// isBareParticiple reports whether the sentence's leading word is a
// gerund/present-participle form rather than a finite verb. Without a
// POS tagger this is a suffix heuristic, not a morphological analysis.
func isBareParticiple(leader string) bool {
	return len(leader) > len(gerundSuffix)+1 && strings.HasSuffix(leader, gerundSuffix)
}
