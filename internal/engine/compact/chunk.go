package compact

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/width"
)

// sentenceEnders terminate a clause in OCR text (Latin and CJK forms).
const sentenceEnders = "。.!?！？"

// secondaryDelims split UI-style text that carries no sentence
// punctuation (breadcrumbs, menus, tab strips).
const secondaryDelims = "▶→・|•"

// Chunks splits OCR text into ordered minimal units via a priority
// cascade: sentence-ending punctuation when present, otherwise
// UI-glyph delimiters, otherwise whitespace. Coarser splits win so
// multi-clause context survives whenever punctuation exists. Empty or
// whitespace-only text yields nil.
func Chunks(text string) []string {
	t := strings.Join(strings.Fields(text), " ")
	if t == "" {
		return nil
	}
	if strings.ContainsAny(t, sentenceEnders) {
		return splitSentences(t)
	}
	if parts := splitDelims(t); len(parts) > 1 {
		return parts
	}
	return strings.Fields(t)
}

// splitSentences cuts after a run of sentence-ending punctuation that
// is followed by whitespace. The whitespace is consumed.
func splitSentences(t string) []string {
	var out []string
	runes := []rune(t)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !strings.ContainsRune(sentenceEnders, runes[i]) {
			continue
		}
		j := i
		for j+1 < len(runes) && strings.ContainsRune(sentenceEnders, runes[j+1]) {
			j++
		}
		if j+1 < len(runes) && runes[j+1] == ' ' {
			part := strings.TrimSpace(string(runes[start : j+1]))
			if part != "" {
				out = append(out, part)
			}
			start = j + 2
		}
		i = j
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		out = append(out, rest)
	}
	return out
}

func splitDelims(t string) []string {
	parts := strings.FieldsFunc(t, func(r rune) bool {
		return strings.ContainsRune(secondaryDelims, r)
	})
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// strippedRunes vanish from dedup keys: quotes, brackets, clause
// punctuation, and the secondary delimiters themselves.
const strippedRunes = `"'“”‘’（）()【】[]<>、。.!?！？・|•▶→`

// Key normalizes a chunk into its deduplication key: width-folded,
// lowercased, quotes/brackets/punctuation stripped, whitespace
// collapsed. OCR renders the same screen text with full-width and
// half-width variants across captures; folding keeps those from
// defeating dedup. The key is for comparison only — emitted text
// keeps its original form.
func Key(chunk string) string {
	t := strings.Join(strings.Fields(chunk), " ")
	if t == "" {
		return ""
	}
	t = width.Fold.String(t)
	t = cases.Lower(language.Und).String(t)
	t = strings.Map(func(r rune) rune {
		if strings.ContainsRune(strippedRunes, r) {
			return -1
		}
		return r
	}, t)
	return strings.TrimSpace(t)
}
