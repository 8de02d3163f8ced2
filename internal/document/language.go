package document

import (
	"strings"
	"unicode"
)

// LanguageUnknown is reported when too few stopwords were seen.
const LanguageUnknown = "und"

const minStopwordHits = 3

type Language struct {
	Code       string  `json:"code"`
	Confidence float64 `json:"confidence"`
}

var stopwords = map[string][]string{
	"en": {"the", "and", "of", "to", "in", "is", "for", "with", "you", "that", "are", "on", "as", "we", "our", "will", "be", "have"},
	"fr": {"le", "la", "les", "et", "des", "du", "un", "une", "pour", "avec", "est", "dans", "vous", "nous", "sur", "au", "en"},
	"es": {"el", "la", "los", "las", "y", "de", "del", "un", "una", "para", "con", "es", "en", "que", "por", "nuestro", "experiencia"},
	"de": {"der", "die", "das", "und", "ist", "mit", "für", "ein", "eine", "wir", "sie", "auf", "den", "zu", "im", "erfahrung"},
	"it": {"il", "lo", "gli", "le", "e", "di", "della", "un", "una", "per", "con", "che", "è", "nel", "sono", "esperienza"},
	"pt": {"o", "os", "as", "e", "de", "do", "da", "um", "uma", "para", "com", "que", "em", "não", "você", "experiência"},
}

var stopwordIndex = func() map[string][]string {
	idx := map[string][]string{}
	for lang, words := range stopwords {
		for _, w := range words {
			idx[w] = append(idx[w], lang)
		}
	}
	return idx
}()

// DetectLanguage picks the language whose stopwords occur most in text.
// Confidence is the winner's share of all stopword hits.
func DetectLanguage(text string) Language {
	hits := map[string]int{}
	total := 0
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		langs := stopwordIndex[w]
		for _, l := range langs {
			hits[l]++
		}
		if len(langs) > 0 {
			total++
		}
	}

	best, bestHits := LanguageUnknown, 0
	for _, code := range []string{"en", "fr", "es", "de", "it", "pt"} {
		if hits[code] > bestHits {
			best, bestHits = code, hits[code]
		}
	}
	if bestHits < minStopwordHits {
		return Language{Code: LanguageUnknown}
	}
	conf := float64(bestHits) / float64(total)
	return Language{Code: best, Confidence: float64(int(conf*100+0.5)) / 100}
}
