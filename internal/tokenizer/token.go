package tokenizer

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	wordLengthCap   = 15
	phraseLengthCap = 30
	commonDivisor   = 8
	numericBoost    = 1.5
)

var (
	numberRe    = regexp.MustCompile(`^[+-]?([0-9]+\.?[0-9]*|\.[0-9]+)([eE][+-]?[0-9]+)?$`)
	numberishRe = regexp.MustCompile(`^[0-9,.\-+]+$`)
)

// Token is one word or phrase extracted from a document.
type Token struct {
	Term    string
	Stem    string
	Numeric bool
	Common  bool
	Phrase  bool
	// Derived marks 2- and 3-word phrases generated from adjacent words.
	Derived bool
	Length  int
	Weight  float64
}

// IsNumeric reports whether term is a number or made up only of digits and
// number punctuation, e.g. "1,299.00" or "555-1234".
func IsNumeric(term string) bool {
	return numberRe.MatchString(term) || numberishRe.MatchString(term)
}

// WordWeight is min(length,15)/15, divided by 8 for common words and
// multiplied by 1.5 for numbers, rounded to 4 places.
func WordWeight(length int, common, numeric bool) float64 {
	w := float64(min(length, wordLengthCap)) / wordLengthCap
	if common {
		w /= commonDivisor
	}
	if numeric {
		w *= numericBoost
	}
	return Round(w, 4)
}

// PhraseWeight is min(length,30)/30 + 1, rounded to 4 places. Phrases always
// outweigh single words.
func PhraseWeight(length int) float64 {
	return Round(float64(min(length, phraseLengthCap))/phraseLengthCap+1, 4)
}

func Round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

func (t *Tokenizer) newToken(term, lang string) Token {
	numeric := IsNumeric(term)
	common := !numeric && t.common.IsCommon(term, lang)
	length := utf8.RuneCountInString(term)

	return Token{
		Term:    term,
		Stem:    t.stemmer.Stem(term, lang),
		Numeric: numeric,
		Common:  common,
		Length:  length,
		Weight:  WordWeight(length, common, numeric),
	}
}

func (t *Tokenizer) newPhrase(terms []string, lang, spacer string) Token {
	stems := make([]string, len(terms))
	for i, term := range terms {
		stems[i] = t.stemmer.Stem(term, lang)
	}
	term := strings.Join(terms, spacer)
	length := utf8.RuneCountInString(term)

	return Token{
		Term:   term,
		Stem:   strings.Join(stems, spacer),
		Phrase: true,
		Length: length,
		Weight: PhraseWeight(length),
	}
}
