package tokenizer

import (
	"errors"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/deidaraiorek/deindex/internal/cache"
	"golang.org/x/text/language"
)

var ErrUnicodeUnsupported = errors.New("unable to split chinese characters without unicode support")

// Inputs shorter than this many runes are memoized.
const cacheableLength = 128

// Stemmer reduces a word to its root for a primary language code.
type Stemmer interface {
	Stem(token, lang string) string
}

// CommonWords tells whether a term is too frequent in a language to carry
// much meaning.
type CommonWords interface {
	IsCommon(term, lang string) bool
}

type identityStemmer struct{}

func (identityStemmer) Stem(token, _ string) string { return token }

type noCommonWords struct{}

func (noCommonWords) IsCommon(string, string) bool { return false }

type cacheKey struct {
	input  string
	lang   string
	phrase bool
}

type Tokenizer struct {
	stemmer   Stemmer
	common    CommonWords
	strategy  *Strategy
	cacheSize int
	tokens    cache.Cache[cacheKey, []Token]
	languages cache.Cache[string, string]
}

type Option func(*Tokenizer)

func WithStrategy(s *Strategy) Option {
	return func(t *Tokenizer) { t.strategy = s }
}

// WithCacheSize bounds the memoization caches. Zero, the default, never
// evicts.
func WithCacheSize(n int) Option {
	return func(t *Tokenizer) { t.cacheSize = n }
}

// New creates a tokenizer. A nil stemmer leaves terms unstemmed and a nil
// CommonWords treats every term as meaningful.
func New(stemmer Stemmer, common CommonWords, opts ...Option) *Tokenizer {
	t := &Tokenizer{
		stemmer:  stemmer,
		common:   common,
		strategy: DetectStrategy(),
	}
	if t.stemmer == nil {
		t.stemmer = identityStemmer{}
	}
	if t.common == nil {
		t.common = noCommonWords{}
	}
	for _, opt := range opts {
		opt(t)
	}
	t.tokens = cache.New[cacheKey, []Token](t.cacheSize)
	t.languages = cache.New[string, string](t.cacheSize)
	return t
}

func (t *Tokenizer) Strategy() *Strategy {
	return t.strategy
}

// Tokenize splits input into word tokens followed by the 2- and 3-word
// phrases derived from neighbouring words. With phrase set and more than one
// word, a single token for the whole phrase is returned instead.
func (t *Tokenizer) Tokenize(input, lang string, phrase bool) ([]Token, error) {
	key := cacheKey{input: input, lang: lang, phrase: phrase}
	cacheable := utf8.RuneCountInString(input) < cacheableLength
	if cacheable {
		if tokens, ok := t.tokens.Get(key); ok {
			return slices.Clone(tokens), nil
		}
	}

	primary := t.PrimaryLanguage(lang)
	text := t.strategy.Sanitize(input, languageTag(lang))
	if text == "" {
		return nil, nil
	}

	terms := strings.Split(text, " ")
	spacer := " "
	if primary == "zh" {
		if !t.strategy.Unicode() {
			return nil, ErrUnicodeUnsupported
		}
		terms = splitHan(terms)
		spacer = ""
	}

	var tokens []Token
	if phrase && len(terms) > 1 {
		tokens = []Token{t.newPhrase(terms, primary, spacer)}
	} else {
		tokens = make([]Token, 0, 3*len(terms))
		for _, term := range terms {
			tokens = append(tokens, t.newToken(term, primary))
		}

		n := len(tokens)
		for i := 0; i < n; i++ {
			if i+1 < n {
				p := t.newPhrase([]string{tokens[i].Term, tokens[i+1].Term}, primary, spacer)
				p.Derived = true
				tokens = append(tokens, p)
			}
			if i+2 < n {
				p := t.newPhrase([]string{tokens[i].Term, tokens[i+1].Term, tokens[i+2].Term}, primary, spacer)
				p.Derived = true
				tokens = append(tokens, p)
			}
		}
	}

	if cacheable {
		t.tokens.Put(key, slices.Clone(tokens))
	}
	return tokens, nil
}

// Filter applies the tokenizer's character policy to a label without
// splitting it.
func (t *Tokenizer) Filter(input string) string {
	return t.strategy.Filter(input)
}

// Reset drops memoized tokens, for example after the common word lists
// changed.
func (t *Tokenizer) Reset() {
	t.tokens.Clear()
}

// PrimaryLanguage returns the base language of a tag: "en-GB" gives "en".
func (t *Tokenizer) PrimaryLanguage(lang string) string {
	if primary, ok := t.languages.Get(lang); ok {
		return primary
	}
	primary := PrimaryLanguage(lang)
	t.languages.Put(lang, primary)
	return primary
}

func PrimaryLanguage(lang string) string {
	if tag, err := language.Parse(lang); err == nil {
		if base, conf := tag.Base(); conf != language.No {
			return base.String()
		}
	}
	if i := strings.IndexAny(lang, "-_"); i >= 0 {
		return strings.ToLower(lang[:i])
	}
	return strings.ToLower(lang)
}

func languageTag(lang string) language.Tag {
	tag, err := language.Parse(lang)
	if err != nil {
		return language.Und
	}
	return tag
}

// splitHan breaks every Han character out of its term. Chinese has no spaces
// between words, so each character is indexed on its own, in place of the
// term it came from. Whatever is left of the term stays in front.
func splitHan(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		if !strings.ContainsFunc(term, isHan) {
			out = append(out, term)
			continue
		}

		var rest strings.Builder
		var chars []string
		for _, r := range term {
			if isHan(r) {
				chars = append(chars, string(r))
			} else {
				rest.WriteRune(r)
			}
		}
		if rest.Len() > 0 {
			out = append(out, rest.String())
		}
		out = append(out, chars...)
	}
	return out
}

func isHan(r rune) bool {
	return unicode.Is(unicode.Han, r)
}
