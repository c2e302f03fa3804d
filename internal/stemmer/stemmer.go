package stemmer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/deidaraiorek/deindex/internal/cache"
	"github.com/kljensen/snowball"
	"github.com/kljensen/snowball/english"
	slogctx "github.com/veqryn/slog-context"
)

var ErrUnknownStemmer = errors.New("unknown stemmer")

// Algorithm reduces a normalized word to its root for the given primary
// language code. An error makes the stemmer fall back to the word itself.
type Algorithm func(word, lang string) (string, error)

// snowballLanguages maps primary language codes to the names understood by
// snowball.Stem.
var snowballLanguages = map[string]string{
	"da": "danish",
	"de": "german",
	"en": "english",
	"es": "spanish",
	"fi": "finnish",
	"fr": "french",
	"hu": "hungarian",
	"it": "italian",
	"nb": "norwegian",
	"nn": "norwegian",
	"no": "norwegian",
	"nl": "dutch",
	"pt": "portuguese",
	"ro": "romanian",
	"ru": "russian",
	"sv": "swedish",
	"tr": "turkish",
}

func porterEnglish(word, _ string) (string, error) {
	return english.Stem(word, true), nil
}

func snowballStem(word, lang string) (string, error) {
	name, ok := snowballLanguages[lang]
	if !ok {
		return word, nil
	}
	return snowball.Stem(word, name, true)
}

type Registry struct {
	algorithms map[string]Algorithm
}

func NewRegistry() *Registry {
	r := &Registry{algorithms: make(map[string]Algorithm)}
	r.Register("porter_en", porterEnglish)
	r.Register("snowball", snowballStem)
	return r
}

func (r *Registry) Register(name string, algorithm Algorithm) {
	r.algorithms[name] = algorithm
}

// New builds a stemmer for a registered algorithm. cacheSize follows
// cache.New: zero keeps every stem for the lifetime of the stemmer.
func (r *Registry) New(name string, cacheSize int) (*Stemmer, error) {
	algorithm, ok := r.algorithms[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStemmer, name)
	}
	return &Stemmer{
		name:      name,
		algorithm: algorithm,
		cache:     cache.New[cacheKey, string](cacheSize),
	}, nil
}

type cacheKey struct {
	lang  string
	token string
}

type Stemmer struct {
	name      string
	algorithm Algorithm
	cache     cache.Cache[cacheKey, string]
}

func (s *Stemmer) Name() string {
	return s.name
}

// Stem never fails: when the algorithm errors the normalized token is
// returned unchanged.
func (s *Stemmer) Stem(token, lang string) string {
	token = Normalize(token)
	if token == "" {
		return token
	}
	if lang == "" {
		lang = "en"
	}

	key := cacheKey{lang: lang, token: token}
	if stem, ok := s.cache.Get(key); ok {
		return stem
	}

	stem, err := s.safeStem(token, lang)
	if err != nil {
		slogctx.Warn(context.Background(), "Stemming failed, keeping token",
			"stemmer", s.name, "lang", lang, "token", token, "error", err)
		stem = token
	}

	s.cache.Put(key, stem)
	return stem
}

func (s *Stemmer) StemBatch(tokens []string, lang string) []string {
	stemmed := make([]string, len(tokens))
	for i, token := range tokens {
		stemmed[i] = s.Stem(token, lang)
	}
	return stemmed
}

func (s *Stemmer) safeStem(token, lang string) (stem string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stemmer panic: %v", r)
		}
	}()
	return s.algorithm(token, lang)
}

// Normalize trims apostrophes at both ends and cuts the token at any
// apostrophe left inside it, so possessives and contractions stem to the
// base word.
func Normalize(token string) string {
	token = strings.Trim(token, "'")
	if i := strings.IndexByte(token, '\''); i >= 0 {
		token = token[:i]
	}
	return token
}
