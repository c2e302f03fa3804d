package tokenizer

import (
	"strings"
	"sync"
	"time"

	"github.com/dlclark/regexp2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// maxPasses bounds the sanitizer loop. Real input settles after two or three
// passes; the bound only guards against a pathological rule interaction.
const maxPasses = 16

const matchTimeout = 5 * time.Second

type rule struct {
	re   *regexp2.Regexp
	repl string
}

func mustRule(pattern, repl string) rule {
	re := regexp2.MustCompile(pattern, regexp2.None)
	re.MatchTimeout = matchTimeout
	return rule{re: re, repl: repl}
}

// Strategy is one sanitization pipeline. The Unicode strategy understands
// letters, marks and numbers in every script; the ASCII strategy is the
// fallback for regex engines without Unicode character classes.
type Strategy struct {
	name    string
	unicode bool
	allowed rule
	steps   []rule
}

func (s *Strategy) Name() string {
	return s.name
}

// Unicode reports whether the strategy recognizes non-Latin scripts.
func (s *Strategy) Unicode() bool {
	return s.unicode
}

var (
	unicodeOnce = sync.OnceValue(func() *Strategy {
		allowed := mustRule(`[^\p{L}\p{M}\p{N}\p{Pi}\p{Pf}'+\-.,]+`, " ")
		return &Strategy{
			name:    "unicode",
			unicode: true,
			allowed: allowed,
			steps: []rule{
				allowed,
				mustRule(`(?<=^|\s)[+\-.,]+(?=[\p{L}\p{M}])`, ""),
				mustRule(`(?<=[\p{L}\p{M}\p{N}])[+\-.,]+(?=\s|$)`, ""),
				mustRule(`(?<=[\p{L}\p{M}])[+.,]+(?=[\p{L}\p{M}])`, " "),
				mustRule(`(?<=^|\s)['+\-.,]+(?=\s|$)`, " "),
				mustRule(`(?<=^|\s)[\p{Pi}\p{Pf}]+(?=\s|$)`, " "),
				mustRule(`[‘’']+`, "'"),
			},
		}
	})

	asciiOnce = sync.OnceValue(func() *Strategy {
		allowed := mustRule(`[^a-zA-Z0-9_‘’'+\-.,]+`, " ")
		return &Strategy{
			name:    "ascii",
			unicode: false,
			allowed: allowed,
			steps: []rule{
				allowed,
				mustRule(`(?<=^|\s)[+\-.,]+(?=[a-z0-9_])`, ""),
				mustRule(`(?<=[a-z0-9_])[+\-.,]+(?=\s|$)`, ""),
				mustRule(`(?<=[^0-9\s+\-.,])[+.,]+(?=[^0-9\s+\-.,])`, " "),
				mustRule(`(?<=^|\s)['+\-.,]+(?=\s|$)`, " "),
				mustRule(`(?<=^|\s)[‘’]+(?=\s|$)`, " "),
				mustRule(`[‘’']+`, "'"),
			},
		}
	})

	detected = sync.OnceValue(func() *Strategy {
		probe, err := regexp2.Compile(`\p{L}`, regexp2.None)
		if err != nil {
			return asciiOnce()
		}
		if ok, err := probe.MatchString("a"); err != nil || !ok {
			return asciiOnce()
		}
		return unicodeOnce()
	})
)

func UnicodeStrategy() *Strategy {
	return unicodeOnce()
}

func ASCIIStrategy() *Strategy {
	return asciiOnce()
}

// DetectStrategy probes the regex engine once per process and returns the
// Unicode strategy when character properties are supported.
func DetectStrategy() *Strategy {
	return detected()
}

// Sanitize lowercases input for the given language and reduces it to
// space-separated words. The rules are reapplied until the text stops
// changing, so sanitizing sanitized text is a no-op.
func (s *Strategy) Sanitize(input string, tag language.Tag) string {
	text := cases.Lower(tag).String(input)

	for pass := 0; pass < maxPasses; pass++ {
		next := s.pass(text)
		if next == text {
			break
		}
		text = next
	}
	return text
}

func (s *Strategy) pass(text string) string {
	for _, r := range s.steps {
		out, err := r.re.Replace(text, r.repl, -1, -1)
		if err != nil {
			// Only a match timeout gets here; keep what we have.
			break
		}
		text = out
	}
	return collapse(text)
}

// Filter replaces every character the tokenizer would discard with a space
// and trims the result. Unlike Sanitize it neither lowercases nor splits, so
// labels keep their spelling.
func (s *Strategy) Filter(input string) string {
	out, err := s.allowed.re.Replace(input, s.allowed.repl, -1, -1)
	if err != nil {
		return strings.TrimSpace(input)
	}
	return strings.TrimSpace(out)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
