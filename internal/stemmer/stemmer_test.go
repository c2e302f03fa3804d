package stemmer_test

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/deidaraiorek/deindex/internal/stemmer"
)

func newStemmer(t *testing.T, name string) *stemmer.Stemmer {
	t.Helper()
	s, err := stemmer.NewRegistry().New(name, 0)
	if err != nil {
		t.Fatalf("Failed to create stemmer %q: %v", name, err)
	}
	return s
}

func TestStem(t *testing.T) {
	s := newStemmer(t, "porter_en")

	tests := []struct {
		input    string
		expected string
	}{
		{"running", "run"},
		{"runs", "run"},
		{"walked", "walk"},
		{"cars", "car"},
		{"boxes", "box"},
		{"companies", "compani"},
		{"databases", "databas"},
		{"learning", "learn"},
		{"data", "data"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := s.Stem(tt.input, "en")
			if result != tt.expected {
				t.Errorf("Stem(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSnowballDispatch(t *testing.T) {
	s := newStemmer(t, "snowball")

	if got := s.Stem("running", "en"); got != "run" {
		t.Errorf("Stem(running, en) = %q, want %q", got, "run")
	}
	if got := s.Stem("running", ""); got != "run" {
		t.Errorf("Stem(running, \"\") = %q, want English default %q", got, "run")
	}
	if got := s.Stem("running", "xx"); got != "running" {
		t.Errorf("Stem(running, xx) = %q, want unchanged token", got)
	}
}

func TestStemCache(t *testing.T) {
	calls := 0
	r := stemmer.NewRegistry()
	r.Register("counting", func(word, lang string) (string, error) {
		calls++
		return word + "-" + lang, nil
	})
	s, err := r.New("counting", 0)
	if err != nil {
		t.Fatalf("Failed to create stemmer: %v", err)
	}

	first := s.Stem("word", "en")
	second := s.Stem("word", "en")
	other := s.Stem("word", "fr")

	if first != second {
		t.Errorf("Expected cached stem %q, got %q", first, second)
	}
	if other != "word-fr" {
		t.Errorf("Expected language to be part of the cache key, got %q", other)
	}
	if calls != 2 {
		t.Errorf("Expected 2 algorithm calls, got %d", calls)
	}
}

func TestStemFallsBackOnFailure(t *testing.T) {
	r := stemmer.NewRegistry()
	r.Register("broken", func(word, lang string) (string, error) {
		return "", errors.New("boom")
	})
	r.Register("panicky", func(word, lang string) (string, error) {
		panic("boom")
	})

	var buf bytes.Buffer
	defer slog.SetDefault(slog.Default())
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))

	for _, name := range []string{"broken", "panicky"} {
		s, err := r.New(name, 0)
		if err != nil {
			t.Fatalf("Failed to create stemmer %q: %v", name, err)
		}
		if got := s.Stem("token", "en"); got != "token" {
			t.Errorf("%s: Stem(token) = %q, want unchanged token", name, got)
		}
		if !strings.Contains(buf.String(), "level=WARN") || !strings.Contains(buf.String(), "stemmer="+name) {
			t.Errorf("%s: expected a warning for the failed stem, got %q", name, buf.String())
		}
	}
}

func TestUnknownStemmer(t *testing.T) {
	_, err := stemmer.NewRegistry().New("lancaster", 0)
	if !errors.Is(err, stemmer.ErrUnknownStemmer) {
		t.Errorf("Expected ErrUnknownStemmer, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"'quoted'", "quoted"},
		{"john's", "john"},
		{"don't", "don"},
		{"plain", "plain"},
		{"''", ""},
	}

	for _, tt := range tests {
		if got := stemmer.Normalize(tt.input); got != tt.expected {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestStemBatch(t *testing.T) {
	s := newStemmer(t, "porter_en")

	input := []string{"running", "walked", "dogs", "quickly"}
	expected := []string{"run", "walk", "dog", "quick"}

	result := s.StemBatch(input, "en")
	for i := range result {
		if result[i] != expected[i] {
			t.Errorf("Position %d: Stem(%q) = %q, want %q", i, input[i], result[i], expected[i])
		}
	}
}
