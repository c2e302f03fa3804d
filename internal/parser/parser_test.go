package parser

import (
	"errors"
	"strings"
	"testing"
)

func TestParseHTML(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"<p>Hello&nbsp;<b>World</b></p>", "Hello World"},
		{"<div>one</div><div>two</div>", "one two"},
		{"<p>Caf&eacute; &amp; bar</p>", "Café & bar"},
		{"<p>keep</p><script>alert('gone')</script><p>this</p>", "keep this"},
		{"plain text", "plain text"},
		{"", ""},
	}

	r := NewRegistry()
	for _, tt := range tests {
		result, err := r.Parse(tt.input, "html")
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", tt.input, err)
		}
		if result != tt.expected {
			t.Errorf("Parse(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestParseRTF(t *testing.T) {
	input := `{\rtf1\ansi{\fonttbl\f0\fswiss Helvetica;}\f0\pard This is some {\b bold} text.\par}`

	result, err := NewRegistry().Parse(input, "rtf")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if got := strings.Join(strings.Fields(result), " "); got != "This is some bold text." {
		t.Errorf("Parse(rtf) = %q, want %q", got, "This is some bold text.")
	}
}

func TestParseRTFDropsPictures(t *testing.T) {
	input := `before {\pict\pngblip 89504e470d0a} after`

	result, err := NewRegistry().Parse(input, "rtf")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if strings.Contains(result, "89504e") {
		t.Errorf("Parse(rtf) = %q, picture data not removed", result)
	}
	if got := strings.Join(strings.Fields(result), " "); got != "before after" {
		t.Errorf("Parse(rtf) = %q, want %q", got, "before after")
	}
}

func TestParseTextIsIdentity(t *testing.T) {
	long := strings.Repeat("lorem ipsum dolor sit amet ", 400)

	for _, input := range []string{"", "Hello, World!", long} {
		result, err := NewRegistry().Parse(input, "txt")
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		if result != input {
			t.Errorf("Parse(txt) changed a %d byte input", len(input))
		}
	}
}

func TestParseLargeHTMLKeepsWords(t *testing.T) {
	input := strings.Repeat("<p>bicycle</p> ", 500)

	result, err := NewRegistry().Parse(input, "html")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	words := strings.Fields(result)
	if len(words) != 500 {
		t.Fatalf("got %d words, want 500", len(words))
	}
	for _, w := range words {
		if w != "bicycle" {
			t.Fatalf("found split word %q", w)
		}
	}
}

func TestChunks(t *testing.T) {
	input := strings.Repeat("abcdefghi ", 500)
	chunks := Chunks(input, chunkSize)

	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(chunks))
	}
	if strings.Join(chunks, "") != input {
		t.Error("chunks do not reassemble the input")
	}
	for i, c := range chunks {
		if len(c) > chunkSize {
			t.Errorf("chunk %d is %d bytes", i, len(c))
		}
		if i < len(chunks)-1 && !strings.HasSuffix(c, " ") {
			t.Errorf("chunk %d ends mid-word: %q", i, c[len(c)-10:])
		}
	}
}

func TestChunksWithoutWhitespace(t *testing.T) {
	input := strings.Repeat("é", 3000)
	chunks := Chunks(input, chunkSize)

	if strings.Join(chunks, "") != input {
		t.Error("chunks do not reassemble the input")
	}
	for i, c := range chunks {
		if !strings.HasPrefix(c, "é") {
			t.Errorf("chunk %d does not start on a rune boundary", i)
		}
	}
}

func TestUnsupportedFormat(t *testing.T) {
	_, err := NewRegistry().Parse("x", "docx")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Parse(docx) error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestRegisterCustomProcessor(t *testing.T) {
	r := NewRegistry()
	r.Register("upper", func() Processor {
		return ProcessorFunc(func(s string) (string, error) { return strings.ToUpper(s), nil })
	})

	result, err := r.Parse("abc", "upper")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if result != "ABC" {
		t.Errorf("Parse(upper) = %q, want %q", result, "ABC")
	}

	first, _ := r.Get("upper")
	second, _ := r.Get("upper")
	if first != second {
		t.Error("Get returned a new parser for a cached format")
	}
}
