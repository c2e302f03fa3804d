package parser

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"
)

var ErrUnsupportedFormat = errors.New("unsupported format")

// chunkSize bounds the input handed to a processor in one call so that the
// regular expressions never run over arbitrarily large strings.
const chunkSize = 2048

// Processor converts one chunk of content into plain text.
type Processor interface {
	Process(input string) (string, error)
}

type ProcessorFunc func(input string) (string, error)

func (f ProcessorFunc) Process(input string) (string, error) {
	return f(input)
}

type Parser struct {
	format    string
	processor Processor
}

func New(format string, processor Processor) *Parser {
	return &Parser{format: format, processor: processor}
}

func (p *Parser) Format() string {
	return p.format
}

// Parse runs the processor over the input, in chunks when the input is
// larger than 2KB. A chunk ends after the last whitespace before the limit so
// words are never cut in two.
func (p *Parser) Parse(input string) (string, error) {
	if len(input) <= chunkSize {
		return p.processor.Process(input)
	}

	var out strings.Builder
	boundary := false
	for _, chunk := range Chunks(input, chunkSize) {
		text, err := p.processor.Process(chunk)
		if err != nil {
			return "", fmt.Errorf("failed to parse %s chunk: %w", p.format, err)
		}
		if text != "" {
			// Processors may trim the whitespace the chunk was cut on.
			if boundary && out.Len() > 0 && !endsWithSpace(out.String()) && !startsWithSpace(text) {
				out.WriteByte(' ')
			}
			out.WriteString(text)
		}
		boundary = endsWithSpace(chunk)
	}
	return out.String(), nil
}

// Chunks splits input into pieces of at most size bytes. Every piece but the
// last ends with a whitespace byte when one exists in range, otherwise on a
// rune boundary. Concatenating the pieces gives back the input.
func Chunks(input string, size int) []string {
	var chunks []string
	for len(input) > size {
		cut := strings.LastIndexAny(input[:size], " \t\n\r\f\v")
		if cut >= 0 {
			cut++
		} else {
			cut = size
			for cut > 0 && !utf8.RuneStart(input[cut]) {
				cut--
			}
			if cut == 0 {
				cut = size
			}
		}
		chunks = append(chunks, input[:cut])
		input = input[cut:]
	}
	if input != "" {
		chunks = append(chunks, input)
	}
	return chunks
}

func endsWithSpace(s string) bool {
	return s != "" && strings.ContainsAny(s[len(s)-1:], " \t\n\r\f\v")
}

func startsWithSpace(s string) bool {
	return s != "" && strings.ContainsAny(s[:1], " \t\n\r\f\v")
}

// Registry hands out one parser per format. Formats are registered
// explicitly; nothing is resolved by name synthesis.
type Registry struct {
	mu        sync.Mutex
	factories map[string]func() Processor
	parsers   map[string]*Parser
}

func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]func() Processor),
		parsers:   make(map[string]*Parser),
	}
	r.Register("html", func() Processor { return ProcessorFunc(processHTML) })
	r.Register("rtf", func() Processor { return ProcessorFunc(processRTF) })
	r.Register("txt", func() Processor { return ProcessorFunc(processText) })
	return r
}

func (r *Registry) Register(format string, factory func() Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[format] = factory
	delete(r.parsers, format)
}

func (r *Registry) Get(format string) (*Parser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.parsers[format]; ok {
		return p, nil
	}
	factory, ok := r.factories[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	p := New(format, factory())
	r.parsers[format] = p
	return p, nil
}

// Parse is a shortcut for Get(format) followed by Parse(input).
func (r *Registry) Parse(input, format string) (string, error) {
	p, err := r.Get(format)
	if err != nil {
		return "", err
	}
	return p.Parse(input)
}
