package search

import (
	"errors"
	"fmt"
)

// Context is the relevance category a field is indexed under.
type Context int

const (
	TitleContext Context = iota + 1
	TextContext
	MetaContext
	PathContext
	MiscContext
)

// Contexts lists every context in aggregation order.
var Contexts = []Context{TitleContext, TextContext, MetaContext, PathContext, MiscContext}

func (c Context) String() string {
	switch c {
	case TitleContext:
		return "title"
	case TextContext:
		return "text"
	case MetaContext:
		return "meta"
	case PathContext:
		return "path"
	case MiscContext:
		return "misc"
	}
	return fmt.Sprintf("context(%d)", int(c))
}

// Weights multiply a term's weight by the context it was found in.
type Weights struct {
	Title float64 `yaml:"title_multiplier" json:"title"`
	Text  float64 `yaml:"text_multiplier" json:"text"`
	Meta  float64 `yaml:"meta_multiplier" json:"meta"`
	Path  float64 `yaml:"path_multiplier" json:"path"`
	Misc  float64 `yaml:"misc_multiplier" json:"misc"`
}

func (w Weights) Multiplier(c Context) float64 {
	switch c {
	case TitleContext:
		return w.Title
	case TextContext:
		return w.Text
	case MetaContext:
		return w.Meta
	case PathContext:
		return w.Path
	case MiscContext:
		return w.Misc
	}
	return 0
}

type Options struct {
	Stem    bool    `yaml:"stem"`
	Stemmer string  `yaml:"stemmer"`
	Weight  Weights `yaml:"weight"`
	// MemoryTableLimit is the number of tokens an indexing call keeps in
	// memory before moving them to the tokens table.
	MemoryTableLimit int `yaml:"memory_table_limit"`
	// CacheSize bounds the tokenizer, stemmer and taxonomy caches; zero
	// never evicts.
	CacheSize int `yaml:"cache_size"`
}

func DefaultOptions() Options {
	return Options{
		Stem:    true,
		Stemmer: "porter_en",
		Weight: Weights{
			Title: 1.7,
			Text:  0.7,
			Meta:  1.2,
			Path:  2.0,
			Misc:  0.3,
		},
		MemoryTableLimit: 30000,
	}
}

func (o Options) Validate() error {
	var errs []error
	if o.Stemmer == "" {
		errs = append(errs, errors.New("stemmer must be set"))
	}
	for _, c := range Contexts {
		if o.Weight.Multiplier(c) < 0 {
			errs = append(errs, fmt.Errorf("%s multiplier must not be negative", c))
		}
	}
	if o.MemoryTableLimit <= 0 {
		errs = append(errs, errors.New("memory_table_limit must be positive"))
	}
	if o.CacheSize < 0 {
		errs = append(errs, errors.New("cache_size must not be negative"))
	}
	return errors.Join(errs...)
}
