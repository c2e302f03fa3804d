package search

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/deidaraiorek/deindex/internal/parser"
	"github.com/deidaraiorek/deindex/internal/stemmer"
	"github.com/deidaraiorek/deindex/internal/storage"
	"github.com/deidaraiorek/deindex/internal/tokenizer"
)

var (
	ErrUnsupportedFormat  = parser.ErrUnsupportedFormat
	ErrUnknownStemmer     = stemmer.ErrUnknownStemmer
	ErrUnicodeUnsupported = tokenizer.ErrUnicodeUnsupported
	ErrNotFound           = storage.ErrNotFound

	// ErrInvalidDocument is returned for documents that cannot be stored,
	// such as ones with a non-finite price.
	ErrInvalidDocument = errors.New("invalid document")
)

// StoreError reports a failed read or write against the index database. The
// call that returned it was aborted and rolled back; retry the whole call.
type StoreError struct {
	Op     string
	Status int
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("search: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Status: http.StatusInternalServerError, Err: err}
}
