package search

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/deidaraiorek/deindex/internal/tokenizer"
)

// DefaultLanguage is used for documents that do not name one.
const DefaultLanguage = "en-GB"

// TaxonomyEntry is one node a document is classified under.
type TaxonomyEntry struct {
	Title  string `json:"title"`
	State  int    `json:"state"`
	Access int    `json:"access"`
}

// Document is one item to index. Content fields are indexed according to the
// document's instructions; Elements carries any extra named field, each
// element indexed on its own.
type Document struct {
	URL      string `json:"url"`
	Route    string `json:"route"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Author   string `json:"author"`
	Summary  string `json:"summary"`
	Body     string `json:"body"`
	Meta     string `json:"meta"`
	Path     string `json:"path"`
	Alias    string `json:"alias"`
	Comments string `json:"comments"`

	ListPrice float64 `json:"list_price"`
	SalePrice float64 `json:"sale_price"`

	Language string `json:"language"`
	Size     int    `json:"size"`
	State    int    `json:"state"`
	Access   int    `json:"access"`
	TypeID   int64  `json:"type_id"`
	Ordering int    `json:"ordering"`
	Views    int    `json:"views"`

	PublishStartDate string `json:"publish_start_date"`
	PublishEndDate   string `json:"publish_end_date"`
	StartDate        string `json:"start_date"`
	EndDate          string `json:"end_date"`

	Elements map[string][]string `json:"elements,omitempty"`

	instructions map[Context][]string
	taxonomy     map[string]map[string]TaxonomyEntry
}

// NewDocument returns a published document for url in the default language.
func NewDocument(url string) *Document {
	return &Document{
		URL:      url,
		Language: DefaultLanguage,
		State:    1,
	}
}

func defaultInstructions() map[Context][]string {
	return map[Context][]string{
		TitleContext: {"title", "subtitle", "id"},
		TextContext:  {"summary", "body"},
		MetaContext:  {"meta", "list_price", "sale_price"},
		PathContext:  {"path", "alias"},
		MiscContext:  {"comments"},
	}
}

func validContext(c Context) bool {
	return c >= TitleContext && c <= MiscContext
}

// Instructions returns the fields indexed under each context.
func (d *Document) Instructions() map[Context][]string {
	if d.instructions == nil {
		return defaultInstructions()
	}
	out := make(map[Context][]string, len(d.instructions))
	for c, fields := range d.instructions {
		out[c] = slices.Clone(fields)
	}
	return out
}

func (d *Document) ensureInstructions() {
	if d.instructions == nil {
		d.instructions = defaultInstructions()
	}
}

// AddInstruction indexes field under context c. A field already listed under
// another context moves to c.
func (d *Document) AddInstruction(c Context, field string) {
	if !validContext(c) {
		return
	}
	d.ensureInstructions()
	d.removeField(field)
	d.instructions[c] = append(d.instructions[c], field)
}

// RemoveInstruction stops indexing field under any context.
func (d *Document) RemoveInstruction(field string) {
	d.ensureInstructions()
	d.removeField(field)
}

func (d *Document) removeField(field string) {
	for c, fields := range d.instructions {
		d.instructions[c] = slices.DeleteFunc(fields, func(f string) bool { return f == field })
	}
}

// AddTaxonomy classifies the document under node title of branch. Both names
// are reduced to the characters the tokenizer keeps; entries left empty are
// ignored.
func (d *Document) AddTaxonomy(branch, title string, state, access int) {
	filter := tokenizer.DetectStrategy().Filter
	branch = filter(branch)
	title = filter(title)
	if branch == "" || title == "" {
		return
	}

	if d.taxonomy == nil {
		d.taxonomy = make(map[string]map[string]TaxonomyEntry)
	}
	if d.taxonomy[branch] == nil {
		d.taxonomy[branch] = make(map[string]TaxonomyEntry)
	}
	d.taxonomy[branch][title] = TaxonomyEntry{Title: title, State: state, Access: access}
}

func (d *Document) RemoveTaxonomy(branch, title string) {
	nodes, ok := d.taxonomy[branch]
	if !ok {
		return
	}
	delete(nodes, title)
	if len(nodes) == 0 {
		delete(d.taxonomy, branch)
	}
}

// Taxonomy returns a copy of the document's classification.
func (d *Document) Taxonomy() map[string]map[string]TaxonomyEntry {
	out := make(map[string]map[string]TaxonomyEntry, len(d.taxonomy))
	for branch, nodes := range d.taxonomy {
		out[branch] = maps.Clone(nodes)
	}
	return out
}

// Branch returns the entries of one branch ordered by title.
func (d *Document) Branch(branch string) []TaxonomyEntry {
	nodes := d.taxonomy[branch]
	out := make([]TaxonomyEntry, 0, len(nodes))
	for _, title := range slices.Sorted(maps.Keys(nodes)) {
		out = append(out, nodes[title])
	}
	return out
}

// Field returns the values of a named field. Unset fields give nil.
func (d *Document) Field(name string) []string {
	var v string
	switch name {
	case "url":
		v = d.URL
	case "route":
		v = d.Route
	case "title":
		v = d.Title
	case "subtitle":
		v = d.Subtitle
	case "author":
		v = d.Author
	case "summary":
		v = d.Summary
	case "body":
		v = d.Body
	case "meta":
		v = d.Meta
	case "path":
		v = d.Path
	case "alias":
		v = d.Alias
	case "comments":
		v = d.Comments
	case "list_price":
		v = formatPrice(d.ListPrice)
	case "sale_price":
		v = formatPrice(d.SalePrice)
	default:
		return slices.DeleteFunc(slices.Clone(d.Elements[name]), func(s string) bool { return s == "" })
	}
	if v == "" {
		return nil
	}
	return []string{v}
}

func formatPrice(p float64) string {
	if p == 0 {
		return ""
	}
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// signedContent is everything that decides a document's index entries.
type signedContent struct {
	Document     Document                            `json:"document"`
	Instructions map[Context][]string                `json:"instructions"`
	Taxonomy     map[string]map[string]TaxonomyEntry `json:"taxonomy"`
	Stem         bool                                `json:"stem"`
	Stemmer      string                              `json:"stemmer"`
	Weights      Weights                             `json:"weights"`
}

// Signature hashes the document content together with the options that
// affect indexing. View counts are left out so a view bump alone never
// triggers re-indexing.
func (d *Document) Signature(opts Options) string {
	doc := *d
	doc.Views = 0

	payload, err := json.Marshal(signedContent{
		Document:     doc,
		Instructions: d.Instructions(),
		Taxonomy:     d.taxonomy,
		Stem:         opts.Stem,
		Stemmer:      opts.Stemmer,
		Weights:      opts.Weight,
	})
	if err != nil {
		// Only non-finite prices get here; fmt prints maps sorted too.
		payload = []byte(fmt.Sprintf("%#v", doc) + fmt.Sprintf("%v%v%v", d.Instructions(), d.taxonomy, opts))
	}
	sum := md5.Sum(payload)
	return hex.EncodeToString(sum[:])
}

// object is the stored copy of the document.
func (d *Document) object() ([]byte, error) {
	data, err := json.Marshal(struct {
		*Document
		Instructions map[Context][]string                `json:"instructions"`
		Taxonomy     map[string]map[string]TaxonomyEntry `json:"taxonomy,omitempty"`
	}{d, d.Instructions(), d.taxonomy})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return data, nil
}
