package storage

import (
	"fmt"
	"regexp"
	"strings"
)

// ShardCount is the number of link-term mapping tables.
const ShardCount = 16

// NullDate marks a missing date in the links table.
const NullDate = "0000-00-00 00:00:00"

// RootNodeID is the taxonomy row every branch hangs from.
const RootNodeID = 1

var prefixRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// schema is written against the placeholder prefix "#__".
const schema = `
-- One row per indexed document
CREATE TABLE IF NOT EXISTS #__links (
    link_id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT UNIQUE NOT NULL,
    route TEXT NOT NULL DEFAULT '',
    title TEXT NOT NULL DEFAULT '',
    author TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    indexdate DATETIME DEFAULT CURRENT_TIMESTAMP,
    md5sum TEXT NOT NULL DEFAULT '',
    published INTEGER NOT NULL DEFAULT 1,
    state INTEGER NOT NULL DEFAULT 1,
    access INTEGER NOT NULL DEFAULT 0,
    language TEXT NOT NULL DEFAULT '',
    size INTEGER NOT NULL DEFAULT 0,
    type_id INTEGER NOT NULL DEFAULT 0,
    publish_start_date TEXT NOT NULL DEFAULT '0000-00-00 00:00:00',
    publish_end_date TEXT NOT NULL DEFAULT '0000-00-00 00:00:00',
    start_date TEXT NOT NULL DEFAULT '0000-00-00 00:00:00',
    end_date TEXT NOT NULL DEFAULT '0000-00-00 00:00:00',
    list_price REAL NOT NULL DEFAULT 0,
    sale_price REAL NOT NULL DEFAULT 0,
    ordering INTEGER NOT NULL DEFAULT 0,
    views INTEGER NOT NULL DEFAULT 0,
    object BLOB
);
CREATE INDEX IF NOT EXISTS idx_#__links_type ON #__links(type_id);
CREATE INDEX IF NOT EXISTS idx_#__links_md5 ON #__links(md5sum);

-- Terms dictionary shared by all documents; links counts referencing documents
CREATE TABLE IF NOT EXISTS #__terms (
    term_id INTEGER PRIMARY KEY AUTOINCREMENT,
    term TEXT UNIQUE NOT NULL,
    stem TEXT NOT NULL DEFAULT '',
    common INTEGER NOT NULL DEFAULT 0,
    phrase INTEGER NOT NULL DEFAULT 0,
    weight REAL NOT NULL DEFAULT 0,
    soundex TEXT NOT NULL DEFAULT '',
    links INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_#__terms_stem ON #__terms(stem);
CREATE INDEX IF NOT EXISTS idx_#__terms_soundex ON #__terms(soundex);
CREATE INDEX IF NOT EXISTS idx_#__terms_links ON #__terms(links);

-- Scratch rows of one indexing call once it outgrows memory
CREATE TABLE IF NOT EXISTS #__tokens (
    run_id TEXT NOT NULL,
    term TEXT NOT NULL,
    stem TEXT NOT NULL DEFAULT '',
    common INTEGER NOT NULL DEFAULT 0,
    phrase INTEGER NOT NULL DEFAULT 0,
    weight REAL NOT NULL DEFAULT 0,
    context INTEGER NOT NULL,
    language TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_#__tokens_run ON #__tokens(run_id, context, term);

-- Branches have parent_id 1, nodes hang from a branch
CREATE TABLE IF NOT EXISTS #__taxonomy (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    parent_id INTEGER NOT NULL DEFAULT 0,
    title TEXT NOT NULL,
    state INTEGER NOT NULL DEFAULT 1,
    access INTEGER NOT NULL DEFAULT 0,
    ordering INTEGER NOT NULL DEFAULT 0,
    UNIQUE (parent_id, title)
);
INSERT OR IGNORE INTO #__taxonomy (id, parent_id, title, state, access) VALUES (1, 0, 'ROOT', 1, 0);

CREATE TABLE IF NOT EXISTS #__taxonomy_map (
    link_id INTEGER NOT NULL,
    node_id INTEGER NOT NULL,
    PRIMARY KEY (link_id, node_id)
);
CREATE INDEX IF NOT EXISTS idx_#__taxonomy_map_node ON #__taxonomy_map(node_id);

CREATE TABLE IF NOT EXISTS #__types (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT UNIQUE NOT NULL,
    mime TEXT NOT NULL DEFAULT ''
);

-- Per-language words too frequent to carry meaning
CREATE TABLE IF NOT EXISTS #__terms_common (
    term TEXT NOT NULL,
    language TEXT NOT NULL,
    PRIMARY KEY (term, language)
);

-- Index metadata: track global indexing state
CREATE TABLE IF NOT EXISTS #__metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
INSERT OR IGNORE INTO #__metadata (key, value) VALUES
    ('last_indexed_page_id', '0'),
    ('last_optimized', ''),
    ('index_version', '1');
`

const shardSchema = `
CREATE TABLE IF NOT EXISTS #__links_terms%x (
    link_id INTEGER NOT NULL,
    term_id INTEGER NOT NULL,
    weight REAL NOT NULL DEFAULT 0,
    PRIMARY KEY (link_id, term_id)
);
CREATE INDEX IF NOT EXISTS idx_#__links_terms%x_term ON #__links_terms%x(term_id, weight);
`

// Schema returns the DDL for every table under the given prefix.
func Schema(prefix string) string {
	var b strings.Builder
	b.WriteString(schema)
	for i := 0; i < ShardCount; i++ {
		fmt.Fprintf(&b, shardSchema, i, i, i)
	}
	return strings.ReplaceAll(b.String(), "#__", prefix+"_")
}

// tables holds the prefixed table names so queries never format them twice.
type tables struct {
	links       string
	terms       string
	tokens      string
	taxonomy    string
	taxonomyMap string
	types       string
	common      string
	metadata    string
	shards      [ShardCount]string
}

func newTables(prefix string) tables {
	t := tables{
		links:       prefix + "_links",
		terms:       prefix + "_terms",
		tokens:      prefix + "_tokens",
		taxonomy:    prefix + "_taxonomy",
		taxonomyMap: prefix + "_taxonomy_map",
		types:       prefix + "_types",
		common:      prefix + "_terms_common",
		metadata:    prefix + "_metadata",
	}
	for i := range t.shards {
		t.shards[i] = fmt.Sprintf("%s_links_terms%x", prefix, i)
	}
	return t
}

// englishCommonWords seeds the common word list for "en".
var englishCommonWords = []string{
	// Articles
	"a", "an", "the",

	// Pronouns
	"i", "me", "my", "myself", "we", "our", "ours", "ourselves",
	"you", "your", "yours", "yourself", "yourselves",
	"he", "him", "his", "himself", "she", "her", "hers", "herself",
	"it", "its", "itself", "they", "them", "their", "theirs", "themselves",

	// Prepositions
	"of", "at", "by", "for", "with", "about", "against", "between",
	"into", "through", "during", "before", "after", "above", "below",
	"to", "from", "up", "down", "in", "out", "on", "off", "over", "under",

	// Conjunctions
	"and", "or", "but", "if", "while", "because", "as", "until",
	"than", "so", "nor", "yet",

	// Common verbs
	"is", "am", "are", "was", "were", "be", "been", "being",
	"have", "has", "had", "having",
	"do", "does", "did", "doing",
	"will", "would", "should", "could", "can", "may", "might", "must",

	// Other common words
	"this", "that", "these", "those",
	"what", "which", "who", "whom", "whose", "when", "where", "why", "how",
	"all", "each", "every", "both", "few", "more", "most", "other", "some", "such",
	"no", "not", "only", "own", "same", "then", "there", "too", "very",
}
