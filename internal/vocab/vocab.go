// Package vocab holds the recognized sign vocabulary: the keyword table that
// maps chat-text substrings to sign names, and the video source table that
// maps sign names to playable clips.
//
// Both tables are data, not logic — they are loaded from configuration with
// compiled-in defaults for the known vocabulary, so extending the vocabulary
// never touches matching code.
package vocab

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Entry maps one chat-text keyword to a sign name. Matching is exact
// substring containment on whitespace-normalized text.
type Entry struct {
	// Keyword is the phrase searched for in chat text (e.g. "안녕하세요").
	Keyword string `yaml:"keyword" json:"keyword"`

	// Sign is the vocabulary label whose clip is queued on a match.
	Sign string `yaml:"sign" json:"sign"`
}

// Source is one encoding of a sign's video clip.
type Source struct {
	// URL is the clip location, absolute or server-relative.
	URL string `yaml:"url" json:"url"`

	// Type is the media MIME type (e.g. "video/webm").
	Type string `yaml:"type" json:"type"`
}

// Table is the immutable vocabulary: keyword entries plus per-sign video
// sources. Construct with New or Default; safe for concurrent use after
// construction.
type Table struct {
	entries []Entry
	sources map[string][]Source
}

// New builds a Table from keyword entries and a sign→sources map. Entries
// must have non-empty keywords and signs, and keywords must be unique.
func New(entries []Entry, sources map[string][]Source) (*Table, error) {
	var errs []error
	seen := make(map[string]int, len(entries))
	for i, e := range entries {
		if e.Keyword == "" {
			errs = append(errs, fmt.Errorf("vocab: entries[%d].keyword is required", i))
		}
		if e.Sign == "" {
			errs = append(errs, fmt.Errorf("vocab: entries[%d].sign is required", i))
		}
		if prev, ok := seen[e.Keyword]; ok && e.Keyword != "" {
			errs = append(errs, fmt.Errorf("vocab: entries[%d].keyword %q duplicates entries[%d]", i, e.Keyword, prev))
		}
		seen[e.Keyword] = i
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	t := &Table{
		entries: make([]Entry, len(entries)),
		sources: make(map[string][]Source, len(sources)),
	}
	copy(t.entries, entries)
	for sign, srcs := range sources {
		t.sources[strings.ToLower(sign)] = append([]Source(nil), srcs...)
	}
	return t, nil
}

// Default returns the built-in vocabulary: the two known signs with their
// three-encoding clip sets.
func Default() *Table {
	t, err := New(
		[]Entry{
			{Keyword: "안녕하세요", Sign: "hello"},
			{Keyword: "배부르네요", Sign: "full"},
		},
		map[string][]Source{
			"hello": defaultSources("hello"),
			"full":  defaultSources("full"),
		},
	)
	if err != nil {
		// The built-in table is static; a construction failure is a bug.
		panic(err)
	}
	return t
}

// defaultSources returns the standard three-encoding asset set for a sign.
func defaultSources(sign string) []Source {
	return []Source{
		{URL: "/assets/signs/" + sign + ".webm", Type: "video/webm"},
		{URL: "/assets/signs/" + sign + ".mp4", Type: "video/mp4"},
		{URL: "/assets/signs/" + sign + ".ogv", Type: "video/ogg"},
	}
}

// match pairs a matched sign with the byte offset of its keyword's first
// occurrence, for ordering.
type match struct {
	sign  string
	index int
	entry int
}

// Match scans text for vocabulary keywords and returns the matched signs in
// order of first occurrence. Each matched keyword contributes exactly one
// sign regardless of how many times it appears. Text is whitespace-normalized
// before matching so line breaks and double spaces cannot break a phrase.
func (t *Table) Match(text string) []string {
	normalized := normalizeSpace(text)
	if normalized == "" {
		return nil
	}

	var found []match
	for i, e := range t.entries {
		if idx := strings.Index(normalized, e.Keyword); idx >= 0 {
			found = append(found, match{sign: e.Sign, index: idx, entry: i})
		}
	}
	if len(found) == 0 {
		return nil
	}
	sort.Slice(found, func(a, b int) bool {
		if found[a].index != found[b].index {
			return found[a].index < found[b].index
		}
		return found[a].entry < found[b].entry
	})

	signs := make([]string, 0, len(found))
	for _, m := range found {
		signs = append(signs, m.sign)
	}
	return signs
}

// Sources returns the video sources for sign, or nil when the sign is not in
// the table. The returned slice must not be mutated.
func (t *Table) Sources(sign string) []Source {
	return t.sources[strings.ToLower(sign)]
}

// Signs returns all sign names with video sources, sorted.
func (t *Table) Signs() []string {
	signs := make([]string, 0, len(t.sources))
	for sign := range t.sources {
		signs = append(signs, sign)
	}
	sort.Strings(signs)
	return signs
}

// Entries returns a copy of the keyword entries.
func (t *Table) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// normalizeSpace collapses all runs of whitespace in s into single spaces and
// trims the ends.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
