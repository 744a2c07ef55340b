// Package document defines the canonical document identity shared by every
// artifact and the query layer, and the Corpus arena that maps external ids
// to dense ordinals.
package document

import (
	"fmt"
	"strconv"
)

// ID is the external document key. It is the only id type that crosses
// package boundaries; JSON maps carry it as a decimal string.
type ID int64

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseID parses a decimal document id.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid document id %q: %w", s, err)
	}
	return ID(n), nil
}

// Ord is a dense arena index into a Corpus, assigned in metadata order.
type Ord uint32

// Metadata describes one document. It is created by the catalog and never
// mutated afterwards.
type Metadata struct {
	ID        ID       `json:"book_id"`
	Title     string   `json:"title"`
	Locator   string   `json:"filename"`
	WordCount int      `json:"word_count"`
	Languages []string `json:"languages"`
	Authors   []string `json:"authors,omitempty"`
	Summary   string   `json:"summary,omitempty"`
	Cover     string   `json:"cover,omitempty"`
}

// CoverURL is the public path of the cover image, or "" when there is none.
func (m *Metadata) CoverURL() string {
	if m.Cover == "" {
		return ""
	}
	return "/covers/" + m.Cover
}

// Corpus is the arena of document records. It is immutable once built.
type Corpus struct {
	docs []Metadata
	ords map[ID]Ord
}

// NewCorpus builds an arena over docs in the given order. Duplicate ids are
// rejected.
func NewCorpus(docs []Metadata) (*Corpus, error) {
	c := &Corpus{
		docs: make([]Metadata, len(docs)),
		ords: make(map[ID]Ord, len(docs)),
	}
	copy(c.docs, docs)
	for i := range c.docs {
		id := c.docs[i].ID
		if _, dup := c.ords[id]; dup {
			return nil, fmt.Errorf("duplicate document id %d", id)
		}
		c.ords[id] = Ord(i)
	}
	return c, nil
}

// Len returns the number of documents.
func (c *Corpus) Len() int {
	return len(c.docs)
}

// Doc returns the record at o. Callers must not modify it.
func (c *Corpus) Doc(o Ord) *Metadata {
	return &c.docs[o]
}

// Lookup resolves an external id to its ordinal.
func (c *Corpus) Lookup(id ID) (Ord, bool) {
	o, ok := c.ords[id]
	return o, ok
}

// Docs returns the records in ordinal order. Callers must not modify them.
func (c *Corpus) Docs() []Metadata {
	return c.docs
}

// Subset returns a new Corpus holding only the documents for which keep
// reports true, preserving order. Ordinals are reassigned.
func (c *Corpus) Subset(keep func(Ord) bool) *Corpus {
	kept := make([]Metadata, 0, len(c.docs))
	for i := range c.docs {
		if keep(Ord(i)) {
			kept = append(kept, c.docs[i])
		}
	}
	// ids are already unique
	sub, _ := NewCorpus(kept)
	return sub
}
