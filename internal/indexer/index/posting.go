package index

import "github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/internal/document"

// Posting is one document's occurrence count for a term. Freq is always
// positive; zero-frequency postings are never stored.
type Posting struct {
	Doc  document.Ord `json:"d"`
	Freq uint32       `json:"f"`
}

// PostingList is sorted by Doc ascending.
type PostingList []Posting

// TermEntry pairs a term with its postings.
type TermEntry struct {
	Term     string
	Postings PostingList
}
