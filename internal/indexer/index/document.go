package index

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/inverted-index-builder/internal/indexer/tokenizer"
)

// DocumentTerms accumulates term frequencies for the document currently being
// read. Repeated terms within the document collapse into one posting.
type DocumentTerms struct {
	docID  uint32
	freqs  map[string]uint32
	tokens int
}

func NewDocumentTerms(docID uint32) *DocumentTerms {
	return &DocumentTerms{
		docID: docID,
		freqs: make(map[string]uint32),
	}
}

// AddLine tokenizes one line of document text.
func (d *DocumentTerms) AddLine(line string) {
	for _, token := range tokenizer.Tokenize(line) {
		d.freqs[token.Term]++
		d.tokens++
	}
}

// Postings returns one posting per distinct term, sorted by term.
func (d *DocumentTerms) Postings() []Posting {
	postings := make([]Posting, 0, len(d.freqs))
	for term, freq := range d.freqs {
		postings = append(postings, Posting{
			Term:      term,
			DocID:     d.docID,
			Frequency: freq,
		})
	}
	sort.Slice(postings, func(i, j int) bool {
		return postings[i].Term < postings[j].Term
	})
	return postings
}

func (d *DocumentTerms) DocID() uint32 {
	return d.docID
}

func (d *DocumentTerms) TokenCount() int {
	return d.tokens
}

func (d *DocumentTerms) Len() int {
	return len(d.freqs)
}

// Reset clears the accumulator for the next document.
func (d *DocumentTerms) Reset(docID uint32) {
	d.docID = docID
	d.tokens = 0
	clear(d.freqs)
}
