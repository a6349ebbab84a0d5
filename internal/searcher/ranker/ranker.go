// Package ranker scores (query term, document) pairs with TF-IDF and orders
// them by relevance.
package ranker

import (
	"math"
	"sort"
)

// Candidate is one (query term, document) pair awaiting a score.
type Candidate struct {
	// Term is the position of the term in the query.
	Term       int
	DocumentID int
	// TermCount is how often the term occurs in the document.
	TermCount int
	// DocumentEntries is the number of occurrence entries of the document
	// across all of its terms.
	DocumentEntries int
	// DocumentFrequency is the number of documents containing the term.
	DocumentFrequency int
}

type Scored struct {
	Candidate
	Score float64
}

// TF is the share of a document's occurrence entries taken by one term.
func TF(termCount, documentEntries int) float64 {
	if documentEntries == 0 {
		return 0
	}
	return float64(termCount) / float64(documentEntries)
}

// IDF is ln(totalDocs / (docFreq + 1)). It turns negative for terms present
// in every document of a small corpus.
func IDF(totalDocs, docFreq int) float64 {
	return math.Log(float64(totalDocs) / float64(docFreq+1))
}

// Rank scores every candidate and sorts them by score, highest first.
// Candidates with equal scores keep their input order.
func Rank(candidates []Candidate, totalDocs int) []Scored {
	scored := make([]Scored, len(candidates))
	for i, c := range candidates {
		scored[i] = Scored{
			Candidate: c,
			Score:     IDF(totalDocs, c.DocumentFrequency) * TF(c.TermCount, c.DocumentEntries),
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}
