package scoring

import "math"

// bm25Okapi is a hand-rolled Robertson/Zaragoza BM25 scorer over an ad hoc
// corpus of already-tokenized documents. It mirrors rank_bm25.BM25Okapi's
// defaults (k1=1.5, b=0.75) exactly so query-time scores stay consistent
// with the Python original: nothing in the pack exposes BM25 as a pure
// function over a transient token corpus (bleve's scorer is wired to its
// own persistent inverted index, not a one-shot candidate set), so this
// is implemented directly against the published formula instead of
// wrapping a library.
type bm25Okapi struct {
	k1 float64
	b  float64

	docs      [][]string
	docFreq   map[string]int // number of docs containing each term
	idf       map[string]float64
	docLens   []int
	avgDocLen float64
	n         int
}

const (
	defaultK1 = 1.5
	defaultB  = 0.75
	// bm25EpsilonFactor matches rank_bm25.BM25Okapi's default epsilon: the
	// floor for a term whose raw idf went negative is epsilon * average idf,
	// not a fixed small constant.
	bm25EpsilonFactor = 0.25
	epsilon           = 1e-9
)

// newBM25Okapi builds a BM25 index over docs (already tokenized).
func newBM25Okapi(docs [][]string) *bm25Okapi {
	idx := &bm25Okapi{
		k1:      defaultK1,
		b:       defaultB,
		docs:    docs,
		docFreq: make(map[string]int),
		docLens: make([]int, len(docs)),
		n:       len(docs),
	}

	var totalLen int
	for i, doc := range docs {
		idx.docLens[i] = len(doc)
		totalLen += len(doc)
		seen := make(map[string]struct{}, len(doc))
		for _, term := range doc {
			seen[term] = struct{}{}
		}
		for term := range seen {
			idx.docFreq[term]++
		}
	}
	if idx.n > 0 {
		idx.avgDocLen = float64(totalLen) / float64(idx.n)
	}
	idx.idf = computeIDF(idx.docFreq, idx.n)
	return idx
}

// computeIDF mirrors rank_bm25.BM25Okapi._calc_idf exactly: raw idf is
// log(N-df+0.5) - log(df+0.5), which goes negative for terms occurring in
// more than half the corpus; any such term's idf is floored to
// bm25EpsilonFactor * average(raw idf) rather than clamped to zero.
func computeIDF(docFreq map[string]int, n int) map[string]float64 {
	idf := make(map[string]float64, len(docFreq))
	if len(docFreq) == 0 {
		return idf
	}
	var sum float64
	var negative []string
	nf := float64(n)
	for term, df := range docFreq {
		v := math.Log(nf-float64(df)+0.5) - math.Log(float64(df)+0.5)
		idf[term] = v
		sum += v
		if v < 0 {
			negative = append(negative, term)
		}
	}
	avg := sum / float64(len(docFreq))
	eps := bm25EpsilonFactor * avg
	for _, term := range negative {
		idf[term] = eps
	}
	return idf
}

// scores returns one BM25 score per document for the given query tokens.
func (b *bm25Okapi) scores(query []string) []float64 {
	out := make([]float64, b.n)
	if b.n == 0 {
		return out
	}
	for i, doc := range b.docs {
		termFreq := make(map[string]int, len(doc))
		for _, t := range doc {
			termFreq[t]++
		}
		docLen := float64(b.docLens[i])
		var score float64
		for _, qt := range query {
			tf := float64(termFreq[qt])
			if tf == 0 {
				continue
			}
			idf := b.idf[qt]
			denom := tf + b.k1*(1-b.b+b.b*docLen/b.avgDocLen)
			score += idf * (tf * (b.k1 + 1)) / denom
		}
		out[i] = score
	}
	return out
}
