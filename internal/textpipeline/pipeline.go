// Package textpipeline normalizes raw ticket text into the two token
// streams the hybrid scorer needs: a BM25 branch (whitespace tokens,
// stopwords and long Latin runs stripped, lemmatized) and a BERT branch
// (a cleaned sentence suitable for the embedding model). The two branches
// are grounded on the original pipeline's transforms_bm25/transforms_bert
// compositions and must stay in lockstep with whatever corpus text was used
// to build the collection, since query-time normalization has to match
// ingest-time normalization for scores to be comparable.
package textpipeline

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	eruditePrefixRe = regexp.MustCompile(`^Erudite`)
	urlRe           = regexp.MustCompile(`(?i)\bhttps?://\S+|\bwww\.\S+`)
	emojiRe         = regexp.MustCompile(`[\x{1F300}-\x{1FAFF}\x{2600}-\x{27BF}\x{1F1E6}-\x{1F1FF}]`)
	numberRe        = regexp.MustCompile(`\d+`)
	currencyRe      = regexp.MustCompile(`[$€£¥₽]`)
	eruditeWordRe   = regexp.MustCompile(`(?i)erudite`)
	nonTokenRe      = regexp.MustCompile(`[^а-яА-Яa-zA-Z0-9\s\-]`)
	longLatinRe     = regexp.MustCompile(`\b[A-Za-z]{8,}\b`)
	multiSpaceRe    = regexp.MustCompile(`\s{2,}`)

	caser = cases.Lower(language.Russian)
)

// Pipeline holds the Lemmatizer used by the BM25 branch. The BERT branch
// never lemmatizes or drops stopwords: the embedding model expects natural
// sentences, not a bag of stemmed content words.
type Pipeline struct {
	lem Lemmatizer
}

// New constructs a Pipeline with the given Lemmatizer. Pass
// NewSnowballLemmatizer() for production, NoopLemmatizer{} for tests that
// want to assert on unstemmed tokens.
func New(lem Lemmatizer) *Pipeline {
	if lem == nil {
		lem = NewSnowballLemmatizer()
	}
	return &Pipeline{lem: lem}
}

// TransformBM25 runs the lexical-branch transform chain and returns the
// resulting whitespace tokens, ready for BM25 term-frequency counting.
func (p *Pipeline) TransformBM25(text string) []string {
	text = eruditePrefixRe.ReplaceAllString(text, "")
	text = cleanCommon(text)
	text = eruditeWordRe.ReplaceAllString(text, "система")
	text = nonTokenRe.ReplaceAllString(text, "")
	text = lemmatizeText(text, p.lem)
	text = removeStopwords(text)
	text = longLatinRe.ReplaceAllString(text, "")
	text = multiSpaceRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return strings.Fields(text)
}

// TransformBERT runs the semantic-branch transform chain and returns a
// cleaned sentence suitable for the embedding model.
func (p *Pipeline) TransformBERT(text string) string {
	text = eruditePrefixRe.ReplaceAllString(text, "")
	text = cleanCommon(text)
	text = eruditeWordRe.ReplaceAllString(text, "система")
	text = longLatinRe.ReplaceAllString(text, "")
	text = multiSpaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// cleanCommon applies the shared clean-text-equivalent step both branches
// run before diverging: emoji/URL/currency stripping, lowercasing, and
// digit removal, matching the original's CleanText(no_emoji=True,
// no_urls=True, lower=True, no_numbers=True, no_currency_symbols=True,
// replace_with_url='веб-интерфейс').
func cleanCommon(text string) string {
	text = urlRe.ReplaceAllString(text, "веб-интерфейс")
	text = emojiRe.ReplaceAllString(text, "")
	text = currencyRe.ReplaceAllString(text, "")
	text = numberRe.ReplaceAllString(text, "")
	text = caser.String(text)
	return text
}

func removeStopwords(text string) string {
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if !isStopword(f) {
			out = append(out, f)
		}
	}
	return strings.Join(out, " ")
}
