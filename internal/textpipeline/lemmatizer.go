package textpipeline

import (
	"strings"

	"github.com/blevesearch/snowballstem"
	"github.com/blevesearch/snowballstem/russian"
)

// Lemmatizer reduces a single token to its normal form. The original
// pipeline used natasha's morphological lemmatizer (full dictionary lookup);
// the Go ecosystem has no equivalent packaged dependency, so this is
// satisfied by the Snowball Russian stemmer instead. Stemming collapses
// fewer inflectional forms than true lemmatization, which slightly widens
// the BM25 token vocabulary versus the Python original — acceptable since
// BM25 only needs consistent token identity, not linguistic correctness.
type Lemmatizer interface {
	Lemma(token string) string
}

// snowballLemmatizer adapts blevesearch/snowballstem's Russian stemmer to
// the Lemmatizer interface.
type snowballLemmatizer struct{}

// NewSnowballLemmatizer returns the default, production Lemmatizer.
func NewSnowballLemmatizer() Lemmatizer { return snowballLemmatizer{} }

func (snowballLemmatizer) Lemma(token string) string {
	if token == "" {
		return token
	}
	env := snowballstem.NewEnv(token)
	russian.Stem(env)
	return env.Current()
}

// NoopLemmatizer passes tokens through unchanged; useful for tests that
// assert on exact input tokens, and for non-Russian deployments.
type NoopLemmatizer struct{}

func (NoopLemmatizer) Lemma(token string) string { return token }

// lemmatizeText runs lem over every whitespace-separated token in text and
// rejoins with single spaces, mirroring TextLemmatization's token-join
// behavior in the original pipeline.
func lemmatizeText(text string, lem Lemmatizer) string {
	fields := strings.Fields(text)
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = lem.Lemma(f)
	}
	return strings.Join(out, " ")
}
