// Package match scores user utterances against the service catalog using
// lexical bigram similarity. Matching is a pure function of (catalog,
// utterance); no state is kept between calls.
package match

import (
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/sevasetu/sevasetu/internal/store"
)

// Best is the winning catalog entry for an utterance together with its
// normalized similarity score in [0,1].
type Best struct {
	Service store.Service
	Score   float64
}

// Match returns the single best-matching service for the utterance. The
// matchable terms of a service are its name, description and every keyword;
// the service owning the highest-scoring term wins. Ties keep the first
// service in catalog order. The second return value is false when the catalog
// is empty or the utterance is blank.
//
// Threshold acceptance is the caller's decision; Match always reports the
// maximum score it saw.
func Match(services []store.Service, utterance string) (Best, bool) {
	utterance = strings.ToLower(strings.TrimSpace(utterance))
	if utterance == "" || len(services) == 0 {
		return Best{}, false
	}
	tokens := strings.Fields(utterance)

	dice := metrics.NewSorensenDice()
	dice.CaseSensitive = false
	dice.NgramSize = 2

	best := Best{Score: -1}
	for _, svc := range services {
		terms := make([]string, 0, len(svc.Keywords)+2)
		terms = append(terms, svc.Name, svc.Description)
		terms = append(terms, svc.Keywords...)
		for _, term := range terms {
			term = strings.ToLower(strings.TrimSpace(term))
			if term == "" {
				continue
			}
			score := termScore(utterance, tokens, term, dice)
			if score > best.Score {
				best = Best{Service: svc, Score: score}
			}
		}
	}
	if best.Score < 0 {
		return Best{}, false
	}
	return best, true
}

// termScore compares a term against the whole utterance and against each of
// its tokens, keeping the maximum. The token pass lets a short keyword buried
// in a longer sentence ("पानी" in "पानी की समस्या है") still score as a hit.
func termScore(utterance string, tokens []string, term string, dice *metrics.SorensenDice) float64 {
	score := strutil.Similarity(utterance, term, dice)
	for _, tok := range tokens {
		if s := strutil.Similarity(tok, term, dice); s > score {
			score = s
		}
	}
	return score
}
