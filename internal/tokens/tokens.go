// Package tokens estimates token counts for bundle budgeting. The
// openai family uses a real BPE codec when it can be constructed;
// everything else falls back to a cheap text heuristic. Estimation is
// pure and gets called once per candidate item, so it has to stay
// allocation-light.
package tokens

import (
	"math"
	"strings"

	"github.com/tiktoken-go/tokenizer"
)

// Family selects the tokenization model family.
type Family string

const (
	FamilyOpenAI    Family = "openai"
	FamilyAnthropic Family = "anthropic"
	FamilyGeneric   Family = "generic"
)

// ParseFamily normalizes a family string, defaulting to generic.
func ParseFamily(s string) Family {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai":
		return FamilyOpenAI
	case "anthropic":
		return FamilyAnthropic
	default:
		return FamilyGeneric
	}
}

// Estimator reports the token cost of a text. Implementations must
// return a positive count and must not touch the filesystem.
type Estimator interface {
	Estimate(text string) int
}

// New builds the estimator for a family. The openai family probes the
// cl100k BPE codec at construction; if the probe fails the heuristic
// serves instead. There is no Go BPE codec for the anthropic family,
// so it always uses the heuristic.
func New(family Family) Estimator {
	if family == FamilyOpenAI {
		if codec, err := tokenizer.Get(tokenizer.Cl100kBase); err == nil {
			return &bpeEstimator{codec: codec}
		}
	}
	return heuristicEstimator{}
}

type bpeEstimator struct {
	codec tokenizer.Codec
}

func (e *bpeEstimator) Estimate(text string) int {
	ids, _, err := e.codec.Encode(text)
	if err != nil {
		return heuristicEstimator{}.Estimate(text)
	}
	if len(ids) < 1 {
		return 1
	}
	return len(ids)
}

// punctuation is the character class the heuristic counts at half
// weight, matching typical sub-word splits around symbols.
const punctuation = ".,;:!?()[]{}\"'`"

type heuristicEstimator struct{}

// Estimate approximates a token count as
// ceil(words*1.25 + punctuation*0.5 + nonASCII*0.5), floored at 1.
func (heuristicEstimator) Estimate(text string) int {
	words := len(strings.Fields(text))

	var punct, nonASCII int
	for _, r := range text {
		if r > 0x7F {
			nonASCII++
			continue
		}
		if strings.ContainsRune(punctuation, r) {
			punct++
		}
	}

	est := int(math.Ceil(float64(words)*1.25 + float64(punct)*0.5 + float64(nonASCII)*0.5))
	if est < 1 {
		return 1
	}
	return est
}
