package pipeline

import (
	"regexp"
	"strings"

	"tinytales/internal/models"
)

const (
	minChoiceLength      = 15
	minChoiceLengthLoose = 8
	maxChoiceLength      = 100
	maxChoiceLengthSkew  = 30
	maxConjunctionCount  = 1
)

// Evaluator judges whether parsed choices are specific enough to show a
// child. Strict mode additionally requires a recognizable action verb or
// descriptive word in every choice.
type Evaluator struct {
	vocab  Vocabulary
	strict bool

	bannedRes []*regexp.Regexp
	verbRes   []*regexp.Regexp
	descRes   []*regexp.Regexp
}

func NewEvaluator(vocab Vocabulary, strict bool) *Evaluator {
	return &Evaluator{
		vocab:     vocab,
		strict:    strict,
		bannedRes: compileWordPatterns(vocab.BannedFragments),
		verbRes:   compileWordPatterns(vocab.ActionVerbs),
		descRes:   compileWordPatterns(vocab.DescriptiveWords),
	}
}

func compileWordPatterns(words []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(words))
	for _, w := range words {
		patterns = append(patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(strings.ToLower(w))+`\b`))
	}
	return patterns
}

var conjunctionRe = regexp.MustCompile(`\b(and|or|but|because|if|when|while)\b`)

// choiceTraits holds the per-choice signals the acceptability and scoring
// rules share.
type choiceTraits struct {
	length       int
	hasBanned    bool
	hasVerb      bool
	hasDesc      bool
	hasQuestion  bool
	conjunctions int
}

func (e *Evaluator) analyze(text string) choiceTraits {
	lower := strings.ToLower(strings.TrimSpace(text))
	return choiceTraits{
		length:       len(strings.TrimSpace(text)),
		hasBanned:    anyMatch(e.bannedRes, lower),
		hasVerb:      anyMatch(e.verbRes, lower),
		hasDesc:      anyMatch(e.descRes, lower),
		hasQuestion:  strings.Contains(text, "?"),
		conjunctions: len(conjunctionRe.FindAllString(lower, -1)),
	}
}

func anyMatch(patterns []*regexp.Regexp, lower string) bool {
	for _, re := range patterns {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

// IsAcceptable reports whether a single choice passes the quality gate.
// A choice carrying a generic fragment is rescued only when it also shows
// both an action verb and a descriptive word, since specificity is the whole
// point of the gate.
func (e *Evaluator) IsAcceptable(choice models.Choice) bool {
	t := e.analyze(choice.Text)

	if t.hasBanned && !(t.hasVerb && t.hasDesc) {
		return false
	}
	minLen := minChoiceLengthLoose
	if e.strict {
		minLen = minChoiceLength
	}
	if t.length < minLen || t.length > maxChoiceLength {
		return false
	}
	if t.hasQuestion {
		return false
	}
	if t.conjunctions > maxConjunctionCount {
		return false
	}
	if e.strict && !t.hasVerb && !t.hasDesc {
		return false
	}
	return true
}

// Score rates a choice for diagnostics and logging. Higher is better;
// negative scores always fail IsAcceptable.
func (e *Evaluator) Score(choice models.Choice) int {
	t := e.analyze(choice.Text)
	score := 0
	if t.hasVerb {
		score += 2
	}
	if t.hasDesc {
		score += 2
	}
	if t.length >= minChoiceLength && t.length <= maxChoiceLength {
		score++
	} else {
		score -= 2
	}
	if t.hasBanned {
		score -= 3
	}
	if t.hasQuestion {
		score -= 2
	}
	if t.conjunctions > maxConjunctionCount {
		score--
	}
	return score
}

// Validate applies the set-level contract: the result is either exactly two
// acceptable, length-balanced choices, or empty. More than two candidates
// are narrowed to the top two by score first; anything that still fails is
// discarded wholesale so a half-usable pair never reaches the reader.
func (e *Evaluator) Validate(choices []models.Choice) []models.Choice {
	if len(choices) > 2 {
		choices = e.topTwo(choices)
	}
	if len(choices) != 2 {
		return nil
	}
	for _, c := range choices {
		if !e.IsAcceptable(c) {
			return nil
		}
	}
	skew := len(strings.TrimSpace(choices[0].Text)) - len(strings.TrimSpace(choices[1].Text))
	if skew < 0 {
		skew = -skew
	}
	if skew > maxChoiceLengthSkew {
		return nil
	}
	return choices
}

// topTwo keeps the two highest-scoring candidates, preserving their
// original order.
func (e *Evaluator) topTwo(choices []models.Choice) []models.Choice {
	best, second := -1, -1
	for i, c := range choices {
		score := e.Score(c)
		switch {
		case best == -1 || score > e.Score(choices[best]):
			second = best
			best = i
		case second == -1 || score > e.Score(choices[second]):
			second = i
		}
	}
	if best > second {
		best, second = second, best
	}
	return []models.Choice{choices[best], choices[second]}
}
