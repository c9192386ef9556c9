package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinytales/internal/models"
)

func strictEvaluator() *Evaluator {
	return NewEvaluator(DefaultVocabulary(), true)
}

func TestIsAcceptable_SpecificChoices(t *testing.T) {
	e := strictEvaluator()

	accepted := []string{
		"Enter the mysterious forest to find the ancient tree",
		"Follow the sparkling path to the magical clearing",
		"Climb the grand tower to see the whole kingdom",
		"Ask the wise wizard about the shimmering spell",
	}
	for _, text := range accepted {
		assert.True(t, e.IsAcceptable(models.Choice{Text: text}), text)
	}
}

func TestIsAcceptable_GenericChoices(t *testing.T) {
	e := strictEvaluator()

	rejected := []string{
		"Continue the adventure",
		"Take a different path",
		"Do something brave",
		"Try again",
		"Go back",
	}
	for _, text := range rejected {
		assert.False(t, e.IsAcceptable(models.Choice{Text: text}), text)
	}
}

func TestIsAcceptable_RejectsQuestions(t *testing.T) {
	e := strictEvaluator()
	assert.False(t, e.IsAcceptable(models.Choice{Text: "Enter the magical cave, maybe?"}))
}

func TestIsAcceptable_LengthBounds(t *testing.T) {
	e := strictEvaluator()

	assert.False(t, e.IsAcceptable(models.Choice{Text: "Climb up"}))
	long := "Enter the magical " + strings.Repeat("very ", 20) + "deep cave"
	assert.False(t, e.IsAcceptable(models.Choice{Text: long}))
}

func TestIsAcceptable_TooManyConjunctions(t *testing.T) {
	e := strictEvaluator()
	assert.False(t, e.IsAcceptable(models.Choice{Text: "Climb the hill and wait while the magical sun sets"}))
}

func TestIsAcceptable_StrictRequiresVocabulary(t *testing.T) {
	strict := strictEvaluator()
	lenient := NewEvaluator(DefaultVocabulary(), false)

	// No action verb, no descriptive word, but otherwise fine.
	plain := models.Choice{Text: "Sit on the bench quietly"}
	assert.False(t, strict.IsAcceptable(plain))
	assert.True(t, lenient.IsAcceptable(plain))
}

func TestScore_OrdersByQuality(t *testing.T) {
	e := strictEvaluator()

	good := e.Score(models.Choice{Text: "Enter the mysterious forest to find the ancient tree"})
	bad := e.Score(models.Choice{Text: "Continue the adventure"})
	assert.Greater(t, good, bad)
}

func TestValidate_AcceptsExactlyTwo(t *testing.T) {
	e := strictEvaluator()

	pair := []models.Choice{
		{Text: "Enter the mysterious forest to find the ancient tree"},
		{Text: "Follow the sparkling path to the magical clearing"},
	}
	validated := e.Validate(pair)
	require.Len(t, validated, 2)
	assert.Equal(t, pair, validated)
}

func TestValidate_RejectsWrongCount(t *testing.T) {
	e := strictEvaluator()

	one := []models.Choice{{Text: "Enter the mysterious forest to find the ancient tree"}}

	assert.Nil(t, e.Validate(nil))
	assert.Nil(t, e.Validate(one))
}

func TestValidate_NarrowsToTopTwo(t *testing.T) {
	e := strictEvaluator()

	candidates := []models.Choice{
		{Text: "Enter the mysterious forest to find the ancient tree"},
		{Text: "Continue the adventure"},
		{Text: "Follow the sparkling path to the magical clearing"},
	}
	validated := e.Validate(candidates)
	require.Len(t, validated, 2)
	assert.Equal(t, candidates[0], validated[0])
	assert.Equal(t, candidates[2], validated[1])
}

func TestValidate_TopTwoStillUnacceptable(t *testing.T) {
	e := strictEvaluator()

	candidates := []models.Choice{
		{Text: "Continue the adventure"},
		{Text: "Take a different path"},
		{Text: "Do something brave"},
	}
	assert.Nil(t, e.Validate(candidates))
}

func TestValidate_RejectsOneBadChoice(t *testing.T) {
	e := strictEvaluator()

	pair := []models.Choice{
		{Text: "Enter the mysterious forest to find the ancient tree"},
		{Text: "Continue the adventure"},
	}
	assert.Nil(t, e.Validate(pair))
}

func TestValidate_RejectsLengthSkew(t *testing.T) {
	e := strictEvaluator()

	pair := []models.Choice{
		{Text: "Climb the grand tower"},
		{Text: "Search the royal gardens for the tiny secret door hidden deep below"},
	}
	for _, c := range pair {
		require.True(t, e.IsAcceptable(c), c.Text)
	}
	assert.Nil(t, e.Validate(pair))
}
