package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFallbackChoices_ForestMotif(t *testing.T) {
	text := "Deep in the enchanted forest, Mia and the fox heard a gentle rustle."
	choices := GenerateFallbackChoices(text, 4)

	require.Len(t, choices, 2)
	assert.Equal(t, "Enter the mysterious forest to find the ancient tree", choices[0].Text)
	assert.Equal(t, "Follow the sparkling path to the magical clearing", choices[1].Text)
}

func TestGenerateFallbackChoices_WaterMotif(t *testing.T) {
	text := "The river sparkled under the morning sun."
	choices := GenerateFallbackChoices(text, 0)

	require.Len(t, choices, 2)
	assert.Contains(t, choices[0].Text, "water")
}

func TestGenerateFallbackChoices_MotifPriority(t *testing.T) {
	// Forest precedes dragon in the table.
	text := "A dragon slept at the edge of the forest."
	choices := GenerateFallbackChoices(text, 0)

	assert.Contains(t, choices[0].Text, "forest")
}

func TestGenerateFallbackChoices_GenericRotation(t *testing.T) {
	text := "Mia hummed a quiet tune."

	first := GenerateFallbackChoices(text, 0)
	second := GenerateFallbackChoices(text, 1)
	wrapped := GenerateFallbackChoices(text, len(genericPairs))

	require.Len(t, first, 2)
	assert.NotEqual(t, first[0].Text, second[0].Text)
	assert.Equal(t, first[0].Text, wrapped[0].Text)
}

func TestGenerateFallbackChoices_NegativeIndex(t *testing.T) {
	choices := GenerateFallbackChoices("Mia hummed a quiet tune.", -2)
	require.Len(t, choices, 2)
}

func TestIsEnding_Markers(t *testing.T) {
	endings := []string{
		"And they all lived happily ever after. The End.",
		"Mia hugged the fox, and they lived happily in the glade.",
		"The little fox yawned, curled up, and fell fast asleep.",
		"She whispered good night, little one.",
		"Mia drifted off to sleep dreaming of the stars.",
		"The adventure came to a peaceful and satisfying end.",
		"Mia and the fox promised they would always be friends.",
		"Slowly the day drew to an end over the quiet glade.",
	}
	for _, text := range endings {
		assert.True(t, IsEnding(text), text)
	}
}

func TestIsEnding_NotAnEnding(t *testing.T) {
	texts := []string{
		"",
		"Mia skipped along the bright meadow toward the hill.",
		"The fox pointed at two tunnels glowing ahead.",
	}
	for _, text := range texts {
		assert.False(t, IsEnding(text), text)
	}
}
