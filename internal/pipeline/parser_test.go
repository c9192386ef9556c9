package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinytales/internal/models"
)

func TestParseSegment_PlainProse(t *testing.T) {
	raw := RawSegment{Text: "Mia walked into the garden and smiled."}
	parsed := ParseSegment(raw)

	assert.Equal(t, "Mia walked into the garden and smiled.", parsed.Text)
	assert.Empty(t, parsed.Choices)
	assert.Empty(t, parsed.ContextQuestion)
}

func TestParseSegment_Idempotent(t *testing.T) {
	raw := RawSegment{Text: "The little fox curled up under the ancient oak tree."}
	once := ParseSegment(raw)
	twice := ParseSegment(RawSegment{Text: once.Text})

	assert.Equal(t, once.Text, twice.Text)
	assert.Empty(t, twice.Choices)
}

func TestParseSegment_JSONInText(t *testing.T) {
	raw := RawSegment{Text: `{"story": "Mia found a glowing stone.", "choices": ["Touch the glowing stone to hear its hum", "Show the stone to the wise old owl"]}`}
	parsed := ParseSegment(raw)

	assert.Equal(t, "Mia found a glowing stone.", parsed.Text)
	require.Len(t, parsed.Choices, 2)
	assert.Equal(t, "Touch the glowing stone to hear its hum", parsed.Choices[0].Text)
	assert.Equal(t, "Show the stone to the wise old owl", parsed.Choices[1].Text)
}

func TestParseSegment_TextFieldAlias(t *testing.T) {
	raw := RawSegment{Text: `{"text": "The fox trotted ahead.", "choices": []}`}
	parsed := ParseSegment(raw)

	assert.Equal(t, "The fox trotted ahead.", parsed.Text)
	assert.Empty(t, parsed.Choices)
}

func TestParseSegment_ControlCharacters(t *testing.T) {
	raw := RawSegment{Text: "{\"story\": \"Mia\x01 waved\x02 hello.\", \"choices\": []}"}
	parsed := ParseSegment(raw)

	assert.Equal(t, "Mia waved hello.", parsed.Text)
}

func TestParseSegment_TruncatedJSON(t *testing.T) {
	raw := RawSegment{Text: `{"story": "The door creaked open."`}
	parsed := ParseSegment(raw)

	assert.Equal(t, "The door creaked open.", parsed.Text)
}

func TestParseSegment_UndecodableBrace(t *testing.T) {
	// No story or text field: kept as literal prose minus bracket noise.
	raw := RawSegment{Text: `{"narrative": "lost"`}
	parsed := ParseSegment(raw)

	assert.NotEmpty(t, parsed.Text)
	assert.Empty(t, parsed.Choices)
}

func TestParseSegment_FreeTextChoicesSplit(t *testing.T) {
	raw := RawSegment{Text: `{"story": "Mia reached the river bank.", "choices": "Should Mia swim across the river or climb the tall willow?"}`}
	parsed := ParseSegment(raw)

	assert.Equal(t, "Mia reached the river bank.", parsed.Text)
	require.Len(t, parsed.Choices, 2)
	assert.Contains(t, parsed.Choices[0].Text, "swim across the river")
	assert.Contains(t, parsed.Choices[1].Text, "climb the tall willow")
	assert.Empty(t, parsed.ContextQuestion)
}

func TestParseSegment_FreeTextChoicesPlaceholder(t *testing.T) {
	raw := RawSegment{Text: `{"story": "Mia paused at the crossroads.", "choices": "What should Mia do next?"}`}
	parsed := ParseSegment(raw)

	require.Len(t, parsed.Choices, 2)
	assert.Equal(t, placeholderChoices[0].Text, parsed.Choices[0].Text)
	assert.Equal(t, placeholderChoices[1].Text, parsed.Choices[1].Text)
	assert.Equal(t, "What should Mia do next?", parsed.ContextQuestion)
}

func TestParseSegment_ChoiceArrayInput(t *testing.T) {
	raw := RawSegment{
		Text: "The cave glittered.",
		Choices: []interface{}{
			"  Enter the glittering cave to find the gems  ",
			map[string]interface{}{"text": "Wait outside for the friendly bats"},
			42,
		},
	}
	parsed := ParseSegment(raw)

	require.Len(t, parsed.Choices, 2)
	assert.Equal(t, "Enter the glittering cave to find the gems", parsed.Choices[0].Text)
	assert.Equal(t, "Wait outside for the friendly bats", parsed.Choices[1].Text)
}

func TestParseSegment_SingletonCollapses(t *testing.T) {
	raw := RawSegment{
		Text:    "The hill rose gently.",
		Choices: []interface{}{"Climb the gentle hill"},
	}
	parsed := ParseSegment(raw)

	assert.Empty(t, parsed.Choices)
}

func TestParseSegment_TheEndSingletonKept(t *testing.T) {
	raw := RawSegment{
		Text:    "And they slept soundly.",
		Choices: []interface{}{"The End"},
	}
	parsed := ParseSegment(raw)

	require.Len(t, parsed.Choices, 1)
	assert.Equal(t, EndOfStoryMarker, parsed.Choices[0].Text)
}

func TestParseSegment_StripsChoiceQuestionFromText(t *testing.T) {
	raw := RawSegment{Text: "The tunnel split in two. What should happen next?"}
	parsed := ParseSegment(raw)

	assert.Equal(t, "The tunnel split in two.", parsed.Text)
}

func TestParseSegment_StripsBracketedArrayFromText(t *testing.T) {
	raw := RawSegment{Text: `The meadow hummed with bees. ["Pet the bee", "Smell the flowers"]`}
	parsed := ParseSegment(raw)

	assert.Equal(t, "The meadow hummed with bees.", parsed.Text)
}

func TestFixJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"balanced", `{"a": 1}`, `{"a": 1}`},
		{"missing brace", `{"a": 1`, `{"a": 1}`},
		{"missing bracket and brace", `{"a": [1, 2`, `{"a": [1, 2]}`},
		{"brace inside string", `{"a": "{"`, `{"a": "{"}`},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, fixJSON(tc.in))
		})
	}
}

func TestNormalizeChoices_DropsBlankAndUnknown(t *testing.T) {
	choices := normalizeChoices([]interface{}{"  ", nil, 3.14, models.Choice{Text: "Open the tiny door"}})
	require.Len(t, choices, 1)
	assert.Equal(t, "Open the tiny door", choices[0].Text)
}
