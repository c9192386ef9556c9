package pipeline

import (
	"encoding/json"
	"regexp"
	"strings"

	"tinytales/internal/models"
)

// EndOfStoryMarker is the only text allowed as a single-choice result.
const EndOfStoryMarker = "The End"

// Neutral placeholder pair used when a free-text choices field cannot be
// split into two options.
var placeholderChoices = []models.Choice{
	{Text: "See what happens in the magical world"},
	{Text: "Meet the friendly creatures nearby"},
}

// RawSegment is the as-received model payload handed to the parser.
// Text may be prose, a JSON blob, JSON wrapped in a string, or corrupt JSON;
// Choices may be absent, an array of anything, or a free-text question.
type RawSegment struct {
	Text    string
	Choices []interface{}
}

// ParsedSegment is the parser's best-effort extraction. Choices may hold 0,
// 2 or more entries; acceptability is the evaluator's decision, not the
// parser's. ContextQuestion carries residual free text shown above the
// choices, never merged into the narrative.
type ParsedSegment struct {
	Text            string
	Choices         []models.Choice
	ContextQuestion string
}

// decodedSegment mirrors the JSON shapes the model has been observed to
// produce: "story" or "text" for the narrative, "choices" as an array or a
// free-text question.
type decodedSegment struct {
	Story   string          `json:"story"`
	Text    string          `json:"text"`
	Choices json.RawMessage `json:"choices"`
}

// ParseSegment extracts a narrative text and a choice list from an
// arbitrarily-shaped model response. It never fails: unparseable input
// degrades to literal prose.
func ParseSegment(raw RawSegment) ParsedSegment {
	text := raw.Text
	choicesAny := make([]interface{}, len(raw.Choices))
	copy(choicesAny, raw.Choices)
	freeTextChoices := ""

	if decoded, ok := decodeJSONText(text); ok {
		narrative := decoded.Story
		if narrative == "" {
			narrative = decoded.Text
		}
		// A decoded object without a usable text field is a parse failure;
		// the original string is kept as literal prose.
		if narrative != "" {
			text = narrative
			if len(decoded.Choices) > 0 {
				var asArray []interface{}
				if err := json.Unmarshal(decoded.Choices, &asArray); err == nil {
					choicesAny = asArray
				} else {
					var asString string
					if err := json.Unmarshal(decoded.Choices, &asString); err == nil {
						freeTextChoices = asString
					}
				}
			}
		}
	}

	choices := normalizeChoices(choicesAny)
	contextQuestion := ""

	if len(choices) == 0 && freeTextChoices != "" {
		choices, contextQuestion = splitFreeTextChoices(freeTextChoices)
	}

	text = stripChoiceArtifacts(text)

	// A lone choice is meaningless to the reader unless it is the terminal
	// marker itself.
	if len(choices) == 1 && !strings.EqualFold(strings.TrimSpace(choices[0].Text), EndOfStoryMarker) {
		choices = nil
	}

	return ParsedSegment{
		Text:            strings.TrimSpace(text),
		Choices:         choices,
		ContextQuestion: contextQuestion,
	}
}

// decodeJSONText attempts to interpret a string as a JSON segment object.
// First pass strips control characters; second pass additionally collapses
// blank lines and repairs unbalanced brackets.
func decodeJSONText(text string) (decodedSegment, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return decodedSegment{}, false
	}

	var decoded decodedSegment
	if err := json.Unmarshal([]byte(stripControlChars(trimmed)), &decoded); err == nil {
		return decoded, true
	}

	normalized := collapseBlankLines(stripControlChars(trimmed))
	normalized = strings.TrimSpace(normalized)
	normalized = fixJSON(normalized)
	if err := json.Unmarshal([]byte(normalized), &decoded); err == nil {
		return decoded, true
	}

	return decodedSegment{}, false
}

// stripControlChars replaces control characters below 0x20 with spaces,
// keeping intentional whitespace (tab, newline, carriage return).
func stripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return ' '
		}
		return r
	}, s)
}

var blankLineRe = regexp.MustCompile(`\n\s*\n`)

func collapseBlankLines(s string) string {
	return blankLineRe.ReplaceAllString(s, "\n")
}

// fixJSON appends missing closing braces/brackets to a truncated JSON
// payload. Brackets inside string literals are ignored.
func fixJSON(jsonStr string) string {
	if jsonStr == "" {
		return jsonStr
	}

	counts := map[rune]int{'{': 0, '}': 0, '[': 0, ']': 0}
	inString := false
	escaped := false

	for _, char := range jsonStr {
		if char == '"' && !escaped {
			inString = !inString
		}
		if !inString {
			if count, exists := counts[char]; exists {
				counts[char] = count + 1
			}
		}
		if char == '\\' && !escaped {
			escaped = true
		} else {
			escaped = false
		}
	}

	fixed := jsonStr
	if imbalance := counts['['] - counts[']']; imbalance > 0 {
		fixed += strings.Repeat("]", imbalance)
	}
	if imbalance := counts['{'] - counts['}']; imbalance > 0 {
		fixed += strings.Repeat("}", imbalance)
	}
	return fixed
}

// normalizeChoices converts raw choice entries into Choice values, trimming
// whitespace and dropping anything non-stringifiable.
func normalizeChoices(raw []interface{}) []models.Choice {
	var choices []models.Choice
	for _, item := range raw {
		switch v := item.(type) {
		case string:
			if text := strings.TrimSpace(v); text != "" {
				choices = append(choices, models.Choice{Text: text})
			}
		case map[string]interface{}:
			if text, ok := v["text"].(string); ok {
				if text = strings.TrimSpace(text); text != "" {
					choices = append(choices, models.Choice{Text: text})
				}
			}
		case models.Choice:
			if text := strings.TrimSpace(v.Text); text != "" {
				choices = append(choices, models.Choice{Text: text})
			}
		}
	}
	return choices
}

// twoPathRe matches the "take the first path ... or the second path ..."
// phrasing the model falls into when it ignores the array format.
var twoPathRe = regexp.MustCompile(`(?i)(?:will you|should \w+|you can|do you want to)?\s*(.{8,}?)\s+or\s+(?:the\s+)?(.{8,}?)[.?!]?\s*$`)

// splitFreeTextChoices extracts two options from a free-text choices field.
// When no two-option structure is found, a neutral placeholder pair is
// returned and the residual text becomes the context question.
func splitFreeTextChoices(freeText string) ([]models.Choice, string) {
	trimmed := strings.TrimSpace(freeText)
	if trimmed == "" {
		return nil, ""
	}

	if m := twoPathRe.FindStringSubmatch(trimmed); m != nil {
		first := cleanChoiceText(m[1])
		second := cleanChoiceText(m[2])
		if first != "" && second != "" {
			return []models.Choice{{Text: first}, {Text: second}}, ""
		}
	}

	if parts := strings.SplitN(trimmed, " or ", 2); len(parts) == 2 {
		first := cleanChoiceText(parts[0])
		second := cleanChoiceText(parts[1])
		if first != "" && second != "" {
			return []models.Choice{{Text: first}, {Text: second}}, ""
		}
	}

	pair := make([]models.Choice, len(placeholderChoices))
	copy(pair, placeholderChoices)
	return pair, trimmed
}

// cleanChoiceText trims whitespace, surrounding quotes and trailing
// punctuation from an extracted option.
func cleanChoiceText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	s = strings.TrimRight(s, ".?!,;")
	s = strings.TrimSpace(s)
	// Leading question words survive the pattern match occasionally.
	for _, prefix := range []string{"will you ", "should they ", "do you want to "} {
		if strings.HasPrefix(strings.ToLower(s), prefix) {
			s = s[len(prefix):]
		}
	}
	return strings.TrimSpace(s)
}

var (
	choiceQuestionRe = regexp.MustCompile(`(?i)what (should|will) (happen next|\w+ do( next)?)\??[^.]*\.?`)
	bracketArrayRe   = regexp.MustCompile(`\[[^\[\]]*\]`)
)

// stripChoiceArtifacts removes choice-like sentences and bracketed arrays
// from the narrative so the reader never sees raw structure.
func stripChoiceArtifacts(text string) string {
	cleaned := choiceQuestionRe.ReplaceAllString(text, "")
	cleaned = bracketArrayRe.ReplaceAllString(cleaned, "")
	cleaned = whitespaceCollapseRe.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

var whitespaceCollapseRe = regexp.MustCompile(`[ \t]{2,}`)
