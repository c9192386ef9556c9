package pipeline

import (
	"regexp"
	"strings"

	"tinytales/internal/models"
)

// motifChoices maps a story motif to a themed choice pair. Ordered: the
// first motif found in the segment text wins.
type motifChoices struct {
	keywords []string
	pair     [2]string
}

var motifTable = []motifChoices{
	{
		keywords: []string{"forest", "tree", "woods"},
		pair: [2]string{
			"Enter the mysterious forest to find the ancient tree",
			"Follow the sparkling path to the magical clearing",
		},
	},
	{
		keywords: []string{"water", "river", "lake", "ocean", "sea"},
		pair: [2]string{
			"Dive into the crystal water to meet the gentle fish",
			"Sail across the shimmering waves to the hidden island",
		},
	},
	{
		keywords: []string{"castle", "tower", "palace"},
		pair: [2]string{
			"Climb the grand tower to see the whole kingdom",
			"Search the royal gardens for the secret door",
		},
	},
	{
		keywords: []string{"dragon"},
		pair: [2]string{
			"Approach the friendly dragon to ask for help",
			"Hide behind the mossy rocks to watch the dragon",
		},
	},
	{
		keywords: []string{"magic", "spell", "wizard", "fairy"},
		pair: [2]string{
			"Touch the glowing crystal to feel its magic",
			"Ask the wise wizard about the shimmering spell",
		},
	},
}

// genericPairs are the rotation used when no motif matches. The pair is
// selected by segment index so consecutive fallbacks differ.
var genericPairs = [][2]string{
	{
		"Meet the friendly animals by the old oak",
		"Climb the gentle hill to see the sunset",
	},
	{
		"Open the tiny wooden door in the garden wall",
		"Listen to the soft song coming from the meadow",
	},
	{
		"Share the warm bread with the little mouse",
		"Peek inside the cozy burrow under the roots",
	},
}

// GenerateFallbackChoices builds a deterministic, safe choice pair from the
// segment text. segmentIndex varies the generic rotation when no motif is
// present.
func GenerateFallbackChoices(segmentText string, segmentIndex int) []models.Choice {
	lower := strings.ToLower(segmentText)
	for _, m := range motifTable {
		for _, kw := range m.keywords {
			if strings.Contains(lower, kw) {
				return []models.Choice{{Text: m.pair[0]}, {Text: m.pair[1]}}
			}
		}
	}
	if segmentIndex < 0 {
		segmentIndex = 0
	}
	pair := genericPairs[segmentIndex%len(genericPairs)]
	return []models.Choice{{Text: pair[0]}, {Text: pair[1]}}
}

// endingPhrases are literal markers; endingPatterns catch the looser
// bedtime closings.
var endingPhrases = []string{
	"the end",
	"happily ever after",
	"lived happily",
	"the adventure was over",
	"their adventure was complete",
	"peaceful and satisfying end",
	"always be friends",
}

var endingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)fell\s+(fast\s+)?asleep`),
	regexp.MustCompile(`(?i)drifted\s+(off\s+)?to\s+sleep`),
	regexp.MustCompile(`(?i)closed\s+(his|her|their)\s+eyes\s+and\s+(slept|dreamed)`),
	regexp.MustCompile(`(?i)sweet\s+dreams`),
	regexp.MustCompile(`(?i)good\s*night,?\s`),
	regexp.MustCompile(`(?i)the\s+day\s+(came|drew)\s+to\s+an\s+end`),
}

// IsEnding reports whether a segment text reads as a story conclusion.
// Only the tail of the text is inspected so an early "the end of the path"
// mid-story does not terminate it.
func IsEnding(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	tail := trimmed
	if len(tail) > 200 {
		tail = tail[len(tail)-200:]
	}
	lowerTail := strings.ToLower(tail)
	for _, phrase := range endingPhrases {
		if strings.Contains(lowerTail, phrase) {
			return true
		}
	}
	for _, re := range endingPatterns {
		if re.MatchString(tail) {
			return true
		}
	}
	return false
}
