package pipeline

// Vocabulary holds the heuristic word lists the evaluator scores against.
// It is injected configuration so evaluation policy can be tuned and tested
// independently of control flow.
type Vocabulary struct {
	// BannedFragments mark a choice as generic when its lowercased text
	// contains any of them.
	BannedFragments []string
	// ActionVerbs make a choice concrete.
	ActionVerbs []string
	// DescriptiveWords make a choice engaging.
	DescriptiveWords []string
}

// DefaultVocabulary returns the stock TinyTales word lists.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		BannedFragments: []string{
			"continue", "adventure", "path", "brave", "silly", "explore", "back",
			"next", "different", "something", "more", "try", "again", "go", "do",
			"make", "take", "follow", "choose", "pick", "select", "decide",
		},
		ActionVerbs: []string{
			"enter", "search", "find", "discover", "explore", "visit", "climb",
			"swim", "fly", "run", "walk", "jump", "hide", "seek", "build",
			"create", "solve", "help", "rescue", "protect", "learn", "teach",
			"share", "gather", "collect", "open", "close", "push", "pull",
			"lift", "carry", "bring", "take", "give", "show", "tell", "ask",
			"approach", "touch", "dive", "wait", "follow",
		},
		DescriptiveWords: []string{
			"magical", "mysterious", "hidden", "secret", "ancient", "enchanted",
			"sparkling", "glowing", "shimmering", "twinkling", "glittering",
			"colorful", "bright", "dark", "deep", "high", "low", "far", "near",
			"big", "small", "tiny", "huge", "giant", "miniature", "beautiful",
			"wonderful", "amazing", "incredible", "fantastic", "fabulous",
			"friendly", "crystal", "royal", "grand",
		},
	}
}
