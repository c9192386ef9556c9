package models

import (
	"time"

	"github.com/google/uuid"
)

// StoryStatus describes the lifecycle state of a story.
type StoryStatus string

const (
	// StatusActive - the story accepts further choices.
	StatusActive StoryStatus = "active"
	// StatusEnded - a segment with zero choices was produced; the story is terminal.
	StatusEnded StoryStatus = "ended"
)

// Mood tags supported by the prompt builder.
const (
	MoodBedtime = "bedtime"
	MoodSilly   = "silly"
	MoodBold    = "bold"
	MoodCurious = "curious"
)

// StoryPreferences is the immutable input record supplied once at story
// creation.
type StoryPreferences struct {
	ChildName      string   `db:"-" json:"childName"`
	FavoriteAnimal string   `db:"-" json:"favoriteAnimal"`
	Setting        string   `db:"-" json:"setting"`
	Characters     []string `db:"-" json:"characters,omitempty"`
	LifeLesson     string   `db:"-" json:"lifeLesson,omitempty"`
	Mood           string   `db:"-" json:"mood,omitempty"`
}

// Choice is one branch option presented to the reader.
type Choice struct {
	Text string `json:"text"`
}

// RawAttempt keeps one as-received model output verbatim for audit. Any
// choices the model offered are embedded in Text exactly as it sent them.
type RawAttempt struct {
	Text string `json:"text"`
}

// StorySegment is one page of the story. RawModelOutputs is append-only and
// never mutated after the segment is finalized.
type StorySegment struct {
	Text            string       `json:"text"`
	Illustration    string       `json:"illustration"`
	Choices         []Choice     `json:"choices"`
	ContextQuestion string       `json:"contextQuestion,omitempty"`
	RawModelOutputs []RawAttempt `json:"rawModelOutputs"`
	IsFallback      bool         `json:"isFallback,omitempty"`
}

// Story is the aggregate root. Segments is append-only;
// CurrentSegmentIndex always points at the last element after a successful
// choice application.
type Story struct {
	ID                  uuid.UUID        `json:"id"`
	Preferences         StoryPreferences `json:"preferences"`
	Segments            []StorySegment   `json:"segments"`
	CurrentSegmentIndex int              `json:"currentSegmentIndex"`
	Status              StoryStatus      `json:"status"`
	Ending              string           `json:"ending,omitempty"`
	CreatedAt           time.Time        `json:"createdAt"`
	UpdatedAt           time.Time        `json:"updatedAt"`
}

// CurrentSegment returns the segment the reader currently sees.
// Returns nil on an inconsistent index, which callers treat as corruption.
func (s *Story) CurrentSegment() *StorySegment {
	if s.CurrentSegmentIndex < 0 || s.CurrentSegmentIndex >= len(s.Segments) {
		return nil
	}
	return &s.Segments[s.CurrentSegmentIndex]
}

// GeneratedSegment is the orchestrator's result contract: callers always
// receive a well-formed text plus either exactly two choices or none.
type GeneratedSegment struct {
	Text            string
	Choices         []Choice
	ContextQuestion string
	RawModelOutputs []RawAttempt
	IsFallback      bool
	IsEnding        bool
}

// SegmentTexts returns the narrative texts of all segments, oldest first.
// This is the prior-context slice handed to the prompt builder.
func (s *Story) SegmentTexts() []string {
	texts := make([]string, 0, len(s.Segments))
	for _, seg := range s.Segments {
		texts = append(texts, seg.Text)
	}
	return texts
}
