package questiongen

import "github.com/lexiworks/lexisurvey/internal/survey"

// OptionKind records where an option came from. It is never shown to the
// learner.
type OptionKind string

const (
	KindCorrect  OptionKind = "correct"
	KindConfused OptionKind = "confused" // real confusion pair, the strongest trap
	KindRelated  OptionKind = "related"
	KindOpposite OptionKind = "opposite"
	KindFar      OptionKind = "far"     // far-rank item, trivially wrong
	KindPadding  OptionKind = "padding" // arbitrary-rank filler for sparse banks
	KindUnknown  OptionKind = "unknown" // "I don't know"
)

// UnknownOptionID is the fixed ID of the "I don't know" option.
const UnknownOptionID = "idk"

// UnknownOptionText is the label of the "I don't know" option.
const UnknownOptionText = "I don't know"

// Option is one answer choice.
type Option struct {
	ID     string     `json:"id"`
	Text   string     `json:"text"`
	Kind   OptionKind `json:"kind"`
	ItemID string     `json:"item_id,omitempty"`
}

// Question is a multiple-choice payload for one target item.
type Question struct {
	// Ref identifies this question within its session.
	Ref       string `json:"ref"`
	SessionID string `json:"session_id"`

	// ItemID and Word identify the target item. Word is the prompt.
	ItemID string `json:"item_id"`
	Word   string `json:"word"`

	Phase survey.Phase `json:"phase"`

	// TargetRank is the rank requested by the controller; ItemRank is
	// the rank of the item actually chosen.
	TargetRank int `json:"target_rank"`
	ItemRank   int `json:"item_rank"`

	// Options are shuffled. Exactly one has Kind KindCorrect.
	Options         []Option `json:"options"`
	CorrectOptionID string   `json:"correct_option_id"`

	// LowQuality is set when the question had to be padded with
	// arbitrary items or has fewer options than requested.
	LowQuality bool `json:"low_quality"`
}

// Request describes the question to build.
type Request struct {
	SessionID  string
	TargetRank int
	Phase      survey.Phase

	// Exclude lists item IDs already asked in this session. They are
	// avoided as targets when alternatives exist.
	Exclude map[string]bool
}
