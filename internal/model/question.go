package model

// Option labels, in display order.
const (
	OptionA = "A"
	OptionB = "B"
	OptionC = "C"
	OptionD = "D"
)

// OptionLabels lists the four labels every question carries.
var OptionLabels = []string{OptionA, OptionB, OptionC, OptionD}

// ValidOption reports whether label is one of the four option labels.
func ValidOption(label string) bool {
	for _, l := range OptionLabels {
		if l == label {
			return true
		}
	}
	return false
}

// Text is a possibly bilingual string. Secondary is empty for
// single-language content.
type Text struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary,omitempty"`
}

// In returns the text for the requested language, falling back to Primary.
func (t Text) In(secondary bool) string {
	if secondary && t.Secondary != "" {
		return t.Secondary
	}
	return t.Primary
}

// Empty reports whether both languages are blank.
func (t Text) Empty() bool {
	return t.Primary == "" && t.Secondary == ""
}

// Option is one labeled answer choice.
type Option struct {
	Label string `json:"label" binding:"required,oneof=A B C D"`
	Text  Text   `json:"text"`
}

// Question represents a single exam question.
type Question struct {
	Number int `json:"number" binding:"min=1"`
	// Sequence is the backend's own number for the question. Answers and
	// answer keys travel keyed by it.
	Sequence int      `json:"sequence"`
	Text     Text     `json:"text"`
	Options  []Option `json:"options" binding:"len=4,dive"`
	// CorrectOption is only present for admins or after submission.
	CorrectOption string `json:"correct_option,omitempty" binding:"omitempty,oneof=A B C D"`
	Explanation   *Text  `json:"explanation,omitempty"`
	SubOptions    []Text `json:"sub_options,omitempty"`
}

// Option returns the option with the given label.
func (q *Question) Option(label string) (Option, bool) {
	for _, o := range q.Options {
		if o.Label == label {
			return o, true
		}
	}
	return Option{}, false
}
