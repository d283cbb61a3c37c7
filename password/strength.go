package password

import "unicode/utf8"

// Label buckets a strength score for display.
type Label string

const (
	LabelWeak   Label = "Weak"
	LabelFair   Label = "Fair"
	LabelGood   Label = "Good"
	LabelStrong Label = "Strong"
)

// Score is an advisory 0..100 strength estimate for client-side meters. It
// never overrides ValidateStrength.
type Score struct {
	Value int   `json:"score"`
	Label Label `json:"label"`
}

// Strength scores pw: up to 30 points for length, 10 per character class
// present, up to 30 for distinct characters.
func Strength(pw string) Score {
	value := min(utf8.RuneCountInString(pw)*2, 30)

	c := classify(pw)
	for _, present := range []bool{c.lower, c.upper, c.digit, c.symbol} {
		if present {
			value += 10
		}
	}

	unique := make(map[rune]struct{}, len(pw))
	for _, r := range pw {
		unique[r] = struct{}{}
	}
	value += min(len(unique)*2, 30)
	value = min(value, 100)

	return Score{Value: value, Label: labelFor(value)}
}

func labelFor(value int) Label {
	switch {
	case value < 30:
		return LabelWeak
	case value < 60:
		return LabelFair
	case value < 80:
		return LabelGood
	default:
		return LabelStrong
	}
}
