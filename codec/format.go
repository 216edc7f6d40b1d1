package codec

import "fmt"

// QuestionFormat is the closed set of answer formats the widget can render
// and the server can aggregate. Unknown values are rejected at the boundary.
type QuestionFormat string

const (
	FormatYesNo          QuestionFormat = "YES_NO"
	FormatSingleChoice   QuestionFormat = "SINGLE_CHOICE"
	FormatMultipleChoice QuestionFormat = "MULTIPLE_CHOICE"
	FormatStarRating     QuestionFormat = "STAR_RATING"
	FormatLongText       QuestionFormat = "LONG_TEXT"
	FormatStatement      QuestionFormat = "STATEMENT"
)

// Star ratings are always on a fixed 1..5 scale.
const (
	MinStarRating = 1
	MaxStarRating = 5
)

var allFormats = map[QuestionFormat]bool{
	FormatYesNo:          true,
	FormatSingleChoice:   true,
	FormatMultipleChoice: true,
	FormatStarRating:     true,
	FormatLongText:       true,
	FormatStatement:      true,
}

func ParseFormat(s string) (QuestionFormat, error) {
	f := QuestionFormat(s)
	if !allFormats[f] {
		return "", fmt.Errorf("unknown question format %q", s)
	}
	return f, nil
}

func (f QuestionFormat) Valid() bool { return allFormats[f] }

func (f QuestionFormat) String() string { return string(f) }

// Choice reports whether answers to this format reference survey options.
func (f QuestionFormat) Choice() bool {
	return f == FormatSingleChoice || f == FormatMultipleChoice
}

// Collectable reports whether the format collects an answer at all.
// STATEMENT questions are display-only and never produce answer records,
// so they are also excluded from required-question checks.
func (f QuestionFormat) Collectable() bool { return f != FormatStatement }
