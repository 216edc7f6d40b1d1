// Package codec defines the wire contract shared by the embeddable widget
// runtime and the server-side ingestion pipeline. An answer travels as a flat
// record of optional scalar fields; multi-valued answers are packed into
// delimited strings for transport and unpacked into proper lists immediately
// at either boundary. The delimited form never travels past Decode.
package codec

import (
	"fmt"
	"strconv"
	"strings"
)

// Wire delimiters. These are a compatibility contract with widgets already
// deployed in the field and must not change.
const (
	OptionDelimiter = ","
	TextDelimiter   = "_;_"
)

// Answer is the flat wire shape of one answered question.
// Exactly one of OptionID/TextValue/NumberValue/BooleanValue is semantically
// primary depending on QuestionFormat; TextValue doubles as the free-text
// carrier for "other" choice options.
//
// For MULTIPLE_CHOICE, OptionID holds a comma-joined list of option ids and
// TextValue a TextDelimiter-joined list of free texts aligned positionally to
// the option list (empty slot for options without free text).
type Answer struct {
	QuestionID     uint    `json:"questionId"`
	QuestionTitle  string  `json:"questionTitle,omitempty"`
	QuestionFormat string  `json:"questionFormat"`
	OptionID       *string `json:"optionId,omitempty"`
	TextValue      *string `json:"textValue,omitempty"`
	NumberValue    *int    `json:"numberValue,omitempty"`
	BooleanValue   *bool   `json:"booleanValue,omitempty"`
	IsOther        bool    `json:"isOther,omitempty"`
}

// Selection is one chosen option of a choice-format answer, with the free
// text attached to it when the option is the question's "other" fallback.
type Selection struct {
	OptionID  uint
	OtherText string
	IsOther   bool
}

// Decoded is the in-memory form of an answer. Only the fields relevant to
// Format carry meaning.
type Decoded struct {
	QuestionID uint
	Format     QuestionFormat

	Selections []Selection // SINGLE_CHOICE (len 1) and MULTIPLE_CHOICE
	Text       string      // LONG_TEXT
	Number     int         // STAR_RATING
	Bool       bool        // YES_NO

	// TruncatedTexts records that the wire carried more free-text slots than
	// option ids and the surplus was dropped. The decode still succeeds; the
	// caller decides whether to log the anomaly.
	TruncatedTexts bool
}

// Decode unpacks a wire answer according to its declared format.
func Decode(a Answer) (Decoded, error) {
	format, err := ParseFormat(a.QuestionFormat)
	if err != nil {
		return Decoded{}, err
	}
	d := Decoded{QuestionID: a.QuestionID, Format: format}

	switch format {
	case FormatYesNo:
		if a.BooleanValue == nil {
			return Decoded{}, fmt.Errorf("question %d: YES_NO answer missing booleanValue", a.QuestionID)
		}
		d.Bool = *a.BooleanValue

	case FormatSingleChoice:
		if a.OptionID == nil || strings.TrimSpace(*a.OptionID) == "" {
			return Decoded{}, fmt.Errorf("question %d: SINGLE_CHOICE answer missing optionId", a.QuestionID)
		}
		id, err := parseOptionID(*a.OptionID)
		if err != nil {
			return Decoded{}, fmt.Errorf("question %d: %w", a.QuestionID, err)
		}
		sel := Selection{OptionID: id, IsOther: a.IsOther}
		if a.IsOther && a.TextValue != nil {
			sel.OtherText = *a.TextValue
		}
		d.Selections = []Selection{sel}

	case FormatMultipleChoice:
		if a.OptionID == nil || strings.TrimSpace(*a.OptionID) == "" {
			return Decoded{}, fmt.Errorf("question %d: MULTIPLE_CHOICE answer missing optionId", a.QuestionID)
		}
		ids := strings.Split(*a.OptionID, OptionDelimiter)
		var texts []string
		if a.TextValue != nil && *a.TextValue != "" {
			texts = strings.Split(*a.TextValue, TextDelimiter)
		}
		// A shorter text list is padded with empty slots; a longer one is
		// truncated. Both directions are tolerated on purpose: widgets in the
		// field emit the short form for trailing options without free text.
		if len(texts) > len(ids) {
			texts = texts[:len(ids)]
			d.TruncatedTexts = true
		}
		for i, raw := range ids {
			id, err := parseOptionID(raw)
			if err != nil {
				return Decoded{}, fmt.Errorf("question %d: %w", a.QuestionID, err)
			}
			sel := Selection{OptionID: id}
			if i < len(texts) && texts[i] != "" {
				sel.OtherText = texts[i]
				sel.IsOther = true
			}
			d.Selections = append(d.Selections, sel)
		}

	case FormatStarRating:
		if a.NumberValue == nil {
			return Decoded{}, fmt.Errorf("question %d: STAR_RATING answer missing numberValue", a.QuestionID)
		}
		if *a.NumberValue < MinStarRating || *a.NumberValue > MaxStarRating {
			return Decoded{}, fmt.Errorf("question %d: rating %d out of range %d..%d",
				a.QuestionID, *a.NumberValue, MinStarRating, MaxStarRating)
		}
		d.Number = *a.NumberValue

	case FormatLongText:
		if a.TextValue == nil {
			return Decoded{}, fmt.Errorf("question %d: LONG_TEXT answer missing textValue", a.QuestionID)
		}
		d.Text = *a.TextValue

	case FormatStatement:
		// Display-only, nothing to decode. Tolerated on the wire so old
		// widgets that echo statements do not break the whole submission.
	}

	return d, nil
}

// Encode packs a decoded answer back into the wire shape. Encode(Decode(a))
// is stable for well-formed input.
func Encode(d Decoded) (Answer, error) {
	if !d.Format.Valid() {
		return Answer{}, fmt.Errorf("question %d: unknown question format %q", d.QuestionID, d.Format)
	}
	a := Answer{QuestionID: d.QuestionID, QuestionFormat: string(d.Format)}

	switch d.Format {
	case FormatYesNo:
		b := d.Bool
		a.BooleanValue = &b

	case FormatSingleChoice:
		if len(d.Selections) != 1 {
			return Answer{}, fmt.Errorf("question %d: SINGLE_CHOICE requires exactly one selection, got %d",
				d.QuestionID, len(d.Selections))
		}
		sel := d.Selections[0]
		id := strconv.FormatUint(uint64(sel.OptionID), 10)
		a.OptionID = &id
		if sel.IsOther {
			a.IsOther = true
			text := sel.OtherText
			a.TextValue = &text
		}

	case FormatMultipleChoice:
		if len(d.Selections) == 0 {
			return Answer{}, fmt.Errorf("question %d: MULTIPLE_CHOICE requires at least one selection", d.QuestionID)
		}
		ids := make([]string, len(d.Selections))
		texts := make([]string, len(d.Selections))
		hasText := false
		for i, sel := range d.Selections {
			ids[i] = strconv.FormatUint(uint64(sel.OptionID), 10)
			texts[i] = sel.OtherText
			if sel.OtherText != "" {
				hasText = true
				a.IsOther = true
			}
		}
		joined := strings.Join(ids, OptionDelimiter)
		a.OptionID = &joined
		if hasText {
			t := strings.Join(texts, TextDelimiter)
			a.TextValue = &t
		}

	case FormatStarRating:
		if d.Number < MinStarRating || d.Number > MaxStarRating {
			return Answer{}, fmt.Errorf("question %d: rating %d out of range %d..%d",
				d.QuestionID, d.Number, MinStarRating, MaxStarRating)
		}
		n := d.Number
		a.NumberValue = &n

	case FormatLongText:
		t := d.Text
		a.TextValue = &t

	case FormatStatement:
		// Nothing to carry.
	}

	return a, nil
}

func parseOptionID(raw string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed option id %q", raw)
	}
	return uint(id), nil
}
