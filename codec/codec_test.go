package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }
func boolPtr(b bool) *bool    { return &b }

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"YES_NO", "SINGLE_CHOICE", "MULTIPLE_CHOICE", "STAR_RATING", "LONG_TEXT", "STATEMENT"} {
		f, err := ParseFormat(s)
		require.NoError(t, err)
		assert.Equal(t, s, f.String())
	}

	_, err := ParseFormat("UPLOAD_FILE")
	assert.Error(t, err)
	_, err = ParseFormat("")
	assert.Error(t, err)
}

func TestDecodeYesNo(t *testing.T) {
	d, err := Decode(Answer{QuestionID: 7, QuestionFormat: "YES_NO", BooleanValue: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, FormatYesNo, d.Format)
	assert.True(t, d.Bool)

	_, err = Decode(Answer{QuestionID: 7, QuestionFormat: "YES_NO"})
	assert.Error(t, err)
}

func TestDecodeSingleChoiceOther(t *testing.T) {
	d, err := Decode(Answer{
		QuestionID:     3,
		QuestionFormat: "SINGLE_CHOICE",
		OptionID:       strPtr("42"),
		TextValue:      strPtr("something else"),
		IsOther:        true,
	})
	require.NoError(t, err)
	require.Len(t, d.Selections, 1)
	assert.Equal(t, uint(42), d.Selections[0].OptionID)
	assert.True(t, d.Selections[0].IsOther)
	assert.Equal(t, "something else", d.Selections[0].OtherText)
}

func TestDecodeStarRatingRange(t *testing.T) {
	for n := MinStarRating; n <= MaxStarRating; n++ {
		d, err := Decode(Answer{QuestionID: 1, QuestionFormat: "STAR_RATING", NumberValue: intPtr(n)})
		require.NoError(t, err)
		assert.Equal(t, n, d.Number)
	}
	for _, n := range []int{0, 6, -1} {
		_, err := Decode(Answer{QuestionID: 1, QuestionFormat: "STAR_RATING", NumberValue: intPtr(n)})
		assert.Error(t, err, "rating %d", n)
	}
}

func TestDecodeStatementCarriesNothing(t *testing.T) {
	d, err := Decode(Answer{QuestionID: 9, QuestionFormat: "STATEMENT"})
	require.NoError(t, err)
	assert.Empty(t, d.Selections)
	assert.False(t, d.Format.Collectable())
}

// The canonical wire example: options {a,c} of [a,b,c] selected, free text
// only on c. The encoded strings and the re-decoded pairing must both be
// stable.
func TestMultipleChoiceRoundTrip(t *testing.T) {
	d := Decoded{
		QuestionID: 5,
		Format:     FormatMultipleChoice,
		Selections: []Selection{
			{OptionID: 11},
			{OptionID: 13, OtherText: "handwritten", IsOther: true},
		},
	}

	a, err := Encode(d)
	require.NoError(t, err)
	require.NotNil(t, a.OptionID)
	require.NotNil(t, a.TextValue)
	assert.Equal(t, "11,13", *a.OptionID)
	assert.Equal(t, "_;_handwritten", *a.TextValue)
	assert.True(t, a.IsOther)

	back, err := Decode(a)
	require.NoError(t, err)
	require.Len(t, back.Selections, 2)
	assert.Equal(t, d.Selections[0].OptionID, back.Selections[0].OptionID)
	assert.Empty(t, back.Selections[0].OtherText)
	assert.Equal(t, d.Selections[1].OptionID, back.Selections[1].OptionID)
	assert.Equal(t, "handwritten", back.Selections[1].OtherText)
	assert.True(t, back.Selections[1].IsOther)
}

func TestMultipleChoiceShortTextListPads(t *testing.T) {
	d, err := Decode(Answer{
		QuestionID:     5,
		QuestionFormat: "MULTIPLE_CHOICE",
		OptionID:       strPtr("1,2,3"),
		TextValue:      strPtr("only first"),
	})
	require.NoError(t, err)
	require.Len(t, d.Selections, 3)
	assert.Equal(t, "only first", d.Selections[0].OtherText)
	assert.Empty(t, d.Selections[1].OtherText)
	assert.Empty(t, d.Selections[2].OtherText)
	assert.False(t, d.TruncatedTexts)
}

func TestMultipleChoiceLongTextListTruncates(t *testing.T) {
	d, err := Decode(Answer{
		QuestionID:     5,
		QuestionFormat: "MULTIPLE_CHOICE",
		OptionID:       strPtr("1,2"),
		TextValue:      strPtr("a_;_b_;_c"),
	})
	require.NoError(t, err)
	require.Len(t, d.Selections, 2)
	assert.Equal(t, "a", d.Selections[0].OtherText)
	assert.Equal(t, "b", d.Selections[1].OtherText)
	assert.True(t, d.TruncatedTexts)
}

func TestDecodeMalformedOptionID(t *testing.T) {
	_, err := Decode(Answer{QuestionID: 2, QuestionFormat: "SINGLE_CHOICE", OptionID: strPtr("abc")})
	assert.Error(t, err)

	_, err = Decode(Answer{QuestionID: 2, QuestionFormat: "MULTIPLE_CHOICE", OptionID: strPtr("1,x")})
	assert.Error(t, err)
}

func TestEncodeRejectsInvalidShapes(t *testing.T) {
	_, err := Encode(Decoded{QuestionID: 1, Format: FormatSingleChoice})
	assert.Error(t, err)

	_, err = Encode(Decoded{QuestionID: 1, Format: FormatMultipleChoice})
	assert.Error(t, err)

	_, err = Encode(Decoded{QuestionID: 1, Format: FormatStarRating, Number: 9})
	assert.Error(t, err)

	_, err = Encode(Decoded{QuestionID: 1, Format: "MYSTERY"})
	assert.Error(t, err)
}

func TestEncodeDecodeAllFormats(t *testing.T) {
	cases := []Decoded{
		{QuestionID: 1, Format: FormatYesNo, Bool: false},
		{QuestionID: 2, Format: FormatStarRating, Number: 4},
		{QuestionID: 3, Format: FormatLongText, Text: "free form, with, commas"},
		{QuestionID: 4, Format: FormatSingleChoice, Selections: []Selection{{OptionID: 8}}},
	}
	for _, d := range cases {
		a, err := Encode(d)
		require.NoError(t, err, "format %s", d.Format)
		back, err := Decode(a)
		require.NoError(t, err, "format %s", d.Format)
		assert.Equal(t, d, back, "format %s", d.Format)
	}
}
