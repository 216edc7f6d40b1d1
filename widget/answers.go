package widget

import (
	"fmt"
	"strings"

	"github.com/embedpulse/survey-server/codec"
)

// answerBuffer accumulates the respondent's input for one question until
// submission packs it through the codec. Selections keep toggle order so the
// wire encoding stays positionally aligned with its free-text slots.
type answerBuffer struct {
	selections []uint
	otherTexts map[uint]string

	text    string
	textSet bool

	number    int
	numberSet bool

	boolVal bool
	boolSet bool
}

func newAnswerBuffer() *answerBuffer {
	return &answerBuffer{otherTexts: make(map[uint]string)}
}

// answered reports whether the buffer satisfies a required question. Blank
// free text does not count.
func (b *answerBuffer) answered(format codec.QuestionFormat) bool {
	if b == nil {
		return false
	}
	switch format {
	case codec.FormatYesNo:
		return b.boolSet
	case codec.FormatStarRating:
		return b.numberSet
	case codec.FormatSingleChoice, codec.FormatMultipleChoice:
		return len(b.selections) > 0
	case codec.FormatLongText:
		return b.textSet && strings.TrimSpace(b.text) != ""
	default:
		return false
	}
}

func (b *answerBuffer) decoded(q Question) (codec.Decoded, error) {
	d := codec.Decoded{QuestionID: q.ID, Format: q.format()}
	switch d.Format {
	case codec.FormatYesNo:
		d.Bool = b.boolVal
	case codec.FormatStarRating:
		d.Number = b.number
	case codec.FormatLongText:
		d.Text = b.text
	case codec.FormatSingleChoice, codec.FormatMultipleChoice:
		for _, id := range b.selections {
			sel := codec.Selection{OptionID: id}
			if opt, ok := q.option(id); ok && opt.IsOther {
				sel.IsOther = true
				sel.OtherText = b.otherTexts[id]
			}
			d.Selections = append(d.Selections, sel)
		}
	}
	return d, nil
}

// buffer returns the current question's buffer, creating it on first use.
// Callers hold w.mu and have verified the widget is showing a question.
func (w *Widget) buffer() *answerBuffer {
	q := w.def.Questions[w.index]
	buf, ok := w.answers[q.ID]
	if !ok {
		buf = newAnswerBuffer()
		w.answers[q.ID] = buf
	}
	return buf
}

// mutable is the precondition for all answer mutations: a visible question
// of the expected format. Mutations stay allowed while a request is in
// flight — only navigation queues behind the busy flag.
func (w *Widget) mutable(want ...codec.QuestionFormat) (Question, error) {
	if w.state == StateClosed {
		return Question{}, ErrClosed
	}
	if w.state != StateQuestion || w.def == nil {
		return Question{}, ErrNotReady
	}
	q := w.def.Questions[w.index]
	for _, f := range want {
		if q.format() == f {
			return q, nil
		}
	}
	return Question{}, fmt.Errorf("%w: question %d is %s", ErrWrongFormat, q.ID, q.Format)
}

// SelectOption records a choice on the visible question: single-choice
// replaces any previous selection, multiple-choice toggles membership.
// Deselecting an "other" option clears its free-text buffer.
func (w *Widget) SelectOption(optionID uint) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	q, err := w.mutable(codec.FormatSingleChoice, codec.FormatMultipleChoice)
	if err != nil {
		return err
	}
	if _, ok := q.option(optionID); !ok {
		return fmt.Errorf("widget: option %d does not belong to question %d", optionID, q.ID)
	}

	buf := w.buffer()
	if q.format() == codec.FormatSingleChoice {
		if len(buf.selections) == 1 && buf.selections[0] == optionID {
			return nil
		}
		for _, prev := range buf.selections {
			delete(buf.otherTexts, prev)
		}
		buf.selections = []uint{optionID}
		return nil
	}

	for i, id := range buf.selections {
		if id == optionID {
			buf.selections = append(buf.selections[:i], buf.selections[i+1:]...)
			delete(buf.otherTexts, optionID)
			return nil
		}
	}
	buf.selections = append(buf.selections, optionID)
	return nil
}

// SetOtherText fills the free-text branch of a currently selected "other"
// option.
func (w *Widget) SetOtherText(text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	q, err := w.mutable(codec.FormatSingleChoice, codec.FormatMultipleChoice)
	if err != nil {
		return err
	}

	buf := w.buffer()
	for _, id := range buf.selections {
		if opt, ok := q.option(id); ok && opt.IsOther {
			buf.otherTexts[id] = text
			return nil
		}
	}
	return fmt.Errorf("widget: question %d has no selected \"other\" option", q.ID)
}

func (w *Widget) SetYesNo(v bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.mutable(codec.FormatYesNo); err != nil {
		return err
	}
	buf := w.buffer()
	buf.boolVal = v
	buf.boolSet = true
	return nil
}

func (w *Widget) SetRating(n int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	q, err := w.mutable(codec.FormatStarRating)
	if err != nil {
		return err
	}
	if n < codec.MinStarRating || n > codec.MaxStarRating {
		return fmt.Errorf("widget: rating %d out of range for question %d", n, q.ID)
	}
	buf := w.buffer()
	buf.number = n
	buf.numberSet = true
	return nil
}

func (w *Widget) SetText(text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.mutable(codec.FormatLongText); err != nil {
		return err
	}
	buf := w.buffer()
	buf.text = text
	buf.textSet = true
	return nil
}
