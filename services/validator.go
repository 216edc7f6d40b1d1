// Package services holds the submission pipeline: the pure admission
// validator, the transactional aggregator and the quota gate. Handlers stay
// thin; everything here is exercised directly by tests.
package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/embedpulse/survey-server/apperr"
	"github.com/embedpulse/survey-server/codec"
	"github.com/embedpulse/survey-server/models"
)

// ValidateSubmission decides whether a submission is admissible against the
// survey's current question schema. It is pure: no side effects, no store
// access. Tenant and survey resolution happen before this is called.
//
// On success it returns the decoded answers ready for aggregation, with
// STATEMENT echoes dropped (display-only questions persist nothing).
func ValidateSubmission(survey *models.Survey, answers []codec.Answer) ([]codec.Decoded, error) {
	questions := make(map[uint]*models.Question, len(survey.Questions))
	for i := range survey.Questions {
		questions[survey.Questions[i].ID] = &survey.Questions[i]
	}

	var fields []apperr.FieldError
	var unknown []uint
	decoded := make([]codec.Decoded, 0, len(answers))
	answered := make(map[uint]bool)

	for i, a := range answers {
		q, ok := questions[a.QuestionID]
		if !ok {
			unknown = append(unknown, a.QuestionID)
			continue
		}

		d, err := codec.Decode(a)
		if err != nil {
			fields = append(fields, apperr.FieldError{
				Field:   fmt.Sprintf("responses[%d]", i),
				Message: err.Error(),
			})
			continue
		}

		if string(d.Format) != q.Format {
			fields = append(fields, apperr.FieldError{
				Field:   fmt.Sprintf("responses[%d].questionFormat", i),
				Message: fmt.Sprintf("question %d has format %s, got %s", q.ID, q.Format, d.Format),
			})
			continue
		}

		if d.Format.Choice() {
			if bad := unknownOptions(q, d.Selections); len(bad) > 0 {
				fields = append(fields, apperr.FieldError{
					Field:   fmt.Sprintf("responses[%d].optionId", i),
					Message: fmt.Sprintf("options %s do not belong to question %d", joinIDs(bad), q.ID),
				})
				continue
			}
		}

		if !d.Format.Collectable() {
			continue
		}

		if hasValue(d) {
			answered[q.ID] = true
		}
		decoded = append(decoded, d)
	}

	if len(unknown) > 0 {
		return nil, apperr.BadRequest(
			fmt.Sprintf("questions %s do not belong to this survey", joinIDs(unknown)))
	}
	if len(fields) > 0 {
		return nil, apperr.BadRequest("invalid answers", fields...)
	}

	var missing []uint
	for _, q := range survey.Questions {
		if !q.Required {
			continue
		}
		format, err := codec.ParseFormat(q.Format)
		if err != nil || !format.Collectable() {
			continue
		}
		if !answered[q.ID] {
			missing = append(missing, q.ID)
		}
	}
	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
		return nil, apperr.BadRequest(
			fmt.Sprintf("required questions %s have no answer", joinIDs(missing)))
	}

	return decoded, nil
}

// hasValue reports whether a decoded answer actually answers its question.
// Blank free text does not satisfy a required LONG_TEXT question.
func hasValue(d codec.Decoded) bool {
	switch d.Format {
	case codec.FormatYesNo, codec.FormatStarRating:
		return true
	case codec.FormatSingleChoice, codec.FormatMultipleChoice:
		return len(d.Selections) > 0
	case codec.FormatLongText:
		return strings.TrimSpace(d.Text) != ""
	default:
		return false
	}
}

func unknownOptions(q *models.Question, sels []codec.Selection) []uint {
	known := make(map[uint]bool, len(q.Options))
	for _, opt := range q.Options {
		known[opt.ID] = true
	}
	var bad []uint
	for _, sel := range sels {
		if !known[sel.OptionID] {
			bad = append(bad, sel.OptionID)
		}
	}
	return bad
}

func joinIDs(ids []uint) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ", ")
}
