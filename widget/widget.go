// Package widget is the embeddable answer-collection runtime. It walks a
// published survey's ordered questions one at a time, enforces local
// required-field validation, packs the accumulated answers into the codec
// wire shape and performs the terminal submission.
//
// The widget is an event-driven state machine meant to be driven from a
// single goroutine (one instance per respondent, disposable). The only
// suspension points are the definition fetch and the final submission; while
// one is in flight a busy flag rejects further next/submit calls, and
// closing the widget hides it without aborting the request.
package widget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/embedpulse/survey-server/codec"
)

type State int

const (
	StateLoading State = iota
	StateQuestion
	StateSubmitting
	StateCompleted
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateQuestion:
		return "question"
	case StateSubmitting:
		return "submitting"
	case StateCompleted:
		return "completed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	ErrBusy              = errors.New("widget: request in flight")
	ErrClosed            = errors.New("widget: closed")
	ErrNotReady          = errors.New("widget: definition not loaded")
	ErrAnswerRequired    = errors.New("widget: current question requires an answer")
	ErrOtherTextRequired = errors.New("widget: selected \"other\" option needs text")
	ErrWrongFormat       = errors.New("widget: mutation does not match question format")
)

// Option and Question mirror the definition endpoint payload.
type Option struct {
	ID       uint   `json:"id"`
	Text     string `json:"text"`
	Position int    `json:"position"`
	IsOther  bool   `json:"isOther"`
}

type Question struct {
	ID       uint     `json:"id"`
	Title    string   `json:"title"`
	Format   string   `json:"format"`
	Required bool     `json:"required"`
	Position int      `json:"position"`
	Options  []Option `json:"options"`
}

func (q Question) format() codec.QuestionFormat { return codec.QuestionFormat(q.Format) }

func (q Question) option(id uint) (Option, bool) {
	for _, o := range q.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

type Definition struct {
	SurveyID    uint            `json:"surveyId"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Style       json.RawMessage `json:"style"`
	Questions   []Question      `json:"questions"`
}

// Receipt is the server's acknowledgement of a stored submission.
type Receipt struct {
	ResponseID  uint      `json:"responseId"`
	SurveyID    uint      `json:"surveyId"`
	TeamName    string    `json:"teamName"`
	SubmittedAt time.Time `json:"submittedAt"`
}

type Config struct {
	BaseURL  string
	Token    string
	SurveyID uint

	// Definition may be pre-supplied by the host page; the widget then skips
	// the mount-time fetch.
	Definition *Definition

	HTTPClient     *http.Client
	RequestTimeout time.Duration // per-request ceiling; default 15s
	MaxRetries     int           // submission retries after the first attempt; default 2, negative disables

	// AutoDismiss closes the widget this long after completion; 0 keeps it
	// open until the host closes it.
	AutoDismiss time.Duration

	UserID    string
	UserIP    string
	ExtraInfo string

	OnComplete func(Receipt)
	OnError    func(error)
}

// Widget is one disposable runtime instance. It has no resubmission
// safeguard of its own beyond the submission id: retries reuse the same id,
// so the server collapses them into one response session.
type Widget struct {
	mu sync.Mutex

	cfg    Config
	client *http.Client

	// submissionID is generated once per instance and sent with every
	// submission attempt as the idempotency key.
	submissionID string

	state State
	busy  bool
	def   *Definition
	index int

	answers map[uint]*answerBuffer
}

func New(cfg Config) *Widget {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}

	w := &Widget{
		cfg:          cfg,
		client:       client,
		submissionID: uuid.NewString(),
		state:        StateLoading,
		answers:      make(map[uint]*answerBuffer),
	}
	if cfg.Definition != nil {
		w.installDefinition(cfg.Definition)
	}
	return w
}

func (w *Widget) installDefinition(def *Definition) {
	w.def = def
	w.index = 0
	if len(def.Questions) == 0 {
		w.state = StateCompleted
		return
	}
	w.state = StateQuestion
}

func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// QuestionIndex reports the index of the visible question.
func (w *Widget) QuestionIndex() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.index
}

func (w *Widget) CurrentQuestion() (Question, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateQuestion || w.def == nil || w.index >= len(w.def.Questions) {
		return Question{}, false
	}
	return w.def.Questions[w.index], true
}

// SubmissionID exposes the idempotency key, mainly for host-page logging.
func (w *Widget) SubmissionID() string { return w.submissionID }

// Close hides the widget from any state. An in-flight request is not
// aborted; its result is discarded when it lands.
func (w *Widget) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = StateClosed
}

// Back moves to the previous question. Answers are kept.
func (w *Widget) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.interactive(); err != nil {
		return err
	}
	if w.index > 0 {
		w.index--
	}
	return nil
}

// Next advances past the visible question, submitting when it is the last
// one. A required question with no answer, or a selected "other" option with
// blank text, blocks the move — that is the widget's shake affordance, no
// server round-trip involved.
func (w *Widget) Next(ctx context.Context) error {
	w.mu.Lock()
	if err := w.interactive(); err != nil {
		w.mu.Unlock()
		return err
	}

	q := w.def.Questions[w.index]
	if err := w.checkAdvance(q); err != nil {
		w.mu.Unlock()
		return err
	}

	if w.index < len(w.def.Questions)-1 {
		w.index++
		w.mu.Unlock()
		return nil
	}

	// Last question answered: pack and submit exactly once per call.
	w.state = StateSubmitting
	w.busy = true
	payload, err := w.buildPayload()
	if err != nil {
		w.state = StateQuestion
		w.busy = false
		w.mu.Unlock()
		return err
	}
	w.mu.Unlock()

	return w.submit(ctx, payload)
}

// interactive rejects calls that arrive while the widget cannot accept
// navigation. Callers hold w.mu.
func (w *Widget) interactive() error {
	switch {
	case w.state == StateClosed:
		return ErrClosed
	case w.busy:
		return ErrBusy
	case w.state != StateQuestion || w.def == nil:
		return ErrNotReady
	}
	return nil
}

func (w *Widget) checkAdvance(q Question) error {
	buf := w.answers[q.ID]
	if q.Required && !buf.answered(q.format()) {
		return ErrAnswerRequired
	}
	if buf != nil && q.format().Choice() {
		for _, id := range buf.selections {
			opt, ok := q.option(id)
			if ok && opt.IsOther && strings.TrimSpace(buf.otherTexts[id]) == "" {
				return ErrOtherTextRequired
			}
		}
	}
	return nil
}

func (w *Widget) buildPayload() (submitPayload, error) {
	payload := submitPayload{
		SurveyID:           w.def.SurveyID,
		ClientSubmissionID: w.submissionID,
	}
	if w.cfg.UserID != "" {
		payload.UserID = &w.cfg.UserID
	}
	if w.cfg.UserIP != "" {
		payload.UserIP = &w.cfg.UserIP
	}
	if w.cfg.ExtraInfo != "" {
		payload.ExtraInfo = &w.cfg.ExtraInfo
	}

	for _, q := range w.def.Questions {
		buf := w.answers[q.ID]
		format := q.format()
		if !buf.answered(format) {
			continue
		}
		decoded, err := buf.decoded(q)
		if err != nil {
			return submitPayload{}, err
		}
		answer, err := codec.Encode(decoded)
		if err != nil {
			return submitPayload{}, fmt.Errorf("question %d: %w", q.ID, err)
		}
		answer.QuestionTitle = q.Title
		payload.Responses = append(payload.Responses, answer)
	}
	if payload.Responses == nil {
		payload.Responses = []codec.Answer{}
	}
	return payload, nil
}

// finishSubmit applies the outcome of the submission call. A widget closed
// mid-flight stays closed and discards the result.
func (w *Widget) finishSubmit(receipt *Receipt, err error) {
	w.mu.Lock()
	w.busy = false
	closed := w.state == StateClosed
	if !closed {
		if err != nil {
			w.state = StateQuestion
		} else {
			w.state = StateCompleted
		}
	}
	w.mu.Unlock()

	if closed {
		return
	}
	if err != nil {
		if w.cfg.OnError != nil {
			w.cfg.OnError(err)
		}
		return
	}
	if w.cfg.OnComplete != nil {
		w.cfg.OnComplete(*receipt)
	}
	if w.cfg.AutoDismiss > 0 {
		time.AfterFunc(w.cfg.AutoDismiss, w.Close)
	}
}
