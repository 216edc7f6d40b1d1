package widget

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/embedpulse/survey-server/codec"
)

type submitPayload struct {
	SurveyID           uint           `json:"surveyId"`
	UserID             *string        `json:"userId,omitempty"`
	UserIP             *string        `json:"userIp,omitempty"`
	ExtraInfo          *string        `json:"extraInfo,omitempty"`
	ClientSubmissionID string         `json:"clientSubmissionId"`
	Responses          []codec.Answer `json:"responses"`
}

type serverError struct {
	Status  int
	Message string
}

func (e *serverError) Error() string {
	return fmt.Sprintf("widget: server returned %d: %s", e.Status, e.Message)
}

// retryable: transient transport failures and 5xx responses are retried with
// the same submission id; client errors are final.
func retryable(err error) bool {
	var se *serverError
	if errors.As(err, &se) {
		return se.Status >= 500
	}
	return true
}

// Load fetches the survey definition when the host page did not pre-supply
// one. On failure the widget stays in StateLoading so the host may retry.
func (w *Widget) Load(ctx context.Context) error {
	w.mu.Lock()
	switch {
	case w.state == StateClosed:
		w.mu.Unlock()
		return ErrClosed
	case w.busy:
		w.mu.Unlock()
		return ErrBusy
	case w.state != StateLoading:
		w.mu.Unlock()
		return fmt.Errorf("widget: already loaded")
	}
	w.busy = true
	w.mu.Unlock()

	url := fmt.Sprintf("%s/api/surveys/%d/definition", w.cfg.BaseURL, w.cfg.SurveyID)
	var def Definition
	err := w.doJSON(ctx, http.MethodGet, url, nil, &def)

	w.mu.Lock()
	w.busy = false
	if w.state == StateClosed {
		w.mu.Unlock()
		return ErrClosed
	}
	if err == nil {
		w.installDefinition(&def)
	}
	w.mu.Unlock()

	if err != nil && w.cfg.OnError != nil {
		w.cfg.OnError(err)
	}
	return err
}

// submit performs the terminal submission with bounded retry. The caller has
// already moved the machine to StateSubmitting and set the busy flag.
func (w *Widget) submit(ctx context.Context, payload submitPayload) error {
	url := fmt.Sprintf("%s/api/surveys/%d/submissions", w.cfg.BaseURL, w.cfg.SurveyID)

	var receipt Receipt
	var err error
retry:
	for attempt := 0; ; attempt++ {
		err = w.doJSON(ctx, http.MethodPost, url, payload, &receipt)
		if err == nil || !retryable(err) || attempt >= w.cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			err = fmt.Errorf("widget: submission aborted: %w", ctx.Err())
			break retry
		case <-time.After(time.Duration(attempt+1) * 250 * time.Millisecond):
		}
	}

	if err != nil {
		w.finishSubmit(nil, err)
		return err
	}
	w.finishSubmit(&receipt, nil)
	return nil
}

func (w *Widget) doJSON(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("widget: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("widget: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.cfg.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("widget: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(raw, &apiErr)
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return &serverError{Status: resp.StatusCode, Message: apiErr.Message}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("widget: decode response: %w", err)
		}
	}
	return nil
}
