package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"clickart/internal/upload"
)

const (
	defaultPollInterval = time.Second
	pollMaxRetryTime    = 30 * time.Second
)

// HTTPClient talks to a prediction-style generation API: POST creates a
// prediction, GET polls its status until it reaches a terminal state.
// The output list only ever grows, so frames are emitted sequentially
// from it; a stale poll response that reports fewer outputs than already
// emitted is ignored rather than re-emitted out of order.
type HTTPClient struct {
	baseURL      string
	token        string
	client       *http.Client
	pollInterval time.Duration
	newBackoff   func() backoff.BackOff
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithPollInterval overrides the delay between status polls.
func WithPollInterval(d time.Duration) Option {
	return func(c *HTTPClient) { c.pollInterval = d }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.client = hc }
}

// NewHTTPClient creates a client for the given generation endpoint.
func NewHTTPClient(baseURL, token string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:      baseURL,
		token:        token,
		client:       &http.Client{Timeout: 30 * time.Second},
		pollInterval: defaultPollInterval,
		newBackoff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(200*time.Millisecond),
				backoff.WithMaxInterval(2*time.Second),
				backoff.WithMaxElapsedTime(pollMaxRetryTime),
			)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createRequest struct {
	Input predictionInput `json:"input"`
}

type predictionInput struct {
	Prompt string `json:"prompt"`
	Image  string `json:"image"`
}

type prediction struct {
	ID     string   `json:"id"`
	Status string   `json:"status"` // starting, processing, succeeded, failed, canceled
	Output []string `json:"output"`
	Error  string   `json:"error"`
}

// Submit creates a prediction and starts a poll loop feeding the
// returned handle. ctx scopes the create request; the poll loop runs
// until the terminal event, Close, or ctx's deadline if it has one.
// Plain cancellation of ctx does not stop the stream: an HTTP handler's
// request context dies the moment the handler returns, long before the
// first poll.
func (c *HTTPClient) Submit(ctx context.Context, prompt string, image upload.AssetRef) (*Handle, error) {
	body, err := json.Marshal(createRequest{Input: predictionInput{
		Prompt: prompt,
		Image:  string(image),
	}})
	if err != nil {
		return nil, fmt.Errorf("generate: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predictions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("generate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generate: submit: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("generate: read response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generate: submit: unexpected status %d: %s", resp.StatusCode, respBody)
	}

	var p prediction
	if err := json.Unmarshal(respBody, &p); err != nil {
		return nil, fmt.Errorf("generate: parse response: %w", err)
	}
	if p.ID == "" {
		return nil, errors.New("generate: response missing prediction id")
	}

	base := context.WithoutCancel(ctx)
	var streamCtx context.Context
	var cancel context.CancelFunc
	if deadline, ok := ctx.Deadline(); ok {
		streamCtx, cancel = context.WithDeadline(base, deadline)
	} else {
		streamCtx, cancel = context.WithCancel(base)
	}
	h := &Handle{
		id:     p.ID,
		cancel: cancel,
		events: make(chan Event),
	}
	go c.poll(streamCtx, h)
	return h, nil
}

func (c *HTTPClient) poll(ctx context.Context, h *Handle) {
	defer close(h.events)
	defer h.cancel()

	emitted := 0
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		p, err := c.fetch(ctx, h.id)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return // abandoned, not an error
			}
			if errors.Is(err, context.DeadlineExceeded) {
				deliverTerminal(h, Event{Kind: EventFailed, Reason: "timeout"})
				return
			}
			deliverTerminal(h, Event{Kind: EventFailed, Reason: err.Error()})
			return
		}

		// Emit any frames the service appended since the last poll.
		for emitted < len(p.Output) {
			ev := Event{
				Kind:  EventFrame,
				Index: emitted,
				Image: upload.AssetRef(p.Output[emitted]),
			}
			select {
			case h.events <- ev:
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					deliverTerminal(h, Event{Kind: EventFailed, Reason: "timeout"})
				}
				return
			}
			emitted++
		}

		switch p.Status {
		case "succeeded":
			deliverTerminal(h, Event{Kind: EventDone})
			return
		case "failed", "canceled":
			reason := p.Error
			if reason == "" {
				reason = p.Status
			}
			deliverTerminal(h, Event{Kind: EventFailed, Reason: reason})
			return
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				deliverTerminal(h, Event{Kind: EventFailed, Reason: "timeout"})
			}
			return
		case <-ticker.C:
		}
	}
}

// deliverTerminal hands the terminal event to the receiver. A deadline
// may already have fired, in which case the receiver is still draining,
// so the send gets a short grace period instead of being ctx-guarded.
func deliverTerminal(h *Handle, ev Event) {
	select {
	case h.events <- ev:
	case <-time.After(2 * time.Second):
	}
}

// fetch polls the prediction once, retrying transient network errors
// with exponential backoff.
func (c *HTTPClient) fetch(ctx context.Context, id string) (*prediction, error) {
	attempt := func() (*prediction, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/predictions/"+id, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Token "+c.token)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			log.Printf("[gen] poll %s: retrying: %v", id, err)
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, body))
		}

		var p prediction
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("parse poll response: %w", err))
		}
		return &p, nil
	}
	return backoff.RetryWithData(attempt, backoff.WithContext(c.newBackoff(), ctx))
}
