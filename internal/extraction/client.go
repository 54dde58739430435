package extraction

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Status is the state of a long-running extraction operation
type Status string

const (
	StatusNotStarted Status = "notStarted"
	StatusRunning    Status = "running"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// Terminal reports whether no further status change will happen
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

// Operation is the completion handle of a submitted document
type Operation struct {
	ID         string
	Location   string
	RetryAfter time.Duration
}

// PollResult is the outcome of a single status check
type PollResult struct {
	Status     Status
	Code       string
	Message    string
	RetryAfter time.Duration
}

// Engine is the capability surface of a remote extraction engine
type Engine interface {
	// Submit sends the document and returns as soon as the engine accepted it
	Submit(ctx context.Context, document io.Reader, contentType string, model string) (Operation, error)
	// Poll reports the current status of an operation
	Poll(ctx context.Context, op Operation) (PollResult, error)
	// FetchResult returns the result of a succeeded operation
	FetchResult(ctx context.Context, op Operation) (*AnalyzeResult, error)
}

const (
	defaultPollInterval = time.Second
	defaultMaxWait      = 2 * time.Minute
)

// Client drives an Engine through submission and bounded polling
type Client struct {
	engine       Engine
	pollInterval time.Duration
	maxWait      time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithPollInterval sets the delay between status checks.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithMaxWait bounds how long AwaitResult waits for a terminal state.
func WithMaxWait(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.maxWait = d
		}
	}
}

// NewClient creates a new extraction client over engine.
func NewClient(engine Engine, opts ...Option) *Client {
	c := &Client{
		engine:       engine,
		pollInterval: defaultPollInterval,
		maxWait:      defaultMaxWait,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit starts extraction of document with the given model variant
func (c *Client) Submit(ctx context.Context, document io.Reader, contentType string, model string) (Operation, error) {
	op, err := c.engine.Submit(ctx, document, contentType, model)
	if err != nil {
		return Operation{}, fmt.Errorf("submitting document: %w", err)
	}
	slog.Debug("Extraction submitted", "operation_id", op.ID, "model", model)
	return op, nil
}

// AwaitResult blocks until op reaches a terminal state, the poll budget
// runs out, or ctx is done.
func (c *Client) AwaitResult(ctx context.Context, op Operation) (*AnalyzeResult, error) {
	deadline := time.NewTimer(c.maxWait)
	defer deadline.Stop()

	wait := c.interval(op.RetryAfter)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("%w: operation %s after %s", ErrExtractionTimeout, op.ID, c.maxWait)
		case <-time.After(wait):
		}

		res, err := c.engine.Poll(ctx, op)
		if err != nil {
			return nil, fmt.Errorf("polling operation %s: %w", op.ID, err)
		}
		slog.Debug("Extraction polled", "operation_id", op.ID, "status", res.Status)

		switch res.Status {
		case StatusSucceeded:
			result, err := c.engine.FetchResult(ctx, op)
			if err != nil {
				return nil, fmt.Errorf("fetching result of operation %s: %w", op.ID, err)
			}
			return result, nil
		case StatusFailed, StatusCanceled:
			return nil, &OperationError{
				OperationID: op.ID,
				Status:      res.Status,
				Code:        res.Code,
				Message:     res.Message,
			}
		}
		wait = c.interval(res.RetryAfter)
	}
}

// Analyze submits document and waits for its result
func (c *Client) Analyze(ctx context.Context, document io.Reader, contentType string, model string) (*AnalyzeResult, error) {
	op, err := c.Submit(ctx, document, contentType, model)
	if err != nil {
		return nil, err
	}
	return c.AwaitResult(ctx, op)
}

func (c *Client) interval(hint time.Duration) time.Duration {
	if hint > c.pollInterval {
		return hint
	}
	return c.pollInterval
}
