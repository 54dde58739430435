package extraction

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Analyzer extracts a result from a whole document in a single blocking call
type Analyzer interface {
	// Analyze runs extraction for data with the given model variant
	Analyze(ctx context.Context, data []byte, contentType string, model string) (*AnalyzeResult, error)
	// Close releases resources held by the analyzer
	Close() error
}

// operation is an in-flight or finished analyzer run
type operation struct {
	status Status
	result *AnalyzeResult
	err    error
}

// defaultRetention is how long a finished operation waits to be fetched
const defaultRetention = time.Minute

// AsyncEngine runs an Analyzer in the background and exposes it through the
// submit and poll protocol of Engine. Finished operations nobody fetches are
// forgotten after the retention period.
type AsyncEngine struct {
	analyzer  Analyzer
	timeout   time.Duration
	retention time.Duration

	mu  sync.Mutex
	ops map[string]*operation
}

// NewAsyncEngine creates a new AsyncEngine. timeout bounds each analyzer run.
func NewAsyncEngine(analyzer Analyzer, timeout time.Duration) *AsyncEngine {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &AsyncEngine{
		analyzer:  analyzer,
		timeout:   timeout,
		retention: defaultRetention,
		ops:       make(map[string]*operation),
	}
}

// SetRetention sets how long finished operations are kept for Poll and FetchResult
func (e *AsyncEngine) SetRetention(d time.Duration) {
	if d > 0 {
		e.mu.Lock()
		e.retention = d
		e.mu.Unlock()
	}
}

// Submit reads the document and starts the analyzer in a new goroutine
func (e *AsyncEngine) Submit(ctx context.Context, document io.Reader, contentType string, model string) (Operation, error) {
	data, err := io.ReadAll(document)
	if err != nil {
		return Operation{}, fmt.Errorf("reading document: %w", err)
	}
	if len(data) == 0 {
		return Operation{}, &ResponseError{StatusCode: 400, Code: "InvalidRequest", Message: "document is empty"}
	}
	if model == "" {
		model = ModelInvoice
	}

	id := uuid.NewString()
	op := &operation{status: StatusRunning}
	e.mu.Lock()
	e.ops[id] = op
	e.mu.Unlock()

	go e.run(id, op, data, contentType, model)

	return Operation{ID: id}, nil
}

func (e *AsyncEngine) run(id string, op *operation, data []byte, contentType, model string) {
	// Detached from the submitting request, like a remote engine would be.
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	result, err := e.analyzer.Analyze(ctx, data, contentType, model)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		slog.Error("Analyzer failed", "operation_id", id, "model", model, "error", err)
		op.status = StatusFailed
		op.err = err
	} else {
		op.status = StatusSucceeded
		op.result = result
	}
	time.AfterFunc(e.retention, func() { e.expire(id, op) })
}

// expire drops op unless it was already handed over
func (e *AsyncEngine) expire(id string, op *operation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ops[id] == op {
		slog.Warn("Dropping unfetched operation", "operation_id", id, "status", op.status)
		delete(e.ops, id)
	}
}

// pending reports how many operations are tracked
func (e *AsyncEngine) pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.ops)
}

// Poll reports the status of op
func (e *AsyncEngine) Poll(ctx context.Context, op Operation) (PollResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.ops[op.ID]
	if !ok {
		return PollResult{}, &ResponseError{StatusCode: 404, Code: "NotFound", Message: "unknown operation " + op.ID}
	}
	res := PollResult{Status: o.status}
	if o.err != nil {
		res.Code = "AnalyzerError"
		res.Message = o.err.Error()
		delete(e.ops, op.ID)
	}
	return res, nil
}

// FetchResult hands over the result of a succeeded operation and forgets it
func (e *AsyncEngine) FetchResult(ctx context.Context, op Operation) (*AnalyzeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.ops[op.ID]
	if !ok {
		return nil, &ResponseError{StatusCode: 404, Code: "NotFound", Message: "unknown operation " + op.ID}
	}
	if o.status != StatusSucceeded {
		return nil, fmt.Errorf("operation %s is %s", op.ID, o.status)
	}
	delete(e.ops, op.ID)
	return o.result, nil
}

// Close closes the underlying analyzer
func (e *AsyncEngine) Close() error {
	return e.analyzer.Close()
}
