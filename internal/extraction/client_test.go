package extraction

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakeEngine replays a scripted sequence of poll statuses
type fakeEngine struct {
	mu        sync.Mutex
	submitErr error
	pollErr   error
	fetchErr  error
	statuses  []PollResult
	result    *AnalyzeResult
	submitted []string
	polls     int
	fetches   int
}

func (f *fakeEngine) Submit(ctx context.Context, document io.Reader, contentType string, model string) (Operation, error) {
	if f.submitErr != nil {
		return Operation{}, f.submitErr
	}
	data, _ := io.ReadAll(document)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, string(data))
	return Operation{ID: "op-1"}, nil
}

func (f *fakeEngine) Poll(ctx context.Context, op Operation) (PollResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pollErr != nil {
		return PollResult{}, f.pollErr
	}
	f.polls++
	if len(f.statuses) == 0 {
		return PollResult{Status: StatusRunning}, nil
	}
	next := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return next, nil
}

func (f *fakeEngine) FetchResult(ctx context.Context, op Operation) (*AnalyzeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.result, nil
}

var _ = Describe("Client", func() {
	var (
		engine *fakeEngine
		client *Client
		ctx    context.Context
		result *AnalyzeResult
		err    error
	)

	BeforeEach(func() {
		ctx = context.Background()
		engine = &fakeEngine{
			result: &AnalyzeResult{ModelID: ModelInvoice, Documents: []Document{{DocType: "invoice"}}},
		}
		client = NewClient(engine, WithPollInterval(time.Millisecond), WithMaxWait(200*time.Millisecond))
	})

	Describe("Analyze", func() {
		JustBeforeEach(func() {
			result, err = client.Analyze(ctx, strings.NewReader("document"), "application/pdf", ModelInvoice)
		})

		When("the operation succeeds after a few polls", func() {
			BeforeEach(func() {
				engine.statuses = []PollResult{
					{Status: StatusNotStarted},
					{Status: StatusRunning},
					{Status: StatusSucceeded},
				}
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return the fetched result", func() {
				Expect(result.Documents).To(HaveLen(1))
				Expect(result.Documents[0].DocType).To(Equal("invoice"))
			})

			It("should poll until the terminal state", func() {
				Expect(engine.polls).To(Equal(3))
			})

			It("should submit the document bytes", func() {
				Expect(engine.submitted).To(ConsistOf("document"))
			})
		})

		When("the operation fails", func() {
			BeforeEach(func() {
				engine.statuses = []PollResult{
					{Status: StatusRunning},
					{Status: StatusFailed, Code: "InvalidContent", Message: "The file is corrupted"},
				}
			})

			It("returns ErrExtractionFailed", func() {
				Expect(err).To(MatchError(ErrExtractionFailed))
			})

			It("carries the engine error details", func() {
				var opErr *OperationError
				Expect(errors.As(err, &opErr)).To(BeTrue())
				Expect(opErr.OperationID).To(Equal("op-1"))
				Expect(opErr.Code).To(Equal("InvalidContent"))
				Expect(opErr.Message).To(Equal("The file is corrupted"))
			})

			It("should not fetch a result", func() {
				Expect(engine.fetches).To(BeZero())
			})
		})

		When("the operation is canceled remotely", func() {
			BeforeEach(func() {
				engine.statuses = []PollResult{{Status: StatusCanceled}}
			})

			It("returns ErrExtractionFailed", func() {
				Expect(err).To(MatchError(ErrExtractionFailed))
			})
		})

		When("the operation never finishes", func() {
			BeforeEach(func() {
				client = NewClient(engine, WithPollInterval(time.Millisecond), WithMaxWait(20*time.Millisecond))
			})

			It("returns ErrExtractionTimeout", func() {
				Expect(err).To(MatchError(ErrExtractionTimeout))
			})

			It("should not return a result", func() {
				Expect(result).To(BeNil())
			})
		})

		When("submission is rejected", func() {
			var setupErr error

			BeforeEach(func() {
				setupErr = &ResponseError{StatusCode: 400, Code: "InvalidRequest", Message: "bad model"}
				engine.submitErr = setupErr
			})

			It("returns the error", func() {
				Expect(err).To(MatchError(setupErr))
			})

			It("is an unexpected response", func() {
				Expect(err).To(MatchError(ErrUnexpectedResponse))
			})

			It("should not poll", func() {
				Expect(engine.polls).To(BeZero())
			})
		})

		When("polling fails", func() {
			var setupErr error

			BeforeEach(func() {
				setupErr = errors.New("connection reset")
				engine.pollErr = setupErr
			})

			It("returns the error", func() {
				Expect(err).To(MatchError(setupErr))
			})
		})

		When("fetching the result fails", func() {
			var setupErr error

			BeforeEach(func() {
				engine.statuses = []PollResult{{Status: StatusSucceeded}}
				setupErr = errors.New("fetch error")
				engine.fetchErr = setupErr
			})

			It("returns the error", func() {
				Expect(err).To(MatchError(setupErr))
			})
		})

		When("the context is canceled", func() {
			BeforeEach(func() {
				var cancel context.CancelFunc
				ctx, cancel = context.WithCancel(context.Background())
				cancel()
			})

			It("returns the context error", func() {
				Expect(err).To(MatchError(context.Canceled))
			})
		})
	})

	Describe("interval", func() {
		It("should honor a longer Retry-After hint", func() {
			Expect(client.interval(2 * time.Second)).To(Equal(2 * time.Second))
		})

		It("should keep the configured interval for shorter hints", func() {
			Expect(client.interval(0)).To(Equal(time.Millisecond))
		})
	})
})

var _ = Describe("Status", func() {
	DescribeTable("Terminal",
		func(s Status, terminal bool) {
			Expect(s.Terminal()).To(Equal(terminal))
		},
		Entry("notStarted", StatusNotStarted, false),
		Entry("running", StatusRunning, false),
		Entry("succeeded", StatusSucceeded, true),
		Entry("failed", StatusFailed, true),
		Entry("canceled", StatusCanceled, true),
	)
})
