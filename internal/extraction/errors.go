package extraction

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedResponse is returned when the engine rejects a submission
	ErrUnexpectedResponse = errors.New("unexpected response from extraction engine")
	// ErrExtractionFailed is returned when an operation ends in a failure state
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrExtractionTimeout is returned when an operation does not finish within the poll budget
	ErrExtractionTimeout = errors.New("extraction timed out")
)

// ResponseError carries the engine's error payload for a rejected submission
type ResponseError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *ResponseError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %d %s: %s", ErrUnexpectedResponse, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %d %s", ErrUnexpectedResponse, e.StatusCode, e.Body)
}

func (e *ResponseError) Is(target error) bool {
	return target == ErrUnexpectedResponse
}

// OperationError describes an operation that reached a terminal failure state
type OperationError struct {
	OperationID string
	Status      Status
	Code        string
	Message     string
}

func (e *OperationError) Error() string {
	msg := fmt.Sprintf("%s: operation %s %s", ErrExtractionFailed, e.OperationID, e.Status)
	if e.Code != "" || e.Message != "" {
		msg += fmt.Sprintf(": %s %s", e.Code, e.Message)
	}
	return msg
}

func (e *OperationError) Is(target error) bool {
	return target == ErrExtractionFailed
}

// apiError is the error envelope returned by the engine
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
