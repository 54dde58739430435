package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/go-autorest/autorest"
)

// DefaultAPIVersion is the Document Intelligence API version used when none is configured
const DefaultAPIVersion = "2024-11-30"

// AzureConfig holds the connection settings for a Document Intelligence resource
type AzureConfig struct {
	Endpoint   string
	Key        string
	APIVersion string
	HTTPClient *http.Client
}

// Azure implements Engine against the Azure AI Document Intelligence REST API
type Azure struct {
	endpoint   string
	apiVersion string
	authorizer *autorest.CognitiveServicesAuthorizer
	sender     autorest.Sender
}

// NewAzure creates a new Azure engine
func NewAzure(cfg AzureConfig) (*Azure, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("azure endpoint is required")
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("azure key is required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	var sender autorest.Sender = &http.Client{Timeout: 60 * time.Second}
	if cfg.HTTPClient != nil {
		sender = cfg.HTTPClient
	}

	return &Azure{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiVersion: cfg.APIVersion,
		authorizer: autorest.NewCognitiveServicesAuthorizer(cfg.Key),
		sender:     sender,
	}, nil
}

// analyzeOperation is the body of an analyze operation status request
type analyzeOperation struct {
	Status        Status         `json:"status"`
	Error         *apiError      `json:"error,omitempty"`
	AnalyzeResult *AnalyzeResult `json:"analyzeResult,omitempty"`
}

// Submit posts the document to the analyze endpoint of model
func (a *Azure) Submit(ctx context.Context, document io.Reader, contentType string, model string) (Operation, error) {
	if model == "" {
		model = ModelInvoice
	}
	analyzeURL := fmt.Sprintf("%s/documentintelligence/documentModels/%s:analyze", a.endpoint, url.PathEscape(model))

	req, err := autorest.Prepare((&http.Request{}).WithContext(ctx),
		autorest.AsPost(),
		autorest.WithBaseURL(analyzeURL),
		autorest.WithQueryParameters(map[string]interface{}{"api-version": a.apiVersion}),
		autorest.AsOctetStream(),
		autorest.WithFile(io.NopCloser(document)),
		a.authorizer.WithAuthorization(),
	)
	if err != nil {
		return Operation{}, fmt.Errorf("preparing analyze request: %w", err)
	}

	resp, err := autorest.SendWithSender(a.sender, req)
	if err != nil {
		return Operation{}, fmt.Errorf("calling analyze endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return Operation{}, newResponseError(resp)
	}
	location := resp.Header.Get("Operation-Location")
	if location == "" {
		return Operation{}, &ResponseError{
			StatusCode: resp.StatusCode,
			Message:    "missing Operation-Location header",
		}
	}

	return Operation{
		ID:         operationID(location),
		Location:   location,
		RetryAfter: retryAfter(resp.Header),
	}, nil
}

// Poll fetches the current status of op
func (a *Azure) Poll(ctx context.Context, op Operation) (PollResult, error) {
	body, header, err := a.getOperation(ctx, op)
	if err != nil {
		return PollResult{}, err
	}
	res := PollResult{
		Status:     body.Status,
		RetryAfter: retryAfter(header),
	}
	if body.Error != nil {
		res.Code = body.Error.Code
		res.Message = body.Error.Message
	}
	return res, nil
}

// FetchResult returns the analyze result of a succeeded operation
func (a *Azure) FetchResult(ctx context.Context, op Operation) (*AnalyzeResult, error) {
	body, _, err := a.getOperation(ctx, op)
	if err != nil {
		return nil, err
	}
	if body.Status != StatusSucceeded {
		return nil, fmt.Errorf("operation %s is %s", op.ID, body.Status)
	}
	if body.AnalyzeResult == nil {
		return &AnalyzeResult{}, nil
	}
	return body.AnalyzeResult, nil
}

func (a *Azure) getOperation(ctx context.Context, op Operation) (*analyzeOperation, http.Header, error) {
	req, err := autorest.Prepare((&http.Request{}).WithContext(ctx),
		autorest.AsGet(),
		autorest.WithBaseURL(op.Location),
		a.authorizer.WithAuthorization(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("preparing operation request: %w", err)
	}

	resp, err := autorest.SendWithSender(a.sender, req)
	if err != nil {
		return nil, nil, fmt.Errorf("calling operation endpoint: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, nil, newResponseError(resp)
	}

	var body analyzeOperation
	if err := autorest.Respond(resp,
		autorest.ByUnmarshallingJSON(&body),
		autorest.ByClosing(),
	); err != nil {
		return nil, nil, fmt.Errorf("decoding operation response: %w", err)
	}
	return &body, resp.Header, nil
}

// newResponseError builds a ResponseError from a non-success response, keeping the body as sent
func newResponseError(resp *http.Response) *ResponseError {
	raw, _ := io.ReadAll(resp.Body)
	respErr := &ResponseError{
		StatusCode: resp.StatusCode,
		Body:       string(raw),
	}
	var envelope struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil {
		respErr.Code = envelope.Error.Code
		respErr.Message = envelope.Error.Message
	}
	return respErr
}

// operationID extracts the result id from an Operation-Location URL
func operationID(location string) string {
	u, err := url.Parse(location)
	if err != nil {
		return location
	}
	return path.Base(u.Path)
}

func retryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
