package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements the Analyzer interface using Google Gemini
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
	images ImageOptions
}

// NewGemini creates a new Gemini Analyzer instance
func NewGemini(apiKey string, modelName string, images ImageOptions) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  client.GenerativeModel(modelName),
		images: images,
	}, nil
}

// Analyze extracts fields from a document with Gemini
func (g *Gemini) Analyze(ctx context.Context, data []byte, contentType string, model string) (*AnalyzeResult, error) {
	pngData, err := prepareImage(data, contentType, g.images)
	if err != nil {
		return nil, err
	}

	// genai.ImageData takes the format suffix, not the MIME type
	resp, err := g.model.GenerateContent(ctx,
		genai.ImageData("png", pngData),
		genai.Text(promptFor(model)),
	)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}
	return geminiResult(resp, model)
}

// geminiResult joins the text parts of the first candidate and parses them
func geminiResult(resp *genai.GenerateContentResponse, model string) (*AnalyzeResult, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from gemini")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	result, err := parseModelResponse(text.String(), model)
	if err != nil {
		return nil, fmt.Errorf("parsing gemini response: %w", err)
	}
	return result, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
