package vision

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// jpegMIMEType is the type of every frame the camera produces.
const jpegMIMEType = "image/jpeg"

// Gemini asks a Gemini model for navigation guidance.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates an advisor for model. configure adjusts the client
// settings before the client is built, tests use it to point at a local server.
func NewGemini(ctx context.Context, apiKey, model string, configure ...func(*genai.ClientConfig)) (*Gemini, error) {
	//nolint:exhaustruct // Unset fields keep the SDK defaults.
	config := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	for _, apply := range configure {
		apply(config)
	}

	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  model,
	}, nil
}

// Describe sends the navigation prompt together with a JPEG frame.
func (g *Gemini) Describe(ctx context.Context, image []byte) (string, error) {
	contents := []*genai.Content{
		{
			Role: genai.RoleUser,
			Parts: []*genai.Part{
				{Text: NavigationPrompt},
				{InlineData: &genai.Blob{MIMEType: jpegMIMEType, Data: image}},
			},
		},
	}

	response, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	var fragments []string

	for _, candidate := range response.Candidates {
		if candidate.Content == nil {
			continue
		}

		for _, part := range candidate.Content.Parts {
			fragments = append(fragments, part.Text)
		}

		// The first candidate with content is the answer.
		break
	}

	return joinGuidance(fragments)
}
