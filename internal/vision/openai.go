package vision

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAI asks an OpenAI chat model for navigation guidance.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI creates an advisor for model. Extra request options are mostly for tests.
func NewOpenAI(apiKey, model string, options ...option.RequestOption) *OpenAI {
	return &OpenAI{
		client: openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, options...)...),
		model:  model,
	}
}

// Describe sends the navigation prompt together with a JPEG frame.
func (o *OpenAI) Describe(ctx context.Context, image []byte) (string, error) {
	dataURL := "data:" + jpegMIMEType + ";base64," + base64.StdEncoding.EncodeToString(image)

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(NavigationPrompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart("Describe the way ahead."),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
		Model:               openai.ChatModel(o.model),
		MaxCompletionTokens: openai.Int(maxGuidanceTokens),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	fragments := make([]string, 0, 1)
	if len(resp.Choices) > 0 {
		fragments = append(fragments, resp.Choices[0].Message.Content)
	}

	return joinGuidance(fragments)
}
