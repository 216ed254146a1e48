package aiclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com"
	defaultOpenAIModel   = "gpt-4o-mini"
)

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Refusal string `json:"refusal,omitempty"`
}

type openAIJSONSchema struct {
	Name   string  `json:"name"`
	Strict bool    `json:"strict"`
	Schema *Schema `json:"schema"`
}

type openAIResponseFormat struct {
	Type       string           `json:"type"`
	JSONSchema openAIJSONSchema `json:"json_schema"`
}

type openAIRequest struct {
	Model          string               `json:"model"`
	Messages       []openAIMessage      `json:"messages"`
	ResponseFormat openAIResponseFormat `json:"response_format"`
}

type openAIResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
}

// OpenAI calls chat completions with a strict json_schema response format.
type OpenAI struct {
	http   *resty.Client
	apiKey string
	model  string
}

func NewOpenAI(baseURL, apiKey, model string, timeout time.Duration) *OpenAI {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{
		http:   newRestClient(baseURL, timeout),
		apiKey: apiKey,
		model:  model,
	}
}

func (o *OpenAI) Provider() string { return "openai" }
func (o *OpenAI) Model() string    { return o.model }

func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	body := openAIRequest{
		Model:    o.model,
		Messages: []openAIMessage{{Role: "user", Content: prompt}},
		ResponseFormat: openAIResponseFormat{
			Type: "json_schema",
			JSONSchema: openAIJSONSchema{
				Name:   "simulation_result",
				Strict: true,
				Schema: responseSchema(dialectOpenAI),
			},
		},
	}

	var out openAIResponse
	var failure apiError
	resp, err := o.http.R().
		SetContext(ctx).
		SetAuthToken(o.apiKey).
		SetBody(body).
		SetResult(&out).
		SetError(&failure).
		Post("/v1/chat/completions")
	if err != nil {
		return "", fmt.Errorf("%w: openai request: %v", ErrTransport, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: openai status %d: %s", ErrTransport, resp.StatusCode(), failure.Error.Message)
	}

	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: openai no choices", ErrTransport)
	}
	msg := out.Choices[0].Message
	if msg.Refusal != "" {
		return "", fmt.Errorf("%w: openai refused: %s", ErrSchema, msg.Refusal)
	}
	return msg.Content, nil
}
